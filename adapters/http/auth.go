package http

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/cocoa-fruit/jester/domain"
	"github.com/satriahrh/cocoa-fruit/jester/utils/log"
)

const issuer = "jester"

// SessionClaims bind a bearer token to one conversation session.
type SessionClaims struct {
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

type AuthConfig struct {
	APIKey    string
	APISecret string
	JWTSecret string
	TokenTTL  time.Duration
}

type Authenticator struct {
	cfg    AuthConfig
	secret []byte
	newID  func() string
}

func NewAuthenticator(cfg AuthConfig, newSessionID func() string) *Authenticator {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &Authenticator{cfg: cfg, secret: []byte(cfg.JWTSecret), newID: newSessionID}
}

func (a *Authenticator) Issue(sessionID string) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(a.cfg.TokenTTL)
	claims := &SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   sessionID,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

func (a *Authenticator) Parse(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// GenerateToken trades the API key and secret headers for a session token.
// X-Session-ID resumes an existing session; otherwise a new one is opened.
func (a *Authenticator) GenerateToken(c echo.Context) error {
	key := c.Request().Header.Get("X-API-Key")
	secret := c.Request().Header.Get("X-API-Secret")
	if !equal(key, a.cfg.APIKey) || !equal(secret, a.cfg.APISecret) {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	}

	sessionID := c.Request().Header.Get("X-Session-ID")
	if sessionID == "" {
		sessionID = a.newID()
	}
	token, expires, err := a.Issue(sessionID)
	if err != nil {
		log.WithCtx(c.Request().Context()).Error("Error signing JWT", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"token":      token,
		"type":       "Bearer",
		"session_id": sessionID,
		"expires_at": expires.UTC(),
	})
}

// Middleware accepts "Authorization: Bearer <token>", or a token query
// parameter for websocket clients that cannot set headers.
func (a *Authenticator) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tokenString := c.QueryParam("token")
		if authHeader := c.Request().Header.Get("Authorization"); authHeader != "" {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization format")
			}
		}
		if tokenString == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
		}

		claims, err := a.Parse(tokenString)
		if err != nil {
			log.WithCtx(c.Request().Context()).Debug("JWT validation error", zap.Error(err))
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
		}

		c.Set(domain.SessionContextKey, claims.SessionID)
		ctx := log.WithSession(c.Request().Context(), claims.SessionID)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// RequestContext copies the request ID set by echo's RequestID middleware
// into the request context for logging.
func RequestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Response().Header().Get(echo.HeaderXRequestID)
		if id == "" {
			id = c.Request().Header.Get(echo.HeaderXRequestID)
		}
		if id != "" {
			c.SetRequest(c.Request().WithContext(log.WithRequest(c.Request().Context(), id)))
		}
		return next(c)
	}
}

func equal(got, want string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
