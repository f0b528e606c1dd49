package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/cocoa-fruit/jester/domain"
	"github.com/satriahrh/cocoa-fruit/jester/utils/log"
)

// ChatService is the use case surface the API exposes.
type ChatService interface {
	Chat(ctx context.Context, sessionID, message string, history []domain.Exchange) (domain.ChatResult, error)
	SimpleChat(ctx context.Context, sessionID, message string) string
	History(ctx context.Context, sessionID string) ([]domain.Exchange, error)
	Clear(ctx context.Context, sessionID string) error
}

type ChatHandler struct {
	chat  ChatService
	voice domain.Synthesizer
}

// NewChatHandler builds the API handlers. voice may be nil, in which case
// the speech endpoint answers 503.
func NewChatHandler(chat ChatService, voice domain.Synthesizer) *ChatHandler {
	return &ChatHandler{chat: chat, voice: voice}
}

type ChatRequest struct {
	Message string          `json:"message"`
	History json.RawMessage `json:"history,omitempty"`
}

type historyEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	User    string `json:"user"`
	AI      string `json:"ai"`
}

// decodeHistory accepts either [{user, ai}] exchanges or role-style
// [{role, content}] messages. Absent history decodes to nil so the stored
// session history is used.
func decodeHistory(raw json.RawMessage) ([]domain.Exchange, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var entries []historyEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	roleStyle := false
	for _, e := range entries {
		if e.Role != "" {
			roleStyle = true
			break
		}
	}
	if roleStyle {
		msgs := make([]domain.ChatMessage, 0, len(entries))
		for _, e := range entries {
			msgs = append(msgs, domain.ChatMessage{Role: domain.Role(e.Role), Content: e.Content})
		}
		out := domain.ExchangesFromMessages(msgs)
		if out == nil {
			out = []domain.Exchange{}
		}
		return out, nil
	}
	out := make([]domain.Exchange, 0, len(entries))
	for _, e := range entries {
		out = append(out, domain.Exchange{User: e.User, AI: e.AI})
	}
	return out, nil
}

func sessionID(c echo.Context) string {
	id, _ := c.Get(domain.SessionContextKey).(string)
	return id
}

func errorJSON(c echo.Context, code int, message string) error {
	return c.JSON(code, map[string]string{"status": domain.StatusError, "message": message})
}

// runStatus maps a failed run to an HTTP status.
func runStatus(err error) int {
	var (
		timeout *domain.TimeoutError
		backend *domain.BackendError
	)
	switch {
	case errors.As(err, &timeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &backend):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (h *ChatHandler) Chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return errorJSON(c, http.StatusBadRequest, "Empty message")
	}
	history, err := decodeHistory(req.History)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid history: "+err.Error())
	}

	ctx := c.Request().Context()
	result, err := h.chat.Chat(ctx, sessionID(c), req.Message, history)
	if err != nil {
		log.WithCtx(ctx).Warn("chat request failed", zap.Error(err))
		return errorJSON(c, runStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

func (h *ChatHandler) SimpleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return errorJSON(c, http.StatusBadRequest, "Empty message")
	}
	reply := h.chat.SimpleChat(c.Request().Context(), sessionID(c), req.Message)
	return c.JSON(http.StatusOK, map[string]string{"response": reply})
}

func (h *ChatHandler) Conversation(c echo.Context) error {
	id := sessionID(c)
	history, err := h.chat.History(c.Request().Context(), id)
	if err != nil {
		log.WithCtx(c.Request().Context()).Error("load history failed", zap.Error(err))
		return errorJSON(c, http.StatusInternalServerError, "failed to load conversation")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"session_id": id,
		"history":    history,
		"length":     len(history),
	})
}

func (h *ChatHandler) ClearConversation(c echo.Context) error {
	id := sessionID(c)
	if err := h.chat.Clear(c.Request().Context(), id); err != nil {
		log.WithCtx(c.Request().Context()).Error("clear history failed", zap.Error(err))
		return errorJSON(c, http.StatusInternalServerError, "failed to clear conversation")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "cleared", "session_id": id})
}

// Speech runs a chat turn and answers with the final reply as MP3.
func (h *ChatHandler) Speech(c echo.Context) error {
	if h.voice == nil {
		return errorJSON(c, http.StatusServiceUnavailable, "speech synthesis is disabled")
	}
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return errorJSON(c, http.StatusBadRequest, "Empty message")
	}

	ctx := c.Request().Context()
	result, err := h.chat.Chat(ctx, sessionID(c), req.Message, nil)
	if err != nil {
		return errorJSON(c, runStatus(err), err.Error())
	}
	audio, err := h.voice.Synthesize(ctx, result.FinalResponse)
	if err != nil {
		log.WithCtx(ctx).Error("speech synthesis failed", zap.Error(err))
		return errorJSON(c, http.StatusBadGateway, "speech synthesis failed")
	}
	return c.Blob(http.StatusOK, "audio/mpeg", audio)
}

func (h *ChatHandler) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "healthy",
		"chatbot":   "ready",
		"timestamp": time.Now().UTC(),
		"service":   "jester",
	})
}

// Register mounts every route on e.
func (h *ChatHandler) Register(e *echo.Echo, auth *Authenticator, ws echo.HandlerFunc) {
	if ws != nil {
		e.GET("/ws", ws, auth.Middleware)
	}

	api := e.Group("/api/v1")
	api.GET("/health", h.HealthCheck)
	api.POST("/auth/token", auth.GenerateToken)

	api.POST("/chat", h.Chat, auth.Middleware)
	api.POST("/simple-chat", h.SimpleChat, auth.Middleware)
	api.POST("/chat/speech", h.Speech, auth.Middleware)
	api.GET("/conversation", h.Conversation, auth.Middleware)
	api.DELETE("/conversation", h.ClearConversation, auth.Middleware)
}
