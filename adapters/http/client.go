package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/satriahrh/cocoa-fruit/jester/domain"
)

// Client talks to a running jester API with one session token.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	token   string
	session string
}

type TokenResponse struct {
	Token     string    `json:"token"`
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Conversation struct {
	SessionID string            `json:"session_id"`
	History   []domain.Exchange `json:"history"`
	Length    int               `json:"length"`
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Minute},
	}
}

func (c *Client) Token() string     { return c.token }
func (c *Client) SessionID() string { return c.session }

// Login opens a session, or resumes sessionID when it is not empty.
func (c *Client) Login(ctx context.Context, apiKey, apiSecret, sessionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/auth/token", nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-API-Key", apiKey)
	req.Header.Set("X-API-Secret", apiSecret)
	if sessionID != "" {
		req.Header.Set("X-Session-ID", sessionID)
	}
	var tok TokenResponse
	if err := c.send(req, &tok); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	c.token, c.session = tok.Token, tok.SessionID
	return nil
}

func (c *Client) Chat(ctx context.Context, message string) (domain.ChatResult, error) {
	var res domain.ChatResult
	err := c.call(ctx, http.MethodPost, "/api/v1/chat", map[string]string{"message": message}, &res)
	if err != nil && res.Message != "" {
		return res, fmt.Errorf("chat: %s", res.Message)
	}
	return res, err
}

func (c *Client) Conversation(ctx context.Context) (Conversation, error) {
	var conv Conversation
	err := c.call(ctx, http.MethodGet, "/api/v1/conversation", nil, &conv)
	return conv, err
}

func (c *Client) ClearConversation(ctx context.Context) error {
	return c.call(ctx, http.MethodDelete, "/api/v1/conversation", nil, nil)
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	return c.send(req, out)
}

// send decodes the body into out even on error statuses so that structured
// error results reach the caller.
func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if out != nil && len(body) > 0 {
		_ = json.Unmarshal(body, out)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
