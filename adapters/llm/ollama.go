package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/satriahrh/cocoa-fruit/jester/domain"
)

// OllamaClient calls a model server's /api/generate synchronously and
// forwards output shapes as the "format" JSON schema.
type OllamaClient struct {
	baseURL string
	model   string
	options Options
	client  *http.Client
}

type OllamaConfig struct {
	BaseURL string // e.g. "http://localhost:11434"
	Model   string
	Options Options
}

func NewOllamaClient(cfg OllamaConfig) (*OllamaClient, error) {
	if cfg.BaseURL == "" {
		return nil, &domain.ConfigError{Field: "backend_address", Reason: "required for the direct provider"}
	}
	if cfg.Model == "" {
		return nil, &domain.ConfigError{Field: "model", Reason: "required for the direct provider"}
	}
	return &OllamaClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		model:   cfg.Model,
		options: cfg.Options,
		client:  &http.Client{},
	}, nil
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Format  map[string]any `json:"format,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response      string `json:"response"`
	Done          bool   `json:"done"`
	TotalDuration int64  `json:"total_duration"`
	EvalCount     int    `json:"eval_count"`
	Error         string `json:"error,omitempty"`
}

func (c *OllamaClient) Generate(ctx context.Context, prompt string, shape *domain.Shape) (string, error) {
	reqBody := generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  false,
		Options: c.options.ollamaOptions(),
	}
	if shape != nil {
		reqBody.Format = shape.JSONSchema()
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("send request: %w", err)
		}
		return "", &domain.BackendError{Backend: "ollama", Status: "unreachable", Payload: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", &domain.BackendError{
			Backend: "ollama",
			Status:  fmt.Sprintf("status %d", resp.StatusCode),
			Payload: string(respBody),
		}
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.Error != "" {
		return "", &domain.BackendError{Backend: "ollama", Status: "error", Payload: out.Error}
	}
	return out.Response, nil
}

func (c *OllamaClient) Structured() bool { return true }
