package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/satriahrh/cocoa-fruit/jester/domain"
)

type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float32
}

type GeminiConfig struct {
	APIKey      string
	Model       string // e.g. "gemini-2.0-flash-001"
	Temperature float64
	BaseURL     string // empty means the public endpoint
}

func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, &domain.ConfigError{Field: "api_key", Reason: "required for the gemini provider"}
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash-001"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &GeminiClient{client: client, model: model, temperature: float32(cfg.Temperature)}, nil
}

// Generate asks for JSON constrained by the shape when one is given.
func (g *GeminiClient) Generate(ctx context.Context, prompt string, shape *domain.Shape) (string, error) {
	config := &genai.GenerateContentConfig{}
	if g.temperature > 0 {
		temp := g.temperature
		config.Temperature = &temp
	}
	if shape != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = geminiSchema(*shape)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("generate content: %w", err)
		}
		return "", geminiError(err)
	}
	return resp.Text(), nil
}

func (g *GeminiClient) Structured() bool { return true }

func geminiSchema(shape domain.Shape) *genai.Schema {
	schema := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(shape.Fields)),
	}
	for _, f := range shape.Fields {
		prop := &genai.Schema{Description: f.Description, Type: genai.TypeString}
		if f.Type == domain.IntegerField {
			prop.Type = genai.TypeInteger
		}
		if f.Min != nil {
			v := float64(*f.Min)
			prop.Minimum = &v
		}
		if f.Max != nil {
			v := float64(*f.Max)
			prop.Maximum = &v
		}
		schema.Properties[f.Name] = prop
		schema.Required = append(schema.Required, f.Name)
	}
	return schema
}

func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &domain.BackendError{Backend: "gemini", Status: fmt.Sprintf("status %d", apiErr.Code), Payload: apiErr.Message}
	}
	return &domain.BackendError{Backend: "gemini", Status: "unreachable", Payload: err.Error()}
}
