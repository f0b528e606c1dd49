package llm

import (
	"context"
	"time"

	"github.com/satriahrh/cocoa-fruit/jester/adapters/hasher"
	"github.com/satriahrh/cocoa-fruit/jester/domain"
)

// Config selects and parameterizes one backend.
type Config struct {
	Kind         domain.ProviderKind
	Flavor       string
	Model        string
	Address      string
	APIKey       string
	PollInterval time.Duration
	Timeout      time.Duration
	Options      Options
}

// New builds the generator for cfg.Kind wrapped with call logging. Missing
// addresses or credentials fail here with *domain.ConfigError.
func New(ctx context.Context, cfg Config) (domain.Generator, error) {
	var (
		gen domain.Generator
		err error
	)
	switch cfg.Kind {
	case domain.DirectModel:
		gen, err = NewOllamaClient(OllamaConfig{BaseURL: cfg.Address, Model: cfg.Model, Options: cfg.Options})
	case domain.QueueBackend:
		gen, err = NewQueueClient(QueueConfig{
			Endpoint:     cfg.Address,
			APIKey:       cfg.APIKey,
			Model:        cfg.Model,
			Flavor:       cfg.Flavor,
			PollInterval: cfg.PollInterval,
			Timeout:      cfg.Timeout,
			Options:      cfg.Options,
		})
	case domain.GeminiModel:
		gen, err = NewGeminiClient(ctx, GeminiConfig{APIKey: cfg.APIKey, Model: cfg.Model, Temperature: cfg.Options.Temperature})
	case domain.EchoModel:
		gen = NewEchoClient()
	default:
		return nil, &domain.ConfigError{Field: "provider", Reason: "unsupported provider " + string(cfg.Kind)}
	}
	if err != nil {
		return nil, err
	}
	return WithLogging(string(cfg.Kind), gen, hasher.New(12)), nil
}
