// Package config holds every runtime setting. Values come from flags, the
// environment (a .env file is loaded first) and an optional YAML file passed
// with --config; flags win.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/subosito/gotenv"
	"gopkg.in/yaml.v3"

	"github.com/satriahrh/cocoa-fruit/jester/adapters/llm"
	"github.com/satriahrh/cocoa-fruit/jester/domain"
)

type Config struct {
	File  kong.ConfigFlag `name:"config" short:"c" help:"Path to YAML config file"`
	Debug bool            `help:"Development logging" env:"DEBUG"`

	LLM      LLMConfig      `embed:"" prefix:"llm-"`
	Pipeline PipelineConfig `embed:"" prefix:"pipeline-"`
	Server   ServerConfig   `embed:"" prefix:"server-"`
	Session  SessionConfig  `embed:"" prefix:"session-"`
	TTS      TTSConfig      `embed:"" prefix:"tts-"`
}

type LLMConfig struct {
	Provider     string        `help:"Generation backend (ollama, runpod, runpod_ollama, gemini, echo)" default:"ollama" env:"LLM_PROVIDER"`
	Model        string        `help:"Model name" default:"dolphin-mistral-nemo:latest" env:"LLM_MODEL"`
	URL          string        `help:"Ollama base URL" default:"http://localhost:11434" env:"OLLAMA_BASE_URL"`
	Endpoint     string        `help:"Queue endpoint base URL, without /run" env:"RUNPOD_ENDPOINT"`
	APIKey       string        `help:"Queue or Gemini API key" env:"RUNPOD_API_KEY,GEMINI_API_KEY"`
	Temperature  float64       `help:"Sampling temperature" default:"0.7" env:"LLM_TEMPERATURE"`
	MaxTokens    int           `help:"Max tokens per call" default:"512" env:"LLM_MAX_TOKENS"`
	PollInterval time.Duration `help:"Queue status poll interval" default:"1s" env:"LLM_POLL_INTERVAL"`
	Timeout      time.Duration `help:"Queue job timeout (0 picks the flavour default)" env:"LLM_TIMEOUT"`
}

type PipelineConfig struct {
	MaxIterations int    `help:"Joke improvement rounds" default:"3" env:"MAX_ITERATIONS"`
	MinJokeScore  int    `help:"Score a joke must reach to stop improving" default:"800" env:"MIN_JOKE_SCORE"`
	Principles    string `help:"Persona applied to every reply" env:"PRINCIPLES"`
	JokeLoop      bool   `help:"Run the joke stages after principles" default:"true" negatable:"" env:"JOKE_LOOP"`
	HistoryWindow int    `help:"Exchanges quoted in prompts" default:"5" env:"HISTORY_WINDOW"`
}

type ServerConfig struct {
	Addr      string        `help:"Listen address" default:":8080" env:"SERVER_ADDR"`
	APIKey    string        `help:"Key accepted by the token endpoint" env:"API_KEY"`
	APISecret string        `help:"Secret accepted by the token endpoint" env:"API_SECRET"`
	JWTSecret string        `help:"HMAC secret for session tokens" env:"JWT_SECRET"`
	TokenTTL  time.Duration `help:"Session token lifetime" default:"24h" env:"TOKEN_TTL"`
	RateLimit float64       `help:"Requests per second per client" default:"20" env:"RATE_LIMIT"`
}

type SessionConfig struct {
	Store string `help:"History store (bolt, memory)" default:"bolt" enum:"bolt,memory" env:"SESSION_STORE"`
	Path  string `help:"bbolt file for the bolt store" default:"data/sessions.bolt" env:"SESSION_PATH"`
}

type TTSConfig struct {
	Enabled  bool   `help:"Enable the speech endpoint (needs Google credentials)" env:"TTS_ENABLED"`
	Language string `help:"Voice language code" default:"en-GB" env:"TTS_LANGUAGE"`
	Voice    string `help:"Voice name" env:"TTS_VOICE"`
}

// LoadDotEnv loads .env into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := gotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// YAML is a kong configuration loader. Nested keys map to prefixed flags:
// llm.api_key feeds --llm-api-key.
func YAML(r io.Reader) (kong.Resolver, error) {
	var raw map[string]any
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	values := map[string]string{}
	flatten("", raw, values)

	return kong.ResolverFunc(func(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (any, error) {
		if v, ok := values[flag.Name]; ok {
			return v, nil
		}
		return nil, nil
	}), nil
}

func flatten(prefix string, in map[string]any, out map[string]string) {
	for k, v := range in {
		key := strings.ReplaceAll(k, "_", "-")
		if prefix != "" {
			key = prefix + "-" + key
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case nil:
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// Options are the kong options every binary parsing Config needs.
func Options() []kong.Option {
	return []kong.Option{kong.Configuration(YAML)}
}

func (c *Config) PipelineSettings() (domain.PipelineConfig, error) {
	kind, _, err := domain.ParseProviderKind(c.LLM.Provider)
	if err != nil {
		return domain.PipelineConfig{}, err
	}
	p := domain.DefaultPipelineConfig()
	p.ModelName = c.LLM.Model
	p.BackendAddress = c.backendAddress(kind)
	p.MaxIterations = c.Pipeline.MaxIterations
	p.MinJokeScore = c.Pipeline.MinJokeScore
	p.JokeLoop = c.Pipeline.JokeLoop
	p.HistoryWindow = c.Pipeline.HistoryWindow
	p.ProviderKind = kind
	if c.Pipeline.Principles != "" {
		p.Principles = c.Pipeline.Principles
	}
	return p, p.Validate()
}

func (c *Config) GeneratorSettings() (llm.Config, error) {
	kind, flavor, err := domain.ParseProviderKind(c.LLM.Provider)
	if err != nil {
		return llm.Config{}, err
	}
	opts := llm.DefaultOptions()
	opts.Temperature = c.LLM.Temperature
	opts.MaxTokens = c.LLM.MaxTokens
	return llm.Config{
		Kind:         kind,
		Flavor:       flavor,
		Model:        c.LLM.Model,
		Address:      c.backendAddress(kind),
		APIKey:       c.LLM.APIKey,
		PollInterval: c.LLM.PollInterval,
		Timeout:      c.LLM.Timeout,
		Options:      opts,
	}, nil
}

// backendAddress is empty for providers that do not dial a configured host.
func (c *Config) backendAddress(kind domain.ProviderKind) string {
	switch kind {
	case domain.QueueBackend:
		return strings.TrimSuffix(c.LLM.Endpoint, "/")
	case domain.DirectModel:
		return c.LLM.URL
	}
	return ""
}

// Validate reports missing credentials for the selected backend before any
// network call is made.
func (c *Config) Validate() error {
	kind, _, err := domain.ParseProviderKind(c.LLM.Provider)
	if err != nil {
		return err
	}
	switch kind {
	case domain.DirectModel:
		if c.LLM.URL == "" {
			return &domain.ConfigError{Field: "llm-url", Reason: "required for the direct provider"}
		}
	case domain.QueueBackend:
		if c.LLM.Endpoint == "" {
			return &domain.ConfigError{Field: "llm-endpoint", Reason: "required for the queue provider"}
		}
		if c.LLM.APIKey == "" {
			return &domain.ConfigError{Field: "llm-api-key", Reason: "required for the queue provider"}
		}
	case domain.GeminiModel:
		if c.LLM.APIKey == "" {
			return &domain.ConfigError{Field: "llm-api-key", Reason: "required for the gemini provider"}
		}
	}
	if c.LLM.Model == "" && kind != domain.EchoModel {
		return &domain.ConfigError{Field: "llm-model", Reason: "required"}
	}
	if c.Session.Store == "bolt" && c.Session.Path == "" {
		return &domain.ConfigError{Field: "session-path", Reason: "required for the bolt store"}
	}
	if _, err := c.PipelineSettings(); err != nil {
		return err
	}
	return nil
}

// ValidateServer additionally requires the auth settings the HTTP API needs.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Server.JWTSecret == "" {
		return &domain.ConfigError{Field: "server-jwt-secret", Reason: "required to sign session tokens"}
	}
	if c.Server.APIKey == "" || c.Server.APISecret == "" {
		return &domain.ConfigError{Field: "server-api-key", Reason: "api key and secret are required"}
	}
	return nil
}
