package domain

import (
	"fmt"
	"strings"
	"time"
)

// ProviderKind selects the generation backend.
type ProviderKind string

const (
	// DirectModel is a synchronous Ollama-compatible model server.
	DirectModel ProviderKind = "direct"
	// QueueBackend is a submit-then-poll job queue (RunPod style).
	QueueBackend ProviderKind = "queue"
	GeminiModel  ProviderKind = "gemini"
	EchoModel    ProviderKind = "echo"
)

// ParseProviderKind accepts the canonical kinds and the legacy provider
// names. The second return value is the queue payload flavour, if any.
func ParseProviderKind(s string) (ProviderKind, string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "direct", "ollama":
		return DirectModel, "", nil
	case "queue", "runpod", "vllm":
		return QueueBackend, "vllm", nil
	case "runpod_ollama":
		return QueueBackend, "ollama", nil
	case "gemini":
		return GeminiModel, "", nil
	case "echo":
		return EchoModel, "", nil
	}
	return "", "", &ConfigError{Field: "provider", Reason: fmt.Sprintf("unsupported provider %q", s)}
}

// PipelineConfig is shared read-only by every pipeline run.
type PipelineConfig struct {
	ModelName      string
	BackendAddress string
	MaxIterations  int
	MinJokeScore   int
	Principles     string
	ProviderKind   ProviderKind
	// JokeLoop wires GenerateJoke/ScoreJoke/Combine after ApplyPrinciples.
	JokeLoop bool
	// HistoryWindow is how many recent exchanges are quoted in prompts.
	HistoryWindow int
}

const DefaultPrinciples = "You are a lazy computer program who will make up answers, and doesn't check anything."

func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		ModelName:      "dolphin-mistral-nemo:latest",
		BackendAddress: "http://localhost:11434",
		MaxIterations:  3,
		MinJokeScore:   800,
		Principles:     DefaultPrinciples,
		ProviderKind:   DirectModel,
		JokeLoop:       true,
		HistoryWindow:  5,
	}
}

func (c PipelineConfig) Validate() error {
	if c.MaxIterations < 1 {
		return &ConfigError{Field: "max_iterations", Reason: "must be at least 1"}
	}
	if c.MinJokeScore < MinScore || c.MinJokeScore > MaxScore {
		return &ConfigError{Field: "min_joke_score", Reason: fmt.Sprintf("must be within [%d,%d]", MinScore, MaxScore)}
	}
	if c.HistoryWindow < 0 {
		return &ConfigError{Field: "history_window", Reason: "must not be negative"}
	}
	return nil
}

// Stage names a pipeline step.
type Stage string

const (
	StageThink           Stage = "think"
	StageRespond         Stage = "respond"
	StageApplyPrinciples Stage = "apply_principles"
	StageGenerateJoke    Stage = "generate_joke"
	StageScoreJoke       Stage = "score_joke"
	StageCombine         Stage = "combine"
)

// StageEvent reports one finished stage.
type StageEvent struct {
	SessionID     string        `json:"session_id,omitempty"`
	Stage         Stage         `json:"stage"`
	JokeIteration int           `json:"joke_iteration"`
	Duration      time.Duration `json:"duration"`
	Error         string        `json:"error,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}
