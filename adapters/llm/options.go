package llm

import "time"

// Options are sampling parameters forwarded to backends that accept them.
// Zero values are omitted from requests.
type Options struct {
	Temperature       float64
	MaxTokens         int
	TopP              float64
	RepetitionPenalty float64
}

func DefaultOptions() Options {
	return Options{
		Temperature:       0.7,
		MaxTokens:         512,
		TopP:              0.9,
		RepetitionPenalty: 1.1,
	}
}

// ollamaOptions renders Options with Ollama's option names.
func (o Options) ollamaOptions() map[string]any {
	opts := map[string]any{}
	if o.Temperature > 0 {
		opts["temperature"] = o.Temperature
	}
	if o.MaxTokens > 0 {
		opts["num_predict"] = o.MaxTokens
	}
	if o.TopP > 0 {
		opts["top_p"] = o.TopP
	}
	if o.RepetitionPenalty > 0 {
		opts["repeat_penalty"] = o.RepetitionPenalty
	}
	return opts
}

const (
	defaultPollInterval = time.Second
	// vLLM workers answer within two minutes; Ollama workers may need to
	// pull the model first.
	defaultVLLMTimeout   = 120 * time.Second
	defaultOllamaTimeout = 300 * time.Second
)
