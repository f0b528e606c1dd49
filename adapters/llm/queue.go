package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/cocoa-fruit/jester/domain"
	"github.com/satriahrh/cocoa-fruit/jester/utils/log"
)

// JobState is the normalized lifecycle of a queued generation job.
type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled"
	JobTimedOut  JobState = "timed_out"
)

// ParseJobState maps worker status strings. Unknown states count as running.
func ParseJobState(status string) JobState {
	switch strings.ToUpper(status) {
	case "IN_QUEUE", "QUEUED":
		return JobQueued
	case "COMPLETED":
		return JobCompleted
	case "FAILED", "ERROR":
		return JobFailed
	case "CANCELLED":
		return JobCancelled
	case "TIMED_OUT":
		return JobTimedOut
	default:
		return JobRunning
	}
}

func (s JobState) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled, JobTimedOut:
		return true
	}
	return false
}

const (
	FlavorVLLM   = "vllm"
	FlavorOllama = "ollama"
)

// stopSequences keep vLLM workers from running on into a fake next turn.
var stopSequences = []string{"\n\nUser:", "\n\nHuman:", "\n\nAssistant:", "</s>", "<|im_end|>"}

// QueueClient submits prompts to a job queue (POST {endpoint}/run) and polls
// GET {endpoint}/status/{id} until the job is terminal or the timeout passes.
// It never retries; failed jobs surface as *domain.BackendError.
type QueueClient struct {
	endpoint     string
	apiKey       string
	model        string
	flavor       string
	pollInterval time.Duration
	timeout      time.Duration
	options      Options
	client       *http.Client
}

type QueueConfig struct {
	Endpoint     string // e.g. "https://api.runpod.ai/v2/<id>"
	APIKey       string
	Model        string // used by the ollama flavour
	Flavor       string // "vllm" (default) or "ollama"
	PollInterval time.Duration
	Timeout      time.Duration
	Options      Options
}

func NewQueueClient(cfg QueueConfig) (*QueueClient, error) {
	if cfg.Endpoint == "" {
		return nil, &domain.ConfigError{Field: "backend_address", Reason: "queue endpoint required for the queue provider"}
	}
	if cfg.APIKey == "" {
		return nil, &domain.ConfigError{Field: "api_key", Reason: "required for the queue provider"}
	}
	flavor := cfg.Flavor
	if flavor == "" {
		flavor = FlavorVLLM
	}
	if flavor != FlavorVLLM && flavor != FlavorOllama {
		return nil, &domain.ConfigError{Field: "queue_flavor", Reason: fmt.Sprintf("unsupported flavour %q", flavor)}
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultVLLMTimeout
		if flavor == FlavorOllama {
			timeout = defaultOllamaTimeout
		}
	}
	return &QueueClient{
		endpoint:     strings.TrimSuffix(cfg.Endpoint, "/"),
		apiKey:       cfg.APIKey,
		model:        cfg.Model,
		flavor:       flavor,
		pollInterval: poll,
		timeout:      timeout,
		options:      cfg.Options,
		client:       &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type submitResponse struct {
	ID string `json:"id"`
}

type statusResponse struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
}

// Generate ignores shape: queue workers run in plain-text mode.
// The job timeout bounds the submit and every poll.
func (c *QueueClient) Generate(ctx context.Context, prompt string, _ *domain.Shape) (string, error) {
	jobCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	jobID, err := c.submit(jobCtx, prompt)
	if err != nil {
		return "", c.timedOut(ctx, jobCtx, "", err)
	}
	output, err := c.wait(jobCtx, jobID)
	if err != nil {
		return "", c.timedOut(ctx, jobCtx, jobID, err)
	}
	return ExtractText(output), nil
}

// timedOut reports err as a TimeoutError when the job deadline fired while
// the caller's context was still live.
func (c *QueueClient) timedOut(parent, job context.Context, jobID string, err error) error {
	if parent.Err() == nil && errors.Is(job.Err(), context.DeadlineExceeded) {
		return &domain.TimeoutError{Backend: "queue", JobID: jobID, After: c.timeout}
	}
	return err
}

func (c *QueueClient) Structured() bool { return false }

func (c *QueueClient) input(prompt string) map[string]any {
	if c.flavor == FlavorOllama {
		return map[string]any{
			"model":   c.model,
			"prompt":  prompt,
			"stream":  false,
			"options": c.options.ollamaOptions(),
		}
	}
	sampling := map[string]any{"stop": stopSequences}
	if c.options.Temperature > 0 {
		sampling["temperature"] = c.options.Temperature
	}
	if c.options.MaxTokens > 0 {
		sampling["max_tokens"] = c.options.MaxTokens
	}
	if c.options.TopP > 0 {
		sampling["top_p"] = c.options.TopP
	}
	if c.options.RepetitionPenalty > 0 {
		sampling["repetition_penalty"] = c.options.RepetitionPenalty
	}
	return map[string]any{
		"prompt":          prompt,
		"sampling_params": sampling,
	}
}

func (c *QueueClient) submit(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(map[string]any{"input": c.input(prompt)})
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/run", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	var out submitResponse
	if err := c.do(req, &out); err != nil {
		return "", fmt.Errorf("submit job: %w", err)
	}
	if out.ID == "" {
		return "", &domain.BackendError{Backend: "queue", Status: "rejected", Payload: "no job id returned"}
	}
	log.WithCtx(ctx).Debug("queue job submitted", zap.String("job_id", out.ID), zap.String("flavor", c.flavor))
	return out.ID, nil
}

func (c *QueueClient) wait(ctx context.Context, jobID string) (json.RawMessage, error) {
	for {
		st, err := c.status(ctx, jobID)
		if err != nil {
			return nil, err
		}
		// an answer that lands after the deadline does not count
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch state := ParseJobState(st.Status); state {
		case JobCompleted:
			return st.Output, nil
		case JobFailed, JobCancelled, JobTimedOut:
			payload := string(st.Error)
			if len(st.Error) == 0 || payload == "null" {
				payload = fmt.Sprintf("job %s", state)
			}
			return nil, &domain.BackendError{Backend: "queue", JobID: jobID, Status: string(state), Payload: payload}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *QueueClient) status(ctx context.Context, jobID string) (statusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/status/"+jobID, nil)
	if err != nil {
		return statusResponse{}, fmt.Errorf("create request: %w", err)
	}
	c.authorize(req)

	var out statusResponse
	if err := c.do(req, &out); err != nil {
		return statusResponse{}, fmt.Errorf("poll job %s: %w", jobID, err)
	}
	return out, nil
}

func (c *QueueClient) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}

func (c *QueueClient) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return &domain.BackendError{
			Backend: "queue",
			Status:  fmt.Sprintf("status %d", resp.StatusCode),
			Payload: string(respBody),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ExtractText pulls generated text out of a worker's output. Worker output
// shapes vary, so this tries in order: choices with tokens, choices with
// text, flat text, an Ollama-style response field, and finally the JSON of
// whatever was returned.
func ExtractText(output json.RawMessage) string {
	var v any
	if err := json.Unmarshal(output, &v); err != nil {
		return string(output)
	}
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return stringify(v)
		}
		v = list[0]
	}
	m, ok := v.(map[string]any)
	if !ok {
		return stringify(v)
	}
	if choices, ok := m["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if tokens, ok := choice["tokens"].([]any); ok && len(tokens) > 0 {
				var sb strings.Builder
				for _, tok := range tokens {
					if s, ok := tok.(string); ok {
						sb.WriteString(s)
					}
				}
				return sb.String()
			}
			if text, ok := choice["text"].(string); ok {
				return text
			}
		}
	}
	if text, ok := m["text"].(string); ok {
		return text
	}
	if text, ok := m["response"].(string); ok {
		return text
	}
	return stringify(v)
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
