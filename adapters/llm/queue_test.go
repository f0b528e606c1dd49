package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/satriahrh/cocoa-fruit/jester/domain"
)

// fakeQueue serves /run and /status/{id}, returning statuses in order and
// repeating the last one.
func fakeQueue(t *testing.T, statuses []string, output string, errPayload string, submitted *map[string]any) (*httptest.Server, *int32) {
	t.Helper()
	var polls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("expected bearer auth, got %q", r.Header.Get("Authorization"))
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/run":
			if submitted != nil {
				if err := json.NewDecoder(r.Body).Decode(submitted); err != nil {
					t.Errorf("decode submit body: %v", err)
				}
			}
			fmt.Fprint(w, `{"id": "job-42", "status": "IN_QUEUE"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/status/job-42":
			n := int(atomic.AddInt32(&polls, 1)) - 1
			if n >= len(statuses) {
				n = len(statuses) - 1
			}
			body := map[string]any{"id": "job-42", "status": statuses[n]}
			if output != "" {
				body["output"] = json.RawMessage(output)
			}
			if errPayload != "" {
				body["error"] = errPayload
			}
			_ = json.NewEncoder(w).Encode(body)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &polls
}

func newTestQueue(t *testing.T, endpoint, flavor string, timeout time.Duration) *QueueClient {
	t.Helper()
	c, err := NewQueueClient(QueueConfig{
		Endpoint:     endpoint + "/",
		APIKey:       "secret",
		Model:        "dolphin",
		Flavor:       flavor,
		PollInterval: 5 * time.Millisecond,
		Timeout:      timeout,
		Options:      DefaultOptions(),
	})
	if err != nil {
		t.Fatalf("new queue client: %v", err)
	}
	return c
}

func TestQueueCompletesAfterPolling(t *testing.T) {
	var submitted map[string]any
	srv, polls := fakeQueue(t, []string{"IN_QUEUE", "IN_PROGRESS", "COMPLETED"}, `[{"choices": [{"tokens": ["Och, ", "hello"]}]}]`, "", &submitted)
	c := newTestQueue(t, srv.URL, FlavorVLLM, time.Second)

	text, err := c.Generate(context.Background(), "hi", &domain.ThoughtShape)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != "Och, hello" {
		t.Errorf("expected joined tokens, got %q", text)
	}
	if got := atomic.LoadInt32(polls); got != 3 {
		t.Errorf("expected 3 polls, got %d", got)
	}

	input, _ := submitted["input"].(map[string]any)
	if input["prompt"] != "hi" {
		t.Errorf("expected prompt in input, got %v", input)
	}
	sampling, _ := input["sampling_params"].(map[string]any)
	if sampling["max_tokens"] != float64(512) || sampling["stop"] == nil {
		t.Errorf("expected sampling params with stop sequences, got %v", sampling)
	}
}

func TestQueueOllamaFlavourPayload(t *testing.T) {
	var submitted map[string]any
	srv, _ := fakeQueue(t, []string{"COMPLETED"}, `{"response": "aye", "done": true}`, "", &submitted)
	c := newTestQueue(t, srv.URL, FlavorOllama, time.Second)

	text, err := c.Generate(context.Background(), "hi", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if text != "aye" {
		t.Errorf("expected response field, got %q", text)
	}
	input, _ := submitted["input"].(map[string]any)
	if input["model"] != "dolphin" || input["stream"] != false {
		t.Errorf("expected ollama payload, got %v", input)
	}
}

func TestQueueTerminalFailures(t *testing.T) {
	for _, status := range []string{"FAILED", "CANCELLED", "TIMED_OUT"} {
		t.Run(status, func(t *testing.T) {
			srv, _ := fakeQueue(t, []string{"IN_PROGRESS", status}, "", "worker exploded", nil)
			c := newTestQueue(t, srv.URL, FlavorVLLM, time.Second)

			_, err := c.Generate(context.Background(), "hi", nil)
			var be *domain.BackendError
			if !errors.As(err, &be) {
				t.Fatalf("expected backend error, got %v", err)
			}
			if be.JobID != "job-42" || !strings.Contains(be.Payload, "worker exploded") {
				t.Errorf("expected error payload to be carried, got %+v", be)
			}
			if be.Status != string(ParseJobState(status)) {
				t.Errorf("expected status %s, got %s", ParseJobState(status), be.Status)
			}
		})
	}
}

func TestQueueTimeout(t *testing.T) {
	srv, polls := fakeQueue(t, []string{"IN_PROGRESS"}, "", "", nil)
	c := newTestQueue(t, srv.URL, FlavorVLLM, 30*time.Millisecond)

	_, err := c.Generate(context.Background(), "hi", nil)
	var te *domain.TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if te.JobID != "job-42" {
		t.Errorf("expected job id on timeout, got %+v", te)
	}
	if atomic.LoadInt32(polls) < 2 {
		t.Errorf("expected several polls before timing out")
	}
}

// slowQueue answers /run immediately unless slowSubmit is set, and always
// stalls /status for delay before reporting IN_PROGRESS.
func slowQueue(t *testing.T, delay time.Duration, slowSubmit bool) *httptest.Server {
	t.Helper()
	stall := func(r *http.Request) {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
		}
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/run":
			if slowSubmit {
				stall(r)
			}
			fmt.Fprint(w, `{"id": "job-7"}`)
		default:
			stall(r)
			fmt.Fprint(w, `{"id": "job-7", "status": "IN_PROGRESS"}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestQueueTimeoutBoundsSlowRequests(t *testing.T) {
	tests := []struct {
		name       string
		slowSubmit bool
		jobID      string
	}{
		{"slow status poll", false, "job-7"},
		{"slow submit", true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := slowQueue(t, 1500*time.Millisecond, tt.slowSubmit)
			c := newTestQueue(t, srv.URL, FlavorVLLM, 200*time.Millisecond)

			start := time.Now()
			_, err := c.Generate(context.Background(), "hi", nil)
			elapsed := time.Since(start)

			var te *domain.TimeoutError
			if !errors.As(err, &te) {
				t.Fatalf("expected timeout error, got %v", err)
			}
			if te.JobID != tt.jobID {
				t.Errorf("expected job id %q, got %q", tt.jobID, te.JobID)
			}
			if elapsed > time.Second {
				t.Errorf("expected the job timeout to bound the call, took %v", elapsed)
			}
		})
	}
}

func TestQueueCallerCancelIsNotATimeout(t *testing.T) {
	srv := slowQueue(t, 1500*time.Millisecond, false)
	c := newTestQueue(t, srv.URL, FlavorVLLM, 5*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := c.Generate(ctx, "hi", nil)

	var te *domain.TimeoutError
	if errors.As(err, &te) {
		t.Fatalf("expected caller deadline to pass through, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestQueueSubmitRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": "bad key"}`)
	}))
	defer srv.Close()
	c := newTestQueue(t, srv.URL, FlavorVLLM, time.Second)

	_, err := c.Generate(context.Background(), "hi", nil)
	var be *domain.BackendError
	if !errors.As(err, &be) || !strings.Contains(be.Payload, "bad key") {
		t.Errorf("expected backend error with body, got %v", err)
	}
}

func TestQueueConfigErrors(t *testing.T) {
	var ce *domain.ConfigError
	if _, err := NewQueueClient(QueueConfig{APIKey: "k"}); !errors.As(err, &ce) {
		t.Errorf("expected config error for missing endpoint, got %v", err)
	}
	if _, err := NewQueueClient(QueueConfig{Endpoint: "http://x"}); !errors.As(err, &ce) {
		t.Errorf("expected config error for missing key, got %v", err)
	}
	if _, err := NewQueueClient(QueueConfig{Endpoint: "http://x", APIKey: "k", Flavor: "tgi"}); !errors.As(err, &ce) {
		t.Errorf("expected config error for unknown flavour, got %v", err)
	}

	c, err := NewQueueClient(QueueConfig{Endpoint: "http://x", APIKey: "k", Flavor: FlavorOllama})
	if err != nil {
		t.Fatalf("new queue client: %v", err)
	}
	if c.timeout != defaultOllamaTimeout || c.pollInterval != defaultPollInterval {
		t.Errorf("expected ollama defaults, got timeout %s poll %s", c.timeout, c.pollInterval)
	}
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{"choices tokens", `[{"choices": [{"tokens": ["a", "b", "c"]}]}]`, "abc"},
		{"choices text", `[{"choices": [{"text": "plain"}]}]`, "plain"},
		{"flat text", `[{"text": "flat"}]`, "flat"},
		{"object text", `{"text": "obj"}`, "obj"},
		{"ollama response", `{"response": "resp", "done": true}`, "resp"},
		{"bare string", `"just text"`, "just text"},
		{"list of strings", `["first", "second"]`, "first"},
		{"unknown object", `[{"foo": 1}]`, `{"foo":1}`},
		{"empty list", `[]`, `[]`},
		{"null", `null`, ""},
		{"not json", `oops`, "oops"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractText(json.RawMessage(tc.output)); got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestParseJobState(t *testing.T) {
	tests := map[string]JobState{
		"IN_QUEUE":    JobQueued,
		"IN_PROGRESS": JobRunning,
		"STARTED":     JobRunning,
		"COMPLETED":   JobCompleted,
		"FAILED":      JobFailed,
		"ERROR":       JobFailed,
		"CANCELLED":   JobCancelled,
		"TIMED_OUT":   JobTimedOut,
	}
	for in, want := range tests {
		if got := ParseJobState(in); got != want {
			t.Errorf("%s: expected %s, got %s", in, want, got)
		}
	}
	if JobRunning.Terminal() || JobQueued.Terminal() || !JobCancelled.Terminal() {
		t.Errorf("unexpected terminal classification")
	}
}
