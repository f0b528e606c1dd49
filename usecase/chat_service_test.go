package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/satriahrh/cocoa-fruit/jester/adapters/message_broker"
	"github.com/satriahrh/cocoa-fruit/jester/adapters/session"
	"github.com/satriahrh/cocoa-fruit/jester/domain"
	"github.com/satriahrh/cocoa-fruit/jester/utils/log"
)

type fakeRunner struct {
	histories [][]domain.Exchange
	err       error
}

func (f *fakeRunner) Run(_ context.Context, message string, history []domain.Exchange) (domain.ConversationState, error) {
	f.histories = append(f.histories, history)
	if f.err != nil {
		return domain.ConversationState{}, f.err
	}
	return domain.ConversationState{
		UserMessage:        message,
		Thoughts:           "thinking about " + message,
		Responses:          []string{"thought", "plain", "principled", "combined " + message},
		StructuredThought:  &domain.Thought{Thought: "thought", Reasoning: "because"},
		StructuredResponse: &domain.Response{Response: "principled", Tone: "aggressive"},
		GeneratedJoke:      &domain.Joke{Joke: "a joke", NumWords: 2},
		QualityScore:       &domain.Score{Score: 850, Reason: "ok"},
		JokeIteration:      1,
		History:            history,
	}, nil
}

func TestChatFillsResultAndPersistsHistory(t *testing.T) {
	runner := &fakeRunner{}
	store := session.NewMemoryStore()
	svc := NewChatService(runner, store)
	ctx := context.Background()

	res, err := svc.Chat(ctx, "s1", "hello", nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if res.Status != domain.StatusSuccess {
		t.Errorf("expected success, got %s", res.Status)
	}
	if res.FinalResponse != "combined hello" {
		t.Errorf("expected final response from last entry, got %q", res.FinalResponse)
	}
	if res.ResponseBeforeJoke != "principled" || res.ResponseTone != "aggressive" || res.Reasoning != "because" {
		t.Errorf("unexpected structured fields: %+v", res)
	}
	if res.GeneratedJoke != "a joke" || res.JokeWordCount != 2 || res.JokeScore != 850 || res.JokeIterations != 1 {
		t.Errorf("unexpected joke fields: %+v", res)
	}

	if _, err := svc.Chat(ctx, "s1", "again", nil); err != nil {
		t.Fatalf("second chat: %v", err)
	}
	if got := len(runner.histories[1]); got != 1 {
		t.Errorf("expected stored history to be replayed, got %d exchanges", got)
	}
	history, _ := svc.History(ctx, "s1")
	if len(history) != 2 || history[1].AI != "combined again" {
		t.Errorf("unexpected stored history %v", history)
	}

	other, _ := svc.History(ctx, "s2")
	if len(other) != 0 {
		t.Errorf("expected isolated session, got %v", other)
	}
}

func TestChatExplicitHistoryOverridesStore(t *testing.T) {
	runner := &fakeRunner{}
	store := session.NewMemoryStore()
	_ = store.Save(context.Background(), "s1", []domain.Exchange{{User: "old", AI: "old"}})
	svc := NewChatService(runner, store)

	explicit := []domain.Exchange{}
	if _, err := svc.Chat(context.Background(), "s1", "fresh", explicit); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if len(runner.histories[0]) != 0 {
		t.Errorf("expected explicit empty history, got %v", runner.histories[0])
	}
}

func TestChatFailureKeepsHistory(t *testing.T) {
	backendErr := &domain.BackendError{Backend: "ollama", Status: "status 500"}
	runner := &fakeRunner{err: backendErr}
	store := session.NewMemoryStore()
	_ = store.Save(context.Background(), "s1", []domain.Exchange{{User: "a", AI: "b"}})
	svc := NewChatService(runner, store)

	res, err := svc.Chat(context.Background(), "s1", "hi", nil)
	var be *domain.BackendError
	if !errors.As(err, &be) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if res.Status != domain.StatusError || res.Message == "" {
		t.Errorf("expected error result, got %+v", res)
	}
	history, _ := svc.History(context.Background(), "s1")
	if len(history) != 1 {
		t.Errorf("expected history untouched on failure, got %v", history)
	}

	if text := svc.SimpleChat(context.Background(), "s1", "hi"); !strings.HasPrefix(text, "Error: ") {
		t.Errorf("expected Error: prefix, got %q", text)
	}
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	runner := &fakeRunner{}
	svc := NewChatService(runner, session.NewMemoryStore())
	if _, err := svc.Chat(context.Background(), "s1", "   ", nil); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}
	if len(runner.histories) != 0 {
		t.Error("expected no run for an empty message")
	}
}

func TestClear(t *testing.T) {
	svc := NewChatService(&fakeRunner{}, session.NewMemoryStore())
	ctx := context.Background()
	_, _ = svc.Chat(ctx, "s1", "hello", nil)
	if err := svc.Clear(ctx, "s1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	history, _ := svc.History(ctx, "s1")
	if history == nil || len(history) != 0 {
		t.Errorf("expected empty non-nil history, got %v", history)
	}
}

func TestStageRelayPublishesToSession(t *testing.T) {
	broker := message_broker.NewChannelMessageBroker()
	defer broker.Close()
	ctx := log.WithSession(context.Background(), "s1")

	ch, err := broker.Subscribe(ctx, domain.StageTopic, "s1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	relay := StageRelay(broker)
	relay(ctx, domain.StageEvent{SessionID: "s1", Stage: domain.StageThink})
	relay(ctx, domain.StageEvent{SessionID: "s2", Stage: domain.StageThink})
	relay(ctx, domain.StageEvent{Stage: domain.StageThink})

	select {
	case msg := <-ch:
		var ev domain.StageEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if ev.Stage != domain.StageThink || ev.SessionID != "s1" {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("expected stage event")
	}
	select {
	case msg := <-ch:
		t.Errorf("expected only one event, got %+v", msg)
	default:
	}
}

func TestNewSessionID(t *testing.T) {
	a, b := NewSessionID(), NewSessionID()
	if a == b || !strings.HasPrefix(a, "sess_") {
		t.Errorf("expected unique prefixed ids, got %s and %s", a, b)
	}
}
