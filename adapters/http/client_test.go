package http

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/satriahrh/cocoa-fruit/jester/domain"
)

func TestClientAgainstHandler(t *testing.T) {
	f := newFixture(t, nil)
	ts := httptest.NewServer(f.e)
	defer ts.Close()
	ctx := context.Background()

	c := NewClient(ts.URL + "/")
	if err := c.Login(ctx, "key", "nope", ""); err == nil {
		t.Fatal("expected bad credentials to fail")
	}
	if err := c.Login(ctx, "key", "secret", "resume-me"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if c.SessionID() != "resume-me" {
		t.Errorf("expected resumed session, got %s", c.SessionID())
	}

	res, err := c.Chat(ctx, "hello")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if res.FinalResponse != "echo: hello" {
		t.Errorf("unexpected reply %+v", res)
	}

	conv, err := c.Conversation(ctx)
	if err != nil || conv.Length != 1 {
		t.Fatalf("expected one exchange, got %+v (%v)", conv, err)
	}
	if err := c.ClearConversation(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	conv, _ = c.Conversation(ctx)
	if conv.Length != 0 {
		t.Errorf("expected cleared, got %+v", conv)
	}

	f.runner.err = &domain.BackendError{Backend: "ollama", Status: "status 500"}
	res, err = c.Chat(ctx, "hello")
	if err == nil || res.Status != domain.StatusError {
		t.Errorf("expected structured failure, got %+v (%v)", res, err)
	}
}
