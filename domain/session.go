package domain

import "context"

// SessionStore keeps conversation history per session.
type SessionStore interface {
	Load(ctx context.Context, sessionID string) ([]Exchange, error)
	Save(ctx context.Context, sessionID string, history []Exchange) error
	Clear(ctx context.Context, sessionID string) error
}

// Synthesizer turns reply text into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// SessionContextKey is where authenticated handlers find the session ID.
const SessionContextKey = "session_id"
