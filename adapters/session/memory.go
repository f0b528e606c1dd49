package session

import (
	"context"
	"slices"
	"sync"

	"github.com/satriahrh/cocoa-fruit/jester/domain"
)

// MemoryStore keeps history in process; it is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]domain.Exchange
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]domain.Exchange)}
}

func (s *MemoryStore) Load(_ context.Context, sessionID string) ([]domain.Exchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.sessions[sessionID]), nil
}

func (s *MemoryStore) Save(_ context.Context, sessionID string, history []domain.Exchange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = slices.Clone(history)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
