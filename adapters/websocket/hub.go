package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/cocoa-fruit/jester/domain"
	"github.com/satriahrh/cocoa-fruit/jester/utils/log"
)

// Hub groups clients by session. The first client of a session subscribes
// to that session's stage events and the last one to leave unsubscribes.
type Hub struct {
	broker   domain.MessageBroker
	mu       sync.Mutex
	sessions map[string]map[*Client]struct{}
}

func NewHub(broker domain.MessageBroker) *Hub {
	return &Hub{
		broker:   broker,
		sessions: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(client *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := client.SessionID()
	clients, ok := h.sessions[id]
	if !ok {
		events, err := h.broker.Subscribe(client.Context(), domain.StageTopic, id)
		if err != nil {
			return err
		}
		clients = make(map[*Client]struct{})
		h.sessions[id] = clients
		go h.forward(id, events)
	}
	clients[client] = struct{}{}
	log.WithCtx(client.Context()).Debug("New client registered", zap.Int("session_clients", len(clients)))
	return nil
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := client.SessionID()
	if clients, ok := h.sessions[id]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.sessions, id)
			h.broker.Unsubscribe(domain.StageTopic, id)
		}
	}
	client.Close()
	log.WithCtx(client.Context()).Debug("Client unregistered")
}

// forward relays broker messages until the subscription is closed.
func (h *Hub) forward(sessionID string, events <-chan domain.Message) {
	ctx := log.WithSession(context.Background(), sessionID)
	for msg := range events {
		payload, err := encode(TypeStage, sessionID, json.RawMessage(msg.Payload))
		if err != nil {
			log.WithCtx(ctx).Warn("Failed to encode stage event", zap.Error(err))
			continue
		}
		h.SendToSession(sessionID, payload)
	}
}

// SendToSession delivers message to every live client of the session and
// reports how many were reached.
func (h *Hub) SendToSession(sessionID string, message []byte) int {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.sessions[sessionID]))
	for c := range h.sessions[sessionID] {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	sent := 0
	for _, c := range clients {
		if c.SendMessage(message) == nil {
			sent++
		}
	}
	return sent
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, clients := range h.sessions {
		n += len(clients)
	}
	return n
}
