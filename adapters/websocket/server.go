package websocket

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/cocoa-fruit/jester/domain"
	"github.com/satriahrh/cocoa-fruit/jester/utils/log"
)

// Chatter runs one chat turn for a session.
type Chatter interface {
	Chat(ctx context.Context, sessionID, message string, history []domain.Exchange) (domain.ChatResult, error)
}

type Server struct {
	upgrader websocket.Upgrader
	svc      Chatter
	hub      *Hub
	// one turn at a time per client
	turns sync.Map
}

func NewServer(svc Chatter, broker domain.MessageBroker) *Server {
	return &Server{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		svc:      svc,
		hub:      NewHub(broker),
	}
}

func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) handleMessage(ctx context.Context, c *Client, msg Message) {
	switch msg.Type {
	case TypeChat:
		lock, _ := s.turns.LoadOrStore(c, &sync.Mutex{})
		go func() {
			mu := lock.(*sync.Mutex)
			mu.Lock()
			defer mu.Unlock()
			s.chat(ctx, c, msg.Message)
		}()
	default:
		_ = c.SendMessage(errorMessage(c.SessionID(), "unsupported message type: "+msg.Type))
	}
}

func (s *Server) chat(ctx context.Context, c *Client, text string) {
	result, err := s.svc.Chat(ctx, c.SessionID(), text, nil)
	if err != nil {
		log.WithCtx(ctx).Warn("WebSocket chat failed", zap.Error(err))
		_ = c.SendMessage(errorMessage(c.SessionID(), err.Error()))
		return
	}
	payload, err := encode(TypeReply, c.SessionID(), result)
	if err != nil {
		log.WithCtx(ctx).Error("Failed to encode reply", zap.Error(err))
		return
	}
	_ = c.SendMessage(payload)
}
