package websocket

import (
	"encoding/json"
	"time"
)

const (
	TypeChat  = "chat"
	TypeReply = "reply"
	TypeStage = "stage"
	TypeError = "error"
)

// Message is the envelope for both directions. Clients send
// {"type":"chat","message":"..."}; the server answers with reply, stage and
// error messages.
type Message struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Message   string          `json:"message,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func encode(typ, sessionID string, data any) ([]byte, error) {
	msg := Message{Type: typ, SessionID: sessionID, Timestamp: time.Now().UTC()}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = raw
	}
	return json.Marshal(msg)
}

func errorMessage(sessionID, text string) []byte {
	b, _ := json.Marshal(Message{Type: TypeError, SessionID: sessionID, Message: text, Timestamp: time.Now().UTC()})
	return b
}
