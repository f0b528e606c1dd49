package domain

import "context"

// Generator abstracts any text-generation backend.
type Generator interface {
	// Generate sends a prompt and returns the model's text. When shape is
	// non-nil and the backend supports constrained decoding, the shape's
	// schema is forwarded to the backend.
	Generate(ctx context.Context, prompt string, shape *Shape) (string, error)
	// Structured reports whether the backend honours output shapes.
	Structured() bool
}

type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Role string

const (
	UserRole      Role = "user"
	AssistantRole Role = "assistant"
	SystemRole    Role = "system"
)

// ExchangesFromMessages folds role-tagged messages into exchanges. A user
// message is paired with the assistant message that directly follows it;
// messages of any other role are skipped.
func ExchangesFromMessages(msgs []ChatMessage) []Exchange {
	var out []Exchange
	for i := 0; i < len(msgs); i++ {
		if msgs[i].Role != UserRole {
			continue
		}
		ex := Exchange{User: msgs[i].Content}
		if i+1 < len(msgs) && msgs[i+1].Role == AssistantRole {
			ex.AI = msgs[i+1].Content
			i++
		}
		out = append(out, ex)
	}
	return out
}
