package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/satriahrh/cocoa-fruit/jester/domain"
)

// EchoClient is an offline backend that answers every shape with a canned
// record built from the prompt. Useful for demos and smoke runs.
type EchoClient struct{}

func NewEchoClient() *EchoClient {
	return &EchoClient{}
}

func (e *EchoClient) Generate(_ context.Context, prompt string, shape *domain.Shape) (string, error) {
	line := lastLine(prompt)
	if shape == nil {
		return line, nil
	}

	var record any
	switch shape.Name {
	case domain.ThoughtShape.Name:
		record = domain.Thought{Thought: "thinking about: " + line, Reasoning: "echo backend"}
	case domain.JokeShape.Name:
		joke := "Why did the echo repeat itself? It never had an original thought."
		record = domain.Joke{Joke: joke, NumWords: len(strings.Fields(joke))}
	case domain.ScoreShape.Name:
		record = domain.Score{Score: domain.MaxScore, Reason: "echo backend always approves"}
	default:
		record = domain.Response{Response: "echo: " + line, Tone: "neutral"}
	}
	b, err := json.Marshal(record)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (e *EchoClient) Structured() bool { return true }

func lastLine(prompt string) string {
	lines := strings.Split(strings.TrimSpace(prompt), "\n")
	line := strings.TrimSpace(lines[len(lines)-1])
	if r := []rune(line); len(r) > 120 {
		line = string(r[:120])
	}
	return line
}
