// smoke checks a running server end to end: two sessions chat in turn
// and must not see each other's history.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/alecthomas/kong"

	jesterhttp "github.com/satriahrh/cocoa-fruit/jester/adapters/http"
)

type options struct {
	Server    string        `help:"jester base URL" default:"http://localhost:8080" env:"JESTER_URL"`
	APIKey    string        `help:"API key" env:"API_KEY" required:""`
	APISecret string        `help:"API secret" env:"API_SECRET" required:""`
	Timeout   time.Duration `help:"Overall deadline" default:"15m"`
}

var script = map[string][]string{
	"first":  {"Hello, I'm from session 1", "What's my name?", "Tell me a joke"},
	"second": {"Hello, I'm from session 2", "What's the weather like?"},
}

func main() {
	var opts options
	kong.Parse(&opts, kong.Name("smoke"), kong.Description("Session isolation smoke check"))

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		log.Printf("❌ %v", err)
		os.Exit(1)
	}
	fmt.Println("🎉 All session isolation checks passed")
}

func run(ctx context.Context, opts options) error {
	clients := map[string]*jesterhttp.Client{}
	for name := range script {
		c := jesterhttp.NewClient(opts.Server)
		if err := c.Login(ctx, opts.APIKey, opts.APISecret, ""); err != nil {
			return err
		}
		clients[name] = c
		fmt.Printf("✅ %s session %s\n", name, c.SessionID())
	}
	if clients["first"].SessionID() == clients["second"].SessionID() {
		return fmt.Errorf("sessions share an id")
	}

	for name, messages := range script {
		for i, msg := range messages {
			res, err := clients[name].Chat(ctx, msg)
			if err != nil {
				return fmt.Errorf("%s message %d: %w", name, i+1, err)
			}
			fmt.Printf("   %s #%d → %s\n", name, i+1, res.FinalResponse)
		}
	}

	for name, messages := range script {
		conv, err := clients[name].Conversation(ctx)
		if err != nil {
			return err
		}
		if conv.Length != len(messages) {
			return fmt.Errorf("%s: expected %d exchanges, got %d", name, len(messages), conv.Length)
		}
		for i, ex := range conv.History {
			if ex.User != messages[i] {
				return fmt.Errorf("%s: exchange %d is %q, want %q", name, i+1, ex.User, messages[i])
			}
		}
	}
	fmt.Println("✅ Both sessions have their own history")

	if err := clients["first"].ClearConversation(ctx); err != nil {
		return err
	}
	first, err := clients["first"].Conversation(ctx)
	if err != nil {
		return err
	}
	second, err := clients["second"].Conversation(ctx)
	if err != nil {
		return err
	}
	if first.Length != 0 || second.Length != len(script["second"]) {
		return fmt.Errorf("clear leaked across sessions: first=%d second=%d", first.Length, second.Length)
	}
	fmt.Println("✅ Clearing one session leaves the other intact")
	return nil
}
