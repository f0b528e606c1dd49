// doll-replica is a terminal stand-in for a chat device. It logs in over
// HTTP, then chats over the websocket and prints every pipeline stage as it
// happens.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/gorilla/websocket"

	jesterhttp "github.com/satriahrh/cocoa-fruit/jester/adapters/http"
	ws "github.com/satriahrh/cocoa-fruit/jester/adapters/websocket"
	"github.com/satriahrh/cocoa-fruit/jester/domain"
)

type options struct {
	Server    string `help:"jester base URL" default:"http://localhost:8080" env:"JESTER_URL"`
	APIKey    string `help:"API key" env:"API_KEY" required:""`
	APISecret string `help:"API secret" env:"API_SECRET" required:""`
	Session   string `help:"Session to resume" env:"JESTER_SESSION"`
}

func main() {
	var opts options
	kong.Parse(&opts, kong.Name("doll-replica"), kong.Description("Terminal chat client for jester"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := jesterhttp.NewClient(opts.Server)
	if err := api.Login(ctx, opts.APIKey, opts.APISecret, opts.Session); err != nil {
		log.Fatalf("Failed to log in: %v", err)
	}

	wsURL, err := socketURL(opts.Server, api.Token())
	if err != nil {
		log.Fatalf("Invalid server URL: %v", err)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		log.Fatalf("Failed to connect to server: %v", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	go readLoop(conn)

	fmt.Printf("Session %s. Type messages ('exit' to quit):\n", api.SessionID())
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "exit" {
			return
		}
		if err := conn.WriteJSON(ws.Message{Type: ws.TypeChat, Message: text}); err != nil {
			log.Println("Error sending message:", err)
			return
		}
	}
}

func socketURL(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String(), nil
}

func readLoop(conn *websocket.Conn) {
	for {
		var msg ws.Message
		if err := conn.ReadJSON(&msg); err != nil {
			log.Println("Connection closed:", err)
			os.Exit(0)
		}
		switch msg.Type {
		case ws.TypeStage:
			var ev domain.StageEvent
			if json.Unmarshal(msg.Data, &ev) == nil {
				status := "ok"
				if ev.Error != "" {
					status = ev.Error
				}
				fmt.Printf("  · %-16s iter=%d %v %s\n", ev.Stage, ev.JokeIteration, ev.Duration, status)
			}
		case ws.TypeReply:
			var res domain.ChatResult
			if json.Unmarshal(msg.Data, &res) == nil {
				if res.GeneratedJoke != "" {
					fmt.Printf("  joke (%d/1000): %s\n", res.JokeScore, res.GeneratedJoke)
				}
				fmt.Printf("Bot: %s\n", res.FinalResponse)
			}
		case ws.TypeError:
			fmt.Printf("Error: %s\n", msg.Message)
		}
	}
}
