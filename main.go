package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/satriahrh/cocoa-fruit/jester/adapters/http"
	"github.com/satriahrh/cocoa-fruit/jester/adapters/llm"
	"github.com/satriahrh/cocoa-fruit/jester/adapters/message_broker"
	"github.com/satriahrh/cocoa-fruit/jester/adapters/session"
	"github.com/satriahrh/cocoa-fruit/jester/adapters/tts"
	"github.com/satriahrh/cocoa-fruit/jester/adapters/websocket"
	"github.com/satriahrh/cocoa-fruit/jester/config"
	"github.com/satriahrh/cocoa-fruit/jester/domain"
	"github.com/satriahrh/cocoa-fruit/jester/usecase"
	"github.com/satriahrh/cocoa-fruit/jester/usecase/pipeline"
	"github.com/satriahrh/cocoa-fruit/jester/utils/log"
)

type CLI struct {
	Settings config.Config `embed:""`

	Serve ServeCmd `cmd:"" default:"1" help:"Run the chat API"`
	Chat  ChatCmd  `cmd:"" help:"Chat with the pipeline in the terminal"`
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	var cli CLI
	opts := append(config.Options(),
		kong.Name("jester"),
		kong.Description("Principled conversational pipeline with a joke loop"),
		kong.UsageOnError(),
	)
	kctx := kong.Parse(&cli, opts...)
	log.SetDebug(cli.Settings.Debug)
	defer log.Sync()

	err := kctx.Run(&cli.Settings)
	kctx.FatalIfErrorf(err)
}

// buildPipeline wires the generator selected by cfg into a pipeline.
func buildPipeline(ctx context.Context, cfg *config.Config, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	genCfg, err := cfg.GeneratorSettings()
	if err != nil {
		return nil, err
	}
	gen, err := llm.New(ctx, genCfg)
	if err != nil {
		return nil, err
	}
	pcfg, err := cfg.PipelineSettings()
	if err != nil {
		return nil, err
	}
	return pipeline.New(pcfg, gen, opts...)
}

func openSessions(cfg *config.Config) (domain.SessionStore, io.Closer, error) {
	if cfg.Session.Store == "memory" {
		return session.NewMemoryStore(), noClose{}, nil
	}
	store, err := session.OpenBolt(cfg.Session.Path)
	if err != nil {
		return nil, nil, err
	}
	return store, store, nil
}

type noClose struct{}

func (noClose) Close() error { return nil }

type ServeCmd struct{}

func (s *ServeCmd) Run(cfg *config.Config) error {
	if err := cfg.ValidateServer(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	broker := message_broker.NewChannelMessageBroker()
	defer broker.Close()

	p, err := buildPipeline(ctx, cfg, pipeline.WithObserver(usecase.StageRelay(broker)))
	if err != nil {
		return err
	}
	store, closer, err := openSessions(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	svc := usecase.NewChatService(p, store)

	var voice domain.Synthesizer
	if cfg.TTS.Enabled {
		googleTTS, err := tts.NewGoogleTTS(ctx, tts.Config{LanguageCode: cfg.TTS.Language, VoiceName: cfg.TTS.Voice})
		if err != nil {
			return err
		}
		defer googleTTS.Close()
		voice = googleTTS
	}

	wsServer := websocket.NewServer(svc, broker)
	auth := http.NewAuthenticator(http.AuthConfig{
		APIKey:    cfg.Server.APIKey,
		APISecret: cfg.Server.APISecret,
		JWTSecret: cfg.Server.JWTSecret,
		TokenTTL:  cfg.Server.TokenTTL,
	}, usecase.NewSessionID)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(http.RequestContext)
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.Server.RateLimit))))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.POST, echo.DELETE, echo.OPTIONS},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			"X-API-Key",
			"X-API-Secret",
			"X-Session-ID",
		},
		MaxAge: 86400,
	}))
	e.Use(middleware.BodyLimit("1MB"))

	http.NewChatHandler(svc, voice).Register(e, auth, wsServer.Handler)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.With().Warn("Shutdown did not complete", zap.Error(err))
		}
	}()

	pcfg := p.Config()
	log.With(
		zap.String("addr", cfg.Server.Addr),
		zap.String("provider", string(pcfg.ProviderKind)),
		zap.String("model", pcfg.ModelName),
		zap.Bool("joke_loop", pcfg.JokeLoop),
		zap.String("session_store", cfg.Session.Store),
		zap.Bool("tts", voice != nil),
	).Info("Starting server")

	if err := e.Start(cfg.Server.Addr); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		return err
	}
	return nil
}

type ChatCmd struct {
	Session string `help:"Session to continue" default:"terminal"`
	Verbose bool   `short:"v" help:"Show thoughts, joke and score for every turn"`
}

func (c *ChatCmd) Run(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	store, closer, err := openSessions(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()
	svc := usecase.NewChatService(p, store)

	fmt.Println("Type a message; 'clear' forgets the conversation, 'quit' exits.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "quit", "exit", "bye":
			fmt.Println("Bot: Goodbye!")
			return nil
		case "clear":
			if err := svc.Clear(ctx, c.Session); err != nil {
				return err
			}
			fmt.Println("(conversation cleared)")
			continue
		}

		result, err := svc.Chat(ctx, c.Session, line, nil)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		if c.Verbose {
			printDetails(result)
		}
		fmt.Printf("Bot: %s\n", result.FinalResponse)
	}
}

func printDetails(r domain.ChatResult) {
	fmt.Printf("  thoughts:   %s\n", r.Thoughts)
	fmt.Printf("  reasoning:  %s\n", r.Reasoning)
	fmt.Printf("  principled: %s (%s)\n", r.ResponseBeforeJoke, r.ResponseTone)
	if r.GeneratedJoke != "" {
		fmt.Printf("  joke:       %s [%d words, %d iterations]\n", r.GeneratedJoke, r.JokeWordCount, r.JokeIterations)
		fmt.Printf("  score:      %d (%s)\n", r.JokeScore, r.ScoreReason)
	}
}
