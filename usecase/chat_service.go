package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/cocoa-fruit/jester/domain"
	"github.com/satriahrh/cocoa-fruit/jester/usecase/pipeline"
	"github.com/satriahrh/cocoa-fruit/jester/utils/log"
)

var ErrEmptyMessage = errors.New("empty message")

const noResponse = "No response generated"

// Runner executes one conversation turn.
type Runner interface {
	Run(ctx context.Context, message string, history []domain.Exchange) (domain.ConversationState, error)
}

type ChatService struct {
	runner   Runner
	sessions domain.SessionStore
}

func NewChatService(runner Runner, sessions domain.SessionStore) *ChatService {
	return &ChatService{runner: runner, sessions: sessions}
}

// Chat runs one turn for sessionID. A nil history means "use what the
// session store holds"; a non-nil one replaces it. The updated history is
// saved on success only.
func (s *ChatService) Chat(ctx context.Context, sessionID, message string, history []domain.Exchange) (domain.ChatResult, error) {
	ctx = log.WithSession(ctx, sessionID)
	if strings.TrimSpace(message) == "" {
		return domain.ErrorResult(message, ErrEmptyMessage), ErrEmptyMessage
	}

	if history == nil {
		stored, err := s.sessions.Load(ctx, sessionID)
		if err != nil {
			return domain.ErrorResult(message, err), err
		}
		history = stored
	}

	state, err := s.runner.Run(ctx, message, history)
	if err != nil {
		log.WithCtx(ctx).Error("chat run failed", zap.Error(err))
		return domain.ErrorResult(message, err), err
	}

	result := resultFromState(message, state)
	if err := s.sessions.Save(ctx, sessionID, result.UpdatedHistory); err != nil {
		log.WithCtx(ctx).Warn("failed to save session history", zap.Error(err))
	}
	log.WithCtx(ctx).Info("chat turn done",
		zap.Int("joke_iterations", result.JokeIterations),
		zap.Int("joke_score", result.JokeScore),
		zap.Int("history_length", len(result.UpdatedHistory)))
	return result, nil
}

// SimpleChat returns only the reply text, or "Error: ..." on failure.
func (s *ChatService) SimpleChat(ctx context.Context, sessionID, message string) string {
	result, err := s.Chat(ctx, sessionID, message, nil)
	if err != nil {
		return "Error: " + err.Error()
	}
	return result.FinalResponse
}

func (s *ChatService) History(ctx context.Context, sessionID string) ([]domain.Exchange, error) {
	history, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []domain.Exchange{}
	}
	return history, nil
}

func (s *ChatService) Clear(ctx context.Context, sessionID string) error {
	return s.sessions.Clear(ctx, sessionID)
}

func resultFromState(message string, state domain.ConversationState) domain.ChatResult {
	final := state.FinalResponse()
	if final == "" {
		final = noResponse
	}
	r := domain.ChatResult{
		Status:         domain.StatusSuccess,
		UserInput:      message,
		FinalResponse:  final,
		Thoughts:       state.Thoughts,
		JokeIterations: state.JokeIteration,
		UpdatedHistory: append(slices.Clone(state.History), domain.Exchange{User: message, AI: final}),
	}
	// thought, respond, apply_principles
	if len(state.Responses) > 2 {
		r.ResponseBeforeJoke = state.Responses[2]
	}
	if state.StructuredThought != nil {
		r.Reasoning = state.StructuredThought.Reasoning
	}
	if state.StructuredResponse != nil {
		r.ResponseTone = state.StructuredResponse.Tone
	}
	if state.GeneratedJoke != nil {
		r.GeneratedJoke = state.GeneratedJoke.Joke
		r.JokeWordCount = state.GeneratedJoke.NumWords
	}
	if state.QualityScore != nil {
		r.JokeScore = state.QualityScore.Score
		r.ScoreReason = state.QualityScore.Reason
	}
	return r
}

// StageRelay publishes every stage event on the broker, keyed by the
// session carried in ctx. Publish failures are logged and swallowed.
func StageRelay(broker domain.MessageBroker) pipeline.Observer {
	return func(ctx context.Context, ev domain.StageEvent) {
		if ev.SessionID == "" {
			return
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			log.WithCtx(ctx).Warn("failed to encode stage event", zap.Error(err))
			return
		}
		if err := broker.Publish(ctx, domain.StageTopic, ev.SessionID, payload); err != nil {
			log.WithCtx(ctx).Debug("stage event not delivered", zap.String("stage", string(ev.Stage)), zap.Error(err))
		}
	}
}

// NewSessionID returns a fresh opaque session identifier.
func NewSessionID() string {
	return fmt.Sprintf("sess_%s", uuid.NewString())
}
