// Package pipeline runs the fixed conversation graph:
//
//	think → respond → apply_principles → generate_joke → score_joke → {generate_joke | combine}
//
// Stages run strictly in sequence on the caller's goroutine.
package pipeline

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/cocoa-fruit/jester/domain"
	"github.com/satriahrh/cocoa-fruit/jester/usecase/structured"
	"github.com/satriahrh/cocoa-fruit/jester/utils/log"
)

// Observer is notified after every stage, failed or not.
type Observer func(ctx context.Context, ev domain.StageEvent)

type Pipeline struct {
	cfg      domain.PipelineConfig
	gen      domain.Generator
	parser   *structured.Parser
	observer Observer
}

type Option func(*Pipeline)

func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

func New(cfg domain.PipelineConfig, gen domain.Generator, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if gen == nil {
		return nil, &domain.ConfigError{Field: "generator", Reason: "no generation backend configured"}
	}
	parser, err := structured.NewParser()
	if err != nil {
		return nil, fmt.Errorf("build parser: %w", err)
	}
	p := &Pipeline{cfg: cfg, gen: gen, parser: parser}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Pipeline) Config() domain.PipelineConfig { return p.cfg }

// ShouldImproveJoke is evaluated after score_joke: loop only while a score
// exists, it is below the bar and the iteration budget is not spent.
func ShouldImproveJoke(s domain.ConversationState, cfg domain.PipelineConfig) bool {
	if s.QualityScore == nil {
		return false
	}
	if s.QualityScore.Score >= cfg.MinJokeScore {
		return false
	}
	return s.JokeIteration < cfg.MaxIterations
}

// Run executes one conversation turn. On error the partial state is dropped
// and the zero state is returned.
func (p *Pipeline) Run(ctx context.Context, message string, history []domain.Exchange) (domain.ConversationState, error) {
	state := domain.ConversationState{
		UserMessage: message,
		History:     slices.Clone(history),
	}

	var err error
	for _, st := range []struct {
		stage domain.Stage
		fn    stageFunc
	}{
		{domain.StageThink, p.think},
		{domain.StageRespond, p.respond},
		{domain.StageApplyPrinciples, p.applyPrinciples},
	} {
		if state, err = p.step(ctx, st.stage, state, st.fn); err != nil {
			return domain.ConversationState{}, err
		}
	}
	if !p.cfg.JokeLoop {
		return state, nil
	}

	for {
		if state, err = p.step(ctx, domain.StageGenerateJoke, state, p.generateJoke); err != nil {
			return domain.ConversationState{}, err
		}
		if state, err = p.step(ctx, domain.StageScoreJoke, state, p.scoreJoke); err != nil {
			return domain.ConversationState{}, err
		}
		if !ShouldImproveJoke(state, p.cfg) {
			break
		}
	}

	if state, err = p.step(ctx, domain.StageCombine, state, p.combine); err != nil {
		return domain.ConversationState{}, err
	}
	return state, nil
}

func (p *Pipeline) step(ctx context.Context, stage domain.Stage, s domain.ConversationState, fn stageFunc) (domain.ConversationState, error) {
	start := time.Now()
	next, err := fn(ctx, s)
	elapsed := time.Since(start)

	ev := domain.StageEvent{
		SessionID:     log.SessionID(ctx),
		Stage:         stage,
		JokeIteration: next.JokeIteration,
		Duration:      elapsed,
		Timestamp:     start,
	}
	if err != nil {
		ev.Error = err.Error()
		log.WithCtx(ctx).Warn("pipeline stage failed", zap.String("stage", string(stage)), zap.Duration("elapsed", elapsed), zap.Error(err))
	} else {
		log.WithCtx(ctx).Debug("pipeline stage done", zap.String("stage", string(stage)), zap.Duration("elapsed", elapsed))
	}
	if p.observer != nil {
		p.observer(ctx, ev)
	}
	if err != nil {
		return s, fmt.Errorf("%s: %w", stage, err)
	}
	return next, nil
}
