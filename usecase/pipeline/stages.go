package pipeline

import (
	"context"
	"slices"

	"github.com/satriahrh/cocoa-fruit/jester/domain"
)

const (
	respondTone   = "friendly"
	principleTone = "aggressive"
)

// Each stage issues exactly one generation call and returns a new state;
// the input state is never modified.
type stageFunc func(ctx context.Context, s domain.ConversationState) (domain.ConversationState, error)

func withResponse(s domain.ConversationState, text string) domain.ConversationState {
	s.Responses = append(slices.Clip(s.Responses), text)
	return s
}

func (p *Pipeline) think(ctx context.Context, s domain.ConversationState) (domain.ConversationState, error) {
	raw, err := p.gen.Generate(ctx, thinkPrompt(s, p.cfg, p.gen.Structured()), &domain.ThoughtShape)
	if err != nil {
		return s, err
	}
	thought := p.parser.Thought(raw)
	s.Thoughts = thought.Thought
	s.StructuredThought = &thought
	return withResponse(s, thought.Thought), nil
}

func (p *Pipeline) respond(ctx context.Context, s domain.ConversationState) (domain.ConversationState, error) {
	raw, err := p.gen.Generate(ctx, respondPrompt(s, p.cfg, p.gen.Structured()), &domain.ResponseShape)
	if err != nil {
		return s, err
	}
	resp := p.parser.Response(raw, respondTone)
	s.StructuredResponse = &resp
	return withResponse(s, resp.Response), nil
}

func (p *Pipeline) applyPrinciples(ctx context.Context, s domain.ConversationState) (domain.ConversationState, error) {
	raw, err := p.gen.Generate(ctx, principlesPrompt(s, p.cfg, p.gen.Structured()), &domain.ResponseShape)
	if err != nil {
		return s, err
	}
	resp := p.parser.Response(raw, principleTone)
	s.StructuredResponse = &resp
	return withResponse(s, resp.Response), nil
}

func (p *Pipeline) generateJoke(ctx context.Context, s domain.ConversationState) (domain.ConversationState, error) {
	raw, err := p.gen.Generate(ctx, jokePrompt(s, p.cfg), &domain.JokeShape)
	if err != nil {
		return s, err
	}
	joke := p.parser.Joke(raw)
	s.GeneratedJoke = &joke
	s.JokeIteration++
	return s, nil
}

func (p *Pipeline) scoreJoke(ctx context.Context, s domain.ConversationState) (domain.ConversationState, error) {
	if s.GeneratedJoke == nil {
		return s, nil
	}
	raw, err := p.gen.Generate(ctx, scorePrompt(s), &domain.ScoreShape)
	if err != nil {
		return s, err
	}
	score := p.parser.Score(raw)
	s.QualityScore = &score
	return s, nil
}

func (p *Pipeline) combine(ctx context.Context, s domain.ConversationState) (domain.ConversationState, error) {
	if s.GeneratedJoke == nil || s.QualityScore == nil {
		return s, nil
	}
	raw, err := p.gen.Generate(ctx, combinePrompt(s, p.cfg), &domain.ResponseShape)
	if err != nil {
		return s, err
	}
	resp := p.parser.Response(raw, principleTone)
	s.StructuredResponse = &resp
	return withResponse(s, resp.Response), nil
}
