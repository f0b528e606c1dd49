package llm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/cocoa-fruit/jester/domain"
	"github.com/satriahrh/cocoa-fruit/jester/utils/log"
)

type loggedGenerator struct {
	name   string
	next   domain.Generator
	hasher domain.Hasher
}

// WithLogging logs every call with a prompt fingerprint instead of the prompt.
func WithLogging(name string, next domain.Generator, hasher domain.Hasher) domain.Generator {
	return &loggedGenerator{name: name, next: next, hasher: hasher}
}

func (l *loggedGenerator) Generate(ctx context.Context, prompt string, shape *domain.Shape) (string, error) {
	start := time.Now()
	out, err := l.next.Generate(ctx, prompt, shape)

	fields := []zap.Field{
		zap.String("backend", l.name),
		zap.String("prompt_hash", l.hasher.Hash([]byte(prompt))),
		zap.Int("prompt_chars", len(prompt)),
		zap.Duration("elapsed", time.Since(start)),
	}
	if shape != nil {
		fields = append(fields, zap.String("shape", shape.Name))
	}
	if err != nil {
		log.WithCtx(ctx).Error("generation failed", append(fields, zap.Error(err))...)
		return "", err
	}
	log.WithCtx(ctx).Info("generation done", append(fields, zap.Int("output_chars", len(out)))...)
	return out, nil
}

func (l *loggedGenerator) Structured() bool { return l.next.Structured() }
