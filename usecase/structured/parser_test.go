package structured

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/satriahrh/cocoa-fruit/jester/domain"
)

func newParser(t *testing.T) *Parser {
	t.Helper()
	p, err := NewParser()
	if err != nil {
		t.Fatalf("new parser: %v", err)
	}
	return p
}

func TestStrictRecordsRoundTrip(t *testing.T) {
	p := newParser(t)

	thought := p.Thought(`{"thought": "they like cats", "reasoning": "they said so"}`)
	if thought != (domain.Thought{Thought: "they like cats", Reasoning: "they said so"}) {
		t.Errorf("unexpected thought %+v", thought)
	}

	joke := p.Joke(`{"joke": "Why did the \"chicken\" cross?", "num_words": 5}`)
	if joke != (domain.Joke{Joke: `Why did the "chicken" cross?`, NumWords: 5}) {
		t.Errorf("unexpected joke %+v", joke)
	}

	score := p.Score(`{"score": 742, "reason": "decent pun"}`)
	if score != (domain.Score{Score: 742, Reason: "decent pun"}) {
		t.Errorf("unexpected score %+v", score)
	}

	resp := p.Response(`{"response": "Och, hello.", "tone": "grumpy"}`, "friendly")
	if resp != (domain.Response{Response: "Och, hello.", Tone: "grumpy"}) {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestStrictToleratesExtraFields(t *testing.T) {
	p := newParser(t)

	score := p.Score(`{"score": 10, "reason": "flat", "confidence": 0.3}`)
	if score.Score != 10 || score.Reason != "flat" {
		t.Errorf("expected extra fields to be ignored, got %+v", score)
	}
}

func TestEmbeddedJSON(t *testing.T) {
	p := newParser(t)

	raw := "Sure! Here you go:\n```json\n{\"thought\": \"hmm\", \"reasoning\": \"because\"}\n```\nAnything else?"
	thought := p.Thought(raw)
	if thought.Thought != "hmm" || thought.Reasoning != "because" {
		t.Errorf("expected fenced JSON to be decoded, got %+v", thought)
	}

	resp := p.Response(`The answer is {"response": "aye", "tone": "calm"} okay`, "friendly")
	if resp.Response != "aye" || resp.Tone != "calm" {
		t.Errorf("expected brace span to be decoded, got %+v", resp)
	}
}

func TestGarbageThoughtIsTruncated(t *testing.T) {
	p := newParser(t)

	garbage := strings.Repeat("xyz!", 100)
	thought := p.Thought(garbage)
	if thought.Thought != garbage[:200] {
		t.Errorf("expected first 200 characters, got %d characters", len(thought.Thought))
	}
	if thought.Reasoning != plainThoughtReasoning {
		t.Errorf("expected placeholder reasoning, got %q", thought.Reasoning)
	}
}

func TestMalformedTextIsBounded(t *testing.T) {
	p := newParser(t)

	inputs := []string{
		"",
		"not json at all",
		strings.Repeat("é", 1200),
		`{"joke": 12, "num_words": "many"}`,
		`{"score": "high"`,
		`{"response": ` + strings.Repeat("a", 900),
	}
	for _, raw := range inputs {
		if got := p.Thought(raw); utf8.RuneCountInString(got.Thought) > ShortLimit || utf8.RuneCountInString(got.Reasoning) > ShortLimit {
			t.Errorf("thought fields exceed bound for %q", raw)
		}
		if got := p.Joke(raw); utf8.RuneCountInString(got.Joke) > ShortLimit || got.NumWords < 0 {
			t.Errorf("joke fields out of bounds for %q: %+v", raw, got)
		}
		if got := p.Score(raw); got.Score < domain.MinScore || got.Score > domain.MaxScore || utf8.RuneCountInString(got.Reason) > LongLimit {
			t.Errorf("score out of bounds for %q: %+v", raw, got)
		}
		if got := p.Response(raw, "friendly"); utf8.RuneCountInString(got.Response) > LongLimit || got.Tone == "" {
			t.Errorf("response out of bounds for %q: %+v", raw, got)
		}
	}
}

func TestJokePatternRecovery(t *testing.T) {
	p := newParser(t)

	joke := p.Joke(`{"joke": "A pun walks into a bar", "num_words": six}`)
	if joke.Joke != "A pun walks into a bar" {
		t.Errorf("expected joke text recovered, got %q", joke.Joke)
	}
	if joke.NumWords != 6 {
		t.Errorf("expected 6 counted words, got %d", joke.NumWords)
	}

	plain := p.Joke("Knock knock. Who's there?")
	if plain.Joke != "Knock knock. Who's there?" || plain.NumWords != 4 {
		t.Errorf("expected plain text joke, got %+v", plain)
	}
}

func TestScoreFallbacks(t *testing.T) {
	p := newParser(t)

	tests := []struct {
		name   string
		raw    string
		score  int
		reason string
	}{
		{"default", "I would rate it highly", DefaultScore, defaultScoreReason},
		{"pattern", `score: {"score": 640, "reason": "ok"`, 640, "ok"},
		{"clamped high", `{"score": 4200, "reason": "wow"}`, domain.MaxScore, "wow"},
		{"clamped low", `{"score": -3, "reason": "awful"}`, domain.MinScore, "awful"},
		{"quoted number", `{"score": "900", "reason": "fine"}`, 900, "fine"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := p.Score(tc.raw)
			if got.Score != tc.score || got.Reason != tc.reason {
				t.Errorf("expected %d/%q, got %+v", tc.score, tc.reason, got)
			}
		})
	}
}

func TestResponseDefaultTone(t *testing.T) {
	p := newParser(t)

	resp := p.Response("Leave me be.", "aggressive")
	if resp.Response != "Leave me be." || resp.Tone != "aggressive" {
		t.Errorf("unexpected response %+v", resp)
	}

	long := strings.Repeat("b", 800)
	if got := p.Response(long, "friendly"); got.Response != long[:LongLimit] {
		t.Errorf("expected response truncated to %d, got %d", LongLimit, len(got.Response))
	}
}
