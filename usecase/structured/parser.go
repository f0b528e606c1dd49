// Package structured turns raw model text into typed records. Every entry
// point returns a usable record: strict JSON first, then tolerant
// extraction, then a synthesized default with bounded string fields.
package structured

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/satriahrh/cocoa-fruit/jester/domain"
)

const (
	// ShortLimit bounds fallback thought and joke fields.
	ShortLimit = 200
	// LongLimit bounds fallback response fields.
	LongLimit = 500

	DefaultScore = 500

	plainThoughtReasoning = "no structured JSON returned, treated as plain text"
	defaultScoreReason    = "unable to parse score response, using default"

	schemaBaseURL = "https://jester.invalid/shapes/"
)

type Parser struct {
	schemas map[string]*jsonschema.Schema
}

// NewParser compiles the JSON schemas of the four record shapes.
func NewParser() (*Parser, error) {
	p := &Parser{schemas: map[string]*jsonschema.Schema{}}
	for _, shape := range []domain.Shape{domain.ThoughtShape, domain.JokeShape, domain.ScoreShape, domain.ResponseShape} {
		schema, err := compileShape(shape)
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", shape.Name, err)
		}
		p.schemas[shape.Name] = schema
	}
	return p, nil
}

func compileShape(shape domain.Shape) (*jsonschema.Schema, error) {
	doc, err := json.Marshal(shape.JSONSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	url := schemaBaseURL + shape.Name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return compiler.Compile(url)
}

// Thought parses a ThoughtRecord.
func (p *Parser) Thought(raw string) domain.Thought {
	var t domain.Thought
	if p.decode(domain.ThoughtShape, raw, &t) {
		return t
	}
	if thought, ok := matchString(raw, "thought"); ok {
		reasoning, ok := matchString(raw, "reasoning")
		if !ok {
			reasoning = plainThoughtReasoning
		}
		return domain.Thought{Thought: truncate(thought, ShortLimit), Reasoning: truncate(reasoning, ShortLimit)}
	}
	return domain.Thought{Thought: truncate(raw, ShortLimit), Reasoning: plainThoughtReasoning}
}

// Joke parses a JokeRecord. Without a usable num_words the words of the
// recovered joke are counted.
func (p *Parser) Joke(raw string) domain.Joke {
	var j domain.Joke
	if p.decode(domain.JokeShape, raw, &j) {
		return j
	}
	text, ok := matchString(raw, "joke")
	if !ok {
		text = raw
	}
	text = truncate(text, ShortLimit)
	return domain.Joke{Joke: text, NumWords: len(strings.Fields(text))}
}

// Score parses a ScoreRecord. Recovered scores are clamped to the valid range.
func (p *Parser) Score(raw string) domain.Score {
	var s domain.Score
	if p.decode(domain.ScoreShape, raw, &s) {
		return s
	}
	score, ok := matchInt(raw, "score")
	if !ok {
		return domain.Score{Score: DefaultScore, Reason: defaultScoreReason}
	}
	reason, ok := matchString(raw, "reason")
	if !ok {
		reason = defaultScoreReason
	}
	return domain.Score{Score: clamp(score, domain.MinScore, domain.MaxScore), Reason: truncate(reason, LongLimit)}
}

// Response parses a ResponseRecord; tone fills the tone of synthesized records.
func (p *Parser) Response(raw, tone string) domain.Response {
	var r domain.Response
	if p.decode(domain.ResponseShape, raw, &r) {
		return r
	}
	text, ok := matchString(raw, "response")
	if !ok {
		return domain.Response{Response: truncate(raw, LongLimit), Tone: tone}
	}
	if t, ok := matchString(raw, "tone"); ok {
		tone = t
	}
	return domain.Response{Response: truncate(text, LongLimit), Tone: truncate(tone, LongLimit)}
}

// decode tries the raw text and then any JSON object embedded in it.
func (p *Parser) decode(shape domain.Shape, raw string, dst any) bool {
	schema := p.schemas[shape.Name]
	for _, candidate := range candidates(raw) {
		var payload any
		if err := json.Unmarshal([]byte(candidate), &payload); err != nil {
			continue
		}
		if err := schema.Validate(payload); err != nil {
			continue
		}
		if err := json.Unmarshal([]byte(candidate), dst); err != nil {
			continue
		}
		return true
	}
	return false
}

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

func candidates(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	out := []string{trimmed}
	if m := fencePattern.FindStringSubmatch(trimmed); m != nil {
		out = append(out, strings.TrimSpace(m[1]))
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		if span := trimmed[start : end+1]; span != trimmed {
			out = append(out, span)
		}
	}
	return out
}

func matchString(raw, field string) (string, bool) {
	re := regexp.MustCompile(`"` + regexp.QuoteMeta(field) + `"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	m := re.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	if s, err := strconv.Unquote(`"` + m[1] + `"`); err == nil {
		return s, true
	}
	return strings.ReplaceAll(m[1], `\"`, `"`), true
}

func matchInt(raw, field string) (int, bool) {
	re := regexp.MustCompile(`"` + regexp.QuoteMeta(field) + `"\s*:\s*"?(-?\d+)`)
	m := re.FindStringSubmatch(raw)
	if m == nil {
		return 0, false
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return v, true
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
