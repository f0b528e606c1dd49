package domain

// FieldType is the JSON type of a structured-output field.
type FieldType string

const (
	StringField  FieldType = "string"
	IntegerField FieldType = "integer"
)

type Field struct {
	Name        string
	Type        FieldType
	Description string
	Min         *int
	Max         *int
}

// Shape declares the fields a structured model answer must carry.
type Shape struct {
	Name   string
	Fields []Field
}

func intPtr(v int) *int { return &v }

var (
	ThoughtShape = Shape{
		Name: "thought",
		Fields: []Field{
			{Name: "thought", Type: StringField, Description: "The AI's internal thought process"},
			{Name: "reasoning", Type: StringField, Description: "The reasoning behind the thought"},
		},
	}
	JokeShape = Shape{
		Name: "joke",
		Fields: []Field{
			{Name: "joke", Type: StringField, Description: "The generated joke"},
			{Name: "num_words", Type: IntegerField, Description: "The number of words in the generated joke", Min: intPtr(0)},
		},
	}
	ScoreShape = Shape{
		Name: "score",
		Fields: []Field{
			{Name: "score", Type: IntegerField, Description: "The quality score of the joke from 0 to 1000. 0 is the worst, 1000 is the best", Min: intPtr(MinScore), Max: intPtr(MaxScore)},
			{Name: "reason", Type: StringField, Description: "The reason for the quality score"},
		},
	}
	ResponseShape = Shape{
		Name: "response",
		Fields: []Field{
			{Name: "response", Type: StringField, Description: "The AI's response to the user"},
			{Name: "tone", Type: StringField, Description: "The tone of the response (friendly, formal, casual, etc.)"},
		},
	}
)

// JSONSchema renders the shape as a JSON schema object. Extra properties are
// tolerated, every declared field is required.
func (s Shape) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Fields))
	required := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		p := map[string]any{"type": string(f.Type)}
		if f.Description != "" {
			p["description"] = f.Description
		}
		if f.Min != nil {
			p["minimum"] = *f.Min
		}
		if f.Max != nil {
			p["maximum"] = *f.Max
		}
		props[f.Name] = p
		required = append(required, f.Name)
	}
	return map[string]any{
		"title":      s.Name,
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}
