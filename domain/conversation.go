package domain

const (
	MinScore = 0
	MaxScore = 1000
)

// Exchange is one recorded user/AI turn.
type Exchange struct {
	User string `json:"user"`
	AI   string `json:"ai"`
}

type Thought struct {
	Thought   string `json:"thought"`
	Reasoning string `json:"reasoning"`
}

type Joke struct {
	Joke     string `json:"joke"`
	NumWords int    `json:"num_words"`
}

type Score struct {
	Score  int    `json:"score"`
	Reason string `json:"reason"`
}

type Response struct {
	Response string `json:"response"`
	Tone     string `json:"tone"`
}

// ConversationState is threaded through one pipeline run. Responses only
// grows and JokeIteration counts joke-generation calls.
type ConversationState struct {
	UserMessage        string
	Thoughts           string
	Responses          []string
	StructuredThought  *Thought
	StructuredResponse *Response
	GeneratedJoke      *Joke
	QualityScore       *Score
	JokeIteration      int
	History            []Exchange
}

// FinalResponse is the last accumulated response, or "" if none.
func (s ConversationState) FinalResponse() string {
	if len(s.Responses) == 0 {
		return ""
	}
	return s.Responses[len(s.Responses)-1]
}

// ChatResult is what a chat caller receives for one turn.
type ChatResult struct {
	Status             string     `json:"status"`
	Message            string     `json:"message,omitempty"`
	UserInput          string     `json:"user_input,omitempty"`
	FinalResponse      string     `json:"final_response,omitempty"`
	Thoughts           string     `json:"thoughts,omitempty"`
	Reasoning          string     `json:"reasoning,omitempty"`
	ResponseBeforeJoke string     `json:"response_before_joke,omitempty"`
	GeneratedJoke      string     `json:"generated_joke,omitempty"`
	JokeWordCount      int        `json:"joke_word_count"`
	JokeIterations     int        `json:"joke_iterations"`
	JokeScore          int        `json:"joke_score"`
	ScoreReason        string     `json:"score_reason,omitempty"`
	ResponseTone       string     `json:"response_tone,omitempty"`
	UpdatedHistory     []Exchange `json:"updated_history,omitempty"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ErrorResult wraps a failed run into the structured error shape.
func ErrorResult(userInput string, err error) ChatResult {
	return ChatResult{
		Status:    StatusError,
		Message:   err.Error(),
		UserInput: userInput,
	}
}
