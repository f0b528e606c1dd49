package pipeline

import (
	"fmt"
	"strings"

	"github.com/satriahrh/cocoa-fruit/jester/domain"
)

const conversationStart = "This is the start of the conversation."

// historyContext quotes the most recent exchanges ahead of the current message.
func historyContext(history []domain.Exchange, window int) string {
	if len(history) == 0 || window == 0 {
		return conversationStart
	}
	recent := history
	if len(recent) > window {
		recent = recent[len(recent)-window:]
	}

	var sb strings.Builder
	sb.WriteString("Previous conversation:\n")
	for i, ex := range recent {
		fmt.Fprintf(&sb, "%d. User: %s\n", i+1, ex.User)
		fmt.Fprintf(&sb, "   AI: %s\n", ex.AI)
	}
	sb.WriteString("\nCurrent message:")
	return sb.String()
}

func thinkPrompt(s domain.ConversationState, cfg domain.PipelineConfig, structured bool) string {
	ctx := historyContext(s.History, cfg.HistoryWindow)
	if !structured {
		return fmt.Sprintf("%s\nThink about: %s. Judge whether the user holds views that align with your principles: %s. "+
			"Give your thoughts in plain English, two short sentences.", ctx, s.UserMessage, cfg.Principles)
	}
	return fmt.Sprintf("%s\nThink about: %s. Judge whether the user holds views that align with your principles: %s. "+
		"If they seem to be your kind of people, be kind and friendly. If their principles look opposite to yours, read their "+
		"comments in a negative light. Take the conversation history into account and answer as JSON with fields: "+
		"thought (string) and reasoning (string).", ctx, s.UserMessage, cfg.Principles)
}

func respondPrompt(s domain.ConversationState, cfg domain.PipelineConfig, structured bool) string {
	ctx := historyContext(s.History, cfg.HistoryWindow)
	if !structured {
		return fmt.Sprintf("%s\nYou have been thinking '%s' about the user's message '%s'. "+
			"Reply to the user in plain text, one or two sentences.", ctx, s.Thoughts, s.UserMessage)
	}
	return fmt.Sprintf("%s\nYou have been thinking '%s' about the user's message '%s'. Take the conversation history into "+
		"account and reply to the user. Answer as JSON with fields: response (string) and tone (string).",
		ctx, s.Thoughts, s.UserMessage)
}

func principlesPrompt(s domain.ConversationState, cfg domain.PipelineConfig, structured bool) string {
	ctx := historyContext(s.History, cfg.HistoryWindow)
	if !structured {
		return fmt.Sprintf("%s\nOriginal response: %s. User message: %s. Principles: %s. "+
			"Apply these principles and write a concise reply in plain text.", ctx, s.FinalResponse(), s.UserMessage, cfg.Principles)
	}
	return fmt.Sprintf("%s\nOriginal response: %s. User message: %s. Principles: %s. Take the conversation history into "+
		"account and apply these principles to write your final response as JSON with fields: response (string) and tone (string).",
		ctx, s.FinalResponse(), s.UserMessage, cfg.Principles)
}

func jokePrompt(s domain.ConversationState, cfg domain.PipelineConfig) string {
	ctx := historyContext(s.History, cfg.HistoryWindow)
	const format = "IMPORTANT: return ONLY valid JSON with fields: joke (string) and num_words (int). " +
		`Escape any quotes inside the joke with backslashes, e.g. {"joke": "Why did the chicken cross the road? To get to the \"other side\"!", "num_words": 12}`
	if s.JokeIteration == 0 || s.GeneratedJoke == nil || s.QualityScore == nil {
		return fmt.Sprintf("%s\nWrite a joke related to your thoughts: %s. Use the conversation history to make it "+
			"relevant and personal. %s", ctx, s.Thoughts, format)
	}
	return fmt.Sprintf("%s\nImprove this joke: '%s'. It scored %d/%d because: %s. Use the conversation history and write "+
		"a better, more relevant joke. %s", ctx, s.GeneratedJoke.Joke, s.QualityScore.Score, domain.MaxScore, s.QualityScore.Reason, format)
}

func scorePrompt(s domain.ConversationState) string {
	return fmt.Sprintf("Score the joke '%s' on a scale of %d to %d. Answer as JSON with fields: score (int) and reason (string).",
		s.GeneratedJoke.Joke, domain.MinScore, domain.MaxScore)
}

func combinePrompt(s domain.ConversationState, cfg domain.PipelineConfig) string {
	return fmt.Sprintf("You have a response: %q\nYou also have a joke: %q\nYou hold these principles dear and must apply "+
		"them to a final response that works the joke into the response: %s\nAnswer as JSON with fields: response (string) and tone (string).",
		s.FinalResponse(), s.GeneratedJoke.Joke, cfg.Principles)
}
