package prompts

import "unicode/utf8"

// WindowHistory bounds a transcript to limit messages: the first message
// anchors the conversation and is always kept, followed by the most recent
// limit-1. A non-positive limit disables windowing.
func WindowHistory[T any](history []T, limit int) []T {
	if limit <= 0 || len(history) <= limit {
		return history
	}

	out := make([]T, 0, limit)
	out = append(out, history[0])
	return append(out, history[len(history)-(limit-1):]...)
}

// EstimateTokens approximates a token count at four characters per token,
// for when the backend has not reported one.
func EstimateTokens(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}
