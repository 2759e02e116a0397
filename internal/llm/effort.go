package llm

import "github.com/sant0-9/promptforge/internal/config"

const (
	noThinkSuffix    = " /nothink"
	deepReasonPrefix = "[DEEP REASONING MODE] Reason at length and in depth, step by step, weighing every plausible alternative before giving the final answer.\n\n"
)

// ApplyEffort adapts a request to a reasoning effort level. Low disables the
// thinking channel and tags the last user message; high prefixes the system
// message with a deep-reasoning directive; medium only enables thinking.
// The request's messages are copied, never modified in place.
func ApplyEffort(req *CompletionRequest, effort string) {
	msgs := make([]Message, len(req.Messages))
	copy(msgs, req.Messages)
	req.Messages = msgs

	switch effort {
	case config.EffortLow:
		req.Think = false
		if n := len(msgs); n > 0 && msgs[n-1].Role == RoleUser {
			msgs[n-1].Content += noThinkSuffix
		}
	case config.EffortHigh:
		req.Think = true
		if len(msgs) > 0 && msgs[0].Role == RoleSystem {
			msgs[0].Content = deepReasonPrefix + msgs[0].Content
		}
	default:
		req.Think = true
	}
}
