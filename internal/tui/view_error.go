package tui

import "strings"

// suggestion turns a provider or transport error into a hint the user can
// act on.
func suggestion(err error) string {
	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "api key") || strings.Contains(lower, "401") || strings.Contains(lower, "unauthorized"):
		return msg + " Check api_key in ~/.config/promptforge/config.yaml."
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "429"):
		return msg + " Rate limited; wait a moment and try again."
	case strings.Contains(lower, "model") && strings.Contains(lower, "not found"):
		return msg + " Pull the model first: ollama pull <model>."
	case strings.Contains(lower, "ollama") || strings.Contains(lower, "connection refused"):
		return msg + " Make sure Ollama is running: ollama serve."
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "connect"):
		return msg + " Check the base_url and your connection."
	default:
		return msg
	}
}
