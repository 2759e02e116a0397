package tui

import "fmt"

// contextGauge reports how much of the context window the conversation
// uses: the backend's count for the last turn when it reported one,
// otherwise an estimate.
func (a *App) contextGauge() string {
	s := a.state
	if s.config == nil || s.config.ContextSize <= 0 {
		return ""
	}

	used, approx := a.estimate, true
	if s.lastUsage != nil && s.lastUsage.TotalTokens > 0 {
		used, approx = s.lastUsage.TotalTokens, false
	}
	if used <= 0 {
		return ""
	}
	return formatGauge(used, s.config.ContextSize, approx)
}

func formatGauge(used, limit int, approx bool) string {
	prefix := ""
	if approx {
		prefix = "~"
	}
	pct := float64(used) / float64(limit) * 100
	return fmt.Sprintf("%s%.1fk/%.0fk ctx (%.0f%%)",
		prefix,
		float64(used)/1000,
		float64(limit)/1000,
		pct)
}
