// Package prompts holds the embedded instruction texts and assembles the
// system payload sent with every chat turn.
package prompts

import (
	_ "embed"
	"strings"
)

//go:embed standard.md
var Standard string

//go:embed maker.md
var Maker string

//go:embed roles/architect.md
var Architect string

//go:embed roles/engineer.md
var Engineer string

//go:embed roles/guardian.md
var Guardian string

//go:embed roles/perfectionist.md
var Perfectionist string

// Base returns the base instructions for the chat mode.
func Base(maker bool) string {
	if maker {
		return strings.TrimSpace(Maker)
	}
	return strings.TrimSpace(Standard)
}
