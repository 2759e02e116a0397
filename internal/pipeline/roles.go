package pipeline

import (
	"strings"

	"github.com/sant0-9/promptforge/internal/prompts"
)

// Role identifies one agent in the pipeline.
type Role int

const (
	Architect Role = iota
	Engineer
	Guardian
	Perfectionist
)

func (r Role) String() string {
	switch r {
	case Architect:
		return "ARCHITECT"
	case Engineer:
		return "ENGINEER"
	case Guardian:
		return "GUARDIAN"
	case Perfectionist:
		return "PERFECTIONIST"
	default:
		return "UNKNOWN"
	}
}

// RoleSpec is one stage of a run: who speaks, with which instructions and
// how much sampling freedom.
type RoleSpec struct {
	Role         Role
	Title        string
	Instructions string
	Temperature  float64
}

// DefaultRoles returns the four stages in execution order. Temperature
// drops as the buffer moves from open design to final synthesis.
func DefaultRoles() []RoleSpec {
	return []RoleSpec{
		{Role: Architect, Title: "The Architect", Instructions: strings.TrimSpace(prompts.Architect), Temperature: 0.7},
		{Role: Engineer, Title: "The Engineer", Instructions: strings.TrimSpace(prompts.Engineer), Temperature: 0.5},
		{Role: Guardian, Title: "The Guardian", Instructions: strings.TrimSpace(prompts.Guardian), Temperature: 0.3},
		{Role: Perfectionist, Title: "The Perfectionist", Instructions: strings.TrimSpace(prompts.Perfectionist), Temperature: 0.2},
	}
}
