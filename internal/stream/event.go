package stream

import (
	"github.com/sant0-9/promptforge/internal/command"
	"github.com/sant0-9/promptforge/internal/llm"
)

// Event is one of ThoughtDelta, TextDelta, TokenCount or CommandFound,
// delivered in the order the transport produced the underlying chunks.
type Event interface {
	isEvent()
}

// ThoughtDelta is reasoning text from the thinking channel.
type ThoughtDelta struct {
	Text string
}

// TextDelta is raw answer text. It may contain command tags; use
// Interpreter.Display for transcript text.
type TextDelta struct {
	Text string
}

// TokenCount carries the final accounting reported by the transport.
type TokenCount struct {
	Usage llm.Usage
}

// CommandFound is emitted when a complete command has been extracted from
// the answer. It replaces any command found earlier in the same turn.
type CommandFound struct {
	Command *command.Command
}

func (ThoughtDelta) isEvent() {}
func (TextDelta) isEvent()    {}
func (TokenCount) isEvent()   {}
func (CommandFound) isEvent() {}

// Phase is the interpreter state for one turn.
type Phase int

const (
	Idle Phase = iota
	Thinking
	Answering
	Done
	Aborted
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Thinking:
		return "thinking"
	case Answering:
		return "answering"
	case Done:
		return "done"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further chunks will be processed.
func (p Phase) Terminal() bool {
	return p == Done || p == Aborted
}

// AbortReason says why reasoning was cut short.
type AbortReason string

const (
	ReasonLoop    AbortReason = "loop"
	ReasonTimeout AbortReason = "timeout"
)
