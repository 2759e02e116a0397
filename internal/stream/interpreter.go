// Package stream turns a model's chunk stream into transcript events,
// extracting edit commands as the answer arrives and cutting off reasoning
// that loops or runs too long.
package stream

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sant0-9/promptforge/internal/command"
	"github.com/sant0-9/promptforge/internal/config"
	"github.com/sant0-9/promptforge/internal/llm"
)

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// FallbackText is shown in place of an answer when reasoning is aborted.
const FallbackText = "I couldn't settle on an answer for this request. Could you rephrase it more specifically? For example:\n" +
	"- \"Add X at line Y\"\n" +
	"- \"Delete line Z\"\n" +
	"- \"Rewrite the whole prompt\""

// Options tunes an Interpreter.
type Options struct {
	LoopThreshold   int
	LoopWindow      int
	ThinkingTimeout time.Duration
	// Clock defaults to time.Now.
	Clock  func() time.Time
	Logger *zap.Logger
}

// OptionsFromConfig takes the tuning values from cfg.
func OptionsFromConfig(cfg *config.Config, logger *zap.Logger) Options {
	return Options{
		LoopThreshold:   cfg.LoopThreshold,
		LoopWindow:      cfg.LoopWindow,
		ThinkingTimeout: cfg.ThinkingTimeout,
		Logger:          logger,
	}
}

// Target is what commands in this turn apply to: the document, or the
// selection attached to the user's message when there is one.
type Target struct {
	Document  string
	Selection *command.Selection
}

// Mark points cmd at the selection when there is one and records a
// snapshot of the content it would replace.
func (t Target) Mark(cmd *command.Command) {
	if sel := t.Selection; sel != nil {
		r := sel.Range
		cmd.Snippet = &r
		cmd.Original = command.Snapshot(cmd.Op, sel.Text)
	} else if t.Document != "" {
		cmd.Original = command.Snapshot(cmd.Op, t.Document)
	}
}

// Interpreter is the per-turn state machine. Feed it chunks with Advance
// and, while waiting for chunks, clock ticks with Tick. It is not safe for
// concurrent use.
type Interpreter struct {
	opts   Options
	target Target
	logger *zap.Logger

	phase   Phase
	started time.Time
	reason  AbortReason

	thinking strings.Builder
	answer   strings.Builder
	scanned  int
	answered bool

	// dedicated is set once the transport has used its own thinking field;
	// inline markers are then treated as plain text.
	dedicated bool
	inThink   bool
	// held is a trailing fragment that may be the start of a think marker,
	// kept until the next chunk shows whether it is one.
	held string

	loops   *loopDetector
	pending *command.Command
	usage   *llm.Usage
}

// New creates an interpreter for one turn. The thinking clock starts now.
func New(opts Options, target Target) *Interpreter {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.ThinkingTimeout <= 0 {
		opts.ThinkingTimeout = 120 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interpreter{
		opts:    opts,
		target:  target,
		logger:  logger,
		started: opts.Clock(),
		loops:   newLoopDetector(opts.LoopThreshold, opts.LoopWindow),
	}
}

// Advance processes one transport chunk and returns the resulting events.
// Chunks arriving after a terminal phase are ignored. Chunk errors are the
// caller's to handle.
func (in *Interpreter) Advance(chunk llm.StreamEvent) []Event {
	if in.phase.Terminal() || chunk.Error != nil {
		return nil
	}

	var events []Event

	if chunk.Thinking != "" {
		in.dedicated = true
		evs, stop := in.think(chunk.Thinking)
		if stop {
			return evs
		}
		events = append(events, evs...)
	}

	if chunk.Content != "" {
		evs, stop := in.content(chunk.Content)
		events = append(events, evs...)
		if stop {
			return events
		}
	}

	if chunk.Done {
		events = append(events, in.flushHeld()...)
		if in.phase.Terminal() {
			return events
		}
		if chunk.Usage != nil {
			u := *chunk.Usage
			in.usage = &u
			events = append(events, TokenCount{Usage: u})
		}
		in.phase = Done
	}

	return events
}

// Tick checks the thinking deadline against now. It lets a caller abort a
// stalled stream that has stopped sending chunks.
func (in *Interpreter) Tick(now time.Time) []Event {
	if in.phase.Terminal() || in.answered {
		return nil
	}
	if elapsed := now.Sub(in.started); elapsed > in.opts.ThinkingTimeout {
		return in.abort(ReasonTimeout, elapsed, "")
	}
	return nil
}

// Finish marks the turn done when the transport closes without a final
// chunk and returns the events for any text still held back. A command
// still open at that point is never extracted.
func (in *Interpreter) Finish() []Event {
	if in.phase.Terminal() {
		return nil
	}
	events := in.flushHeld()
	if !in.phase.Terminal() {
		in.phase = Done
	}
	return events
}

func (in *Interpreter) content(text string) ([]Event, bool) {
	text, in.held = in.held+text, ""
	if in.dedicated {
		return in.answerText(text), false
	}

	var events []Event
	for text != "" {
		if in.inThink {
			idx := strings.Index(text, thinkClose)
			if idx < 0 {
				text = in.hold(text, thinkClose)
				if text == "" {
					return events, false
				}
				evs, stop := in.think(text)
				return append(events, evs...), stop
			}
			if idx > 0 {
				evs, stop := in.think(text[:idx])
				events = append(events, evs...)
				if stop {
					return events, true
				}
			}
			in.inThink = false
			text = text[idx+len(thinkClose):]
			continue
		}

		idx := strings.Index(text, thinkOpen)
		if idx < 0 {
			text = in.hold(text, thinkOpen)
			if text == "" {
				return events, false
			}
			return append(events, in.answerText(text)...), false
		}
		if idx > 0 {
			events = append(events, in.answerText(text[:idx])...)
		}
		in.inThink = true
		text = text[idx+len(thinkOpen):]
	}
	return events, false
}

// hold moves a suffix of text that is a proper prefix of marker into
// in.held and returns the rest.
func (in *Interpreter) hold(text, marker string) string {
	for k := min(len(marker)-1, len(text)); k > 0; k-- {
		if strings.HasSuffix(text, marker[:k]) {
			in.held = text[len(text)-k:]
			return text[:len(text)-k]
		}
	}
	return text
}

// flushHeld releases held text once no further chunk can complete it.
func (in *Interpreter) flushHeld() []Event {
	text := in.held
	in.held = ""
	switch {
	case text == "":
		return nil
	case in.inThink && !in.dedicated:
		evs, _ := in.think(text)
		return evs
	default:
		return in.answerText(text)
	}
}

func (in *Interpreter) think(text string) ([]Event, bool) {
	in.phase = Thinking

	if !in.answered {
		sentence, loop := in.loops.feed(text)
		elapsed := in.opts.Clock().Sub(in.started)
		switch {
		case loop:
			return in.abort(ReasonLoop, elapsed, sentence), true
		case elapsed > in.opts.ThinkingTimeout:
			return in.abort(ReasonTimeout, elapsed, ""), true
		}
	}

	in.thinking.WriteString(text)
	return []Event{ThoughtDelta{Text: text}}, false
}

func (in *Interpreter) answerText(text string) []Event {
	in.phase = Answering
	in.answer.WriteString(text)
	if strings.TrimSpace(text) != "" {
		in.answered = true
	}

	events := []Event{TextDelta{Text: text}}

	full := in.answer.String()
	for {
		cmd, next := command.ExtractNext(full, in.scanned)
		in.scanned = next
		if cmd == nil {
			break
		}
		in.attach(cmd)
		events = append(events, CommandFound{Command: cmd})
	}
	return events
}

func (in *Interpreter) attach(cmd *command.Command) {
	in.target.Mark(cmd)

	if in.pending != nil {
		in.logger.Warn("replacing command extracted earlier in the turn",
			zap.String("previous", in.pending.Describe()),
			zap.String("next", cmd.Describe()))
	}
	in.pending = cmd
}

func (in *Interpreter) abort(reason AbortReason, elapsed time.Duration, sentence string) []Event {
	in.phase = Aborted
	in.reason = reason

	in.logger.Warn("reasoning aborted",
		zap.String("reason", string(reason)),
		zap.Int64("elapsed_ms", elapsed.Milliseconds()),
		zap.String("sentence", sentence))

	notice := fmt.Sprintf("\n\n[%s: reasoning interrupted after %ds. Forcing a decision.]",
		strings.ToUpper(string(reason)), int(elapsed.Seconds()))
	in.thinking.WriteString(notice)
	in.answer.WriteString(FallbackText)
	in.answered = true

	return []Event{ThoughtDelta{Text: notice}, TextDelta{Text: FallbackText}}
}

// Phase returns the current state.
func (in *Interpreter) Phase() Phase { return in.phase }

// Reason returns why the turn was aborted, or "" if it was not.
func (in *Interpreter) Reason() AbortReason { return in.reason }

// Answered reports whether any non-blank answer text has arrived.
func (in *Interpreter) Answered() bool { return in.answered }

// Thinking returns the accumulated reasoning trace.
func (in *Interpreter) Thinking() string { return in.thinking.String() }

// Answer returns the raw accumulated answer text, tags included.
func (in *Interpreter) Answer() string { return in.answer.String() }

// Display returns the answer as it should appear in the transcript. While
// the turn is live a command still streaming in is hidden; once it is over
// only complete command tags are removed.
func (in *Interpreter) Display() string {
	if in.phase.Terminal() {
		return command.Display(in.answer.String())
	}
	return command.LiveDisplay(in.answer.String())
}

// Command returns the command extracted this turn, if any.
func (in *Interpreter) Command() *command.Command { return in.pending }

// Usage returns the final token counts, if the transport reported them.
func (in *Interpreter) Usage() *llm.Usage { return in.usage }

// Elapsed returns the time since the turn started.
func (in *Interpreter) Elapsed() time.Duration { return in.opts.Clock().Sub(in.started) }
