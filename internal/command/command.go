// Package command defines the edit commands a model embeds in its answer
// and extracts them from streamed text.
package command

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind names a command variant. The values are stable and persisted.
type Kind string

const (
	KindAppend    Kind = "append"
	KindEditRange Kind = "edit_lines"
	KindReplace   Kind = "replace"
)

// Status is the lifecycle state of a command. Pending moves to Applied or
// Discarded exactly once.
type Status string

const (
	Pending   Status = "pending"
	Applied   Status = "applied"
	Discarded Status = "discarded"
)

// Op is one of Append, EditRange or Replace.
type Op interface {
	Kind() Kind
	// Content is the cleaned payload.
	Content() string
	isOp()
}

// Append adds content after the end of the target.
type Append struct {
	NewContent string
}

// EditRange replaces lines Start..End, 1-based and inclusive. Empty content
// deletes the range.
type EditRange struct {
	Start      int
	End        int
	NewContent string
}

// Replace substitutes the whole target.
type Replace struct {
	NewContent string
}

func (Append) Kind() Kind    { return KindAppend }
func (EditRange) Kind() Kind { return KindEditRange }
func (Replace) Kind() Kind   { return KindReplace }

func (a Append) Content() string    { return a.NewContent }
func (e EditRange) Content() string { return e.NewContent }
func (r Replace) Content() string   { return r.NewContent }

func (Append) isOp()    {}
func (EditRange) isOp() {}
func (Replace) isOp()   {}

// Range is a half-open byte range [Start, End) in a document.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Command is an extracted edit awaiting the user's decision.
type Command struct {
	ID     string
	Op     Op
	Status Status
	// Original is a snapshot of the content the command replaces, for
	// display only.
	Original string
	// Snippet is set when the command targets the selection attached to the
	// turn rather than the whole document. Line numbers then count from the
	// start of the selection.
	Snippet *Range
}

// TargetsSnippet reports whether the command applies to a selection.
func (c *Command) TargetsSnippet() bool {
	return c.Snippet != nil
}

// Describe returns a short human label.
func (c *Command) Describe() string {
	switch op := c.Op.(type) {
	case Append:
		return "Append to document"
	case EditRange:
		if strings.TrimSpace(op.NewContent) == "" {
			return fmt.Sprintf("Delete lines %d-%d", op.Start, op.End)
		}
		return fmt.Sprintf("Edit lines %d-%d", op.Start, op.End)
	case Replace:
		return "Full rewrite"
	default:
		return "Unknown command"
	}
}

// snapshotLimit bounds the preview kept for full rewrites.
const snapshotLimit = 300

// Snapshot returns the part of target that op would replace: the sliced
// line range for an edit, a bounded preview for a rewrite, nothing for an
// append.
func Snapshot(op Op, target string) string {
	switch op := op.(type) {
	case EditRange:
		lines := strings.Split(target, "\n")
		start, end := ClampRange(op.Start, op.End, len(lines))
		return strings.Join(lines[start:end], "\n")
	case Replace:
		if len(target) > snapshotLimit {
			return truncate(target, snapshotLimit) + "..."
		}
		return target
	default:
		return ""
	}
}

// ClampRange converts a 1-based inclusive line range to slice bounds
// clamped to n lines. The result always satisfies 0 <= start <= end <= n.
func ClampRange(lineStart, lineEnd, n int) (int, int) {
	start := max(0, lineStart-1)
	end := min(n, lineEnd)
	start = min(start, n)
	end = max(end, start)
	return start, end
}

func truncate(s string, limit int) string {
	for limit > 0 && limit < len(s) && s[limit]&0xC0 == 0x80 {
		limit--
	}
	return s[:limit]
}

type commandJSON struct {
	ID       string `json:"id"`
	Kind     Kind   `json:"kind"`
	Status   Status `json:"status"`
	Content  string `json:"content"`
	Start    int    `json:"start,omitempty"`
	End      int    `json:"end,omitempty"`
	Original string `json:"original,omitempty"`
	Snippet  *Range `json:"snippet,omitempty"`
}

func (c Command) MarshalJSON() ([]byte, error) {
	if c.Op == nil {
		return nil, fmt.Errorf("command %s has no op", c.ID)
	}
	out := commandJSON{
		ID:       c.ID,
		Kind:     c.Op.Kind(),
		Status:   c.Status,
		Content:  c.Op.Content(),
		Original: c.Original,
		Snippet:  c.Snippet,
	}
	if e, ok := c.Op.(EditRange); ok {
		out.Start, out.End = e.Start, e.End
	}
	return json.Marshal(out)
}

func (c *Command) UnmarshalJSON(data []byte) error {
	var in commandJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	switch in.Kind {
	case KindAppend:
		c.Op = Append{NewContent: in.Content}
	case KindEditRange:
		c.Op = EditRange{Start: in.Start, End: in.End, NewContent: in.Content}
	case KindReplace:
		c.Op = Replace{NewContent: in.Content}
	default:
		return fmt.Errorf("unknown command kind %q", in.Kind)
	}

	c.ID = in.ID
	c.Status = in.Status
	c.Original = in.Original
	c.Snippet = in.Snippet
	return nil
}

// Selection is a captured sub-range of a document: its text and the byte
// range it occupied when captured.
type Selection struct {
	Text string `json:"text"`
	Range
}
