// Package patch applies an accepted edit command to a document.
package patch

import (
	"strings"

	"github.com/sant0-9/promptforge/internal/command"
)

// Apply returns doc with cmd applied. When the command targets a snippet,
// the snippet's byte range in the current document is edited as a document
// of its own and spliced back in place; everything outside the range is
// left untouched. Ranges are clamped to the document, so Apply never
// fails. The caller checks the command is pending and marks it applied.
func Apply(doc string, cmd *command.Command) string {
	if cmd.Snippet == nil {
		return applyOp(doc, cmd.Op)
	}

	start, end := clampOffsets(cmd.Snippet.Start, cmd.Snippet.End, len(doc))
	edited := applyOp(doc[start:end], cmd.Op)
	return doc[:start] + edited + doc[end:]
}

func applyOp(target string, op command.Op) string {
	switch op := op.(type) {
	case command.Append:
		if target == "" {
			return op.NewContent
		}
		return target + "\n" + op.NewContent

	case command.EditRange:
		lines := strings.Split(target, "\n")
		start, end := command.ClampRange(op.Start, op.End, len(lines))

		var replacement []string
		if strings.TrimSpace(op.NewContent) != "" {
			replacement = strings.Split(op.NewContent, "\n")
		}

		out := make([]string, 0, len(lines)-(end-start)+len(replacement))
		out = append(out, lines[:start]...)
		out = append(out, replacement...)
		out = append(out, lines[end:]...)
		return strings.Join(out, "\n")

	case command.Replace:
		return op.NewContent

	default:
		return target
	}
}

func clampOffsets(start, end, n int) (int, int) {
	start = max(0, min(start, n))
	end = max(start, min(end, n))
	return start, end
}
