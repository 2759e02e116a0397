package patch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sant0-9/promptforge/internal/command"
)

func cmd(op command.Op) *command.Command {
	return &command.Command{ID: "t", Op: op, Status: command.Pending}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		op   command.Op
		want string
	}{
		{name: "edit single line", doc: "Hello\nWorld", op: command.EditRange{Start: 2, End: 2, NewContent: "Earth"}, want: "Hello\nEarth"},
		{name: "edit grows", doc: "a\nb\nc", op: command.EditRange{Start: 2, End: 2, NewContent: "x\ny"}, want: "a\nx\ny\nc"},
		{name: "edit shrinks", doc: "a\nb\nc\nd", op: command.EditRange{Start: 1, End: 3, NewContent: "z"}, want: "z\nd"},
		{name: "delete range", doc: "a\nb\nc\nd\ne", op: command.EditRange{Start: 2, End: 3}, want: "a\nd\ne"},
		{name: "whitespace content deletes", doc: "a\nb\nc", op: command.EditRange{Start: 3, End: 3, NewContent: "  \n "}, want: "a\nb"},
		{name: "delete everything", doc: "a\nb", op: command.EditRange{Start: 1, End: 2}, want: ""},
		{name: "end beyond document", doc: "a\nb\nc", op: command.EditRange{Start: 2, End: 40, NewContent: "x"}, want: "a\nx"},
		{name: "start beyond document inserts at end", doc: "a\nb", op: command.EditRange{Start: 9, End: 12, NewContent: "x"}, want: "a\nb\nx"},
		{name: "zero start", doc: "a\nb", op: command.EditRange{Start: 0, End: 1, NewContent: "x"}, want: "x\nb"},
		{name: "inverted range inserts", doc: "a\nb\nc", op: command.EditRange{Start: 3, End: 1, NewContent: "x"}, want: "a\nb\nx\nc"},
		{name: "append to empty", doc: "", op: command.Append{NewContent: "first"}, want: "first"},
		{name: "append separates", doc: "one", op: command.Append{NewContent: "two"}, want: "one\ntwo"},
		{name: "append after trailing newline", doc: "a\n", op: command.Append{NewContent: "b"}, want: "a\n\nb"},
		{name: "replace", doc: "old\ntext", op: command.Replace{NewContent: "new"}, want: "new"},
		{name: "replace with empty", doc: "old", op: command.Replace{}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Apply(tt.doc, cmd(tt.op)))
		})
	}
}

func TestApply_DeletionKeepsOtherLines(t *testing.T) {
	lines := []string{"l1", "l2", "l3", "l4", "l5", "l6", "l7"}
	doc := strings.Join(lines, "\n")

	for start := 1; start <= len(lines); start++ {
		for end := start; end <= len(lines); end++ {
			got := Apply(doc, cmd(command.EditRange{Start: start, End: end}))

			var want []string
			want = append(want, lines[:start-1]...)
			want = append(want, lines[end:]...)
			assert.Equal(t, strings.Join(want, "\n"), got, "delete %d-%d", start, end)
		}
	}
}

func TestApply_Snippet(t *testing.T) {
	doc := "# Title\nintro line\nSEL one\nSEL two\nSEL three\noutro"
	sel := "SEL one\nSEL two\nSEL three"
	start := strings.Index(doc, sel)
	end := start + len(sel)

	ops := []command.Op{
		command.EditRange{Start: 2, End: 2, NewContent: "REPLACED"},
		command.EditRange{Start: 1, End: 3},
		command.Append{NewContent: "added"},
		command.Replace{NewContent: "whole snippet"},
		command.EditRange{Start: 50, End: 60, NewContent: "clamped"},
	}

	for _, op := range ops {
		c := cmd(op)
		c.Snippet = &command.Range{Start: start, End: end}
		got := Apply(doc, c)

		assert.True(t, strings.HasPrefix(got, doc[:start]), "prefix changed for %s", op.Kind())
		assert.True(t, strings.HasSuffix(got, doc[end:]), "suffix changed for %s", op.Kind())

		middle := got[start : len(got)-len(doc[end:])]
		assert.Equal(t, Apply(sel, cmd(op)), middle)
	}
}

func TestApply_SnippetLineNumbersAreRelative(t *testing.T) {
	doc := "a\nb\nc\nd"
	c := cmd(command.EditRange{Start: 1, End: 1, NewContent: "C"})
	c.Snippet = &command.Range{Start: 4, End: 7} // "c\nd"

	assert.Equal(t, "a\nb\nC\nd", Apply(doc, c))
}

func TestApply_StaleSnippetOffsetsAreClamped(t *testing.T) {
	c := cmd(command.Replace{NewContent: "X"})
	c.Snippet = &command.Range{Start: 3, End: 100}

	assert.Equal(t, "abcX", Apply("abcdef", c))
}
