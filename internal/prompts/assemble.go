package prompts

import (
	"fmt"
	"strings"

	"github.com/sant0-9/promptforge/internal/intent"
)

// Input is everything the assembler puts in front of the model.
type Input struct {
	// Base instructions, always first and never truncated.
	Base string
	// GlobalRules apply to every session.
	GlobalRules []string
	// SessionRules were learned during this session.
	SessionRules []string
	ProjectNotes string
	// Retrieved is the block produced by the retriever.
	Retrieved string
	Document  string
	// Snippet is the selection attached to the turn, if any.
	Snippet string
	Intent  intent.Intent
}

// Assemble builds the system payload: base instructions, global rules,
// session rules, project notes, retrieved context, the document state and
// the intent directive, in that order. Empty sections are skipped.
func Assemble(in Input) string {
	sections := []string{in.Base}

	if len(in.GlobalRules) > 0 {
		sections = append(sections, fmt.Sprintf(
			"<DIVINE_MEMORIES priority=\"HIGHEST\">\nImmutable global rules that apply to every conversation:\n%s\n</DIVINE_MEMORIES>",
			numberedList(in.GlobalRules)))
	}

	if len(in.SessionRules) > 0 {
		sections = append(sections, fmt.Sprintf(
			"<SESSION_MEMORIES priority=\"HIGH\">\nLearnings from this session:\n%s\n</SESSION_MEMORIES>",
			numberedList(in.SessionRules)))
	}

	if notes := strings.TrimSpace(in.ProjectNotes); notes != "" {
		sections = append(sections, fmt.Sprintf("<PROJECT_CONTEXT>\n%s\n</PROJECT_CONTEXT>", in.ProjectNotes))
	}

	if in.Retrieved != "" {
		sections = append(sections, fmt.Sprintf("<RAG_CONTEXT source=\"uploaded_files\">\n%s\n</RAG_CONTEXT>", in.Retrieved))
	}

	sections = append(sections, documentState(in.Document, in.Snippet), Directive(in.Intent))

	return strings.Join(sections, "\n\n")
}

func documentState(doc, snippet string) string {
	if snippet != "" {
		docLines := LineCount(doc)
		snipLines := LineCount(snippet)
		return fmt.Sprintf(`<EDITOR_STATE>
<FULL_NOTEPAD lines="%d">
%s
</FULL_NOTEPAD>

<FOCUSED_SELECTION lines="%d" mode="PRIMARY_TARGET">
%s
</FOCUSED_SELECTION>

The user selected %d lines. Modify ONLY the FOCUSED_SELECTION, using its own line numbers 1-%d.
</EDITOR_STATE>`, docLines, NumberLines(doc), snipLines, NumberLines(snippet), snipLines, snipLines)
	}

	if strings.TrimSpace(doc) == "" {
		return "<EDITOR_STATE>\n(Empty: the user has not written any prompt yet)\n</EDITOR_STATE>"
	}

	n := LineCount(doc)
	return fmt.Sprintf("<EDITOR_STATE lines=\"%d\">\n%s\n</EDITOR_STATE>\n\nEDITOR: %d lines total. Use exact line numbers for <EDIT_LINES>.",
		n, NumberLines(doc), n)
}

// Directive returns the intent-specific instruction block.
func Directive(i intent.Intent) string {
	switch i {
	case intent.Discovery:
		return `<CURRENT_INTENT mode="DISCOVERY">
The user wants to CREATE something new.

If they have NOT yet given details (where it runs, audience, purpose):
- Ask 1-3 short clarifying questions.
- Reply with text only, no commands.

If they HAVE given enough details:
- Generate the prompt now.
- Emit exactly one <SCRATCHPAD_UPDATE>complete prompt</SCRATCHPAD_UPDATE> and nothing else.
</CURRENT_INTENT>`
	case intent.Analysis:
		return `<CURRENT_INTENT mode="INFORMATION_REQUEST">
The user is ASKING about the editor content.

- Do NOT output <SCRATCHPAD_UPDATE>, <EDIT_LINES> or <SCRATCHPAD_APPEND>.
- Do NOT output any command tag.

Reply in prose only. Analyse what you see and ask whether they want changes.
</CURRENT_INTENT>`
	case intent.Modify:
		return `<CURRENT_INTENT mode="MODIFICATION_REQUEST">
The user wants to MODIFY the editor content.

1. Read <EDITOR_STATE> carefully and locate the target lines.
2. Decide exactly which lines change or go away.
3. Output ONLY the matching command.

- Additions: <SCRATCHPAD_APPEND>content</SCRATCHPAD_APPEND>
- Changes: <EDIT_LINES start="X" end="Y">new content</EDIT_LINES>
- Deletions: <EDIT_LINES start="X" end="Y"></EDIT_LINES> (empty tag)
- Full rewrite: <SCRATCHPAD_UPDATE>entire new content</SCRATCHPAD_UPDATE>

Emit exactly one well-formed command and nothing before or after it.
</CURRENT_INTENT>`
	default:
		return `<CURRENT_INTENT mode="CONVERSATIONAL">
The user is making conversation. Reply briefly, in one or two sentences.
Do NOT output command tags. Do NOT analyse the editor content.
</CURRENT_INTENT>`
	}
}

// NumberLines prefixes every line with its 1-based number as "N | line".
func NumberLines(text string) string {
	lines := strings.Split(text, "\n")
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d | %s", i+1, l)
	}
	return b.String()
}

// LineCount is the number of lines a command's line range indexes.
func LineCount(text string) int {
	return strings.Count(text, "\n") + 1
}

func numberedList(items []string) string {
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = fmt.Sprintf("%d. %s", i+1, it)
	}
	return strings.Join(lines, "\n")
}
