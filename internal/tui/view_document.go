package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (a *App) renderDocument() string {
	var b strings.Builder
	b.WriteString(a.renderHeader("Document"))
	b.WriteString(a.state.viewport.View())
	b.WriteString("\n\n")

	status := "[tab] Chat  [pgup/pgdn] Scroll  /select N-M in chat to attach lines"
	b.WriteString(lipgloss.PlaceHorizontal(a.width, lipgloss.Center, styleStatusBar.Render(status)))
	return b.String()
}

// renderDocumentBody numbers the document's lines and marks the attached
// selection.
func (a *App) renderDocumentBody() string {
	s := a.state
	doc := s.session.Document
	if strings.TrimSpace(doc) == "" {
		return styleSubtitle.Render("The document is empty. Ask for a prompt in the chat, or /load a file.")
	}

	lines := strings.Split(doc, "\n")
	width := len(fmt.Sprint(len(lines)))
	selected := func(int, int) bool { return false }
	if sel := s.selection; sel != nil {
		selected = func(start, end int) bool { return start < sel.End && end >= sel.Start }
	}

	var b strings.Builder
	offset := 0
	for i, line := range lines {
		gutter := styleSubtitle.Render(fmt.Sprintf("%*d ", width, i+1))
		mark := "  "
		if selected(offset, offset+len(line)) {
			mark = styleUser.Render("| ")
		}
		b.WriteString(gutter + mark + line + "\n")
		offset += len(line) + 1
	}

	var meta []string
	meta = append(meta, fmt.Sprintf("%d lines", len(lines)))
	meta = append(meta, fmt.Sprintf("~%d words", len(strings.Fields(doc))))
	if n := len(s.session.Memories); n > 0 {
		meta = append(meta, fmt.Sprintf("%d session rules", n))
	}
	b.WriteString("\n" + styleSubtitle.Render(strings.Join(meta, "  |  ")))
	return b.String()
}
