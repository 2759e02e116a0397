package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (a *App) renderHelp() string {
	var b strings.Builder

	// Title
	title := lipgloss.NewStyle().
		Foreground(colorPrimary).
		Bold(true).
		Render("Help")
	b.WriteString(lipgloss.PlaceHorizontal(a.width, lipgloss.Center, title))
	b.WriteString("\n\n")

	// Commands
	commands := []string{
		"  /select N-M        Attach document lines to the next message",
		"  /select            Clear the selection",
		"  /improve TASK      rewrite, shorten, expand or format the selection",
		"  /accept /discard   Decide on the pending edit",
		"  /load FILE         Replace the document with a text file",
		"  /ingest FILE       Add a file to the knowledge base",
		"  /remember RULE     Add a rule for this session",
		"  /forget            Clear this session's rules",
		"  /notes TEXT        Set the project notes",
		"  /snippet [TITLE]   Save the selection as a snippet",
		"  /maker             Toggle the four-agent pipeline",
		"  /effort LEVEL      low, medium or high",
		"  /new               Start a new conversation",
		"  /doc /settings     Open a view",
		"  /quit              Quit",
	}

	commandsBox := styleBox.
		Width(min(80, max(40, a.width-4))).
		Render(strings.Join(commands, "\n"))
	b.WriteString(lipgloss.PlaceHorizontal(a.width, lipgloss.Center, commandsBox))
	b.WriteString("\n\n")

	// Keyboard shortcuts
	shortcuts := []string{
		"  Enter          Send",
		"  Ctrl+Y/Ctrl+N  Accept / discard the pending edit",
		"  Tab            Toggle document view",
		"  PgUp/PgDn      Scroll",
		"  Esc            Cancel the running turn / go back",
		"  F1 / F2        Help / settings",
		"  Ctrl+C         Quit",
	}

	shortcutsTitle := styleSubtitle.Render("Keyboard Shortcuts")
	b.WriteString(lipgloss.PlaceHorizontal(a.width, lipgloss.Center, shortcutsTitle))
	b.WriteString("\n\n")

	shortcutsBox := styleBox.
		Width(min(80, max(40, a.width-4))).
		Render(strings.Join(shortcuts, "\n"))
	b.WriteString(lipgloss.PlaceHorizontal(a.width, lipgloss.Center, shortcutsBox))
	b.WriteString("\n\n")

	// Instructions
	instructions := styleStatusBar.Render("[Esc] Back")
	b.WriteString(lipgloss.PlaceHorizontal(a.width, lipgloss.Center, instructions))

	return a.centerVertically(b.String())
}

func (a *App) centerVertically(content string) string {
	return centerVertically(content, a.height)
}

func centerVertically(content string, height int) string {
	lines := strings.Count(content, "\n") + 1
	padding := (height - lines) / 2
	if padding < 0 {
		padding = 0
	}
	return strings.Repeat("\n", padding) + content
}
