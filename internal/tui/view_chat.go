package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/sant0-9/promptforge/internal/command"
	"github.com/sant0-9/promptforge/internal/pipeline"
	"github.com/sant0-9/promptforge/internal/session"
	"github.com/sant0-9/promptforge/internal/stream"
)

// chromeHeight is the space taken by header, input box and status line.
const chromeHeight = 8

// Lines of thinking and of proposal content shown before eliding.
const (
	thinkingTail = 6
	cardLines    = 12
)

func (a *App) renderChat() string {
	var b strings.Builder
	b.WriteString(a.renderHeader("PromptForge"))

	b.WriteString(a.state.viewport.View())
	b.WriteString("\n")

	s := a.state
	if s.selection != nil {
		sel := fmt.Sprintf("Selection attached: %q", truncate(strings.ReplaceAll(s.selection.Text, "\n", " "), 50))
		b.WriteString(styleSubtitle.Render(sel))
	}
	b.WriteString("\n")

	if s.streaming {
		b.WriteString(styleBox.Width(max(20, a.width-4)).Render(styleSubtitle.Render("Working... [Esc] cancel")))
	} else {
		b.WriteString(styleBox.Width(max(20, a.width-4)).BorderForeground(colorSecondary).Render(s.input.View()))
	}
	b.WriteString("\n")
	b.WriteString(a.renderStatus())
	return b.String()
}

func (a *App) renderHeader(title string) string {
	t := styleTitle.Render(title)
	line := styleSubtitle.Render(a.modelLine())
	return lipgloss.PlaceHorizontal(a.width, lipgloss.Center, t) + "\n" +
		lipgloss.PlaceHorizontal(a.width, lipgloss.Center, line) + "\n\n"
}

func (a *App) modelLine() string {
	cfg := a.state.config
	if cfg == nil {
		return ""
	}
	mode := "standard"
	if cfg.Maker {
		mode = "maker"
	}
	return fmt.Sprintf("%s via %s  |  %s mode  |  effort %s  |  %s",
		cfg.Model, cfg.Provider, mode, cfg.ReasoningEffort, truncate(a.title, 40))
}

func (a *App) renderStatus() string {
	s := a.state
	var parts []string

	switch {
	case s.notice != "" && s.noticeErr:
		parts = append(parts, styleError.Render(s.notice))
	case s.notice != "":
		parts = append(parts, s.notice)
	case s.providerError != nil:
		parts = append(parts, styleError.Render("Provider unreachable: "+s.providerError.Error()))
	}

	if gauge := a.contextGauge(); gauge != "" {
		parts = append(parts, gauge)
	}
	if !s.streaming && s.session.Pending() != nil {
		parts = append(parts, "[ctrl+y] Accept  [ctrl+n] Discard")
	}
	parts = append(parts, "[tab] Document  [f1] Help")
	return styleStatusBar.Render(strings.Join(parts, "  "))
}

// renderTranscript renders every settled turn of the session.
func (a *App) renderTranscript() string {
	var b strings.Builder
	sess := a.state.session
	pending := sess.Pending()
	for i := range sess.Turns {
		t := &sess.Turns[i]
		if t.Role == session.RoleUser {
			b.WriteString(renderUser(t.Text, t.Selection))
			continue
		}
		b.WriteString(a.renderAssistant(t, pending == t))
	}
	return b.String()
}

func renderUser(text string, sel *command.Selection) string {
	var b strings.Builder
	for i, line := range strings.Split(text, "\n") {
		prefix := "> "
		if i > 0 {
			prefix = "  "
		}
		b.WriteString(styleUser.Render(prefix+line) + "\n")
	}
	if sel != nil {
		b.WriteString(styleSubtitle.Render(fmt.Sprintf("  [selection: %d chars]", len(sel.Text))) + "\n")
	}
	return b.String() + "\n"
}

func (a *App) renderAssistant(t *session.Turn, pending bool) string {
	var b strings.Builder
	if t.Failed {
		b.WriteString(styleError.Render(t.Text) + "\n")
	} else if strings.TrimSpace(t.Text) != "" {
		b.WriteString(a.markdown(t.Text))
	}
	if t.Aborted {
		b.WriteString(styleThinking.Render("  (reasoning was interrupted)") + "\n")
	}
	if t.Command != nil {
		b.WriteString(renderCard(t.Command, pending, a.width) + "\n")
	}
	return b.String() + "\n"
}

func (a *App) markdown(text string) string {
	if r := a.state.renderer; r != nil {
		if out, err := r.Render(text); err == nil {
			return out
		}
	}
	return text + "\n"
}

// renderCard shows a proposal: what it replaces, what it adds and its status.
func renderCard(cmd *command.Command, pending bool, width int) string {
	var b strings.Builder
	title := "Proposed edit: " + cmd.Describe()
	if cmd.TargetsSnippet() {
		title += " (selection)"
	}
	b.WriteString(styleCardTitle.Render(title) + "\n")

	for _, line := range clip(cmd.Original) {
		b.WriteString(styleRemoved.Render("- "+line) + "\n")
	}
	for _, line := range clip(cmd.Op.Content()) {
		b.WriteString(styleAdded.Render("+ "+line) + "\n")
	}

	switch {
	case pending:
		b.WriteString(styleSubtitle.Render("[ctrl+y] Accept  [ctrl+n] Discard"))
	case cmd.Status == command.Pending:
		b.WriteString(styleSubtitle.Render("superseded"))
	default:
		b.WriteString(styleSubtitle.Render(string(cmd.Status)))
	}

	card := styleCard
	if !pending {
		card = card.BorderForeground(colorMuted)
	}
	return card.Width(max(20, min(90, width-4))).Render(b.String())
}

func clip(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) > cardLines {
		more := len(lines) - cardLines
		lines = append(lines[:cardLines], fmt.Sprintf("... %d more lines", more))
	}
	return lines
}

// renderLive renders the in-flight turn.
func (a *App) renderLive() string {
	s := a.state
	if !s.streaming {
		return ""
	}
	var b strings.Builder

	if s.pipeline != nil {
		b.WriteString(renderPipeline(s.pipeline))
	}

	elapsed := time.Since(s.streamStart).Round(time.Second)
	label := "Waiting for the model"
	switch s.phase {
	case stream.Thinking:
		label = "Thinking"
	case stream.Answering:
		label = "Writing"
	}
	b.WriteString(fmt.Sprintf("%s %s %s\n", s.spinner.View(), label, styleSubtitle.Render(elapsed.String())))

	if th := s.thinking.String(); th != "" && s.phase == stream.Thinking {
		lines := strings.Split(strings.TrimRight(th, "\n"), "\n")
		if len(lines) > thinkingTail {
			lines = lines[len(lines)-thinkingTail:]
		}
		for _, l := range lines {
			b.WriteString(styleThinking.Render("  "+truncate(l, max(20, a.width-6))) + "\n")
		}
	}
	if ans := command.LiveDisplay(s.answer.String()); ans != "" {
		b.WriteString(ans + "\n")
	}
	if s.proposal != nil {
		b.WriteString(renderCard(s.proposal, false, a.width) + "\n")
	}
	return b.String()
}

func renderPipeline(st *pipeline.State) string {
	var b strings.Builder
	for _, step := range st.Steps {
		mark := "[ ]"
		style := styleSubtitle
		switch step.Status {
		case pipeline.StepWorking:
			mark, style = "[~]", styleUser
		case pipeline.StepCompleted:
			mark, style = "[x]", styleAdded
		case pipeline.StepFailed:
			mark, style = "[!]", styleError
		}
		b.WriteString(style.Render(fmt.Sprintf("%s %s", mark, step.Title)) + "\n")
	}
	return b.String()
}
