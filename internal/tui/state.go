package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"

	"github.com/sant0-9/promptforge/internal/command"
	"github.com/sant0-9/promptforge/internal/config"
	"github.com/sant0-9/promptforge/internal/llm"
	"github.com/sant0-9/promptforge/internal/pipeline"
	"github.com/sant0-9/promptforge/internal/rag"
	"github.com/sant0-9/promptforge/internal/session"
	"github.com/sant0-9/promptforge/internal/stream"
)

type state struct {
	config  *config.Config
	session *session.Session

	// Provider
	providerReady bool
	providerError error

	// Knowledge base snapshot, for the context gauge.
	rules   []string
	sources []rag.Source

	// Selection attached to the next message.
	selection *command.Selection

	// In-flight turn
	streaming   bool
	cancel      context.CancelFunc
	updates     chan any
	streamStart time.Time
	phase       stream.Phase
	thinking    strings.Builder
	answer      strings.Builder
	proposal    *command.Command
	pipeline    *pipeline.State
	lastUsage   *llm.Usage

	// Settings view
	settingsMode     string
	settingsSelected int

	// Status line message and whether it reports a failure.
	notice    string
	noticeErr bool

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer
}

func newState(cfg *config.Config, sess *session.Session) *state {
	input := textinput.New()
	input.Placeholder = "Ask for a change, or /help for commands..."
	input.Prompt = "> "
	input.CharLimit = 4096
	input.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styleTitle

	vp := viewport.New(80, 20)

	return &state{
		config:   cfg,
		session:  sess,
		input:    input,
		viewport: vp,
		spinner:  sp,
	}
}

// resetLive clears the in-flight turn buffers.
func (s *state) resetLive() {
	s.phase = stream.Idle
	s.thinking.Reset()
	s.answer.Reset()
	s.proposal = nil
	s.pipeline = nil
}

func (s *state) setNotice(msg string, isErr bool) {
	s.notice = msg
	s.noticeErr = isErr
}
