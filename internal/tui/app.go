// Package tui is the interactive chat workbench: a transcript, the
// document being edited and the edit proposals waiting for a decision.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"github.com/sant0-9/promptforge/internal/config"
	"github.com/sant0-9/promptforge/internal/llm"
	"github.com/sant0-9/promptforge/internal/logging"
	"github.com/sant0-9/promptforge/internal/rag"
	"github.com/sant0-9/promptforge/internal/session"
	"github.com/sant0-9/promptforge/internal/stream"
)

type view int

const (
	viewChat view = iota
	viewDocument
	viewSettings
	viewHelp
)

// Library is the persistent knowledge the app reads and extends.
type Library interface {
	session.Knowledge
	SaveSource(ctx context.Context, src rag.Source) error
	SaveSnippet(ctx context.Context, sn session.Snippet) error
}

// Deps wires the app to the rest of the program. Library may be nil.
type Deps struct {
	Config *config.Config
	// ConfigPath is where settings are written; empty means the default path.
	ConfigPath string
	Provider   llm.Provider
	Engine     *session.Engine
	Retriever  *rag.Retriever
	Library    Library
	Session    *session.Session
	Logger     *zap.Logger
}

type App struct {
	width    int
	height   int
	view     view
	state    *state
	deps     Deps
	logger   *zap.Logger
	quitting bool

	// Rendered while a turn runs, since the engine owns the session then.
	transcript string
	docView    string
	title      string
	estimate   int
}

func NewApp(deps Deps) *App {
	a := &App{
		view:   viewChat,
		state:  newState(deps.Config, deps.Session),
		deps:   deps,
		logger: logging.Module(deps.Logger, "tui"),
	}
	a.state.input.Focus()
	a.refresh()
	return a
}

// Session returns the session currently shown.
func (a *App) Session() *session.Session {
	return a.state.session
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.WindowSize(),
		textinput.Blink,
		a.testProvider(),
		a.loadKnowledge(),
	)
}

type providerReadyMsg struct{}
type providerErrorMsg struct{ error }

type knowledgeMsg struct {
	rules   []string
	sources []rag.Source
	err     error
}

// updateMsg carries one in-flight event from the engine.
type updateMsg session.Update

type turnDoneMsg struct {
	turn *session.Turn
	err  error
}

type improveDoneMsg struct {
	text string
	err  error
}

type ingestDoneMsg struct {
	name   string
	chunks int
	err    error
}

func (a *App) testProvider() tea.Cmd {
	provider := a.deps.Provider
	return func() tea.Msg {
		if provider == nil {
			return providerErrorMsg{errors.New("no provider configured")}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := provider.Ping(ctx); err != nil {
			return providerErrorMsg{err}
		}
		return providerReadyMsg{}
	}
}

func (a *App) loadKnowledge() tea.Cmd {
	lib := a.deps.Library
	return func() tea.Msg {
		if lib == nil {
			return knowledgeMsg{}
		}
		ctx := context.Background()
		rules, err := lib.GlobalRules(ctx)
		if err != nil {
			return knowledgeMsg{err: err}
		}
		sources, err := lib.Sources(ctx)
		return knowledgeMsg{rules: rules, sources: sources, err: err}
	}
}

// waitFor delivers the next message from an in-flight operation.
func waitFor(ch <-chan any) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if cmd, handled := a.handleKey(msg); handled {
			return a, cmd
		}

	case tea.WindowSizeMsg:
		a.resize(msg.Width, msg.Height)

	case providerReadyMsg:
		a.state.providerReady = true
		a.state.providerError = nil

	case providerErrorMsg:
		a.state.providerError = msg.error
		a.state.setNotice(suggestion(msg.error), true)

	case knowledgeMsg:
		if msg.err != nil {
			a.state.setNotice("Could not load knowledge base: "+msg.err.Error(), true)
			break
		}
		a.state.rules, a.state.sources = msg.rules, msg.sources
		a.refresh()

	case updateMsg:
		a.applyUpdate(session.Update(msg))
		a.syncViewport()
		return a, waitFor(a.state.updates)

	case turnDoneMsg:
		a.finishTurn(msg)
		return a, a.loadKnowledge()

	case improveDoneMsg:
		a.state.streaming = false
		if msg.err != nil {
			a.state.setNotice("Improve failed: "+msg.err.Error(), true)
		} else {
			a.state.selection = nil
			a.state.setNotice("Selection improved.", false)
		}
		a.refresh()

	case ingestDoneMsg:
		if msg.err != nil {
			a.state.setNotice("Ingest failed: "+msg.err.Error(), true)
			break
		}
		a.state.setNotice(fmtIngested(msg.name, msg.chunks), false)
		return a, a.loadKnowledge()

	case spinner.TickMsg:
		if !a.state.streaming {
			return a, nil
		}
		var cmd tea.Cmd
		a.state.spinner, cmd = a.state.spinner.Update(msg)
		a.syncViewport()
		return a, cmd
	}

	if a.view == viewChat && !a.state.streaming {
		var cmd tea.Cmd
		a.state.input, cmd = a.state.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	var cmd tea.Cmd
	a.state.viewport, cmd = a.state.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return a, tea.Batch(cmds...)
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	s := a.state
	switch {
	case key.Matches(msg, keys.Quit):
		if s.cancel != nil {
			s.cancel()
		}
		a.quitting = true
		return tea.Quit, true

	case key.Matches(msg, keys.Cancel):
		if s.streaming && s.cancel != nil {
			s.cancel()
			s.setNotice("Cancelling...", false)
			return nil, true
		}
		if a.view == viewSettings && s.settingsMode != "" {
			s.settingsMode = ""
			return nil, true
		}
		if a.view != viewChat {
			a.setView(viewChat)
			return nil, true
		}
		if s.selection != nil {
			s.selection = nil
			return nil, true
		}
		return nil, true

	case key.Matches(msg, keys.Help):
		a.setView(viewHelp)
		return nil, true

	case key.Matches(msg, keys.Settings):
		a.setView(viewSettings)
		return nil, true

	case key.Matches(msg, keys.Document):
		if a.view == viewDocument {
			a.setView(viewChat)
		} else {
			a.setView(viewDocument)
		}
		return nil, true

	case key.Matches(msg, keys.Accept):
		a.decide(true)
		return nil, true

	case key.Matches(msg, keys.Discard):
		a.decide(false)
		return nil, true

	case key.Matches(msg, keys.Enter):
		if a.view == viewSettings {
			return a.handleSettingsKey(msg), true
		}
		if a.view == viewChat && !s.streaming {
			return a.handleInput(), true
		}
		return nil, true
	}

	if a.view == viewSettings {
		return a.handleSettingsKey(msg), true
	}
	return nil, false
}

func (a *App) setView(v view) {
	a.view = v
	if v == viewDocument && !a.state.streaming {
		a.docView = a.renderDocumentBody()
	}
	a.syncViewport()
	a.state.viewport.GotoTop()
	if v == viewChat {
		a.state.viewport.GotoBottom()
	}
}

func (a *App) resize(width, height int) {
	a.width, a.height = width, height
	s := a.state

	s.viewport.Width = max(20, width-2)
	s.viewport.Height = max(5, height-chromeHeight)
	s.input.Width = max(20, width-8)

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(max(20, width-6)),
	)
	if err != nil {
		a.logger.Warn("markdown renderer unavailable", zap.Error(err))
		r = nil
	}
	s.renderer = r
	a.refresh()
}

// startTurn hands msg to the engine on its own goroutine and streams its
// updates back as messages.
func (a *App) startTurn(msg session.Message) tea.Cmd {
	s := a.state
	if s.streaming {
		return nil
	}

	a.refresh()
	s.resetLive()
	s.setNotice("", false)

	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan any, 64)
	s.cancel, s.updates = cancel, ch
	s.streaming = true
	s.streamStart = time.Now()
	a.transcript += renderUser(msg.Text, msg.Selection)

	engine, sess := a.deps.Engine, s.session
	go func() {
		defer close(ch)
		turn, err := engine.Send(ctx, sess, msg, func(u session.Update) {
			select {
			case ch <- updateMsg(u):
			case <-ctx.Done():
			}
		})
		ch <- turnDoneMsg{turn: turn, err: err}
	}()

	a.syncViewport()
	return tea.Batch(waitFor(ch), s.spinner.Tick)
}

func (a *App) applyUpdate(u session.Update) {
	s := a.state
	if u.Pipeline != nil {
		s.pipeline = u.Pipeline
		return
	}
	switch ev := u.Event.(type) {
	case stream.ThoughtDelta:
		s.phase = stream.Thinking
		s.thinking.WriteString(ev.Text)
	case stream.TextDelta:
		s.phase = stream.Answering
		s.answer.WriteString(ev.Text)
	case stream.CommandFound:
		s.proposal = ev.Command
	case stream.TokenCount:
		usage := ev.Usage
		s.lastUsage = &usage
	}
}

func (a *App) finishTurn(msg turnDoneMsg) {
	s := a.state
	if s.cancel != nil {
		s.cancel()
	}
	s.streaming = false
	s.cancel, s.updates = nil, nil

	switch {
	case msg.err != nil && errors.Is(msg.err, llm.ErrAborted):
		s.setNotice("Cancelled. The partial answer was kept.", false)
	case msg.err != nil:
		a.logger.Error("turn failed", zap.Error(msg.err))
		s.setNotice(msg.err.Error(), true)
	case msg.turn != nil && msg.turn.Failed:
		s.setNotice(suggestion(errors.New(msg.turn.Text)), true)
	case msg.turn != nil && msg.turn.Aborted:
		s.setNotice("Reasoning was interrupted; the model was asked to decide.", true)
	}
	if msg.turn != nil && msg.turn.Usage != nil {
		s.lastUsage = msg.turn.Usage
	}

	s.selection = nil
	s.resetLive()
	a.refresh()
}

// decide accepts or discards the pending proposal.
func (a *App) decide(accept bool) {
	s := a.state
	if s.streaming {
		return
	}
	turn := s.session.Pending()
	if turn == nil {
		s.setNotice("Nothing to accept or discard.", false)
		return
	}

	ctx := context.Background()
	var err error
	if accept {
		_, err = a.deps.Engine.Accept(ctx, s.session, turn.ID)
	} else {
		_, err = a.deps.Engine.Discard(ctx, s.session, turn.ID)
	}
	switch {
	case err != nil:
		s.setNotice(err.Error(), true)
	case accept:
		s.setNotice("Edit applied to the document.", false)
	default:
		s.setNotice("Edit discarded.", false)
	}
	a.refresh()
}

// refresh re-renders the cached transcript and document from the session.
// It must not run while the engine owns the session.
func (a *App) refresh() {
	if a.state.streaming {
		return
	}
	sess := a.state.session
	a.transcript = a.renderTranscript()
	a.docView = a.renderDocumentBody()
	a.title = sess.Title
	a.estimate = session.EstimateTokens(sess, a.state.rules, a.state.sources)
	a.syncViewport()
	if a.view == viewChat {
		a.state.viewport.GotoBottom()
	}
}

func (a *App) syncViewport() {
	s := a.state
	switch a.view {
	case viewChat:
		atBottom := s.viewport.AtBottom()
		s.viewport.SetContent(a.transcript + a.renderLive())
		if atBottom || s.streaming {
			s.viewport.GotoBottom()
		}
	case viewDocument:
		s.viewport.SetContent(a.docView)
	}
}

func (a *App) View() string {
	if a.quitting {
		return ""
	}

	switch a.view {
	case viewSettings:
		return a.renderSettings()
	case viewHelp:
		return a.renderHelp()
	case viewDocument:
		return a.renderDocument()
	default:
		return a.renderChat()
	}
}
