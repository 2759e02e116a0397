package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sant0-9/promptforge/internal/command"
	"github.com/sant0-9/promptforge/internal/config"
	"github.com/sant0-9/promptforge/internal/llm"
	"github.com/sant0-9/promptforge/internal/llm/llmtest"
	"github.com/sant0-9/promptforge/internal/rag"
	"github.com/sant0-9/promptforge/internal/session"
)

type fakeLibrary struct {
	mu       sync.Mutex
	sources  []rag.Source
	snippets []session.Snippet
}

func (f *fakeLibrary) Sources(context.Context) ([]rag.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sources, nil
}

func (f *fakeLibrary) GlobalRules(context.Context) ([]string, error) { return nil, nil }

func (f *fakeLibrary) SaveSource(_ context.Context, src rag.Source) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources = append(f.sources, src)
	return nil
}

func (f *fakeLibrary) SaveSnippet(_ context.Context, sn session.Snippet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snippets = append(f.snippets, sn)
	return nil
}

func newTestApp(t *testing.T, p llm.Provider) (*App, *fakeLibrary) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Model = "test-model"
	lib := &fakeLibrary{}
	retriever := rag.NewRetriever(cfg.Retrieval, nil)

	sess := session.New()
	sess.SetDocument("Hello\nWorld")

	a := NewApp(Deps{
		Config:    cfg,
		Provider:  p,
		Engine:    session.NewEngine(p, cfg, retriever, lib, nil, nil),
		Retriever: retriever,
		Library:   lib,
		Session:   sess,
	})
	a.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return a, lib
}

func submit(a *App, text string) tea.Cmd {
	a.state.input.SetValue(text)
	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return cmd
}

// drain feeds the in-flight turn's messages back into the app until it ends.
func drain(t *testing.T, a *App) {
	t.Helper()
	ch := a.state.updates
	require.NotNil(t, ch)
	timeout := time.After(5 * time.Second)
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			a.Update(msg)
		case <-timeout:
			t.Fatal("turn did not finish")
		}
	}
}

func TestTurn_ProposalAccepted(t *testing.T) {
	p := &llmtest.MockProvider{StreamEvents: []llm.StreamEvent{
		{Thinking: "line 2 it is"},
		{Content: "Done. "},
		{Content: `<EDIT_LINES start="2" end="2">Earth</EDIT_LINES>`},
		{Done: true, Usage: &llm.Usage{TotalTokens: 1200}},
	}}
	a, _ := newTestApp(t, p)

	submit(a, "change line 2 to Earth")
	require.True(t, a.state.streaming)
	assert.Contains(t, a.transcript, "change line 2 to Earth")
	drain(t, a)

	assert.False(t, a.state.streaming)
	turn := a.Session().Pending()
	require.NotNil(t, turn)
	assert.Equal(t, command.EditRange{Start: 2, End: 2, NewContent: "Earth"}, turn.Command.Op)
	assert.Contains(t, a.transcript, "Proposed edit: Edit lines 2-2")
	assert.Contains(t, a.View(), "[ctrl+y] Accept")
	assert.Equal(t, 1200, a.state.lastUsage.TotalTokens)

	a.Update(tea.KeyMsg{Type: tea.KeyCtrlY})
	assert.Equal(t, "Hello\nEarth", a.Session().Document)
	assert.Nil(t, a.Session().Pending())
	assert.Equal(t, "Edit applied to the document.", a.state.notice)
}

func TestTurn_SelectionTravels(t *testing.T) {
	p := &llmtest.MockProvider{StreamEvents: []llm.StreamEvent{
		{Content: "<SCRATCHPAD_UPDATE>Hi</SCRATCHPAD_UPDATE>"},
		{Done: true},
	}}
	a, _ := newTestApp(t, p)

	submit(a, "/select 1")
	require.NotNil(t, a.state.selection)
	assert.Equal(t, "Hello", a.state.selection.Text)

	submit(a, "shorter")
	drain(t, a)
	assert.Nil(t, a.state.selection)

	turn := a.Session().Pending()
	require.NotNil(t, turn)
	assert.True(t, turn.Command.TargetsSnippet())

	a.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	assert.Equal(t, command.Discarded, turn.Command.Status)
	assert.Equal(t, "Hello\nWorld", a.Session().Document)
}

func TestTurn_Cancel(t *testing.T) {
	p := &llmtest.MockProvider{Hold: true, StreamEvents: []llm.StreamEvent{{Thinking: "hmm"}}}
	a, _ := newTestApp(t, p)

	submit(a, "do something")
	require.True(t, a.state.streaming)
	a.Update(tea.KeyMsg{Type: tea.KeyEsc})
	drain(t, a)

	assert.False(t, a.state.streaming)
	assert.Equal(t, "Cancelled. The partial answer was kept.", a.state.notice)
}

func TestTurn_TransportFailure(t *testing.T) {
	p := &llmtest.MockProvider{StreamErr: errors.New("dial tcp: connection refused")}
	a, _ := newTestApp(t, p)

	submit(a, "hi")
	drain(t, a)

	last := a.Session().LastAssistant()
	assert.True(t, last.Failed)
	assert.True(t, a.state.noticeErr)
	assert.Contains(t, a.state.notice, "ollama serve")
}

func TestSlashCommands(t *testing.T) {
	a, lib := newTestApp(t, &llmtest.MockProvider{})

	submit(a, "/maker")
	assert.True(t, a.state.config.Maker)

	submit(a, "/effort high")
	assert.Equal(t, config.EffortHigh, a.state.config.ReasoningEffort)
	submit(a, "/effort extreme")
	assert.True(t, a.state.noticeErr)

	submit(a, "/remember write in French")
	assert.Equal(t, []string{"write in French"}, a.Session().Memories)

	submit(a, "/notes for a tutoring app")
	assert.Equal(t, "for a tutoring app", a.Session().ProjectNotes)

	submit(a, "/snippet")
	assert.True(t, a.state.noticeErr)
	submit(a, "/select 2")
	submit(a, "/snippet Greeting")
	require.Len(t, lib.snippets, 1)
	assert.Equal(t, "Greeting", lib.snippets[0].Title)
	assert.Equal(t, "World", lib.snippets[0].Content)

	submit(a, "/select")
	assert.Nil(t, a.state.selection)

	old := a.Session().ID
	submit(a, "/new")
	assert.NotEqual(t, old, a.Session().ID)

	submit(a, "/bogus")
	assert.Contains(t, a.state.notice, "Unknown command")
}

func TestSlashLoadAndIngest(t *testing.T) {
	a, lib := newTestApp(t, &llmtest.MockProvider{})
	path := filepath.Join(t.TempDir(), "persona.md")
	require.NoError(t, os.WriteFile(path, []byte("You are a tutor.\r\nBe kind."), 0644))

	submit(a, "/load "+path)
	assert.Equal(t, "You are a tutor.\nBe kind.", a.Session().Document)

	cmd := submit(a, "/ingest "+path)
	require.NotNil(t, cmd)
	msg := cmd()
	done, ok := msg.(ingestDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.err)
	a.Update(done)

	require.Len(t, lib.sources, 1)
	assert.Equal(t, "persona.md", lib.sources[0].Name)
	assert.Contains(t, a.state.notice, "Added persona.md")
}

func TestImprove(t *testing.T) {
	p := &llmtest.MockProvider{Responses: []*llm.CompletionResponse{{Content: "Hi"}}}
	a, _ := newTestApp(t, p)

	submit(a, "/select 1")
	cmd := submit(a, "/improve shorten")
	require.NotNil(t, cmd)
	require.True(t, a.state.streaming)

	msg := improveResult(t, cmd)
	a.Update(msg)
	assert.False(t, a.state.streaming)
	assert.Equal(t, "Hi\nWorld", a.Session().Document)
	assert.Equal(t, "Selection improved.", a.state.notice)
}

// improveResult runs a batched command until it yields the improve result.
func improveResult(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok)
	for _, c := range batch {
		if c == nil {
			continue
		}
		if msg, ok := c().(improveDoneMsg); ok {
			return msg
		}
	}
	t.Fatal("no improve result")
	return nil
}

func TestSettingsKeys(t *testing.T) {
	a, _ := newTestApp(t, &llmtest.MockProvider{})

	a.Update(tea.KeyMsg{Type: tea.KeyF2})
	require.Equal(t, viewSettings, a.view)

	a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("e")})
	assert.Equal(t, config.EffortHigh, a.state.config.ReasoningEffort)
	a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("m")})
	assert.True(t, a.state.config.Maker)

	a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("o")})
	a.Update(tea.KeyMsg{Type: tea.KeyDown})
	a.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, config.Providers[0].Models[1], a.state.config.Model)

	a.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, viewChat, a.view)
}

func TestDocumentView(t *testing.T) {
	a, _ := newTestApp(t, &llmtest.MockProvider{})
	submit(a, "/select 2")

	body := a.renderDocumentBody()
	lines := strings.Split(body, "\n")
	assert.Contains(t, lines[0], "Hello")
	assert.NotContains(t, lines[0], "| ")
	assert.Contains(t, lines[1], "| ")

	a.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, viewDocument, a.view)
	a.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, viewChat, a.view)
}

func TestParseLineRange(t *testing.T) {
	tests := []struct {
		in       string
		from, to int
		wantErr  bool
	}{
		{"3", 3, 3, false},
		{"2-5", 2, 5, false},
		{" 2 - 5 ", 2, 5, false},
		{"5-2", 0, 0, true},
		{"0", 0, 0, true},
		{"a-b", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			from, to, err := parseLineRange(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.from, from)
			assert.Equal(t, tt.to, to)
		})
	}
}

func TestSuggestion(t *testing.T) {
	assert.Contains(t, suggestion(errors.New("status 401")), "api_key")
	assert.Contains(t, suggestion(errors.New("status 429: rate limit")), "wait")
	assert.Contains(t, suggestion(errors.New(`model "x" not found`)), "ollama pull")
	assert.Equal(t, "weird", suggestion(errors.New("weird")))
}

func TestFormatGauge(t *testing.T) {
	assert.Equal(t, "~1.5k/66k ctx (2%)", formatGauge(1500, 65536, true))
	assert.Equal(t, "32.8k/66k ctx (50%)", formatGauge(32768, 65536, false))
}

func TestRenderCard(t *testing.T) {
	cmd := &command.Command{
		Op:       command.EditRange{Start: 1, End: 1, NewContent: "new"},
		Status:   command.Pending,
		Original: "old",
	}
	out := renderCard(cmd, true, 80)
	assert.Contains(t, out, "- old")
	assert.Contains(t, out, "+ new")
	assert.Contains(t, out, "[ctrl+y] Accept")

	cmd.Status = command.Applied
	assert.Contains(t, renderCard(cmd, false, 80), "applied")
}

func TestClip(t *testing.T) {
	lines := clip(strings.Repeat("x\n", 20))
	require.Len(t, lines, cardLines+1)
	assert.Equal(t, "... 8 more lines", lines[cardLines])
	assert.Nil(t, clip(""))
}

func TestSetup(t *testing.T) {
	m := NewSetup(config.DefaultConfig())
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, config.Providers[1].ID, m.Config().Provider)
	require.Equal(t, 1, m.step)

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.Done())

	m.apiKeyInput.SetValue("sk-test")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.NotNil(t, cmd)
	assert.True(t, m.Done())
	assert.Equal(t, "sk-test", m.Config().APIKey)
}
