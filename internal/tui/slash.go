package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sant0-9/promptforge/internal/config"
	"github.com/sant0-9/promptforge/internal/document"
	"github.com/sant0-9/promptforge/internal/rag"
	"github.com/sant0-9/promptforge/internal/session"
	"github.com/sant0-9/promptforge/internal/writer"
)

func (a *App) handleInput() tea.Cmd {
	s := a.state
	input := strings.TrimSpace(s.input.Value())
	if input == "" && s.selection == nil {
		return nil
	}
	s.input.Reset()

	if strings.HasPrefix(input, "/") {
		return a.handleSlash(input)
	}

	if !s.providerReady && s.providerError != nil {
		s.setNotice("Provider unreachable: "+s.providerError.Error(), true)
		return nil
	}
	return a.startTurn(session.Message{Text: input, Selection: s.selection})
}

func (a *App) handleSlash(input string) tea.Cmd {
	s := a.state
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "/help", "/h":
		a.setView(viewHelp)

	case "/quit", "/q":
		a.quitting = true
		return tea.Quit

	case "/doc", "/d":
		a.setView(viewDocument)

	case "/settings", "/s":
		a.setView(viewSettings)

	case "/select":
		if arg == "" {
			s.selection = nil
			s.setNotice("Selection cleared.", false)
			return nil
		}
		from, to, err := parseLineRange(arg)
		if err != nil {
			s.setNotice(err.Error(), true)
			return nil
		}
		sel := s.session.SelectLines(from, to)
		if sel.Text == "" {
			s.setNotice(fmt.Sprintf("Lines %s are empty or out of range.", arg), true)
			return nil
		}
		s.selection = sel
		s.setNotice(fmt.Sprintf("Selected lines %d-%d; your next message will be about them.", from, to), false)

	case "/accept":
		a.decide(true)

	case "/discard":
		a.decide(false)

	case "/maker":
		s.config.Maker = !s.config.Maker
		s.setNotice(fmt.Sprintf("Maker mode %s.", onOff(s.config.Maker)), false)

	case "/effort":
		switch arg {
		case config.EffortLow, config.EffortMedium, config.EffortHigh:
			s.config.ReasoningEffort = arg
			s.setNotice("Reasoning effort set to "+arg+".", false)
		default:
			s.setNotice("Usage: /effort low|medium|high", true)
		}

	case "/improve":
		return a.improve(arg)

	case "/load":
		a.loadDocument(arg)

	case "/ingest":
		return a.ingest(arg)

	case "/remember":
		if arg == "" {
			s.setNotice("Usage: /remember <rule>", true)
			return nil
		}
		s.session.AddMemories(arg)
		a.save("Rule remembered for this session.")

	case "/forget":
		s.session.SetMemories(nil)
		a.save("Session rules cleared.")

	case "/notes":
		s.session.SetProjectNotes(arg)
		a.save("Project notes updated.")

	case "/snippet":
		a.saveSnippet(arg)

	case "/new":
		s.session = session.New()
		s.selection = nil
		s.lastUsage = nil
		a.save("Started a new conversation.")

	default:
		s.setNotice("Unknown command "+name+". Try /help.", true)
	}
	return nil
}

// parseLineRange parses "N" or "N-M" into a 1-based inclusive range.
func parseLineRange(arg string) (int, int, error) {
	lo, hi, found := strings.Cut(arg, "-")
	from, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil || from < 1 {
		return 0, 0, fmt.Errorf("invalid line range %q", arg)
	}
	to := from
	if found {
		to, err = strconv.Atoi(strings.TrimSpace(hi))
		if err != nil || to < from {
			return 0, 0, fmt.Errorf("invalid line range %q", arg)
		}
	}
	return from, to, nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func (a *App) save(notice string) {
	if err := a.deps.Engine.Save(context.Background(), a.state.session); err != nil {
		a.state.setNotice(err.Error(), true)
	} else {
		a.state.setNotice(notice, false)
	}
	a.refresh()
}

func (a *App) improve(arg string) tea.Cmd {
	s := a.state
	task, err := writer.ParseTask(arg)
	if err != nil {
		s.setNotice(err.Error(), true)
		return nil
	}
	if s.selection == nil {
		s.setNotice("Select some lines first with /select N-M.", true)
		return nil
	}

	a.refresh()
	s.resetLive()
	s.streaming = true
	engine, sess, sel := a.deps.Engine, s.session, s.selection
	return tea.Batch(s.spinner.Tick, func() tea.Msg {
		text, err := engine.Improve(context.Background(), sess, sel, task)
		return improveDoneMsg{text: text, err: err}
	})
}

func (a *App) loadDocument(path string) {
	s := a.state
	if path == "" {
		s.setNotice("Usage: /load <file>", true)
		return
	}
	doc, err := document.Load(context.Background(), path)
	if err != nil {
		s.setNotice(err.Error(), true)
		return
	}
	s.session.SetDocument(doc.Content)
	s.selection = nil
	a.save(fmt.Sprintf("Loaded %s (%d words) into the document.", doc.Metadata.Title, doc.Metadata.WordCount))
}

func (a *App) ingest(path string) tea.Cmd {
	s := a.state
	if path == "" {
		s.setNotice("Usage: /ingest <file>", true)
		return nil
	}
	lib, retriever := a.deps.Library, a.deps.Retriever
	if lib == nil || retriever == nil {
		s.setNotice("No knowledge base is configured.", true)
		return nil
	}
	s.setNotice("Ingesting "+path+"...", false)
	return func() tea.Msg {
		ctx := context.Background()
		doc, err := document.Load(ctx, path)
		if err != nil {
			return ingestDoneMsg{err: err}
		}
		src := doc.Source()
		retriever.Forget(src.ID)
		ingested, err := retriever.Ingest(ctx, []rag.Source{src})
		if err != nil {
			return ingestDoneMsg{err: err}
		}
		if err := lib.SaveSource(ctx, ingested[0]); err != nil {
			return ingestDoneMsg{err: err}
		}
		return ingestDoneMsg{name: src.Name, chunks: len(ingested[0].Chunks)}
	}
}

func fmtIngested(name string, chunks int) string {
	return fmt.Sprintf("Added %s to the knowledge base (%d chunks).", name, chunks)
}

func (a *App) saveSnippet(title string) {
	s := a.state
	if s.selection == nil {
		s.setNotice("Select some lines first with /select N-M.", true)
		return
	}
	if a.deps.Library == nil {
		s.setNotice("No snippet library is configured.", true)
		return
	}
	sn := session.NewSnippet(title, s.selection.Text)
	if err := a.deps.Library.SaveSnippet(context.Background(), sn); err != nil {
		s.setNotice(err.Error(), true)
		return
	}
	s.setNotice("Saved snippet \""+sn.Title+"\".", false)
}
