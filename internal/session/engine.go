package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sant0-9/promptforge/internal/command"
	"github.com/sant0-9/promptforge/internal/config"
	"github.com/sant0-9/promptforge/internal/intent"
	"github.com/sant0-9/promptforge/internal/llm"
	"github.com/sant0-9/promptforge/internal/pipeline"
	"github.com/sant0-9/promptforge/internal/prompts"
	"github.com/sant0-9/promptforge/internal/rag"
	"github.com/sant0-9/promptforge/internal/stream"
	"github.com/sant0-9/promptforge/internal/writer"
)

// Store persists sessions after every mutation.
type Store interface {
	SaveSession(ctx context.Context, s *Session) error
}

// Knowledge supplies the shared context every turn sees.
type Knowledge interface {
	Sources(ctx context.Context) ([]rag.Source, error)
	GlobalRules(ctx context.Context) ([]string, error)
}

// Message is a user turn to send.
type Message struct {
	Text string
	// Selection is the part of the document the message is about.
	Selection *command.Selection
}

// Update is delivered while a turn is in flight. Exactly one of Event and
// Pipeline is set.
type Update struct {
	TurnID   string
	Event    stream.Event
	Pipeline *pipeline.State
}

// Engine drives turns: it gathers context, talks to the model and records
// the result on the session.
type Engine struct {
	provider  llm.Provider
	cfg       *config.Config
	retriever *rag.Retriever
	knowledge Knowledge
	store     Store
	logger    *zap.Logger
}

// NewEngine creates an engine. knowledge and store may be nil.
func NewEngine(provider llm.Provider, cfg *config.Config, retriever *rag.Retriever, knowledge Knowledge, store Store, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retriever == nil {
		retriever = rag.NewRetriever(cfg.Retrieval, logger)
	}
	return &Engine{
		provider:  provider,
		cfg:       cfg,
		retriever: retriever,
		knowledge: knowledge,
		store:     store,
		logger:    logger,
	}
}

// Send records msg on s, runs it through the chat stream or, in maker mode,
// the pipeline, and returns the assistant turn. Transport failures become a
// failed turn rather than an error; the returned error reports cancellation
// or a failure to save.
func (e *Engine) Send(ctx context.Context, s *Session, msg Message, onUpdate func(Update)) (*Turn, error) {
	if strings.TrimSpace(msg.Text) == "" && msg.Selection == nil {
		return nil, ErrEmptyMessage
	}
	if onUpdate == nil {
		onUpdate = func(Update) {}
	}

	rules, sources, err := e.context(ctx)
	if err != nil {
		return nil, err
	}

	s.addTurn(Turn{Role: RoleUser, Text: msg.Text, Selection: msg.Selection})

	var turn Turn
	var runErr error
	if e.cfg.Maker {
		turn = e.runPipeline(ctx, s, msg, rules, onUpdate)
	} else {
		turn, runErr = e.chat(ctx, s, msg, rules, sources, onUpdate)
	}

	t := s.addTurn(turn)
	// A cancelled turn is still recorded.
	if err := e.Save(context.WithoutCancel(ctx), s); err != nil {
		if runErr != nil {
			e.logger.Error("save cancelled turn", zap.String("session", s.ID), zap.Error(err))
			return t, runErr
		}
		return t, err
	}
	return t, runErr
}

func (e *Engine) context(ctx context.Context) ([]string, []rag.Source, error) {
	if e.knowledge == nil {
		return nil, nil, nil
	}
	rules, err := e.knowledge.GlobalRules(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load global rules: %w", err)
	}
	sources, err := e.knowledge.Sources(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load sources: %w", err)
	}
	return rules, sources, nil
}

func (e *Engine) chat(ctx context.Context, s *Session, msg Message, rules []string, sources []rag.Source, onUpdate func(Update)) (Turn, error) {
	docNonEmpty := strings.TrimSpace(s.Document) != ""
	kind := intent.Classify(msg.Text, docNonEmpty)

	var snippet string
	if msg.Selection != nil {
		snippet = msg.Selection.Text
	}

	system := prompts.Assemble(prompts.Input{
		Base:         prompts.Base(false),
		GlobalRules:  rules,
		SessionRules: s.Memories,
		ProjectNotes: s.ProjectNotes,
		Retrieved:    e.retriever.Retrieve(msg.Text, sources),
		Document:     s.Document,
		Snippet:      snippet,
		Intent:       kind,
	})

	req := &llm.CompletionRequest{
		Model:       e.cfg.Model,
		Messages:    append([]llm.Message{{Role: llm.RoleSystem, Content: system}}, e.history(s, msg)...),
		Temperature: e.cfg.Temperature,
		ContextSize: e.cfg.ContextSize,
	}
	llm.ApplyEffort(req, e.cfg.ReasoningEffort)

	e.logger.Info("sending turn",
		zap.String("session", s.ID),
		zap.String("intent", kind.String()),
		zap.Int("messages", len(req.Messages)),
		zap.Bool("selection", msg.Selection != nil))

	turn := Turn{ID: newID(), Role: RoleAssistant}

	in := stream.New(stream.OptionsFromConfig(e.cfg, e.logger), stream.Target{
		Document:  s.Document,
		Selection: msg.Selection,
	})
	err := stream.Run(ctx, e.provider, req, in, func(ev stream.Event) {
		onUpdate(Update{TurnID: turn.ID, Event: ev})
	})

	switch {
	case err == nil:
	case errors.Is(err, llm.ErrAborted):
		e.logger.Info("turn cancelled", zap.String("session", s.ID))
	default:
		e.logger.Error("transport error", zap.String("session", s.ID), zap.Error(err))
		turn.Text = fmt.Sprintf("Error: %v.", err)
		turn.Thinking = in.Thinking()
		turn.Failed = true
		return turn, nil
	}

	turn.Text = in.Display()
	turn.Thinking = in.Thinking()
	turn.Command = in.Command()
	turn.Usage = in.Usage()
	turn.Aborted = in.Phase() == stream.Aborted

	if added := s.AddMemories(command.Memories(in.Answer())...); len(added) > 0 {
		e.logger.Info("session memories captured", zap.Strings("memories", added))
	}
	return turn, err
}

// history converts the transcript into model messages, windowed to the
// configured limit. The current message carries its selection in a fence.
func (e *Engine) history(s *Session, msg Message) []llm.Message {
	var out []llm.Message
	for i, t := range s.Turns {
		if t.Failed || (strings.TrimSpace(t.Text) == "" && t.Selection == nil) {
			continue
		}
		role := llm.RoleAssistant
		if t.Role == RoleUser {
			role = llm.RoleUser
		}
		text := t.Text
		if i == len(s.Turns)-1 && t.Role == RoleUser {
			text = userText(msg)
		}
		out = append(out, llm.Message{Role: role, Content: text})
	}
	return prompts.WindowHistory(out, e.cfg.HistoryLimit)
}

func userText(msg Message) string {
	if msg.Selection == nil {
		return msg.Text
	}
	return msg.Text + "\n\n```\n" + msg.Selection.Text + "\n```"
}

func (e *Engine) runPipeline(ctx context.Context, s *Session, msg Message, rules []string, onUpdate func(Update)) Turn {
	turn := Turn{ID: newID(), Role: RoleAssistant}

	pl := pipeline.New(e.provider, pipeline.Options{
		Model:       e.cfg.Model,
		ContextSize: e.cfg.ContextSize / 2,
		Effort:      e.cfg.ReasoningEffort,
		Logger:      e.logger,
	})
	pl.SetProgressCallback(func(st pipeline.State) {
		onUpdate(Update{TurnID: turn.ID, Pipeline: &st})
	})

	state := pl.Run(ctx, userText(msg), pipeline.Context{
		ProjectNotes: s.ProjectNotes,
		Memories:     s.Memories,
		GlobalRules:  rules,
	})
	s.Pipeline = &state
	turn.PipelineID = state.ID

	if step, failed := state.Failed(); failed {
		turn.Failed = true
		turn.Text = fmt.Sprintf("Pipeline failed at %s: %s", step.Title, step.Logs[len(step.Logs)-1])
		return turn
	}

	// The final stage may hand back its prompt as a full-rewrite command.
	if cmd, _ := command.ExtractNext(state.Result, 0); cmd != nil {
		stream.Target{Document: s.Document, Selection: msg.Selection}.Mark(cmd)
		turn.Command = cmd
	}
	turn.Text = command.Display(state.Result)
	if turn.Text == "" && turn.Command != nil {
		turn.Text = "The pipeline produced a new version of the prompt."
	}
	s.AddMemories(command.Memories(state.Result)...)
	return turn
}

// Accept applies a pending command and saves the session.
func (e *Engine) Accept(ctx context.Context, s *Session, turnID string) (*command.Command, error) {
	cmd, err := s.Accept(turnID)
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.String("session", s.ID),
		zap.String("kind", string(cmd.Op.Kind())),
		zap.Bool("snippet", cmd.TargetsSnippet()),
	}
	if er, ok := cmd.Op.(command.EditRange); ok {
		fields = append(fields, zap.Int("start", er.Start), zap.Int("end", er.End))
	}
	e.logger.Info("command applied", fields...)

	return cmd, e.Save(ctx, s)
}

// Discard drops a pending command and saves the session.
func (e *Engine) Discard(ctx context.Context, s *Session, turnID string) (*command.Command, error) {
	cmd, err := s.Discard(turnID)
	if err != nil {
		return nil, err
	}
	e.logger.Info("command discarded", zap.String("session", s.ID), zap.String("kind", string(cmd.Op.Kind())))
	return cmd, e.Save(ctx, s)
}

// Improve rewrites the selection with a one-shot call and splices the
// result back at the selection's offsets.
func (e *Engine) Improve(ctx context.Context, s *Session, sel *command.Selection, task writer.Task) (string, error) {
	w := writer.NewWriter(e.provider, e.cfg.Model, e.cfg.Temperature, e.cfg.ContextSize/2, e.cfg.ReasoningEffort)
	improved, err := w.Improve(ctx, sel.Text, task)
	if err != nil {
		return "", err
	}
	s.ReplaceSelection(sel, improved)
	return improved, e.Save(ctx, s)
}

// Save persists s if the engine has a store.
func (e *Engine) Save(ctx context.Context, s *Session) error {
	if e.store == nil {
		return nil
	}
	if err := e.store.SaveSession(ctx, s); err != nil {
		return fmt.Errorf("save session %s: %w", s.ID, err)
	}
	return nil
}

// EstimateTokens approximates the size of the next request when the
// backend has not reported counts.
func EstimateTokens(s *Session, rules []string, sources []rag.Source) int {
	var b strings.Builder
	b.WriteString(s.ProjectNotes)
	for _, m := range s.Memories {
		b.WriteString(m)
	}
	for _, r := range rules {
		b.WriteString(r)
	}
	b.WriteString(s.Document)
	for _, src := range sources {
		b.WriteString(src.Content)
	}
	for _, t := range s.Turns {
		b.WriteString(t.Text)
	}
	return prompts.EstimateTokens(b.String())
}
