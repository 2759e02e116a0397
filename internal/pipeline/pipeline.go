// Package pipeline runs a request through a fixed sequence of agents, each
// adding a layer to a shared instruction buffer, with the last one
// synthesizing the layers and executing the request.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sant0-9/promptforge/internal/llm"
)

// Context is the background handed to the first stage.
type Context struct {
	ProjectNotes string
	// Memories are rules learned during the session.
	Memories []string
	// GlobalRules apply to every session.
	GlobalRules []string
}

// Options configures a Pipeline.
type Options struct {
	Model string
	// ContextSize is passed through to the backend; zero leaves its default.
	ContextSize int
	Effort      string
	MaxTokens   int
	// Roles defaults to DefaultRoles.
	Roles  []RoleSpec
	Logger *zap.Logger
}

// Pipeline runs requests through the configured stages.
type Pipeline struct {
	provider   llm.Provider
	opts       Options
	logger     *zap.Logger
	onProgress func(State)
	now        func() time.Time
}

// New creates a pipeline.
func New(provider llm.Provider, opts Options) *Pipeline {
	if len(opts.Roles) == 0 {
		opts.Roles = DefaultRoles()
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 4096
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		provider: provider,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// SetProgressCallback sets the function receiving a snapshot at every
// step transition.
func (p *Pipeline) SetProgressCallback(fn func(State)) {
	p.onProgress = fn
}

func (p *Pipeline) progress(s *State) {
	if p.onProgress != nil {
		p.onProgress(s.Clone())
	}
}

// Run executes every stage in order and returns the final snapshot. A
// failing stage marks itself and the run failed and stops the run; the
// error is recorded in the snapshot, not returned.
func (p *Pipeline) Run(ctx context.Context, request string, in Context) State {
	roles := p.opts.Roles
	state := &State{
		ID:        uuid.NewString(),
		Request:   request,
		Status:    StatusExecuting,
		Steps:     make([]Step, len(roles)),
		StartedAt: p.now(),
	}
	for i, r := range roles {
		state.Steps[i] = Step{Role: r.Role, Title: r.Title, Status: StepPending, Temperature: r.Temperature}
	}
	p.progress(state)

	logger := p.logger.With(zap.String("run", state.ID))
	final := len(roles) - 1

	for i, role := range roles {
		step := &state.Steps[i]
		state.Current = i

		input := p.input(i, final, request, state.Result, in)
		step.Status = StepWorking
		step.Input = input
		step.Logs = append(step.Logs, fmt.Sprintf("Agent %s activated.", role.Role))
		logger.Info("pipeline step started", zap.String("role", role.Role.String()))
		p.progress(state)

		output, err := p.call(ctx, role, input)
		if err != nil {
			step.Status = StepFailed
			step.Logs = append(step.Logs, "CRITICAL ERROR: "+err.Error())
			state.Status = StatusFailed
			state.FinishedAt = p.now()
			logger.Error("pipeline step failed", zap.String("role", role.Role.String()), zap.Error(err))
			p.progress(state)
			return state.Clone()
		}

		step.Output = output
		if i == final {
			state.Result = output
		} else {
			state.Result = appendLayer(state.Result, role.Role, output)
		}
		step.Status = StepCompleted
		step.Logs = append(step.Logs, "Layer added successfully.")
		logger.Info("pipeline step completed", zap.String("role", role.Role.String()), zap.Int("output_len", len(output)))
		p.progress(state)
	}

	state.Status = StatusCompleted
	state.FinishedAt = p.now()
	p.progress(state)
	return state.Clone()
}

func (p *Pipeline) call(ctx context.Context, role RoleSpec, input string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	req := &llm.CompletionRequest{
		Model: p.opts.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: role.Instructions},
			{Role: llm.RoleUser, Content: input},
		},
		MaxTokens:   p.opts.MaxTokens,
		Temperature: role.Temperature,
		ContextSize: p.opts.ContextSize,
	}
	llm.ApplyEffort(req, p.opts.Effort)

	resp, err := p.provider.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	out := strings.TrimSpace(resp.Content)
	if out == "" {
		return "", fmt.Errorf("%s returned an empty response", role.Role)
	}
	return out, nil
}

func (p *Pipeline) input(i, final int, request, buffer string, in Context) string {
	var b strings.Builder
	switch {
	case i == 0:
		fmt.Fprintf(&b, "USER REQUEST: %q\n\n", request)
		b.WriteString("PROJECT CONTEXT:\n")
		b.WriteString(orNone(strings.TrimSpace(in.ProjectNotes)))
		b.WriteString("\n\nLEARNED RULES:\n")
		b.WriteString(bullets(in.Memories))
		b.WriteString("\n\nGLOBAL RULES:\n")
		b.WriteString(bullets(in.GlobalRules))
		b.WriteString("\n\nStart the design phase.")
	case i == final:
		fmt.Fprintf(&b, "ORIGINAL REQUEST: %q\n\n", request)
		b.WriteString("ACCUMULATED INSTRUCTION SET:\n")
		b.WriteString(buffer)
		b.WriteString("\n\nSynthesize every layer above into one coherent instruction set, then EXECUTE the original request with it and output the final result.")
	default:
		fmt.Fprintf(&b, "ORIGINAL REQUEST: %q\n\n", request)
		b.WriteString("CURRENT INSTRUCTION SET (so far):\n")
		b.WriteString(buffer)
		b.WriteString("\n\nAdd your layer. Do not repeat what is already there.")
	}
	return b.String()
}

func appendLayer(buffer string, role Role, output string) string {
	layer := fmt.Sprintf("--- [%s LAYER] ---\n%s", role, output)
	if buffer == "" {
		return layer
	}
	return buffer + "\n\n" + layer
}

func bullets(items []string) string {
	var lines []string
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			lines = append(lines, "- "+it)
		}
	}
	if len(lines) == 0 {
		return "None"
	}
	return strings.Join(lines, "\n")
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}
