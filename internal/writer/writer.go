// Package writer improves a selected piece of a document with a one-shot
// model call.
package writer

import (
	"context"
	"fmt"
	"strings"

	"github.com/sant0-9/promptforge/internal/llm"
)

// Task is the kind of improvement requested.
type Task string

const (
	Rewrite Task = "rewrite"
	Shorten Task = "shorten"
	Expand  Task = "expand"
	Format  Task = "format"
)

// Tasks lists the supported tasks.
var Tasks = []Task{Rewrite, Shorten, Expand, Format}

// ParseTask validates a task name.
func ParseTask(s string) (Task, error) {
	t := Task(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Tasks {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown task %q (want rewrite, shorten, expand or format)", s)
}

const systemPrompt = "You are an expert editor and technical writer. Reply ONLY with the improved text, without any comment before or after it."

var instructions = map[Task]string{
	Rewrite: "Rewrite the following text so it is clearer, more precise and more professional:",
	Shorten: "Condense the following text, keeping only the essential information:",
	Expand:  "Expand the following text with more detail, examples and explanation:",
	Format:  "Reformat the following text to improve its readability and structure:",
}

// Writer runs improvement tasks.
type Writer struct {
	provider    llm.Provider
	model       string
	temperature float64
	contextSize int
	effort      string
}

// NewWriter creates a writer. contextSize is the budget for one-shot calls.
func NewWriter(provider llm.Provider, model string, temperature float64, contextSize int, effort string) *Writer {
	return &Writer{
		provider:    provider,
		model:       model,
		temperature: temperature,
		contextSize: contextSize,
		effort:      effort,
	}
}

// Improve returns text improved according to task. Reasoning blocks are
// already stripped by the transport.
func (w *Writer) Improve(ctx context.Context, text string, task Task) (string, error) {
	instr, ok := instructions[task]
	if !ok {
		return "", fmt.Errorf("unknown task %q", task)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("nothing to %s", task)
	}

	req := &llm.CompletionRequest{
		Model: w.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: instr + "\n\n" + text},
		},
		MaxTokens:   4096,
		Temperature: w.temperature,
		ContextSize: w.contextSize,
	}
	llm.ApplyEffort(req, w.effort)

	resp, err := w.provider.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s selection: %w", task, err)
	}

	out := strings.TrimSpace(resp.Content)
	if out == "" {
		return "", fmt.Errorf("%s selection: empty response", task)
	}
	return out, nil
}
