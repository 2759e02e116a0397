package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sant0-9/promptforge/internal/command"
	"github.com/sant0-9/promptforge/internal/document"
	"github.com/sant0-9/promptforge/internal/llm"
	"github.com/sant0-9/promptforge/internal/pipeline"
	"github.com/sant0-9/promptforge/internal/session"
	"github.com/sant0-9/promptforge/internal/stream"
	"github.com/sant0-9/promptforge/internal/writer"
)

type askOptions struct {
	apply    bool
	docPath  string
	lines    string
	thinking bool
}

func (o *askOptions) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.apply, "apply", false, "Apply the proposed edit to the document")
	cmd.Flags().StringVarP(&o.docPath, "doc", "d", "", "Replace the session document with this file first")
	cmd.Flags().StringVar(&o.lines, "select", "", "Attach document lines N-M as the selection")
}

func askCmd(opts *rootOptions) *cobra.Command {
	o := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Send one message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTurn(cmd, opts, o, strings.Join(args, " "), false)
		},
	}
	o.register(cmd)
	cmd.Flags().BoolVar(&o.thinking, "thinking", false, "Print the model's reasoning to stderr")
	return cmd
}

func makerCmd(opts *rootOptions) *cobra.Command {
	o := &askOptions{}
	cmd := &cobra.Command{
		Use:   "maker <request>",
		Short: "Run a request through the four-agent pipeline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTurn(cmd, opts, o, strings.Join(args, " "), true)
		},
	}
	o.register(cmd)
	return cmd
}

func runTurn(cmd *cobra.Command, opts *rootOptions, o *askOptions, text string, maker bool) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := open(opts, true)
	if err != nil {
		return err
	}
	defer e.close()
	if maker {
		e.cfg.Maker = true
	}

	sess, err := e.session(ctx, opts.sessionID)
	if err != nil {
		return err
	}
	msg, err := prepare(ctx, sess, o, text)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	p := &printer{out: out, errOut: cmd.ErrOrStderr(), thinking: o.thinking}
	turn, err := e.engine.Send(ctx, sess, msg, p.update)
	p.finish(turn)
	if err != nil {
		if errors.Is(err, llm.ErrAborted) {
			return errors.New("interrupted")
		}
		return err
	}
	if turn.Failed {
		return errors.New("turn failed")
	}

	if turn.Command == nil {
		return nil
	}
	printCommand(out, turn.Command)
	if !o.apply {
		fmt.Fprintf(out, "\nRun `promptforge session show` to review, or pass --apply.\n")
		return nil
	}
	if _, err := e.engine.Accept(ctx, sess, turn.ID); err != nil {
		return fmt.Errorf("apply: %w", err)
	}
	fmt.Fprintln(out, "\nApplied.")
	return nil
}

// prepare loads --doc into the session and builds the message, attaching
// the --select lines.
func prepare(ctx context.Context, sess *session.Session, o *askOptions, text string) (session.Message, error) {
	msg := session.Message{Text: text}
	if o.docPath != "" {
		doc, err := document.Load(ctx, o.docPath)
		if err != nil {
			return msg, err
		}
		sess.SetDocument(doc.Content)
	}
	if o.lines != "" {
		from, to, err := parseLines(o.lines)
		if err != nil {
			return msg, err
		}
		msg.Selection = sess.SelectLines(from, to)
	}
	return msg, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// printer writes a turn to the terminal as it streams. Answer text is
// shown with command tags stripped, so only the growth of the display text
// is written.
type printer struct {
	out      io.Writer
	errOut   io.Writer
	thinking bool

	raw      strings.Builder
	printed  string
	lastStep int
}

func (p *printer) update(u session.Update) {
	if u.Pipeline != nil {
		p.step(*u.Pipeline)
		return
	}
	switch ev := u.Event.(type) {
	case stream.ThoughtDelta:
		if p.thinking {
			fmt.Fprint(p.errOut, ev.Text)
		}
	case stream.TextDelta:
		p.raw.WriteString(ev.Text)
		display := command.LiveDisplay(p.raw.String())
		if strings.HasPrefix(display, p.printed) {
			fmt.Fprint(p.out, display[len(p.printed):])
			p.printed = display
		}
	}
}

func (p *printer) step(st pipeline.State) {
	for i := p.lastStep; i < len(st.Steps); i++ {
		step := st.Steps[i]
		switch step.Status {
		case pipeline.StepWorking:
			fmt.Fprintf(p.errOut, "[%d/%d] %s working...\n", i+1, len(st.Steps), step.Title)
			return
		case pipeline.StepCompleted:
			fmt.Fprintf(p.errOut, "[%d/%d] %s done\n", i+1, len(st.Steps), step.Title)
			p.lastStep = i + 1
		case pipeline.StepFailed:
			fmt.Fprintf(p.errOut, "[%d/%d] %s failed\n", i+1, len(st.Steps), step.Title)
			p.lastStep = i + 1
		default:
			return
		}
	}
}

func (p *printer) finish(turn *session.Turn) {
	if turn == nil {
		return
	}
	switch {
	case strings.HasPrefix(turn.Text, p.printed):
		fmt.Fprint(p.out, turn.Text[len(p.printed):])
	default:
		fmt.Fprint(p.out, "\n"+turn.Text)
	}
	fmt.Fprintln(p.out)
}

func printCommand(out io.Writer, cmd *command.Command) {
	fmt.Fprintf(out, "\nProposed edit: %s\n", cmd.Describe())
	for _, l := range nonEmptyLines(cmd.Original) {
		fmt.Fprintf(out, "- %s\n", l)
	}
	for _, l := range nonEmptyLines(cmd.Op.Content()) {
		fmt.Fprintf(out, "+ %s\n", l)
	}
}

func nonEmptyLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func improveCmd(opts *rootOptions) *cobra.Command {
	var lines, docPath string
	cmd := &cobra.Command{
		Use:   "improve <rewrite|shorten|expand|format>",
		Short: "Improve a range of document lines with a one-shot call",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := writer.ParseTask(args[0])
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, err := open(opts, true)
			if err != nil {
				return err
			}
			defer e.close()

			sess, err := e.session(ctx, opts.sessionID)
			if err != nil {
				return err
			}
			msg, err := prepare(ctx, sess, &askOptions{docPath: docPath, lines: lines}, "")
			if err != nil {
				return err
			}
			sel := msg.Selection
			if sel == nil {
				sel = sess.Select(0, len(sess.Document))
			}
			if strings.TrimSpace(sel.Text) == "" {
				return errors.New("nothing to improve: the selection is empty")
			}

			improved, err := e.engine.Improve(ctx, sess, sel, task)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), improved)
			return nil
		},
	}
	cmd.Flags().StringVar(&lines, "lines", "", "Lines N-M to improve (default: whole document)")
	cmd.Flags().StringVarP(&docPath, "doc", "d", "", "Replace the session document with this file first")
	return cmd
}

// parseLines parses "N" or "N-M" into a 1-based inclusive range.
func parseLines(arg string) (int, int, error) {
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
