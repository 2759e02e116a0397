package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sant0-9/promptforge/internal/document"
	"github.com/sant0-9/promptforge/internal/rag"
	"github.com/sant0-9/promptforge/internal/session"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func printTable(out io.Writer, headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	fmt.Fprintln(out, t)
}

func ingestCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <files...>",
		Short: "Add files to the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			e, err := open(opts, false)
			if err != nil {
				return err
			}
			defer e.close()

			sources := make([]rag.Source, 0, len(args))
			for _, path := range args {
				doc, err := document.Load(ctx, path)
				if err != nil {
					return err
				}
				sources = append(sources, doc.Source())
			}

			ingested, err := e.retriever.Ingest(ctx, sources)
			if err != nil {
				return err
			}
			for _, src := range ingested {
				if err := e.store.SaveSource(ctx, src); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%d chunks)\n", src.Name, len(src.Chunks))
			}
			return nil
		},
	}
}

func sourcesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List or remove knowledge base files",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List knowledge base files",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := commandContext(cmd)
				e, err := open(opts, false)
				if err != nil {
					return err
				}
				defer e.close()

				sources, err := e.store.Sources(ctx)
				if err != nil {
					return err
				}
				if len(sources) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "The knowledge base is empty.")
					return nil
				}
				rows := make([][]string, 0, len(sources))
				for _, src := range sources {
					rows = append(rows, []string{src.ID, src.Name, strconv.Itoa(len(src.Chunks))})
				}
				printTable(cmd.OutOrStdout(), []string{"ID", "NAME", "CHUNKS"}, rows)
				return nil
			},
		},
		&cobra.Command{
			Use:   "rm <id>",
			Short: "Remove a file from the knowledge base",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := open(opts, false)
				if err != nil {
					return err
				}
				defer e.close()
				if err := e.store.DeleteSource(commandContext(cmd), args[0]); err != nil {
					return err
				}
				e.retriever.Forget(args[0])
				fmt.Fprintln(cmd.OutOrStdout(), "Removed.")
				return nil
			},
		},
	)
	return cmd
}

func rulesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage global rules applied to every conversation",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <rule>",
			Short: "Add a global rule",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := open(opts, false)
				if err != nil {
					return err
				}
				defer e.close()
				text := strings.TrimSpace(strings.Join(args, " "))
				if err := e.store.AddRule(commandContext(cmd), text); err != nil {
					return err
				}
				e.logger.Info("rule added", zap.String("rule", text))
				fmt.Fprintln(cmd.OutOrStdout(), "Rule added.")
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List global rules",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := open(opts, false)
				if err != nil {
					return err
				}
				defer e.close()
				rules, err := e.store.Rules(commandContext(cmd))
				if err != nil {
					return err
				}
				if len(rules) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No global rules.")
					return nil
				}
				rows := make([][]string, 0, len(rules))
				for _, r := range rules {
					rows = append(rows, []string{strconv.FormatInt(r.ID, 10), r.Text})
				}
				printTable(cmd.OutOrStdout(), []string{"ID", "RULE"}, rows)
				return nil
			},
		},
		&cobra.Command{
			Use:   "rm <id>",
			Short: "Remove a global rule",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid rule id %q", args[0])
				}
				e, err := open(opts, false)
				if err != nil {
					return err
				}
				defer e.close()
				if err := e.store.DeleteRule(commandContext(cmd), id); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Rule removed.")
				return nil
			},
		},
	)
	return cmd
}

func sessionCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "session",
		Aliases: []string{"sessions"},
		Short:   "Manage conversations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List conversations, most recent first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := open(opts, false)
				if err != nil {
					return err
				}
				defer e.close()
				list, err := e.store.ListSessions(commandContext(cmd))
				if err != nil {
					return err
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No conversations yet.")
					return nil
				}
				rows := make([][]string, 0, len(list))
				for _, s := range list {
					rows = append(rows, []string{s.ID, s.Title, strconv.Itoa(s.Turns), s.UpdatedAt.Format(time.DateTime)})
				}
				printTable(cmd.OutOrStdout(), []string{"ID", "TITLE", "TURNS", "UPDATED"}, rows)
				return nil
			},
		},
		&cobra.Command{
			Use:   "new",
			Short: "Start a new conversation",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := open(opts, false)
				if err != nil {
					return err
				}
				defer e.close()
				s := session.New()
				if err := e.store.SaveSession(commandContext(cmd), s); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), s.ID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show [id]",
			Short: "Print a conversation and its document",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := open(opts, false)
				if err != nil {
					return err
				}
				defer e.close()
				id := opts.sessionID
				if len(args) == 1 {
					id = args[0]
				}
				s, err := e.session(commandContext(cmd), id)
				if err != nil {
					return err
				}
				printSession(cmd.OutOrStdout(), s)
				return nil
			},
		},
		&cobra.Command{
			Use:   "rm <id>",
			Short: "Delete a conversation",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := open(opts, false)
				if err != nil {
					return err
				}
				defer e.close()
				if err := e.store.DeleteSession(commandContext(cmd), args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Deleted.")
				return nil
			},
		},
	)
	return cmd
}

func printSession(out io.Writer, s *session.Session) {
	fmt.Fprintf(out, "# %s (%s)\n\n", s.Title, s.ID)
	for _, t := range s.Turns {
		fmt.Fprintf(out, "[%s] %s\n", t.Role, t.Text)
		if t.Command != nil {
			fmt.Fprintf(out, "  -> %s (%s)\n", t.Command.Describe(), t.Command.Status)
		}
		fmt.Fprintln(out)
	}
	if len(s.Memories) > 0 {
		fmt.Fprintln(out, "## Memories")
		for _, m := range s.Memories {
			fmt.Fprintf(out, "- %s\n", m)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out, "## Document")
	if s.Document == "" {
		fmt.Fprintln(out, "(empty)")
		return
	}
	fmt.Fprintln(out, s.Document)
}

func snippetsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snippets",
		Short: "List or remove saved snippets",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List snippets, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := open(opts, false)
				if err != nil {
					return err
				}
				defer e.close()
				snippets, err := e.store.Snippets(commandContext(cmd))
				if err != nil {
					return err
				}
				if len(snippets) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No snippets.")
					return nil
				}
				rows := make([][]string, 0, len(snippets))
				for _, sn := range snippets {
					rows = append(rows, []string{sn.ID, sn.Title, sn.CreatedAt.Format(time.DateTime)})
				}
				printTable(cmd.OutOrStdout(), []string{"ID", "TITLE", "CREATED"}, rows)
				return nil
			},
		},
		&cobra.Command{
			Use:   "rm <id>",
			Short: "Delete a snippet",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := open(opts, false)
				if err != nil {
					return err
				}
				defer e.close()
				if err := e.store.DeleteSnippet(commandContext(cmd), args[0]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Deleted.")
				return nil
			},
		},
	)
	return cmd
}
