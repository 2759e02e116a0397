package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sant0-9/promptforge/internal/config"
	"github.com/sant0-9/promptforge/internal/tui"
)

func chatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive workbench (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if cfg == nil {
				cfg, err = runSetup(path)
				if err != nil || cfg == nil {
					return err
				}
			}

			e, err := newEnv(opts, cfg, path, false, true)
			if err != nil {
				return err
			}
			defer e.close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			sess, err := e.session(ctx, opts.sessionID)
			if err != nil {
				return err
			}

			app := tui.NewApp(tui.Deps{
				Config:     cfg,
				ConfigPath: path,
				Provider:   e.provider,
				Engine:     e.engine,
				Retriever:  e.retriever,
				Library:    e.store,
				Session:    sess,
				Logger:     e.logger,
			})

			e.logger.Info("chat started", zap.String("session", sess.ID))
			if _, err := tea.NewProgram(app, tea.WithAltScreen()).Run(); err != nil {
				return fmt.Errorf("run tui: %w", err)
			}
			return e.engine.Save(context.Background(), app.Session())
		},
	}
}

// runSetup runs the first-run wizard and writes the result to path. A
// cancelled wizard returns (nil, nil).
func runSetup(path string) (*config.Config, error) {
	setup := tui.NewSetup(config.DefaultConfig())
	if _, err := tea.NewProgram(setup, tea.WithAltScreen()).Run(); err != nil {
		return nil, fmt.Errorf("run setup: %w", err)
	}
	if !setup.Done() {
		fmt.Fprintln(os.Stderr, "Setup cancelled.")
		return nil, nil
	}
	cfg := setup.Config()
	if err := cfg.SaveFile(path); err != nil {
		return nil, fmt.Errorf("save config: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Configuration saved to %s\n", path)
	return cfg, nil
}
