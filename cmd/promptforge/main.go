// Package main is the promptforge binary: an interactive workbench for
// writing prompts with a local or hosted model.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

const appName = "promptforge"

type rootOptions struct {
	configPath string
	logLevel   string
	sessionID  string
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	opts := &rootOptions{}

	chat := chatCmd(opts)
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Prompt engineering workbench",
		Long: `PromptForge helps you write system prompts together with a language model.

The model proposes edits to your document; you accept or discard each one.
Uploaded files form a knowledge base that is searched on every turn, and
maker mode runs a four-agent pipeline that designs, implements, audits and
polishes a prompt.`,
		SilenceUsage: true,
		RunE:         chat.RunE,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file path (default ~/.config/promptforge/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVarP(&opts.sessionID, "session", "s", "", "Session id (default: most recent)")

	cmd.AddCommand(
		chat,
		askCmd(opts),
		makerCmd(opts),
		improveCmd(opts),
		ingestCmd(opts),
		sourcesCmd(opts),
		rulesCmd(opts),
		sessionCmd(opts),
		snippetsCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("%s version %s (build: %s)\n", appName, version, buildTime)
			},
		},
	)

	return cmd
}
