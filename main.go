package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"sheetwise/internal/agent"
	"sheetwise/internal/config"
	"sheetwise/internal/sandbox"
	"sheetwise/internal/tools"
	"sheetwise/internal/ui"
)

var rootCmd = &cobra.Command{
	Use:   "sheetwise",
	Short: "Chat with your spreadsheets",
	Long:  "sheetwise answers questions about spreadsheets by writing and running code in a sandbox. Without a subcommand it starts the interactive terminal UI.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		// The TUI owns the terminal; keep log output away from it.
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		slog.SetDefault(logger)

		a := agent.New(agent.NewOpenAIChat(cfg), newExecutor(), cfg, logger)
		p := ui.NewProgram(cfg, a)
		_, err = p.Run()
		return err
	},
}

func newExecutor() *tools.Executor {
	return &tools.Executor{
		Launch: func(ctx context.Context, lang string) (tools.Session, error) {
			return sandbox.NewSession(ctx, lang)
		},
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
