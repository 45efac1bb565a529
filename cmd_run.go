package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"sheetwise/internal/agent"
	"sheetwise/internal/config"
	"sheetwise/internal/models"
)

var (
	runFile    string
	runVerbose bool
)

var runCmd = &cobra.Command{
	Use:   "run [request]",
	Short: "Run one analysis request without the TUI",
	Long:  "Runs a single request and prints the analysis trace to stdout. Missing request or file path are prompted for on stdin. Exits non-zero only when the supplied spreadsheet path does not exist.",
	RunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if runVerbose {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

		reader := bufio.NewReader(cmd.InOrStdin())
		file := runFile
		if !cmd.Flags().Changed("file") {
			file = promptLine(reader, "Spreadsheet path (blank for none): ")
		}
		if file != "" {
			if _, err := os.Stat(file); err != nil {
				return fmt.Errorf("spreadsheet not found: %s", file)
			}
		}

		request := strings.TrimSpace(strings.Join(args, " "))
		if request == "" {
			request = promptLine(reader, "Request: ")
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return nil
		}

		a := agent.New(agent.NewOpenAIChat(cfg), newExecutor(), cfg, logger)
		result, err := a.Run(cmd.Context(), request, file, traceSink{})
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return nil
		}
		logger.Debug("request finished",
			"iterations", result.Iterations,
			"prompt_tokens", result.PromptTokens,
			"completion_tokens", result.CompletionTokens)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "spreadsheet to analyze")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(runCmd)
}

func promptLine(reader *bufio.Reader, prompt string) string {
	fmt.Print(prompt)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

// traceSink prints the analysis trace to stdout as it happens.
type traceSink struct{}

func (traceSink) Event(e models.OutputEvent) {
	switch e.Kind {
	case models.EventNarration:
		fmt.Println(e.Text)
		fmt.Println()
	case models.EventCode:
		fmt.Printf("--- code (%s) ---\n%s\n", e.Lang, strings.TrimRight(e.Text, "\n"))
	case models.EventResult:
		fmt.Printf("--- output ---\n%s\n\n", strings.TrimRight(e.Text, "\n"))
	case models.EventInfo:
		fmt.Printf("[info] %s\n", e.Text)
	case models.EventFileList:
		fmt.Println("Generated files:")
		for _, f := range e.Files {
			fmt.Println("-", f)
		}
	}
}

func (traceSink) Action(a models.ToolAction) {
	fmt.Printf("[%s]\n", a.Summary)
}
