// Package agent drives the analysis conversation: it sends the user's
// request to the model, executes the tool calls the model makes against the
// sandbox, and feeds results back until the model answers in plain text.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/openai/openai-go/v3"

	"sheetwise/internal/config"
	"sheetwise/internal/models"
	"sheetwise/internal/preview"
	"sheetwise/internal/tools"
)

const systemPrompt = `You are a data analysis expert. The user gives you a spreadsheet and a question about it; you answer by writing and running code.

Rules:
- Use the run_code tool to execute code in an isolated sandbox. Always print() the values you need to see; expressions without print produce no output.
- When the user supplies a local spreadsheet path, copy it into the sandbox with copy_file_to_sandbox before reading it.
- When your code generates files worth keeping (charts, cleaned data, reports), copy them out with copy_file_from_sandbox so the user can open them.
- Label charts in English.
- When you have the answer, reply in plain text without calling any more tools.`

// Sink receives incremental output while a request runs. Both the terminal
// trace and the TUI implement it.
type Sink interface {
	Event(models.OutputEvent)
	Action(models.ToolAction)
}

// Result is the final outcome of one request.
type Result struct {
	Answer           string
	GeneratedFiles   []string
	Iterations       int
	PromptTokens     int64
	CompletionTokens int64
}

// Agent runs analysis requests against one model and one sandbox backend.
type Agent struct {
	chat          ChatService
	exec          *tools.Executor
	model         string
	maxIterations int
	logger        *slog.Logger

	// replaced in tests
	previewFn func(path string) (string, error)
}

func New(chat ChatService, exec *tools.Executor, cfg config.Config, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		chat:          chat,
		exec:          exec,
		model:         cfg.Model,
		maxIterations: cfg.MaxIterations,
		logger:        logger,
		previewFn:     preview.Describe,
	}
}

// Run processes one request. filePath may be empty for questions that need
// no spreadsheet. Model and sandbox failures abort the request; everything
// the model should recover from flows back to it as tool results.
func (a *Agent) Run(ctx context.Context, request, filePath string, sink Sink) (*Result, error) {
	history := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(a.buildUserMessage(ctx, request, filePath, sink)),
	}

	var result Result
	for {
		result.Iterations++

		resp, err := a.chat.Complete(ctx, openai.ChatCompletionNewParams{
			Model:    a.model,
			Messages: history,
			Tools:    tools.Definitions,
		})
		if err != nil {
			return nil, fmt.Errorf("model call: %w", err)
		}
		result.PromptTokens += resp.Usage.PromptTokens
		result.CompletionTokens += resp.Usage.CompletionTokens

		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("empty response from model")
		}
		choice := resp.Choices[0]
		a.logger.Debug("model round",
			"iteration", result.Iterations,
			"tool_calls", len(choice.Message.ToolCalls),
			"prompt_tokens", resp.Usage.PromptTokens,
			"completion_tokens", resp.Usage.CompletionTokens)
		history = append(history, choice.Message.ToParam())

		if strings.TrimSpace(choice.Message.Content) != "" {
			sink.Event(models.OutputEvent{Kind: models.EventNarration, Text: choice.Message.Content})
		}

		if len(choice.Message.ToolCalls) == 0 {
			result.Answer = choice.Message.Content
			break
		}

		if a.maxIterations > 0 && result.Iterations >= a.maxIterations {
			a.logger.Warn("iteration cap reached", "iterations", result.Iterations)
			result.Answer = strings.TrimSpace(choice.Message.Content +
				fmt.Sprintf("\n\n*[Stopped after %d tool iterations]*", a.maxIterations))
			break
		}

		for _, tc := range choice.Message.ToolCalls {
			a.logger.Debug("tool call", "name", tc.Function.Name, "id", tc.ID)

			toolResult, err := a.dispatch(ctx, tc, sink, &result.GeneratedFiles)
			if err != nil {
				return nil, err
			}
			history = append(history, openai.ToolMessage(toolResult, tc.ID))
			sink.Action(models.ToolAction{
				Name:    tc.Function.Name,
				Summary: tools.Summary(tc.Function.Name, tc.Function.Arguments, toolResult),
			})
		}
	}

	if len(result.GeneratedFiles) > 0 {
		result.Answer = appendFileTrailer(result.Answer, result.GeneratedFiles)
		sink.Event(models.OutputEvent{Kind: models.EventFileList, Files: result.GeneratedFiles})
	}
	return &result, nil
}

// dispatch executes one tool call. run_code failures are real errors; the
// copy tools always come back as result text the model can react to.
func (a *Agent) dispatch(ctx context.Context, tc openai.ChatCompletionMessageToolCallUnion, sink Sink, generated *[]string) (string, error) {
	switch tc.Function.Name {
	case tools.NameRunCode:
		var args tools.RunCodeArgs
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			return "", fmt.Errorf("run_code arguments: %w", err)
		}
		sink.Event(models.OutputEvent{Kind: models.EventCode, Lang: args.Lang, Text: args.Code})
		out, err := a.exec.RunCode(ctx, args)
		if err != nil {
			return "", err
		}
		sink.Event(models.OutputEvent{Kind: models.EventResult, Text: out})
		return out, nil

	case tools.NameCopyToSandbox:
		var args tools.CopyArgs
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			return "", fmt.Errorf("copy_file_to_sandbox arguments: %w", err)
		}
		result := a.exec.CopyToSandbox(ctx, args)
		sink.Event(models.OutputEvent{Kind: models.EventInfo, Text: result})
		return result, nil

	case tools.NameCopyFromSandbox:
		var args tools.CopyArgs
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			return "", fmt.Errorf("copy_file_from_sandbox arguments: %w", err)
		}
		result, ok := a.exec.CopyFromSandbox(ctx, args)
		if ok {
			*generated = append(*generated, args.LocalPath)
		}
		sink.Event(models.OutputEvent{Kind: models.EventInfo, Text: result})
		return result, nil

	default:
		return fmt.Sprintf("unknown tool: %s", tc.Function.Name), nil
	}
}

// buildUserMessage stages the spreadsheet into the sandbox and attaches its
// staged path and a data preview to the request. A preview failure degrades
// to the path alone; the model can still inspect the data itself.
func (a *Agent) buildUserMessage(ctx context.Context, request, filePath string, sink Sink) string {
	if filePath == "" {
		return request
	}

	staged := a.exec.CopyToSandbox(ctx, tools.CopyArgs{LocalPath: filePath, SandboxPath: "/sandbox/"})
	sink.Event(models.OutputEvent{Kind: models.EventInfo, Text: staged})

	sandboxPath := "/sandbox/" + filepath.Base(filePath)
	msg := fmt.Sprintf("%s\n\nThe spreadsheet %s has been staged in the sandbox at %s.", request, filepath.Base(filePath), sandboxPath)

	summary, err := a.previewFn(filePath)
	if err != nil {
		a.logger.Warn("preview failed", "file", filePath, "error", err)
		sink.Event(models.OutputEvent{
			Kind: models.EventInfo,
			Text: fmt.Sprintf("Could not preview %s: %v", filepath.Base(filePath), err),
		})
		return msg
	}
	return msg + "\n\nData preview:\n" + summary
}

func appendFileTrailer(answer string, files []string) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimRight(answer, "\n"))
	sb.WriteString("\n\nGenerated files:\n")
	for _, f := range files {
		fmt.Fprintf(&sb, "- %s\n", f)
	}
	return sb.String()
}
