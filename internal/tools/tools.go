package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/openai/openai-go/v3"
)

const (
	NameRunCode         = "run_code"
	NameCopyToSandbox   = "copy_file_to_sandbox"
	NameCopyFromSandbox = "copy_file_from_sandbox"
)

// EmptyOutputNotice replaces empty sandbox output so the model learns to
// print its results instead of re-running the same silent code.
const EmptyOutputNotice = "The code ran successfully but produced no output. Make sure to print() anything you want to see."

var Languages = []string{"python", "java", "javascript", "cpp", "go", "ruby"}

var Definitions = []openai.ChatCompletionToolUnionParam{
	openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
		Name:        NameRunCode,
		Description: openai.String("Run code in an isolated sandbox and return its combined stdout/stderr"),
		Parameters: openai.FunctionParameters{
			"type": "object",
			"properties": map[string]interface{}{
				"lang":      map[string]interface{}{"type": "string", "enum": Languages},
				"code":      map[string]interface{}{"type": "string"},
				"libraries": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
			},
			"required": []string{"lang", "code"},
		},
	}),
	openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
		Name:        NameCopyToSandbox,
		Description: openai.String("Copy a local file into the sandbox; directory destinations keep the local file name"),
		Parameters: openai.FunctionParameters{
			"type": "object",
			"properties": map[string]interface{}{
				"local_path":   map[string]interface{}{"type": "string"},
				"sandbox_path": map[string]interface{}{"type": "string"},
			},
			"required": []string{"local_path", "sandbox_path"},
		},
	}),
	openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
		Name:        NameCopyFromSandbox,
		Description: openai.String("Copy a file out of the sandbox to a local path"),
		Parameters: openai.FunctionParameters{
			"type": "object",
			"properties": map[string]interface{}{
				"sandbox_path": map[string]interface{}{"type": "string"},
				"local_path":   map[string]interface{}{"type": "string"},
			},
			"required": []string{"sandbox_path", "local_path"},
		},
	}),
}

// RunCodeArgs matches the run_code tool schema.
type RunCodeArgs struct {
	Lang      string   `json:"lang"`
	Code      string   `json:"code"`
	Libraries []string `json:"libraries"`
}

// CopyArgs matches both copy tool schemas.
type CopyArgs struct {
	LocalPath   string `json:"local_path"`
	SandboxPath string `json:"sandbox_path"`
}

// Session is one live sandbox the executor can drive. Satisfied by
// *sandbox.Session; tests substitute in-memory fakes.
type Session interface {
	Run(ctx context.Context, code string, libraries []string) (string, error)
	CopyToRuntime(ctx context.Context, localPath, remotePath string) error
	CopyFromRuntime(ctx context.Context, remotePath, localPath string) error
	Close(ctx context.Context) error
}

// LaunchFunc starts a fresh sandbox session for a language.
type LaunchFunc func(ctx context.Context, lang string) (Session, error)

// Executor binds the tool surface to a sandbox backend. Every call gets its
// own session, torn down before the call returns.
type Executor struct {
	Launch LaunchFunc
}

// RunCode executes code in a fresh sandbox. Failures to obtain or drive the
// sandbox are real errors and abort the request; code that merely crashes
// inside the sandbox comes back as output.
func (e *Executor) RunCode(ctx context.Context, args RunCodeArgs) (string, error) {
	if args.Code == "" {
		return "", fmt.Errorf("run_code: empty code")
	}
	session, err := e.Launch(ctx, args.Lang)
	if err != nil {
		return "", err
	}
	defer session.Close(ctx)

	out, err := session.Run(ctx, args.Code, args.Libraries)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return EmptyOutputNotice, nil
	}
	return out, nil
}

// CopyToSandbox stages a local file into a fresh sandbox. It never returns
// an error: failures become tool result text the model can react to.
func (e *Executor) CopyToSandbox(ctx context.Context, args CopyArgs) string {
	dest := args.SandboxPath
	if dest == "" {
		dest = "/sandbox/"
	}
	session, err := e.Launch(ctx, "python")
	if err != nil {
		return fmt.Sprintf("Failed to copy file: %v", err)
	}
	defer session.Close(ctx)

	if err := session.CopyToRuntime(ctx, args.LocalPath, dest); err != nil {
		return fmt.Sprintf("Failed to copy file: %v", err)
	}
	return fmt.Sprintf("Copied %s to sandbox path %s", args.LocalPath, dest)
}

// CopyFromSandbox pulls a file out of a fresh sandbox. Like CopyToSandbox it
// never returns an error; ok reports whether the local file was written.
func (e *Executor) CopyFromSandbox(ctx context.Context, args CopyArgs) (result string, ok bool) {
	session, err := e.Launch(ctx, "python")
	if err != nil {
		return fmt.Sprintf("Failed to copy file: %v", err), false
	}
	defer session.Close(ctx)

	if err := session.CopyFromRuntime(ctx, args.SandboxPath, args.LocalPath); err != nil {
		return fmt.Sprintf("Failed to copy file: %v", err), false
	}
	return fmt.Sprintf("Copied sandbox file %s to %s", args.SandboxPath, args.LocalPath), true
}

// Summary renders a short action chip for a completed tool call.
func Summary(name string, argsJSON string, result string) string {
	switch name {
	case NameRunCode:
		var args RunCodeArgs
		json.Unmarshal([]byte(argsJSON), &args)
		lines := strings.Count(args.Code, "\n") + 1
		return fmt.Sprintf("RUN %s (%d lines)", args.Lang, lines)
	case NameCopyToSandbox:
		var args CopyArgs
		json.Unmarshal([]byte(argsJSON), &args)
		if strings.HasPrefix(result, "Failed") {
			return fmt.Sprintf("PUSH %s (failed)", filepath.Base(args.LocalPath))
		}
		return fmt.Sprintf("PUSH %s", filepath.Base(args.LocalPath))
	case NameCopyFromSandbox:
		var args CopyArgs
		json.Unmarshal([]byte(argsJSON), &args)
		if strings.HasPrefix(result, "Failed") {
			return fmt.Sprintf("PULL %s (failed)", filepath.Base(args.SandboxPath))
		}
		return fmt.Sprintf("PULL %s", filepath.Base(args.SandboxPath))
	default:
		return fmt.Sprintf("%s called", strings.ToUpper(name))
	}
}
