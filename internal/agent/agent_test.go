package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/openai/openai-go/v3"

	"sheetwise/internal/config"
	"sheetwise/internal/models"
	"sheetwise/internal/tools"
)

type scriptedChat struct {
	replies []*openai.ChatCompletion
	err     error
	calls   []openai.ChatCompletionNewParams
}

func (c *scriptedChat) Complete(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	c.calls = append(c.calls, params)
	if c.err != nil {
		return nil, c.err
	}
	if len(c.calls) > len(c.replies) {
		return nil, fmt.Errorf("unexpected model call %d", len(c.calls))
	}
	return c.replies[len(c.calls)-1], nil
}

type recordSink struct {
	events  []models.OutputEvent
	actions []models.ToolAction
}

func (s *recordSink) Event(e models.OutputEvent) { s.events = append(s.events, e) }
func (s *recordSink) Action(a models.ToolAction) { s.actions = append(s.actions, a) }

type stubSession struct {
	runOut  string
	runErr  error
	copyErr error
}

func (s *stubSession) Run(ctx context.Context, code string, libraries []string) (string, error) {
	return s.runOut, s.runErr
}
func (s *stubSession) CopyToRuntime(ctx context.Context, localPath, remotePath string) error {
	return s.copyErr
}
func (s *stubSession) CopyFromRuntime(ctx context.Context, remotePath, localPath string) error {
	return s.copyErr
}
func (s *stubSession) Close(ctx context.Context) error { return nil }

func testAgent(chat ChatService, session *stubSession) *Agent {
	exec := &tools.Executor{Launch: func(ctx context.Context, lang string) (tools.Session, error) {
		return session, nil
	}}
	cfg := config.Config{Model: "qwen-max", MaxIterations: config.DefaultMaxIterations}
	a := New(chat, exec, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	a.previewFn = func(path string) (string, error) {
		return "Columns: a, b", nil
	}
	return a
}

func textReply(content string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Role: "assistant", Content: content},
		}},
		Usage: openai.CompletionUsage{PromptTokens: 10, CompletionTokens: 5},
	}
}

func toolReply(content string, calls ...openai.ChatCompletionMessageToolCallUnion) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Role: "assistant", Content: content, ToolCalls: calls},
		}},
		Usage: openai.CompletionUsage{PromptTokens: 10, CompletionTokens: 5},
	}
}

func call(id, name, args string) openai.ChatCompletionMessageToolCallUnion {
	return openai.ChatCompletionMessageToolCallUnion{
		ID:   id,
		Type: "function",
		Function: openai.ChatCompletionMessageFunctionToolCallFunction{
			Name:      name,
			Arguments: args,
		},
	}
}

// toolMessageIDs extracts the tool_call_ids of tool-role messages, in order.
func toolMessageIDs(params openai.ChatCompletionNewParams) []string {
	var ids []string
	for _, msg := range params.Messages {
		if msg.OfTool != nil {
			ids = append(ids, msg.OfTool.ToolCallID)
		}
	}
	return ids
}

func toolMessageContent(params openai.ChatCompletionNewParams, toolCallID string) string {
	for _, msg := range params.Messages {
		if msg.OfTool != nil && msg.OfTool.ToolCallID == toolCallID {
			return msg.OfTool.Content.OfString.Value
		}
	}
	return ""
}

func TestRunPlainAnswer(t *testing.T) {
	chat := &scriptedChat{replies: []*openai.ChatCompletion{textReply("There are 42 rows.")}}
	sink := &recordSink{}

	result, err := testAgent(chat, &stubSession{}).Run(context.Background(), "How many rows?", "", sink)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Answer != "There are 42 rows." {
		t.Errorf("answer = %q", result.Answer)
	}
	if result.Iterations != 1 {
		t.Errorf("iterations = %d", result.Iterations)
	}
	if result.PromptTokens != 10 || result.CompletionTokens != 5 {
		t.Errorf("usage = %d/%d", result.PromptTokens, result.CompletionTokens)
	}
	if len(sink.events) != 1 || sink.events[0].Kind != models.EventNarration {
		t.Errorf("expected a single narration event, got %v", sink.events)
	}
}

func TestRunCodeRoundTrip(t *testing.T) {
	chat := &scriptedChat{replies: []*openai.ChatCompletion{
		toolReply("Let me check.", call("call_1", tools.NameRunCode, `{"lang":"python","code":"print(6*7)"}`)),
		textReply("The answer is 42."),
	}}
	session := &stubSession{runOut: "42\n"}
	sink := &recordSink{}

	result, err := testAgent(chat, session).Run(context.Background(), "Compute 6*7", "", sink)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Answer != "The answer is 42." {
		t.Errorf("answer = %q", result.Answer)
	}
	if result.Iterations != 2 {
		t.Errorf("iterations = %d", result.Iterations)
	}
	if result.PromptTokens != 20 || result.CompletionTokens != 10 {
		t.Errorf("usage not summed across rounds: %d/%d", result.PromptTokens, result.CompletionTokens)
	}

	// The tool reply must reach the model on the second call, keyed by ID.
	if len(chat.calls) != 2 {
		t.Fatalf("expected 2 model calls, got %d", len(chat.calls))
	}
	ids := toolMessageIDs(chat.calls[1])
	if len(ids) != 1 || ids[0] != "call_1" {
		t.Errorf("tool message ids = %v", ids)
	}
	if got := toolMessageContent(chat.calls[1], "call_1"); got != "42\n" {
		t.Errorf("tool message content = %q", got)
	}

	// Code is announced before its result.
	var kinds []models.EventKind
	for _, e := range sink.events {
		kinds = append(kinds, e.Kind)
	}
	want := []models.EventKind{models.EventNarration, models.EventCode, models.EventResult, models.EventNarration}
	if len(kinds) != len(want) {
		t.Fatalf("event kinds = %v", kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event kinds = %v, want %v", kinds, want)
		}
	}

	if len(sink.actions) != 1 || sink.actions[0].Name != tools.NameRunCode {
		t.Errorf("actions = %v", sink.actions)
	}
}

func TestRunMultipleToolCallsKeepOrder(t *testing.T) {
	chat := &scriptedChat{replies: []*openai.ChatCompletion{
		toolReply("",
			call("call_a", tools.NameCopyToSandbox, `{"local_path":"a.xlsx"}`),
			call("call_b", tools.NameRunCode, `{"lang":"python","code":"print(1)"}`),
		),
		textReply("done"),
	}}
	session := &stubSession{runOut: "1\n"}

	if _, err := testAgent(chat, session).Run(context.Background(), "go", "", &recordSink{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	ids := toolMessageIDs(chat.calls[1])
	if len(ids) != 2 || ids[0] != "call_a" || ids[1] != "call_b" {
		t.Errorf("tool messages out of order: %v", ids)
	}
}

func TestRunEmptyOutputAdvisory(t *testing.T) {
	chat := &scriptedChat{replies: []*openai.ChatCompletion{
		toolReply("", call("call_1", tools.NameRunCode, `{"lang":"python","code":"x = 1"}`)),
		textReply("done"),
	}}
	session := &stubSession{runOut: ""}

	if _, err := testAgent(chat, session).Run(context.Background(), "go", "", &recordSink{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := toolMessageContent(chat.calls[1], "call_1"); got != tools.EmptyOutputNotice {
		t.Errorf("expected advisory notice, got %q", got)
	}
}

func TestRunCopyFailureDoesNotAbort(t *testing.T) {
	chat := &scriptedChat{replies: []*openai.ChatCompletion{
		toolReply("", call("call_1", tools.NameCopyFromSandbox, `{"sandbox_path":"/sandbox/x.png","local_path":"x.png"}`)),
		textReply("could not find the chart"),
	}}
	session := &stubSession{copyErr: errors.New("no such file")}
	sink := &recordSink{}

	result, err := testAgent(chat, session).Run(context.Background(), "go", "", sink)
	if err != nil {
		t.Fatalf("copy failure must not abort the request: %v", err)
	}
	if got := toolMessageContent(chat.calls[1], "call_1"); !strings.HasPrefix(got, "Failed to copy file:") {
		t.Errorf("tool message = %q", got)
	}
	if len(result.GeneratedFiles) != 0 {
		t.Errorf("failed copy must not register a generated file: %v", result.GeneratedFiles)
	}
	if strings.Contains(result.Answer, "Generated files:") {
		t.Errorf("unexpected file trailer in %q", result.Answer)
	}
}

func TestRunGeneratedFiles(t *testing.T) {
	chat := &scriptedChat{replies: []*openai.ChatCompletion{
		toolReply("", call("call_1", tools.NameCopyFromSandbox, `{"sandbox_path":"/sandbox/chart.png","local_path":"out/chart.png"}`)),
		textReply("I plotted revenue by region."),
	}}
	sink := &recordSink{}

	result, err := testAgent(chat, &stubSession{}).Run(context.Background(), "plot it", "", sink)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.GeneratedFiles) != 1 || result.GeneratedFiles[0] != "out/chart.png" {
		t.Errorf("generated files = %v", result.GeneratedFiles)
	}
	if !strings.Contains(result.Answer, "Generated files:") || !strings.Contains(result.Answer, "out/chart.png") {
		t.Errorf("answer missing file trailer:\n%s", result.Answer)
	}

	last := sink.events[len(sink.events)-1]
	if last.Kind != models.EventFileList || len(last.Files) != 1 {
		t.Errorf("expected trailing file list event, got %+v", last)
	}
}

func TestRunModelErrorAborts(t *testing.T) {
	chat := &scriptedChat{err: errors.New("rate limited")}
	if _, err := testAgent(chat, &stubSession{}).Run(context.Background(), "go", "", &recordSink{}); err == nil {
		t.Fatal("expected model error to propagate")
	}
}

func TestRunSandboxErrorAborts(t *testing.T) {
	chat := &scriptedChat{replies: []*openai.ChatCompletion{
		toolReply("", call("call_1", tools.NameRunCode, `{"lang":"python","code":"print(1)"}`)),
	}}
	session := &stubSession{runErr: errors.New("docker daemon unreachable")}

	if _, err := testAgent(chat, session).Run(context.Background(), "go", "", &recordSink{}); err == nil {
		t.Fatal("expected sandbox error to propagate")
	}
}

func TestRunIterationCap(t *testing.T) {
	loop := toolReply("still working", call("call_1", tools.NameRunCode, `{"lang":"python","code":"print(1)"}`))
	chat := &scriptedChat{replies: []*openai.ChatCompletion{loop, loop, loop}}
	session := &stubSession{runOut: "1\n"}

	a := testAgent(chat, session)
	a.maxIterations = 2
	result, err := a.Run(context.Background(), "go", "", &recordSink{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(chat.calls) != 2 {
		t.Errorf("expected the loop to stop after 2 model calls, got %d", len(chat.calls))
	}
	if !strings.Contains(result.Answer, "Stopped after 2 tool iterations") {
		t.Errorf("answer = %q", result.Answer)
	}
}

func TestRunStagesFileAndCarriesPreview(t *testing.T) {
	chat := &scriptedChat{replies: []*openai.ChatCompletion{textReply("ok")}}
	sink := &recordSink{}

	if _, err := testAgent(chat, &stubSession{}).Run(context.Background(), "summarize", "/tmp/sales.xlsx", sink); err != nil {
		t.Fatalf("Run: %v", err)
	}
	userMsg := chat.calls[0].Messages[1].OfUser.Content.OfString.Value
	if !strings.Contains(userMsg, "/sandbox/sales.xlsx") {
		t.Errorf("user message missing staged path:\n%s", userMsg)
	}
	if !strings.Contains(userMsg, "Columns: a, b") {
		t.Errorf("user message missing preview:\n%s", userMsg)
	}

	// Staging is announced before anything else.
	if len(sink.events) == 0 || sink.events[0].Kind != models.EventInfo || !strings.Contains(sink.events[0].Text, "sales.xlsx") {
		t.Errorf("expected a staging info event first, got %v", sink.events)
	}
}

func TestRunPreviewFailureDegrades(t *testing.T) {
	chat := &scriptedChat{replies: []*openai.ChatCompletion{textReply("ok")}}
	sink := &recordSink{}

	a := testAgent(chat, &stubSession{})
	a.previewFn = func(path string) (string, error) {
		return "", errors.New("unsupported preview format \".xls\"")
	}
	if _, err := a.Run(context.Background(), "summarize", "/tmp/legacy.xls", sink); err != nil {
		t.Fatalf("preview failure must not abort the request: %v", err)
	}

	userMsg := chat.calls[0].Messages[1].OfUser.Content.OfString.Value
	if !strings.Contains(userMsg, "/sandbox/legacy.xls") {
		t.Errorf("user message missing staged path:\n%s", userMsg)
	}
	if strings.Contains(userMsg, "Data preview:") {
		t.Errorf("degraded message should carry no preview:\n%s", userMsg)
	}

	var sawWarning bool
	for _, e := range sink.events {
		if e.Kind == models.EventInfo && strings.Contains(e.Text, "Could not preview") {
			sawWarning = true
		}
	}
	if !sawWarning {
		t.Errorf("expected a preview warning event, got %v", sink.events)
	}
}
