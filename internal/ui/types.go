package ui

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"sheetwise/internal/agent"
	"sheetwise/internal/models"
	"sheetwise/internal/tokens"
)

const (
	ModalWidth = 60

	// Max lines of sandbox output shown inline; the model still sees it all.
	ResultDisplayLines = 20

	DefaultContextTokens = 80000
)

type ErrMsg error

// EventMsg carries one incremental output event from the running request.
type EventMsg models.OutputEvent

// ActionMsg reports a completed tool call for the action chip list.
type ActionMsg models.ToolAction

// DoneMsg ends a request.
type DoneMsg struct {
	Result *agent.Result
}

type Model struct {
	Viewport      viewport.Model
	Messages      []string
	TextInput     textarea.Model
	Spinner       spinner.Model
	Agent         *agent.Agent
	ModelName     string
	Counter       *tokens.Counter
	Renderer      *glamour.TermRenderer
	Err           error
	Loading       bool
	InputTokens   int64
	OutputTokens  int64
	ContextTokens int
	WindowWidth   int
	WindowHeight  int

	ShortcutsOpen bool

	ExecutingTool string
	ToolActions   []models.ToolAction

	Program *tea.Program

	// Spreadsheet mention autocomplete
	FileSuggestOpen   bool
	FileSuggestions   []string
	FileSuggestIdx    int
	FileSuggestPrefix string
	AttachedFile      string // spreadsheet attached via @mention for the current request
	PendingFile       string // spreadsheet detected in current input
}

// programSink forwards agent output into the bubbletea event loop.
type programSink struct {
	program *tea.Program
}

func (s programSink) Event(e models.OutputEvent) { s.program.Send(EventMsg(e)) }
func (s programSink) Action(a models.ToolAction) { s.program.Send(ActionMsg(a)) }
