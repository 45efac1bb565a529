package models

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// EventKind classifies a unit of display output produced by the agent loop.
type EventKind int

const (
	EventNarration EventKind = iota // assistant text between tool calls
	EventCode                       // code about to be executed in the sandbox
	EventResult                     // captured sandbox output
	EventInfo                       // file transfer results, warnings
	EventFileList                   // local paths of files pulled out of the sandbox
)

// OutputEvent is one unit of incremental display content. Events are
// appended to an ordered list and never mutated after append.
type OutputEvent struct {
	Kind  EventKind
	Lang  string // set for EventCode
	Text  string
	Files []string // set for EventFileList
}

// ToolAction represents a completed tool action for display
type ToolAction struct {
	Name    string
	Summary string
}
