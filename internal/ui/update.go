package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"sheetwise/internal/models"
	"sheetwise/internal/styles"
)

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case spinner.TickMsg:
		m.Spinner, spCmd = m.Spinner.Update(msg)
		if m.Loading {
			m.UpdateViewport()
		}
		return m, spCmd

	case tea.KeyMsg:
		if m.ShortcutsOpen {
			switch msg.String() {
			case "ctrl+c":
				return m, tea.Quit
			case "esc", "enter", "?", "ctrl+s":
				m.ShortcutsOpen = false
				return m, nil
			}
			return m, nil
		}

		if isNewlineShortcut(msg) {
			m.TextInput.InsertString("\n")
			m.FileSuggestOpen = false
			m.updateInputLayout()
			return m, nil
		}

		// File suggestion popup handling
		if m.FileSuggestOpen {
			switch msg.String() {
			case "esc":
				m.FileSuggestOpen = false
				return m, nil
			case "up", "ctrl+p":
				if len(m.FileSuggestions) > 0 {
					m.FileSuggestIdx--
					if m.FileSuggestIdx < 0 {
						m.FileSuggestIdx = len(m.FileSuggestions) - 1
					}
				}
				return m, nil
			case "down", "ctrl+n":
				if len(m.FileSuggestions) > 0 {
					m.FileSuggestIdx++
					if m.FileSuggestIdx >= len(m.FileSuggestions) {
						m.FileSuggestIdx = 0
					}
				}
				return m, nil
			case "tab", "enter":
				m.insertSelectedSuggestion()
				return m, nil
			}
		}

		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			if m.FileSuggestOpen {
				m.FileSuggestOpen = false
				return m, nil
			}
			return m, tea.Quit

		case tea.KeyCtrlN:
			if !m.Loading {
				m.ResetSession()
			}
			return m, nil

		case tea.KeyCtrlS:
			m.ShortcutsOpen = true
			return m, nil

		case tea.KeyEnter:
			if m.Loading {
				return m, nil
			}
			input := m.TextInput.Value()
			if input == "" {
				return m, nil
			}
			if input == "/clear" || input == "/reset" {
				m.ResetSession()
				return m, nil
			}

			request, file := ExtractFileMention(input)
			m.AttachedFile = file

			displayInput := request
			if file != "" {
				displayInput = fmt.Sprintf("%s\n📎 %s", request, filepath.Base(file))
			}
			m.Messages = append(m.Messages, FormatUserMessage(displayInput, m.Viewport.Width, len(m.Messages) == 0))
			m.TextInput.Reset()
			m.updateInputLayout()
			m.FileSuggestOpen = false
			m.Loading = true
			m.UpdateViewport()

			return m, tea.Batch(m.SendRequest(request, file), m.Spinner.Tick)
		}

	case EventMsg:
		if msg.Kind == models.EventCode {
			m.ExecutingTool = "run_code"
		}
		m.appendEvent(models.OutputEvent(msg))
		m.UpdateViewport()
		return m, nil

	case ActionMsg:
		m.ExecutingTool = ""
		m.ToolActions = append(m.ToolActions, models.ToolAction(msg))
		m.UpdateViewport()
		return m, nil

	case DoneMsg:
		m.Loading = false
		m.ExecutingTool = ""
		m.ToolActions = nil
		m.InputTokens += msg.Result.PromptTokens
		m.OutputTokens += msg.Result.CompletionTokens
		m.ContextTokens += m.Counter.Count(msg.Result.Answer)
		m.UpdateViewport()
		return m, nil

	case ErrMsg:
		m.Loading = false
		m.ExecutingTool = ""
		m.ToolActions = nil
		m.Err = msg
		m.Messages = append(m.Messages, styles.ErrorStyle.Render(fmt.Sprintf("Error: %v", msg)))
		m.UpdateViewport()
		return m, nil

	case tea.WindowSizeMsg:
		m.WindowWidth = msg.Width
		m.WindowHeight = msg.Height

		chatWidth := msg.Width - 2
		m.Viewport.Width = chatWidth - 2

		m.updateInputLayout()
		glamourStyle := "dark"
		if !lipgloss.HasDarkBackground() {
			glamourStyle = "light"
		}
		m.Renderer, _ = glamour.NewTermRenderer(
			glamour.WithStylePath(glamourStyle),
			glamour.WithWordWrap(chatWidth-6),
		)
		m.UpdateViewport()
		return m, tea.Batch(tiCmd, vpCmd)
	}

	m.TextInput, tiCmd = m.TextInput.Update(msg)
	m.updateInputLayout()

	// Filter out terminal background color queries that leak into the input
	val := m.TextInput.Value()
	if strings.Contains(val, "]11;rgb:") || strings.Contains(val, "1;rgb:") || strings.Contains(val, "[1;1R") {
		m.TextInput.Reset()
	}

	// Check for @ file mention trigger
	val = m.TextInput.Value()
	cursorPos := TextareaCursorIndex(m.TextInput)
	if prefix, _, found := GetAtPosition(val, cursorPos); found {
		suggestions := GetFileSuggestions(prefix)
		if len(suggestions) > 0 {
			m.FileSuggestions = suggestions
			m.FileSuggestOpen = true
			m.FileSuggestIdx = 0
			m.FileSuggestPrefix = prefix
		} else {
			m.FileSuggestOpen = false
		}
	} else {
		m.FileSuggestOpen = false
	}

	_, m.PendingFile = ExtractFileMention(val)

	m.Viewport, vpCmd = m.Viewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd)
}

func isNewlineShortcut(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "shift+enter", "shift+return", "ctrl+j", "ctrl+enter", "alt+enter":
		return true
	default:
		return false
	}
}

func (m *Model) insertSelectedSuggestion() {
	if len(m.FileSuggestions) == 0 || m.FileSuggestIdx >= len(m.FileSuggestions) {
		m.FileSuggestOpen = false
		return
	}
	selected := m.FileSuggestions[m.FileSuggestIdx]
	val := m.TextInput.Value()
	cursorPos := TextareaCursorIndex(m.TextInput)
	prefix, startPos, found := GetAtPosition(val, cursorPos)
	if found {
		newVal := val[:startPos] + "@" + selected + " " + val[startPos+1+len(prefix):]
		newCursorIndex := startPos + len(selected) + 2
		m.TextInput.SetValue(newVal)
		row, col := TextareaCursorFromIndex(newVal, newCursorIndex)
		SetTextareaCursor(&m.TextInput, row, col)
	}
	m.FileSuggestOpen = false
}

// appendEvent turns one loop event into a rendered transcript section.
func (m *Model) appendEvent(e models.OutputEvent) {
	switch e.Kind {
	case models.EventNarration:
		content := e.Text
		if m.Renderer != nil {
			rendered, _ := m.Renderer.Render(e.Text)
			content = strings.TrimSpace(rendered)
		}
		if len(m.ToolActions) > 0 {
			m.Messages = append(m.Messages, FormatToolActions(m.ToolActions)+"\n"+FormatNarration(content))
			m.ToolActions = nil
		} else {
			m.Messages = append(m.Messages, FormatNarration(content))
		}
	case models.EventCode:
		m.Messages = append(m.Messages, FormatCodeSection(e.Lang, e.Text))
	case models.EventResult:
		m.Messages = append(m.Messages, FormatResultSection(e.Text))
	case models.EventInfo:
		m.Messages = append(m.Messages, FormatInfoBanner(e.Text))
	case models.EventFileList:
		m.Messages = append(m.Messages, FormatFileGallery(e.Files))
	}
}

func (m *Model) updateInputLayout() {
	if m.WindowWidth == 0 || m.WindowHeight == 0 {
		return
	}

	inputWidth := m.WindowWidth - 6
	if inputWidth < 20 {
		inputWidth = 20
	}
	contentWidth := inputWidth - 2
	if contentWidth < 1 {
		contentWidth = 1
	}

	maxInputHeight := 6
	lineCount := WrappedLineCount(m.TextInput.Value(), contentWidth)
	if lineCount < 1 {
		lineCount = 1
	}
	if lineCount > maxInputHeight {
		lineCount = maxInputHeight
	}

	m.TextInput.MaxHeight = maxInputHeight
	m.TextInput.SetWidth(inputWidth)
	m.TextInput.SetHeight(lineCount)

	inputBoxHeight := m.TextInput.Height() + 2
	reserved := inputBoxHeight + 5
	viewportHeight := m.WindowHeight - reserved
	if viewportHeight < 5 {
		viewportHeight = 5
	}
	m.Viewport.Height = viewportHeight
}

func (m *Model) ResetSession() {
	m.Messages = []string{}
	m.InputTokens = 0
	m.OutputTokens = 0
	m.ContextTokens = 0
	m.ToolActions = nil
	m.AttachedFile = ""
	m.PendingFile = ""
	m.Err = nil
	m.Viewport.SetContent(GetWelcomeScreen(m.Viewport.Width, m.Viewport.Height))
	m.Viewport.GotoTop()
	m.TextInput.Reset()
	m.updateInputLayout()
}

// SendRequest runs one analysis request off the UI goroutine. Incremental
// output arrives through programSink; the returned message ends the request.
func (m *Model) SendRequest(request, file string) tea.Cmd {
	return func() tea.Msg {
		result, err := m.Agent.Run(context.Background(), request, file, programSink{program: m.Program})
		if err != nil {
			return ErrMsg(err)
		}
		return DoneMsg{Result: result}
	}
}
