package ui

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sheetwise/internal/agent"
	"sheetwise/internal/config"
	"sheetwise/internal/tokens"
)

func InitialModel(cfg config.Config, a *agent.Agent) Model {
	ti := textarea.New()
	ti.Placeholder = "Ask about your spreadsheet... (@ to attach a file)"
	ti.Prompt = "❯ "
	ti.ShowLineNumbers = false
	ti.CharLimit = 0
	ti.MaxHeight = 6
	ti.SetHeight(2)
	ti.SetWidth(80)
	ti.FocusedStyle.Prompt = lipgloss.NewStyle().Foreground(lipgloss.Color("#A5D6A7")).Bold(true)
	ti.BlurredStyle.Prompt = lipgloss.NewStyle().Foreground(lipgloss.Color("#A5D6A7")).Bold(true)
	ti.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(lipgloss.Color("#545454"))
	ti.BlurredStyle.Placeholder = lipgloss.NewStyle().Foreground(lipgloss.Color("#545454"))
	ti.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ti.BlurredStyle.CursorLine = lipgloss.NewStyle()
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#A5D6A7"))

	vp := viewport.New(60, 15)

	return Model{
		TextInput: ti,
		Viewport:  vp,
		Spinner:   sp,
		Agent:     a,
		ModelName: cfg.Model,
		Counter:   tokens.NewCounter(cfg.Model),
		Messages:  []string{},
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.TextInput.Cursor.BlinkCmd(),
		m.Spinner.Tick,
	)
}

func NewProgram(cfg config.Config, a *agent.Agent) *tea.Program {
	m := InitialModel(cfg, a)
	p := tea.NewProgram(&m, tea.WithAltScreen())
	m.Program = p
	return p
}
