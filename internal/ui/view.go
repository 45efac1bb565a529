package ui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"sheetwise/internal/styles"
)

func (m *Model) RenderShortcutsModal() string {
	title := styles.ModalTitleStyle.Render("Keyboard Shortcuts")

	shortcuts := []struct {
		key  string
		desc string
	}{
		{"Ctrl+C", "Quit Application"},
		{"Ctrl+N", "New Session"},
		{"Ctrl+S", "View Shortcuts (this menu)"},
		{"@", "Attach Spreadsheet (in input)"},
		{"Shift+Enter", "Insert Newline"},
	}

	var items []string
	keyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFCC80")).
		Bold(true).
		Width(12)

	descStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#E0E0E0"))

	for _, s := range shortcuts {
		line := fmt.Sprintf("%s %s", keyStyle.Render(s.key), descStyle.Render(s.desc))
		items = append(items, styles.ModalItemStyle.Render(line))
	}

	listContent := lipgloss.JoinVertical(lipgloss.Left, items...)
	content := lipgloss.JoinVertical(lipgloss.Left, title, listContent)

	hint := lipgloss.NewStyle().
		Foreground(styles.HintColor).
		Width(styles.ContentWidth).
		PaddingTop(1).
		Render("Esc/Enter: close")

	return lipgloss.JoinVertical(lipgloss.Left, content, hint)
}

func (m *Model) RenderBottomBar() string {
	badge := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#A5D6A7")).
		Padding(0, 1).
		Render("ANALYZE")

	cwdDisplay, _ := os.Getwd()
	if home, err := os.UserHomeDir(); err == nil && strings.HasPrefix(cwdDisplay, home) {
		cwdDisplay = "~" + cwdDisplay[len(home):]
	}
	cwd := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		Render(TruncateRunes(cwdDisplay, 30))

	model := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#A5D6A7")).
		Render(TruncateRunes(m.ModelName, 25))

	contextPct := 0
	if m.ContextTokens > 0 {
		contextPct = int(float64(m.ContextTokens) / float64(DefaultContextTokens) * 100)
	}
	ctxColor := "#888888"
	if contextPct > 80 {
		ctxColor = "#EF9A9A"
	} else if contextPct > 60 {
		ctxColor = "#FFF59D"
	}
	ctx := lipgloss.NewStyle().
		Foreground(lipgloss.Color(ctxColor)).
		Render(fmt.Sprintf("%d%% (%dk/%dk)", contextPct, m.ContextTokens/1000, DefaultContextTokens/1000))

	tokens := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666666")).
		Render(fmt.Sprintf("In:%d Out:%d", m.InputTokens, m.OutputTokens))

	help := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#555555")).
		Render("Help: ^S")

	leftSide := lipgloss.JoinHorizontal(lipgloss.Center, badge, "  ", cwd, "  ", model)
	rightSide := lipgloss.JoinHorizontal(lipgloss.Center, ctx, "  ", tokens, "  ", help)

	availableWidth := m.WindowWidth - lipgloss.Width(leftSide) - lipgloss.Width(rightSide) - 2
	if availableWidth < 0 {
		availableWidth = 0
	}
	spacer := strings.Repeat(" ", availableWidth)

	bar := lipgloss.JoinHorizontal(lipgloss.Center, leftSide, spacer, rightSide)

	return lipgloss.NewStyle().
		Width(m.WindowWidth).
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#333333")).
		Padding(0, 1).
		Render(bar)
}

func (m *Model) RenderPendingFile() string {
	if m.PendingFile == "" {
		return ""
	}
	label := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		Render("Attached: ")
	return label + styles.FileChipStyle.Render("📄 "+filepath.Base(m.PendingFile))
}

func (m *Model) RenderFileSuggestions() string {
	if !m.FileSuggestOpen || len(m.FileSuggestions) == 0 {
		return ""
	}

	suggestionStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#E0E0E0")).
		Padding(0, 1)

	selectedStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#7C4DFF")).
		Padding(0, 1)

	var lines []string
	header := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		Italic(true).
		Render("  Spreadsheets (↑↓ to select, Tab/Enter to insert)")
	lines = append(lines, header)

	for i, suggestion := range m.FileSuggestions {
		info, _ := os.Stat(suggestion)
		display := suggestion
		if info != nil && info.IsDir() {
			display = suggestion + "/"
		}
		if i == m.FileSuggestIdx {
			lines = append(lines, selectedStyle.Render("▸ "+display))
		} else {
			lines = append(lines, suggestionStyle.Render("  "+display))
		}
	}

	popupStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#7C4DFF")).
		Background(lipgloss.Color("#1E1E2E")).
		Padding(0, 1)

	return popupStyle.Render(strings.Join(lines, "\n"))
}

func GetWelcomeScreen(width, height int) string {
	art := `
 ╭─────────────────────────────────────────────────────────╮
 │                                                         │
 │   ███████ ██   ██ ███████ ███████ ████████              │
 │   ██      ██   ██ ██      ██         ██                 │
 │   ███████ ███████ █████   █████      ██                 │
 │        ██ ██   ██ ██      ██         ██                 │
 │   ███████ ██   ██ ███████ ███████    ██  W I S E        │
 │                                                         │
 ╰─────────────────────────────────────────────────────────╯
`
	subtitle := "Attach a spreadsheet with @ and ask anything about it."

	styledArt := styles.WelcomeArtStyle.Render(art)
	styledSubtitle := styles.WelcomeSubtitleStyle.Italic(true).Render(subtitle)

	content := lipgloss.JoinVertical(lipgloss.Center, styledArt, "", styledSubtitle)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Model) UpdateViewport() {
	if len(m.Messages) == 0 && !m.Loading {
		m.Viewport.SetContent(GetWelcomeScreen(m.Viewport.Width, m.Viewport.Height))
		return
	}

	content := strings.Join(m.Messages, "\n\n")
	if m.Loading {
		statusText := " Thinking..."
		if m.ExecutingTool != "" {
			statusText = fmt.Sprintf(" %s...", m.ExecutingTool)
		}

		var loadingParts []string
		loadingParts = append(loadingParts, styles.AiLabelStyle.Render("SHEETWISE"))
		if len(m.ToolActions) > 0 {
			loadingParts = append(loadingParts, FormatToolActions(m.ToolActions))
		}
		loadingParts = append(loadingParts, fmt.Sprintf("%s%s", m.Spinner.View(), statusText))

		loadingMsg := strings.Join(loadingParts, "\n")
		if len(m.Messages) > 0 {
			content = content + "\n\n" + loadingMsg
		} else {
			content = loadingMsg
		}
	}
	m.Viewport.SetContent(content)
	m.Viewport.GotoBottom()
}

func (m *Model) View() string {
	fileSuggestPopup := m.RenderFileSuggestions()
	pendingFileDisplay := m.RenderPendingFile()

	inputWidth := m.WindowWidth - 4
	inputBox := styles.InputBoxStyle.Width(inputWidth).Render(m.TextInput.View())

	var inputParts []string
	if pendingFileDisplay != "" {
		inputParts = append(inputParts, pendingFileDisplay)
	}
	if fileSuggestPopup != "" {
		inputParts = append(inputParts, fileSuggestPopup)
	}
	inputParts = append(inputParts, inputBox)
	inputSection := lipgloss.JoinVertical(lipgloss.Left, inputParts...)

	chatContent := lipgloss.JoinVertical(lipgloss.Center,
		styles.TitleStyle.Render("SHEETWISE"),
		"",
		m.Viewport.View(),
		"",
		inputSection,
	)
	chatArea := lipgloss.PlaceHorizontal(m.WindowWidth, lipgloss.Center, chatContent)
	bottomBar := m.RenderBottomBar()

	content := lipgloss.JoinVertical(lipgloss.Left, chatArea, bottomBar)

	if m.ShortcutsOpen {
		modal := m.RenderShortcutsModal()
		modal = styles.ModalStyle.Width(ModalWidth).Render(modal)

		return lipgloss.NewStyle().
			Background(lipgloss.Color("rgba(0,0,0,0.7)")).
			Render(lipgloss.Place(
				m.WindowWidth,
				m.WindowHeight,
				lipgloss.Center,
				lipgloss.Center,
				modal,
			))
	}

	return content
}
