package ui

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/mattn/go-runewidth"

	"sheetwise/internal/models"
	"sheetwise/internal/styles"
)

var spreadsheetExts = map[string]bool{
	".xlsx": true,
	".xlsm": true,
	".xls":  true,
	".csv":  true,
}

func isSpreadsheetFile(path string) bool {
	return spreadsheetExts[strings.ToLower(filepath.Ext(path))]
}

func isImageFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".svg":
		return true
	default:
		return false
	}
}

// GetFileSuggestions returns spreadsheets (and directories, for navigation)
// matching a prefix. Supports subdirectory paths and recursive search.
func GetFileSuggestions(prefix string) []string {
	cwd, err := os.Getwd()
	if err != nil {
		return nil
	}
	if strings.Contains(prefix, "/") {
		return getDirectorySuggestions(cwd, prefix)
	}
	return getRecursiveSuggestions(cwd, prefix)
}

func getDirectorySuggestions(cwd, prefix string) []string {
	dir := ""
	filePrefix := prefix
	if idx := strings.LastIndex(prefix, "/"); idx != -1 {
		dir = prefix[:idx+1]
		filePrefix = prefix[idx+1:]
	}

	searchDir := cwd
	if dir != "" {
		searchDir = filepath.Join(cwd, dir)
	}
	entries, err := os.ReadDir(searchDir)
	if err != nil {
		return nil
	}

	var suggestions []string
	lowerFilePrefix := strings.ToLower(filePrefix)
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") && !strings.HasPrefix(filePrefix, ".") {
			continue
		}
		if !entry.IsDir() && !isSpreadsheetFile(name) {
			continue
		}
		if strings.HasPrefix(strings.ToLower(name), lowerFilePrefix) {
			suggestions = append(suggestions, dir+name)
		}
	}
	return sortAndLimitSuggestions(cwd, suggestions)
}

func getRecursiveSuggestions(cwd, prefix string) []string {
	var suggestions []string
	lowerPrefix := strings.ToLower(prefix)

	filepath.Walk(cwd, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		name := info.Name()
		if info.IsDir() {
			if strings.HasPrefix(name, ".") || name == "node_modules" || name == "vendor" || name == "__pycache__" {
				return filepath.SkipDir
			}
			return nil
		}
		if !isSpreadsheetFile(name) {
			return nil
		}
		if strings.Contains(strings.ToLower(name), lowerPrefix) {
			relPath, _ := filepath.Rel(cwd, path)
			suggestions = append(suggestions, relPath)
		}
		if len(suggestions) >= 20 {
			return filepath.SkipAll
		}
		return nil
	})

	return sortAndLimitSuggestions(cwd, suggestions)
}

func sortAndLimitSuggestions(cwd string, suggestions []string) []string {
	sort.Slice(suggestions, func(i, j int) bool {
		iInfo, _ := os.Stat(filepath.Join(cwd, suggestions[i]))
		jInfo, _ := os.Stat(filepath.Join(cwd, suggestions[j]))
		iDir := iInfo != nil && iInfo.IsDir()
		jDir := jInfo != nil && jInfo.IsDir()
		if iDir != jDir {
			return iDir
		}
		iDepth := strings.Count(suggestions[i], "/")
		jDepth := strings.Count(suggestions[j], "/")
		if iDepth != jDepth {
			return iDepth < jDepth
		}
		return strings.ToLower(suggestions[i]) < strings.ToLower(suggestions[j])
	})

	if len(suggestions) > 10 {
		suggestions = suggestions[:10]
	}
	return suggestions
}

var mentionRE = regexp.MustCompile(`@("([^"]+)"|([^\s]+))`)

// ExtractFileMention parses the first @spreadsheet mention that points at an
// existing file and returns the input with all mentions stripped.
func ExtractFileMention(input string) (cleanInput string, file string) {
	for _, match := range mentionRE.FindAllStringSubmatch(input, -1) {
		candidate := match[2]
		if candidate == "" {
			candidate = match[3]
		}
		if candidate == "" || file != "" {
			continue
		}
		if _, err := os.Stat(candidate); err == nil {
			file = candidate
		}
	}

	cleanInput = mentionRE.ReplaceAllString(input, "")
	cleanInput = strings.TrimSpace(cleanInput)
	cleanInput = regexp.MustCompile(`\s+`).ReplaceAllString(cleanInput, " ")
	return cleanInput, file
}

// GetAtPosition finds the @ mention being typed at cursor position
func GetAtPosition(input string, cursorPos int) (prefix string, startPos int, found bool) {
	if cursorPos > len(input) {
		cursorPos = len(input)
	}
	for i := cursorPos - 1; i >= 0; i-- {
		ch := input[i]
		if ch == '@' {
			return input[i+1 : cursorPos], i, true
		}
		if ch == ' ' || ch == '\n' || ch == '\t' {
			return "", 0, false
		}
	}
	return "", 0, false
}

func TextareaCursorIndex(t textarea.Model) int {
	value := t.Value()
	row := t.Line()
	li := t.LineInfo()
	col := li.StartColumn + li.ColumnOffset
	return cursorIndexFromRowCol(value, row, col)
}

func TextareaCursorFromIndex(value string, index int) (row int, col int) {
	if index < 0 {
		index = 0
	}
	if index > len(value) {
		index = len(value)
	}

	lines := strings.Split(value, "\n")
	pos := 0
	for i, line := range lines {
		lineLen := len(line)
		if index <= pos+lineLen {
			row = i
			col = runeIndexForByteIndex(line, index-pos)
			return row, col
		}
		pos += lineLen + 1
	}

	if len(lines) == 0 {
		return 0, 0
	}
	row = len(lines) - 1
	col = utf8.RuneCountInString(lines[row])
	return row, col
}

func SetTextareaCursor(t *textarea.Model, row int, col int) {
	lineCount := t.LineCount()
	if lineCount == 0 {
		t.SetCursor(0)
		return
	}
	if row < 0 {
		row = 0
	}
	if row >= lineCount {
		row = lineCount - 1
	}

	for i := 0; i < 10000 && t.Line() > 0; i++ {
		t.CursorUp()
	}
	for i := 0; i < 10000 && t.Line() < row; i++ {
		t.CursorDown()
	}
	for i := 0; i < 10000 && t.Line() > row; i++ {
		t.CursorUp()
	}

	t.SetCursor(col)
}

func cursorIndexFromRowCol(value string, row int, col int) int {
	lines := strings.Split(value, "\n")
	if len(lines) == 0 {
		return 0
	}
	if row < 0 {
		row = 0
	}
	if row >= len(lines) {
		row = len(lines) - 1
	}

	index := 0
	for i := 0; i < row; i++ {
		index += len(lines[i]) + 1
	}
	index += byteIndexForRuneColumn(lines[row], col)
	return index
}

func byteIndexForRuneColumn(s string, col int) int {
	if col <= 0 {
		return 0
	}
	count := 0
	for i := range s {
		if count >= col {
			return i
		}
		count++
	}
	return len(s)
}

func runeIndexForByteIndex(s string, idx int) int {
	if idx <= 0 {
		return 0
	}
	count := 0
	for i := range s {
		if i >= idx {
			return count
		}
		count++
	}
	return count
}

func WrappedLineCount(value string, width int) int {
	if width <= 0 {
		return 1
	}
	lines := strings.Split(value, "\n")
	if len(lines) == 0 {
		return 1
	}
	count := 0
	for _, line := range lines {
		w := runewidth.StringWidth(line)
		if w == 0 {
			count++
			continue
		}
		count += (w-1)/width + 1
	}
	return count
}

func TruncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return "…"
	}
	return string(r[:max-1]) + "…"
}

func FormatUserMessage(content string, width int, isFirst bool) string {
	label := styles.UserLabelStyle.Render("YOU")
	msg := styles.UserMsgStyle.Width(width - 4).Render(content)
	if isFirst {
		return fmt.Sprintf("\n%s\n%s", label, msg)
	}
	return fmt.Sprintf("%s\n%s", label, msg)
}

func FormatNarration(content string) string {
	label := styles.AiLabelStyle.Render("SHEETWISE")
	msg := styles.AiMsgStyle.Render(content)
	return fmt.Sprintf("%s\n%s", label, msg)
}

// FormatCodeSection renders code the model is about to run, headed by its
// language and size.
func FormatCodeSection(lang, code string) string {
	lines := strings.Count(strings.TrimRight(code, "\n"), "\n") + 1
	header := styles.CodeHeaderStyle.Render(fmt.Sprintf("%s · %d lines", lang, lines))
	body := styles.CodeBlockStyle.Render(strings.TrimRight(code, "\n"))
	return fmt.Sprintf("%s\n%s", header, body)
}

// FormatResultSection renders sandbox output, folded past ResultDisplayLines.
func FormatResultSection(output string) string {
	output = strings.TrimRight(output, "\n")
	lines := strings.Split(output, "\n")
	if len(lines) > ResultDisplayLines {
		hidden := len(lines) - ResultDisplayLines
		lines = append(lines[:ResultDisplayLines], fmt.Sprintf("… (+%d lines)", hidden))
	}
	return styles.ResultBlockStyle.Render(strings.Join(lines, "\n"))
}

func FormatInfoBanner(text string) string {
	return styles.InfoBannerStyle.Render("ℹ " + text)
}

// FormatFileGallery renders the files pulled out of the sandbox as chips,
// marking images so the user knows which ones are charts.
func FormatFileGallery(files []string) string {
	var chips []string
	for _, f := range files {
		icon := "📄"
		if isImageFile(f) {
			icon = "🖼"
		}
		chips = append(chips, styles.FileChipStyle.Render(icon+" "+f))
	}
	label := styles.ToolActionStyle.Render("Generated files:")
	return label + "\n  " + strings.Join(chips, " ")
}

func FormatToolActions(actions []models.ToolAction) string {
	var lines []string
	for _, action := range actions {
		icon := styles.ToolIconStyle.Render("→")
		name := styles.ToolNameStyle.Render(action.Summary)
		lines = append(lines, styles.ToolActionStyle.Render(fmt.Sprintf("%s %s", icon, name)))
	}
	return strings.Join(lines, "\n")
}
