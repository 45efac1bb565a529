// Package preview builds a compact textual summary of an uploaded
// spreadsheet so the model's first look at the data costs no tool call.
package preview

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

const maxPreviewRows = 5

// Describe summarizes the spreadsheet at path: column headers, row count and
// the first few data rows. Formats it cannot parse return an error; callers
// degrade to a path-only mention rather than failing the request.
func Describe(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return describeExcel(path)
	case ".csv":
		return describeCSV(path)
	default:
		return "", fmt.Errorf("unsupported preview format %q", filepath.Ext(path))
	}
}

func describeExcel(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("%s has no sheets", filepath.Base(path))
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return "", err
	}
	return summarize(filepath.Base(path), fmt.Sprintf("sheet %q", sheets[0]), rows)
}

func describeCSV(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return "", err
	}
	return summarize(filepath.Base(path), "csv", rows)
}

func summarize(name, source string, rows [][]string) (string, error) {
	if len(rows) == 0 {
		return "", fmt.Errorf("%s is empty", name)
	}

	header := rows[0]
	data := rows[1:]

	var sb strings.Builder
	fmt.Fprintf(&sb, "File: %s (%s)\n", name, source)
	fmt.Fprintf(&sb, "Shape: %d data rows, %d columns\n", len(data), len(header))
	fmt.Fprintf(&sb, "Columns: %s\n", strings.Join(header, ", "))

	shown := len(data)
	if shown > maxPreviewRows {
		shown = maxPreviewRows
	}
	if shown > 0 {
		fmt.Fprintf(&sb, "First %d rows:\n", shown)
		for _, row := range data[:shown] {
			sb.WriteString(strings.Join(row, " | "))
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}
