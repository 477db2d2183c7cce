package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractExcel renders each non-empty sheet as a "--- Sheet <name> ---" block.
// The first non-empty row names the columns; every later row becomes one line of
// "column: value" pairs so a chunk keeps the meaning of its cells.
func extractExcel(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	var blocks []string
	for _, sheet := range f.GetSheetList() {
		block, err := sheetText(f, sheet)
		if err != nil {
			return "", err
		}
		if block != "" {
			blocks = append(blocks, fmt.Sprintf("--- Sheet %s ---\n%s", sheet, block))
		}
	}
	return strings.Join(blocks, "\n\n"), nil
}

func sheetText(f *excelize.File, sheet string) (string, error) {
	rows, err := f.Rows(sheet)
	if err != nil {
		return "", fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	defer rows.Close()

	var (
		header []string
		lines  []string
	)
	for rows.Next() {
		cells, err := rows.Columns()
		if err != nil {
			return "", fmt.Errorf("read row in sheet %q: %w", sheet, err)
		}
		if isBlankRow(cells) {
			continue
		}
		if header == nil {
			header = trimCells(cells)
			lines = append(lines, strings.Join(header, "\t"))
			continue
		}
		if line := labelRow(header, cells); line != "" {
			lines = append(lines, line)
		}
	}
	if err := rows.Error(); err != nil {
		return "", fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return strings.Join(lines, "\n"), nil
}

// labelRow pairs cells with their column names. Columns without a header fall back
// to their spreadsheet letter; empty cells are left out.
func labelRow(header, cells []string) string {
	var pairs []string
	for i, cell := range cells {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		name := ""
		if i < len(header) {
			name = header[i]
		}
		if name == "" {
			name, _ = excelize.ColumnNumberToName(i + 1)
		}
		pairs = append(pairs, name+": "+cell)
	}
	return strings.Join(pairs, "; ")
}

func trimCells(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(c)
	}
	return out
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
