package utils

import (
	"strings"

	"github.com/olekukonko/tablewriter"
)

// MarkdownTable renders rows as a GitHub-flavored Markdown table.
// Pipes and newlines inside cells are neutralized.
func MarkdownTable(header []string, rows [][]string) string {
	var b strings.Builder
	tw := tablewriter.NewWriter(&b)
	tw.SetHeader(header)
	tw.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	tw.SetCenterSeparator("|")
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	for _, r := range rows {
		cells := make([]string, len(r))
		for i, c := range r {
			cells[i] = SafeCell(c)
		}
		tw.Append(cells)
	}
	tw.Render()
	return b.String()
}

// SafeCell flattens a value for a single Markdown table cell.
func SafeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/")
}
