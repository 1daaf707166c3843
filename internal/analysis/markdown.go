package analysis

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/KaramelBytes/datalens/internal/table"
	"github.com/KaramelBytes/datalens/internal/utils"
)

// Num formats a statistic compactly.
func Num(f float64) string {
	return strconv.FormatFloat(f, 'g', 6, 64)
}

// Markdown renders a compact report suitable for prompts or standalone docs.
func (r *SummaryReport) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %s\n", Thousands(r.Rows)))
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", r.Columns))

	b.WriteString("[SCHEMA]\n")
	for i, name := range r.ColumnNames {
		missing := 0
		if i < len(r.Nulls) {
			missing = r.Nulls[i].Count
		}
		missPct := 0.0
		if r.Rows > 0 {
			missPct = float64(missing) * 100.0 / float64(r.Rows)
		}
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%)\n",
			safeName(name), r.ColumnTypes[name], r.Rows-missing, missPct))
	}

	if len(r.Numeric) > 0 {
		b.WriteString("\n[NUMERIC STATISTICS]\n")
		b.WriteString(r.DescribeTable())
		for _, ns := range r.Numeric {
			if ns.Outliers > 0 {
				b.WriteString(fmt.Sprintf("- %s: %d outliers above |z|>%.1f (max |z|≈%.2f)\n",
					safeName(ns.Column), ns.Outliers, outlierThreshold, ns.MaxAbsZ))
			}
		}
	}

	if len(r.Categorical) > 0 {
		b.WriteString("\n[CATEGORICAL]\n")
		for _, cs := range r.Categorical {
			b.WriteString(fmt.Sprintf("- %s: %d unique", safeName(cs.Column), cs.Unique))
			if len(cs.Top) > 0 {
				b.WriteString(" — top: ")
				for i, kv := range cs.Top {
					if i > 0 {
						b.WriteString(", ")
					}
					b.WriteString(fmt.Sprintf("%s(%d)", utils.SafeCell(kv.Value), kv.Count))
				}
			}
			b.WriteString("\n")
		}
	}

	if len(r.Metrics) > 0 {
		b.WriteString("\n[KEY METRICS]\n")
		for _, m := range r.Metrics {
			b.WriteString(fmt.Sprintf("- %s: %s\n", m.Name, m.Value))
		}
	}

	if len(r.Samples) > 0 {
		b.WriteString("\n[HEAD AND SAMPLE ROWS]\n")
		rows := make([][]string, len(r.Samples))
		for i, s := range r.Samples {
			row := make([]string, len(s))
			for j, v := range s {
				if len(v) > 80 {
					v = v[:77] + "..."
				}
				row[j] = v
			}
			rows[i] = row
		}
		b.WriteString(utils.MarkdownTable(r.ColumnNames, rows))
	}

	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// DescribeTable renders the numeric statistics as a Markdown table with one
// row per column.
func (r *SummaryReport) DescribeTable() string {
	header := []string{"column", "count", "mean", "std", "min", "25%", "50%", "75%", "max"}
	rows := make([][]string, 0, len(r.Numeric))
	for _, ns := range r.Numeric {
		std := ""
		if ns.Std != nil {
			std = Num(*ns.Std)
		}
		rows = append(rows, []string{
			safeName(ns.Column), strconv.Itoa(ns.Count), Num(ns.Mean), std,
			Num(ns.Min), Num(ns.Q1), Num(ns.Median), Num(ns.Q3), Num(ns.Max),
		})
	}
	return utils.MarkdownTable(header, rows)
}

// TypeLabel is the display name of a column type.
func TypeLabel(ct table.ColumnType) string {
	switch ct {
	case table.Numeric:
		return "Numeric"
	case table.Text:
		return "Text"
	case table.Timestamp:
		return "Timestamp"
	}
	return "Unknown"
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}
