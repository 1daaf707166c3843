package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"github.com/KaramelBytes/datalens/internal/analysis"
	"github.com/KaramelBytes/datalens/internal/insight"
	"github.com/KaramelBytes/datalens/internal/table"
	"github.com/KaramelBytes/datalens/internal/utils"
)

const reportTitle = "Data Analysis Report"

// Markdown renders the analysis report. Insight sections are included
// verbatim when p is non-nil.
func (w *Writer) Markdown(t *table.Table, p *insight.Payload) string {
	r := analysis.Summarize(t)
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("# %s", reportTitle)
	line("Generated on: %s", w.now().Format(table.TimeLayout))
	line("")

	line("## Data Overview")
	line("- **Total Rows:** %s", analysis.Thousands(r.Rows))
	line("- **Total Columns:** %d", r.Columns)
	line("- **Columns:** %s", strings.Join(r.ColumnNames, ", "))
	line("")

	line("### Data Types")
	for _, tc := range typeCounts(r.TypeCounts) {
		line("- **%s:** %d columns", tc.name, tc.n)
	}
	line("")

	if missing := missingColumns(r); len(missing) > 0 {
		line("### Missing Values")
		for _, n := range missing {
			line("- **%s:** %s (%.1f%%)", n.Column, analysis.Thousands(n.Count), pct(n.Count, r.Rows))
		}
		line("")
	}

	if p != nil {
		line("## AI-Generated Insights")
		if p.Summary != "" {
			line("### Summary")
			line("%s", p.Summary)
			line("")
		}
		numbered(line, "Key Findings", p.KeyFindings)
		numbered(line, "Recommendations", p.Recommendations)
		numbered(line, "Data Quality Notes", p.DataQualityNotes)
		if len(p.Metrics) > 0 {
			line("### Key Metrics")
			for _, m := range p.Metrics {
				line("- **%s:** %s", m.Name, m.Value)
			}
			line("")
		}
	}

	if len(r.Numeric) > 0 {
		line("## Statistical Summary")
		line("### Numeric Columns")
		b.WriteString(statsTable(r.Numeric))
		line("")
	}

	if len(r.Categorical) > 0 {
		line("### Categorical Columns")
		for _, cs := range r.Categorical {
			line("**%s:**", cs.Column)
			line("- Unique values: %d", cs.Unique)
			line("- Top values:")
			for _, vc := range cs.Top {
				line("  - %s: %s (%.1f%%)", vc.Value, analysis.Thousands(vc.Count), pct(vc.Count, r.Rows))
			}
			line("")
		}
	}

	line("---")
	b.WriteString("*This report was generated automatically by datalens.*\n")
	return b.String()
}

// HTML renders the Markdown report as a standalone page.
func (w *Writer) HTML(t *table.Table, p *insight.Payload) []byte {
	md := []byte(w.Markdown(t, p))
	ps := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage | html.HrefTargetBlank,
		Title: reportTitle,
	})
	return markdown.ToHTML(md, ps, renderer)
}

type typeCount struct {
	name string
	n    int
}

// typeCounts orders the type histogram by count, then name.
func typeCounts(m map[table.ColumnType]int) []typeCount {
	out := make([]typeCount, 0, len(m))
	for ct, n := range m {
		out = append(out, typeCount{string(ct), n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].n != out[j].n {
			return out[i].n > out[j].n
		}
		return out[i].name < out[j].name
	})
	return out
}

func missingColumns(r *analysis.SummaryReport) []analysis.NullCount {
	var out []analysis.NullCount
	for _, n := range r.Nulls {
		if n.Count > 0 {
			out = append(out, n)
		}
	}
	return out
}

func numbered(line func(string, ...any), title string, items []string) {
	if len(items) == 0 {
		return
	}
	line("### %s", title)
	for i, s := range items {
		line("%d. %s", i+1, s)
	}
	line("")
}

// statsTable lays the describe statistics out with one column per numeric
// column, values to two decimals.
func statsTable(stats []analysis.NumericStats) string {
	header := []string{"Statistic"}
	for _, ns := range stats {
		header = append(header, ns.Column)
	}
	get := []struct {
		name string
		val  func(analysis.NumericStats) string
	}{
		{"count", func(ns analysis.NumericStats) string { return fmt.Sprintf("%d", ns.Count) }},
		{"mean", func(ns analysis.NumericStats) string { return fmt.Sprintf("%.2f", ns.Mean) }},
		{"std", func(ns analysis.NumericStats) string {
			if ns.Std == nil {
				return ""
			}
			return fmt.Sprintf("%.2f", *ns.Std)
		}},
		{"min", func(ns analysis.NumericStats) string { return fmt.Sprintf("%.2f", ns.Min) }},
		{"25%", func(ns analysis.NumericStats) string { return fmt.Sprintf("%.2f", ns.Q1) }},
		{"50%", func(ns analysis.NumericStats) string { return fmt.Sprintf("%.2f", ns.Median) }},
		{"75%", func(ns analysis.NumericStats) string { return fmt.Sprintf("%.2f", ns.Q3) }},
		{"max", func(ns analysis.NumericStats) string { return fmt.Sprintf("%.2f", ns.Max) }},
	}
	rows := make([][]string, len(get))
	for i, g := range get {
		row := []string{g.name}
		for _, ns := range stats {
			row = append(row, g.val(ns))
		}
		rows[i] = row
	}
	return utils.MarkdownTable(header, rows)
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) * 100 / float64(total)
}
