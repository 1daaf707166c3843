package insight

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/datalens/internal/analysis"
	"github.com/KaramelBytes/datalens/internal/table"
	"github.com/KaramelBytes/datalens/internal/utils"
)

const insightsSystem = "You are an expert data analyst specializing in product management metrics. " +
	"Analyze the provided data and generate actionable insights for product managers. " +
	"Focus on key trends, patterns, and recommendations that can drive product decisions. " +
	"Respond with JSON in the specified format."

const querySystem = "You are a data analysis assistant. Process the user's natural language query " +
	"about their data and provide a comprehensive answer. If the query asks for specific data, " +
	"describe what data should be filtered or calculated. If visualization would be helpful, " +
	"suggest the appropriate chart type. Respond with JSON in the specified format."

const insightsTemplate = `Analyze the following dataset and provide comprehensive insights for product managers.

Data Summary:
%s

Please provide insights in the following JSON format:
{
  "summary": "Brief overview of the dataset and what it represents",
  "key_findings": [
    "List of 3-5 key findings from the data",
    "Focus on patterns, trends, and anomalies",
    "Make findings actionable for product managers"
  ],
  "recommendations": [
    "List of 3-5 actionable recommendations",
    "Based on the findings, what should product managers do?",
    "Focus on product strategy and decision-making"
  ],
  "data_quality_notes": [
    "Any data quality issues or considerations",
    "Missing values, outliers, or data consistency issues"
  ]
}

Focus on product management metrics like user engagement, conversion rates, feature adoption,
retention, and growth indicators where applicable.
`

const queryTemplate = `Data Context:
%s

User Query: %s

Please analyze the user's query and provide a response in the following JSON format:
{
  "answer": "Direct answer to the user's question",
  "data_operation": {
    "type": "filter|aggregate|sort|calculate",
    "parameters": {
      "columns": ["column_names"],
      "conditions": "filtering conditions as '<column> <op> <value>' clauses joined by 'and'; ops are ==, !=, >, >=, <, <=, contains",
      "aggregation": "sum|mean|count",
      "calculation": "calculation to perform if applicable"
    }
  },
  "visualization_type": "bar|line|scatter|histogram",
  "visualization_params": {
    "x_column": "column_name",
    "y_column": "column_name",
    "color_column": "column_name_if_applicable"
  },
  "additional_insights": "Any additional context or insights"
}

If the query doesn't require data operations or visualization, omit those fields.
Focus on providing accurate, helpful answers based on the available data.
`

// InsightsDigest describes t for the insight prompt: shape, columns, type
// histogram, missing values, numeric statistics, categorical value counts
// and sample rows.
func InsightsDigest(t *table.Table, r *analysis.SummaryReport) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("Dataset shape: %d rows, %d columns", r.Rows, r.Columns))
	parts = append(parts, "Columns: "+strings.Join(r.ColumnNames, ", "))
	parts = append(parts, "Data types: "+typeHistogram(r.TypeCounts))

	var missing []string
	for _, n := range r.Nulls {
		if n.Count > 0 {
			missing = append(missing, fmt.Sprintf("%s=%d", n.Column, n.Count))
		}
	}
	if len(missing) > 0 {
		parts = append(parts, "Missing values: "+strings.Join(missing, ", "))
	}
	if len(r.Numeric) > 0 {
		parts = append(parts, "Numeric columns statistics:\n"+strings.TrimRight(r.DescribeTable(), "\n"))
	}
	if len(r.Categorical) > 0 {
		lines := make([]string, 0, len(r.Categorical))
		for _, cs := range r.Categorical {
			top := make([]string, len(cs.Top))
			for i, vc := range cs.Top {
				top[i] = fmt.Sprintf("%s: %d", vc.Value, vc.Count)
			}
			lines = append(lines, fmt.Sprintf("%s: %d unique values, top values: {%s}", cs.Column, cs.Unique, strings.Join(top, ", ")))
		}
		parts = append(parts, "Categorical columns info:\n"+strings.Join(lines, "\n"))
	}
	parts = append(parts, "Sample data:\n"+sample(t, 3))
	return strings.Join(parts, "\n\n")
}

// QueryDigest is the smaller context sent with a question.
func QueryDigest(t *table.Table) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("Data shape: %d rows, %d columns", t.Len(), t.Width()))
	parts = append(parts, "Columns: "+strings.Join(t.Names(), ", "))
	for _, g := range []struct {
		label string
		ct    table.ColumnType
	}{
		{"Numeric columns", table.Numeric},
		{"Categorical columns", table.Text},
		{"Date columns", table.Timestamp},
	} {
		cols := t.OfType(g.ct)
		if len(cols) == 0 {
			continue
		}
		names := make([]string, len(cols))
		for i, c := range cols {
			names[i] = c.Name
		}
		parts = append(parts, g.label+": "+strings.Join(names, ", "))
	}
	parts = append(parts, "Sample data:\n"+sample(t, 2))
	return strings.Join(parts, "\n")
}

func typeHistogram(counts map[table.ColumnType]int) string {
	keys := make([]string, 0, len(counts))
	for ct := range counts {
		keys = append(keys, string(ct))
	}
	sort.Strings(keys)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = fmt.Sprintf("%s=%d", k, counts[table.ColumnType(k)])
	}
	return strings.Join(out, ", ")
}

func sample(t *table.Table, n int) string {
	head := t.Head(n)
	rows := make([][]string, head.Len())
	for i := range rows {
		row := make([]string, head.Width())
		for j, v := range head.Row(i) {
			row[j] = table.Format(v)
		}
		rows[i] = row
	}
	return strings.TrimRight(utils.MarkdownTable(t.Names(), rows), "\n")
}
