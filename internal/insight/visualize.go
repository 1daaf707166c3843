package insight

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/datalens/internal/chart"
	"github.com/KaramelBytes/datalens/internal/table"
)

// queryChartRows bounds the rows plotted for each suggested chart kind;
// histograms use every row.
var queryChartRows = map[chart.Kind]int{
	chart.Bar:       20,
	chart.Line:      50,
	chart.Scatter:   100,
	chart.Histogram: 0,
}

// QueryChart builds the chart a query reply suggested. Both axis columns
// must exist; an unsupported kind or a failed build yields no chart.
func QueryChart(t *table.Table, kind string, p VisualizationParams) (*chart.Spec, error) {
	k := chart.Kind(strings.ToLower(strings.TrimSpace(kind)))
	limit, ok := queryChartRows[k]
	if !ok {
		return nil, fmt.Errorf("unsupported visualization %q", kind)
	}
	if p.XColumn == "" || p.YColumn == "" {
		return nil, fmt.Errorf("visualization needs x and y columns")
	}
	for _, name := range []string{p.XColumn, p.YColumn} {
		if _, ok := t.Column(name); !ok {
			return nil, fmt.Errorf("unknown column %q", name)
		}
	}
	req := chart.Request{
		Kind:  k,
		X:     p.XColumn,
		Y:     p.YColumn,
		Limit: limit,
		Title: fmt.Sprintf("%s Chart: %s by %s", titleCase(string(k)), p.YColumn, p.XColumn),
	}
	switch k {
	case chart.Histogram:
		req.Y = ""
	case chart.Line, chart.Scatter:
		if _, ok := t.Column(p.ColorColumn); ok {
			req.Color = p.ColorColumn
		}
	}
	return chart.Build(t, req)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
