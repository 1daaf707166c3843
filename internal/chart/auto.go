package chart

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/datalens/internal/table"
)

const (
	autoNumeric     = 4
	autoCategorical = 3
	autoTimeSeries  = 2
	topN            = 10
)

// Auto builds the overview bundle for t. Each chart is optional: one that
// does not apply is skipped, and one that fails is skipped with a warning.
func Auto(t *table.Table) ([]Titled, []string) {
	numeric := t.OfType(table.Numeric)
	text := t.OfType(table.Text)
	stamps := t.OfType(table.Timestamp)

	var out []Titled
	var warnings []string
	add := func(title string, spec *Spec, err error) {
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s skipped: %v", title, err))
			return
		}
		if spec != nil {
			out = append(out, Titled{Title: title, Spec: spec})
		}
	}

	if len(numeric) > 0 {
		spec, err := distributions(numeric)
		add("Numeric Distributions", spec, err)
	}
	if len(numeric) >= 2 {
		spec, err := buildCorrelation(t, numeric)
		add("Correlation Heatmap", spec, err)
	}
	if len(text) > 0 {
		add("Categorical Analysis", categorical(text), nil)
	}
	if len(stamps) > 0 && len(numeric) > 0 {
		add("Time Series Analysis", timeSeries(t, stamps[0], head(numeric, autoTimeSeries)), nil)
	}
	if len(text) > 0 && len(numeric) > 0 {
		add("Top Categories Analysis", topCategories(text[0], numeric[0], topN), nil)
	}
	return out, warnings
}

func head(cols []*table.Column, n int) []*table.Column {
	if len(cols) > n {
		return cols[:n]
	}
	return cols
}

func distributions(cols []*table.Column) (*Spec, error) {
	grid := &Spec{Kind: Grid, Title: "Distribution of Numeric Columns", Rows: 2, Cols: 2}
	for _, c := range head(cols, autoNumeric) {
		bins, err := histogram(c.Floats(), DefaultBins)
		if err != nil {
			return nil, fmt.Errorf("histogram of %q: %w", c.Name, err)
		}
		grid.Panels = append(grid.Panels, Titled{
			Title: c.Name,
			Spec:  &Spec{Kind: Histogram, Title: c.Name, X: c.Name, Y: "Frequency", Bins: bins},
		})
	}
	return grid, nil
}

func categorical(cols []*table.Column) *Spec {
	cols = head(cols, autoCategorical)
	grid := &Spec{Kind: Grid, Title: "Categorical Variables Analysis", Rows: len(cols), Cols: 1}
	for _, c := range cols {
		title := "Distribution of " + c.Name
		spec := &Spec{Kind: Bar, Title: title, X: c.Name, Y: "count"}
		for _, vc := range table.Top(c, topN) {
			spec.Bars = append(spec.Bars, BarValue{Category: vc.Value, Value: float64(vc.Count)})
		}
		grid.Panels = append(grid.Panels, Titled{Title: title, Spec: spec})
	}
	return grid
}

func timeSeries(t *table.Table, date *table.Column, values []*table.Column) *Spec {
	var rows []int
	for i, v := range date.Values {
		if _, ok := v.(time.Time); ok {
			rows = append(rows, i)
		}
	}
	sort.SliceStable(rows, func(a, b int) bool {
		return date.Values[rows[a]].(time.Time).Before(date.Values[rows[b]].(time.Time))
	})
	names := make([]string, len(values))
	spec := &Spec{Kind: Line, X: date.Name, Y: "Value"}
	for i, c := range values {
		names[i] = c.Name
		spec.Series = append(spec.Series, Series{Name: c.Name, Points: points(date, c, rows)})
	}
	spec.Title = "Time Series Analysis: " + strings.Join(names, ", ")
	return spec
}

func topCategories(cat, val *table.Column, n int) *Spec {
	groups := table.GroupSum(cat, val)
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Sum > groups[j].Sum })
	if len(groups) > n {
		groups = groups[:n]
	}
	spec := &Spec{Kind: Bar, Title: fmt.Sprintf("Top %d %s by %s", n, cat.Name, val.Name), X: cat.Name, Y: val.Name}
	for _, g := range groups {
		spec.Bars = append(spec.Bars, BarValue{Category: g.Key, Value: g.Sum})
	}
	return spec
}

// Dashboard builds the compact dashboard view: per-column totals and
// averages, a row-index trend of up to three numeric columns, and the first
// text column's share of the first numeric column.
func Dashboard(t *table.Table) []Titled {
	numeric := t.OfType(table.Numeric)
	text := t.OfType(table.Text)
	var out []Titled
	if len(numeric) > 0 {
		spec := &Spec{Kind: Bar, Title: "Key Metrics Overview", X: "Metrics", Y: "Value"}
		for _, c := range head(numeric, 5) {
			vals := c.Floats()
			var sum float64
			for _, v := range vals {
				sum += v
			}
			spec.Bars = append(spec.Bars, BarValue{Category: c.Name + " Total", Value: sum})
			if len(vals) > 0 {
				spec.Bars = append(spec.Bars, BarValue{Category: c.Name + " Average", Value: sum / float64(len(vals))})
			}
		}
		out = append(out, Titled{Title: "metrics", Spec: spec})
	}
	if len(numeric) >= 2 {
		spec := &Spec{Kind: Line, Title: "Trend Analysis", X: "Index", Y: "Value"}
		for _, c := range head(numeric, 3) {
			s := Series{Name: c.Name}
			for i, v := range c.Values {
				if f, ok := v.(float64); ok {
					s.Points = append(s.Points, Point{X: float64(i), Y: f})
				}
			}
			spec.Series = append(spec.Series, s)
		}
		out = append(out, Titled{Title: "trends", Spec: spec})
	}
	if len(text) > 0 && len(numeric) > 0 {
		cat, val := text[0], numeric[0]
		spec := &Spec{Kind: Pie, Title: fmt.Sprintf("%s Breakdown by %s", val.Name, cat.Name), X: cat.Name, Y: val.Name}
		for _, g := range table.GroupSum(cat, val) {
			spec.Bars = append(spec.Bars, BarValue{Category: g.Key, Value: g.Sum})
		}
		out = append(out, Titled{Title: "breakdown", Spec: spec})
	}
	return out
}
