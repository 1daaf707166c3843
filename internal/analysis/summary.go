package analysis

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/KaramelBytes/datalens/internal/table"
)

const (
	// categoricalColumns bounds how many text columns get value counts.
	categoricalColumns = 5
	topValues          = 3
	sampleRows         = 3
)

// SummaryReport is a point-in-time summary of a table. It is computed on
// demand and never stored.
type SummaryReport struct {
	Name        string                   `json:"name,omitempty"`
	Rows        int                      `json:"rows"`
	Columns     int                      `json:"columns"`
	ColumnNames []string                 `json:"column_names"`
	ColumnTypes map[string]string        `json:"column_types"`
	TypeCounts  map[table.ColumnType]int `json:"type_counts"`
	Nulls       []NullCount              `json:"nulls"`
	Numeric     []NumericStats           `json:"numeric"`
	Categorical []CategoricalStats       `json:"categorical"`
	Metrics     []Metric                 `json:"metrics"`
	Samples     [][]string               `json:"samples,omitempty"`
	Warnings    []string                 `json:"warnings,omitempty"`
}

// NullCount is the number of missing cells in one column.
type NullCount struct {
	Column string `json:"column"`
	Count  int    `json:"count"`
}

// CategoricalStats holds the distinct count and most frequent values of a
// text column.
type CategoricalStats struct {
	Column string                `json:"column"`
	Unique int                   `json:"unique"`
	Top    []table.CategoryCount `json:"top"`
}

// Metric is a named, display-formatted headline number.
type Metric struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Summarize computes the report for t. Failures of individual statistics
// are recorded in Warnings and the statistic is left out.
func Summarize(t *table.Table) *SummaryReport {
	r := &SummaryReport{
		Rows:        t.Len(),
		Columns:     t.Width(),
		ColumnNames: t.Names(),
		ColumnTypes: make(map[string]string, t.Width()),
		TypeCounts:  t.TypeCounts(),
	}
	for _, c := range t.Columns {
		r.ColumnTypes[c.Name] = string(c.Type)
		r.Nulls = append(r.Nulls, NullCount{Column: c.Name, Count: c.NullCount()})
	}
	for _, c := range t.OfType(table.Numeric) {
		ns, err := Describe(c.Name, c.Floats())
		if err != nil {
			r.Warnings = append(r.Warnings, fmt.Sprintf("statistics skipped: %v", err))
			continue
		}
		r.Numeric = append(r.Numeric, ns)
	}
	for i, c := range t.OfType(table.Text) {
		if i == categoricalColumns {
			break
		}
		r.Categorical = append(r.Categorical, CategoricalStats{
			Column: c.Name,
			Unique: table.Unique(c),
			Top:    table.Top(c, topValues),
		})
	}
	r.Metrics, r.Warnings = headlineMetrics(t, r.Warnings)
	head := t.Head(sampleRows)
	for i := 0; i < head.Len(); i++ {
		row := make([]string, head.Width())
		for j, v := range head.Row(i) {
			row[j] = table.Format(v)
		}
		r.Samples = append(r.Samples, row)
	}
	return r
}

var (
	totalKeywords = []string{"revenue", "price", "value", "amount", "total", "cost"}
	countKeywords = []string{"count", "quantity", "users", "customers", "orders"}
)

var printer = message.NewPrinter(language.English)

// Thousands formats n with comma grouping.
func Thousands(n int) string { return printer.Sprintf("%d", n) }

// headlineMetrics picks at most one column per bucket, first match in column
// order.
func headlineMetrics(t *table.Table, warnings []string) ([]Metric, []string) {
	metrics := []Metric{
		{Name: "Total Records", Value: Thousands(t.Len())},
		{Name: "Total Columns", Value: fmt.Sprint(t.Width())},
	}
	numeric := t.OfType(table.Numeric)
	if c := firstMatching(numeric, totalKeywords); c != nil {
		vals := c.Floats()
		if len(vals) == 0 {
			warnings = append(warnings, fmt.Sprintf("metric skipped: %q has no values", c.Name))
		} else {
			var sum float64
			for _, v := range vals {
				sum += v
			}
			val := fmt.Sprintf("%.2f", sum)
			if sum > 1000 {
				val = printer.Sprintf("$%.2f", sum)
			}
			metrics = append(metrics, Metric{Name: "Total " + c.Name, Value: val})
		}
	}
	if c := firstMatching(numeric, countKeywords); c != nil {
		vals := c.Floats()
		if len(vals) == 0 {
			warnings = append(warnings, fmt.Sprintf("metric skipped: %q has no values", c.Name))
		} else {
			var sum float64
			for _, v := range vals {
				sum += v
			}
			metrics = append(metrics, Metric{Name: "Avg " + c.Name, Value: fmt.Sprintf("%.1f", sum/float64(len(vals)))})
		}
	}
	if ts := t.OfType(table.Timestamp); len(ts) > 0 {
		lo, hi, ok := timeBounds(ts[0])
		if !ok {
			warnings = append(warnings, fmt.Sprintf("metric skipped: %q has no dates", ts[0].Name))
		} else {
			days := int(hi.Sub(lo).Hours() / 24)
			metrics = append(metrics, Metric{Name: "Date Range", Value: fmt.Sprintf("%d days", days)})
		}
	}
	return metrics, warnings
}

func firstMatching(cols []*table.Column, keywords []string) *table.Column {
	for _, c := range cols {
		lower := strings.ToLower(c.Name)
		for _, k := range keywords {
			if strings.Contains(lower, k) {
				return c
			}
		}
	}
	return nil
}

func timeBounds(c *table.Column) (lo, hi time.Time, ok bool) {
	for _, v := range c.Values {
		ts, isTime := v.(time.Time)
		if !isTime {
			continue
		}
		if !ok || ts.Before(lo) {
			lo = ts
		}
		if !ok || ts.After(hi) {
			hi = ts
		}
		ok = true
	}
	return lo, hi, ok
}

// MetricValue returns the value of the named metric, if present.
func (r *SummaryReport) MetricValue(name string) (string, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m.Value, true
		}
	}
	return "", false
}
