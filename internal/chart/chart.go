// Package chart builds chart specifications from tables. It never renders;
// a Spec carries the derived data a front-end needs to draw the chart.
package chart

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/datalens/internal/table"
)

// Kind names a chart type.
type Kind string

const (
	Line        Kind = "line"
	Bar         Kind = "bar"
	Scatter     Kind = "scatter"
	Histogram   Kind = "histogram"
	Correlation Kind = "correlation"
	Pie         Kind = "pie"
	Grid        Kind = "grid"
)

// Kinds lists the kinds a user can request.
var Kinds = []Kind{Line, Bar, Scatter, Histogram, Correlation}

const (
	DefaultBins = 30
	MaxBins     = 200
)

// Request selects a chart kind and its column bindings.
type Request struct {
	Kind  Kind   `json:"kind"`
	X     string `json:"x,omitempty"`
	Y     string `json:"y,omitempty"`
	Color string `json:"color,omitempty"`
	Size  string `json:"size,omitempty"`
	Bins  int    `json:"bins,omitempty"`
	Title string `json:"title,omitempty"`
	// Limit bounds the rows used; 0 means all rows.
	Limit int `json:"limit,omitempty"`
}

// Spec is a chart ready to be drawn.
type Spec struct {
	Kind   Kind       `json:"kind"`
	Title  string     `json:"title"`
	X      string     `json:"x,omitempty"`
	Y      string     `json:"y,omitempty"`
	Color  string     `json:"color,omitempty"`
	Size   string     `json:"size,omitempty"`
	Series []Series   `json:"series,omitempty"`
	Points []Point    `json:"points,omitempty"`
	Bars   []BarValue `json:"bars,omitempty"`
	Bins   []Bin      `json:"bins,omitempty"`
	Matrix *Matrix    `json:"matrix,omitempty"`
	// Panels hold sub-charts of a composite; Rows and Cols give its layout.
	Panels []Titled   `json:"panels,omitempty"`
	Rows   int        `json:"rows,omitempty"`
	Cols   int        `json:"cols,omitempty"`
}

// Titled pairs a chart with the heading it is shown under.
type Titled struct {
	Title string `json:"title"`
	Spec  *Spec  `json:"spec"`
}

// Series is one named line.
type Series struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

// Point is one plotted observation. X may be a number, text or timestamp.
type Point struct {
	X     any      `json:"x"`
	Y     float64  `json:"y"`
	Size  *float64 `json:"size,omitempty"`
	Color string   `json:"color,omitempty"`
}

// BarValue is one category and its value.
type BarValue struct {
	Category string  `json:"category"`
	Value    float64 `json:"value"`
}

// Bin is a half-open histogram interval [Lower, Upper).
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// Matrix is a symmetric correlation matrix; nil cells are undefined.
type Matrix struct {
	Columns []string     `json:"columns"`
	Values  [][]*float64 `json:"values"`
}

// ValidationWarning reports why a chart cannot be built.
type ValidationWarning struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// ValidationError is returned by Build when prerequisites are missing.
// Nothing is constructed.
type ValidationError struct {
	Warnings []ValidationWarning
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Warnings))
	for i, w := range e.Warnings {
		msgs[i] = w.Message
	}
	return "cannot build chart: " + strings.Join(msgs, "; ")
}

// Check reports the column types kind needs but t lacks.
func Check(t *table.Table, kind Kind) []ValidationWarning {
	counts := t.TypeCounts()
	num, text := counts[table.Numeric], counts[table.Text]
	var out []ValidationWarning
	need := func(ok bool, msg string) {
		if !ok {
			out = append(out, ValidationWarning{Kind: kind, Message: msg})
		}
	}
	switch kind {
	case Line:
		need(num >= 2, "line charts need at least 2 numeric columns")
	case Bar:
		need(text >= 1, "bar charts need at least 1 text column")
		need(num >= 1, "bar charts need at least 1 numeric column")
	case Scatter:
		need(num >= 2, "scatter plots need at least 2 numeric columns")
	case Histogram:
		need(num >= 1, "histograms need at least 1 numeric column")
	case Correlation:
		need(num >= 2, "correlation heatmaps need at least 2 numeric columns")
	default:
		need(false, fmt.Sprintf("unknown chart kind %q", kind))
	}
	return out
}

// Availability reports, per requestable kind, whether t satisfies its
// prerequisites.
func Availability(t *table.Table) map[Kind]bool {
	out := make(map[Kind]bool, len(Kinds))
	for _, k := range Kinds {
		out[k] = len(Check(t, k)) == 0
	}
	return out
}

// Build validates req against t and constructs the chart.
func Build(t *table.Table, req Request) (*Spec, error) {
	if ws := Check(t, req.Kind); len(ws) > 0 {
		return nil, &ValidationError{Warnings: ws}
	}
	if ws := checkBindings(t, req); len(ws) > 0 {
		return nil, &ValidationError{Warnings: ws}
	}
	if req.Limit > 0 {
		t = t.Head(req.Limit)
	}
	var spec *Spec
	var err error
	switch req.Kind {
	case Line:
		spec = buildLine(t, req)
	case Bar:
		spec = buildBar(t, req)
	case Scatter:
		spec = buildScatter(t, req)
	case Histogram:
		spec, err = buildHistogram(t, req)
	case Correlation:
		spec, err = buildCorrelation(t, t.OfType(table.Numeric))
	}
	if err != nil {
		return nil, err
	}
	if req.Title != "" {
		spec.Title = req.Title
	}
	return spec, nil
}

func checkBindings(t *table.Table, req Request) []ValidationWarning {
	var out []ValidationWarning
	bad := func(msg string, args ...any) {
		out = append(out, ValidationWarning{Kind: req.Kind, Message: fmt.Sprintf(msg, args...)})
	}
	col := func(role, name string, required bool, want ...table.ColumnType) {
		if name == "" {
			if required {
				bad("%s column is required", role)
			}
			return
		}
		c, ok := t.Column(name)
		if !ok {
			bad("unknown %s column %q", role, name)
			return
		}
		if len(want) == 0 {
			return
		}
		for _, w := range want {
			if c.Type == w {
				return
			}
		}
		bad("%s column %q is %s, want %s", role, name, c.Type, want[0])
	}
	switch req.Kind {
	case Line:
		col("x", req.X, true)
		col("y", req.Y, true, table.Numeric)
		col("color", req.Color, false)
	case Bar:
		col("x", req.X, true)
		col("y", req.Y, true, table.Numeric)
	case Scatter:
		col("x", req.X, true, table.Numeric, table.Timestamp)
		col("y", req.Y, true, table.Numeric)
		col("size", req.Size, false, table.Numeric)
		col("color", req.Color, false)
	case Histogram:
		col("x", req.X, true, table.Numeric)
		if req.Bins < 0 || req.Bins > MaxBins {
			bad("bins must be between 1 and %d", MaxBins)
		}
	}
	return out
}

func mustColumn(t *table.Table, name string) *table.Column {
	c, _ := t.Column(name)
	return c
}

func buildLine(t *table.Table, req Request) *Spec {
	x, y := mustColumn(t, req.X), mustColumn(t, req.Y)
	spec := &Spec{Kind: Line, Title: fmt.Sprintf("%s over %s", req.Y, req.X), X: req.X, Y: req.Y, Color: req.Color}
	if req.Color == "" {
		spec.Series = []Series{{Name: req.Y, Points: points(x, y, nil)}}
		return spec
	}
	color := mustColumn(t, req.Color)
	pos := map[string]int{}
	for i := range x.Values {
		if x.Values[i] == nil || y.Values[i] == nil {
			continue
		}
		key := table.Format(color.Values[i])
		k, ok := pos[key]
		if !ok {
			k = len(spec.Series)
			pos[key] = k
			spec.Series = append(spec.Series, Series{Name: key})
		}
		spec.Series[k].Points = append(spec.Series[k].Points, Point{X: x.Values[i], Y: y.Values[i].(float64)})
	}
	return spec
}

// points pairs x with numeric y in row order, skipping rows with a null in
// either. rows restricts and orders the positions when non-nil.
func points(x, y *table.Column, rows []int) []Point {
	if rows == nil {
		rows = make([]int, len(x.Values))
		for i := range rows {
			rows[i] = i
		}
	}
	out := make([]Point, 0, len(rows))
	for _, i := range rows {
		yv, ok := y.Values[i].(float64)
		if !ok || x.Values[i] == nil {
			continue
		}
		out = append(out, Point{X: x.Values[i], Y: yv})
	}
	return out
}

func buildBar(t *table.Table, req Request) *Spec {
	x, y := mustColumn(t, req.X), mustColumn(t, req.Y)
	spec := &Spec{Kind: Bar, Title: fmt.Sprintf("%s by %s", req.Y, req.X), X: req.X, Y: req.Y}
	if x.Type == table.Text {
		for _, g := range table.GroupSum(x, y) {
			spec.Bars = append(spec.Bars, BarValue{Category: g.Key, Value: g.Sum})
		}
		return spec
	}
	for _, p := range points(x, y, nil) {
		spec.Bars = append(spec.Bars, BarValue{Category: table.Format(p.X), Value: p.Y})
	}
	return spec
}

func buildScatter(t *table.Table, req Request) *Spec {
	x, y := mustColumn(t, req.X), mustColumn(t, req.Y)
	spec := &Spec{Kind: Scatter, Title: fmt.Sprintf("%s vs %s", req.Y, req.X), X: req.X, Y: req.Y, Size: req.Size, Color: req.Color}
	var size, color *table.Column
	if req.Size != "" {
		size = mustColumn(t, req.Size)
	}
	if req.Color != "" {
		color = mustColumn(t, req.Color)
	}
	for i := range x.Values {
		yv, ok := y.Values[i].(float64)
		if !ok || x.Values[i] == nil {
			continue
		}
		p := Point{X: x.Values[i], Y: yv}
		if size != nil {
			if s, ok := size.Values[i].(float64); ok {
				p.Size = &s
			}
		}
		if color != nil {
			p.Color = table.Format(color.Values[i])
		}
		spec.Points = append(spec.Points, p)
	}
	return spec
}

func buildHistogram(t *table.Table, req Request) (*Spec, error) {
	bins := req.Bins
	if bins == 0 {
		bins = DefaultBins
	}
	vals := mustColumn(t, req.X).Floats()
	spec := &Spec{Kind: Histogram, Title: "Distribution of " + req.X, X: req.X, Y: "Frequency"}
	var err error
	spec.Bins, err = histogram(vals, bins)
	if err != nil {
		return nil, fmt.Errorf("histogram of %q: %w", req.X, err)
	}
	return spec, nil
}

// histogram counts vals into n equal-width bins spanning their range.
func histogram(vals []float64, n int) ([]Bin, error) {
	if len(vals) == 0 {
		return nil, fmt.Errorf("no values")
	}
	if n < 1 {
		return nil, fmt.Errorf("bins must be positive, got %d", n)
	}
	x := append([]float64(nil), vals...)
	sort.Float64s(x)
	lo, hi := x[0], x[len(x)-1]
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	dividers := floats.Span(make([]float64, n+1), lo, hi)
	// The top edge must exceed the maximum so it falls in the last bin.
	dividers[n] = math.Nextafter(hi, math.Inf(1))
	counts := stat.Histogram(nil, dividers, x, nil)
	out := make([]Bin, n)
	for i := range out {
		out[i] = Bin{Lower: dividers[i], Upper: dividers[i+1], Count: int(counts[i])}
	}
	out[n-1].Upper = hi
	return out, nil
}

func buildCorrelation(t *table.Table, cols []*table.Column) (*Spec, error) {
	if len(cols) < 2 {
		return nil, &ValidationError{Warnings: []ValidationWarning{{Kind: Correlation, Message: "correlation heatmaps need at least 2 numeric columns"}}}
	}
	m := &Matrix{Columns: make([]string, len(cols)), Values: make([][]*float64, len(cols))}
	for i, c := range cols {
		m.Columns[i] = c.Name
		m.Values[i] = make([]*float64, len(cols))
	}
	for i := range cols {
		for j := i; j < len(cols); j++ {
			r := pearson(cols[i], cols[j])
			m.Values[i][j], m.Values[j][i] = r, r
		}
	}
	return &Spec{Kind: Correlation, Title: "Correlation Matrix", Matrix: m}, nil
}

// pearson correlates the rows where both columns are present. It returns nil
// when fewer than two such rows exist or either side has no variance.
func pearson(a, b *table.Column) *float64 {
	var xs, ys []float64
	for i := range a.Values {
		x, okx := a.Values[i].(float64)
		y, oky := b.Values[i].(float64)
		if okx && oky {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}
	if len(xs) < 2 {
		return nil
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return nil
	}
	return &r
}
