package chart

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/datalens/internal/table"
)

func d(day int) time.Time { return time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC) }

func fixture() *table.Table {
	return table.New(
		&table.Column{Name: "region", Type: table.Text, Values: []any{"east", "west", "east", nil, "north", "west"}},
		&table.Column{Name: "units", Type: table.Numeric, Values: []any{1.0, 2.0, 3.0, 4.0, 5.0, 6.0}},
		&table.Column{Name: "price", Type: table.Numeric, Values: []any{2.0, 4.0, 6.0, 8.0, nil, 12.0}},
		&table.Column{Name: "day", Type: table.Timestamp, Values: []any{d(3), d(1), nil, d(2), d(5), d(4)}},
	)
}

func TestCheckPrerequisites(t *testing.T) {
	oneNumeric := table.New(&table.Column{Name: "v", Type: table.Numeric, Values: []any{1.0}})
	cases := []struct {
		kind  Kind
		tb    *table.Table
		warns int
	}{
		{Line, fixture(), 0},
		{Line, oneNumeric, 1},
		{Bar, oneNumeric, 1},
		{Bar, table.New(), 2},
		{Scatter, oneNumeric, 1},
		{Histogram, oneNumeric, 0},
		{Histogram, table.New(), 1},
		{Correlation, oneNumeric, 1},
		{Correlation, fixture(), 0},
		{Kind("pie3d"), fixture(), 1},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			assert.Len(t, Check(tc.tb, tc.kind), tc.warns)
		})
	}
}

func TestCorrelationRejectedBeforeConstruction(t *testing.T) {
	tb := table.New(
		&table.Column{Name: "v", Type: table.Numeric, Values: []any{1.0, 2.0}},
		&table.Column{Name: "s", Type: table.Text, Values: []any{"a", "b"}},
	)
	spec, err := Build(tb, Request{Kind: Correlation})
	assert.Nil(t, spec)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	require.Len(t, ve.Warnings, 1)
	assert.Equal(t, Correlation, ve.Warnings[0].Kind)
}

func TestBindingsValidated(t *testing.T) {
	_, err := Build(fixture(), Request{Kind: Scatter, X: "units", Y: "region"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Error(), `"region" is text`)

	_, err = Build(fixture(), Request{Kind: Line, X: "nope", Y: "units"})
	require.ErrorAs(t, err, &ve)

	_, err = Build(fixture(), Request{Kind: Histogram, X: "units", Bins: 500})
	require.ErrorAs(t, err, &ve)
}

func TestBarSumsPerCategory(t *testing.T) {
	spec, err := Build(fixture(), Request{Kind: Bar, X: "region", Y: "units"})
	require.NoError(t, err)
	assert.Equal(t, "units by region", spec.Title)
	assert.Equal(t, []BarValue{{"east", 4}, {"north", 5}, {"west", 8}}, spec.Bars)
}

func TestLineSeries(t *testing.T) {
	spec, err := Build(fixture(), Request{Kind: Line, X: "units", Y: "price"})
	require.NoError(t, err)
	require.Len(t, spec.Series, 1)
	assert.Len(t, spec.Series[0].Points, 5)

	spec, err = Build(fixture(), Request{Kind: Line, X: "units", Y: "price", Color: "region"})
	require.NoError(t, err)
	names := []string{}
	for _, s := range spec.Series {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"east", "west", ""}, names)
}

func TestScatterSizeAndColor(t *testing.T) {
	spec, err := Build(fixture(), Request{Kind: Scatter, X: "units", Y: "price", Size: "units", Color: "region"})
	require.NoError(t, err)
	require.Len(t, spec.Points, 5)
	require.NotNil(t, spec.Points[0].Size)
	assert.Equal(t, 1.0, *spec.Points[0].Size)
	assert.Equal(t, "east", spec.Points[0].Color)
}

func TestHistogramBins(t *testing.T) {
	spec, err := Build(fixture(), Request{Kind: Histogram, X: "units", Bins: 5})
	require.NoError(t, err)
	require.Len(t, spec.Bins, 5)
	total := 0
	for _, b := range spec.Bins {
		total += b.Count
	}
	assert.Equal(t, 6, total)
	assert.Equal(t, 1.0, spec.Bins[0].Lower)
	assert.Equal(t, 6.0, spec.Bins[4].Upper)
	assert.Equal(t, 1, spec.Bins[0].Count)
	assert.Equal(t, 2, spec.Bins[4].Count)

	spec, err = Build(fixture(), Request{Kind: Histogram, X: "units"})
	require.NoError(t, err)
	assert.Len(t, spec.Bins, DefaultBins)

	constant := table.New(&table.Column{Name: "c", Type: table.Numeric, Values: []any{3.0, 3.0}})
	spec, err = Build(constant, Request{Kind: Histogram, X: "c", Bins: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, spec.Bins[0].Count)
}

func TestCorrelationPairwiseComplete(t *testing.T) {
	tb := fixture()
	tb.Columns = append(tb.Columns, &table.Column{Name: "flat", Type: table.Numeric, Values: []any{1.0, 1.0, 1.0, 1.0, 1.0, 1.0}})
	spec, err := Build(tb, Request{Kind: Correlation})
	require.NoError(t, err)
	m := spec.Matrix
	assert.Equal(t, []string{"units", "price", "flat"}, m.Columns)
	require.NotNil(t, m.Values[0][1])
	assert.InDelta(t, 1.0, *m.Values[0][1], 1e-9)
	assert.Equal(t, m.Values[0][1], m.Values[1][0])
	assert.Nil(t, m.Values[0][2])
}

func TestLimitBoundsRows(t *testing.T) {
	spec, err := Build(fixture(), Request{Kind: Scatter, X: "units", Y: "price", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, spec.Points, 2)
}

func TestAutoBundle(t *testing.T) {
	got, warnings := Auto(fixture())
	assert.Empty(t, warnings)
	titles := make([]string, len(got))
	for i, c := range got {
		titles[i] = c.Title
	}
	assert.Equal(t, []string{
		"Numeric Distributions", "Correlation Heatmap", "Categorical Analysis",
		"Time Series Analysis", "Top Categories Analysis",
	}, titles)

	dist := got[0].Spec
	assert.Equal(t, Grid, dist.Kind)
	assert.Len(t, dist.Panels, 2)

	ts := got[3].Spec
	require.Len(t, ts.Series, 2)
	xs := []any{}
	for _, p := range ts.Series[0].Points {
		xs = append(xs, p.X)
	}
	assert.Equal(t, []any{d(1), d(2), d(3), d(4), d(5)}, xs)

	top := got[4].Spec
	assert.Equal(t, []BarValue{{"west", 8}, {"north", 5}, {"east", 4}}, top.Bars)
}

func TestAutoSkipsWhatDoesNotApply(t *testing.T) {
	tb := table.New(&table.Column{Name: "label", Type: table.Text, Values: []any{"a", "b", "a"}})
	got, _ := Auto(tb)
	require.Len(t, got, 1)
	assert.Equal(t, "Categorical Analysis", got[0].Title)

	empty := table.New(&table.Column{Name: "v", Type: table.Numeric, Values: []any{}})
	got, warnings := Auto(empty)
	assert.Empty(t, got)
	assert.Len(t, warnings, 1)
}

func TestAvailability(t *testing.T) {
	tb := table.New(&table.Column{Name: "v", Type: table.Numeric, Values: []any{1.0}})
	assert.Equal(t, map[Kind]bool{Line: false, Bar: false, Scatter: false, Histogram: true, Correlation: false}, Availability(tb))
}

func TestDashboard(t *testing.T) {
	got := Dashboard(fixture())
	require.Len(t, got, 3)
	assert.Equal(t, Pie, got[2].Spec.Kind)
	assert.Equal(t, BarValue{Category: "units Total", Value: 21}, got[0].Spec.Bars[0])
}
