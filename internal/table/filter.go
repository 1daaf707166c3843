package table

import (
	"fmt"
	"time"
)

// FilterType selects how a Filter matches cells.
type FilterType string

const (
	FilterRange       FilterType = "range"
	FilterCategorical FilterType = "categorical"
	FilterDateRange   FilterType = "date_range"
)

// Filter restricts rows by one column. Filters on unknown columns, or whose
// type does not fit the column, are skipped.
type Filter struct {
	Column string     `json:"column"`
	Type   FilterType `json:"type"`
	Min    *float64   `json:"min,omitempty"`
	Max    *float64   `json:"max,omitempty"`
	Values []string   `json:"values,omitempty"`
	Start  *time.Time `json:"start,omitempty"`
	End    *time.Time `json:"end,omitempty"`
}

func (f Filter) match(c *Column, i int) bool {
	v := c.Values[i]
	switch f.Type {
	case FilterRange:
		x, ok := v.(float64)
		if !ok {
			return false
		}
		return x >= *f.Min && x <= *f.Max
	case FilterCategorical:
		if v == nil {
			return false
		}
		s := Format(v)
		for _, want := range f.Values {
			if s == want {
				return true
			}
		}
		return false
	case FilterDateRange:
		ts, ok := v.(time.Time)
		if !ok {
			return false
		}
		return !ts.Before(*f.Start) && !ts.After(*f.End)
	}
	return true
}

// active reports whether the filter applies to column c at all.
func (f Filter) active(c *Column) bool {
	switch f.Type {
	case FilterRange:
		return c.Type == Numeric && f.Min != nil && f.Max != nil
	case FilterCategorical:
		return len(f.Values) > 0
	case FilterDateRange:
		return c.Type == Timestamp && f.Start != nil && f.End != nil
	}
	return false
}

// View is a column selection plus row filters applied to a source table.
type View struct {
	Columns []string `json:"columns,omitempty"`
	Filters []Filter `json:"filters,omitempty"`
}

// Apply returns the rows of t matching every active filter, restricted to the
// selected columns (all columns when none are selected).
func (v View) Apply(t *Table) (*Table, error) {
	src := t
	if len(v.Columns) > 0 {
		sel, err := t.Select(v.Columns...)
		if err != nil {
			return nil, fmt.Errorf("select columns: %w", err)
		}
		src = sel
	}
	type bound struct {
		f Filter
		c *Column
	}
	var fs []bound
	for _, f := range v.Filters {
		c, ok := src.Column(f.Column)
		if !ok || !f.active(c) {
			continue
		}
		fs = append(fs, bound{f: f, c: c})
	}
	if len(fs) == 0 {
		return src.Clone(), nil
	}
	var rows []int
	for i := 0; i < src.Len(); i++ {
		keep := true
		for _, b := range fs {
			if !b.f.match(b.c, i) {
				keep = false
				break
			}
		}
		if keep {
			rows = append(rows, i)
		}
	}
	return src.Take(rows), nil
}
