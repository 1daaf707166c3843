package table

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ColumnType is the semantic type inferred for a column.
type ColumnType string

const (
	Numeric   ColumnType = "numeric"
	Text      ColumnType = "text"
	Timestamp ColumnType = "timestamp"
	Unknown   ColumnType = "unknown"
)

// Column is a named, typed sequence of cells.
// A cell is nil (null), float64 (numeric), string (text) or time.Time (timestamp).
type Column struct {
	Name   string
	Type   ColumnType
	Values []any
}

// Table is an ordered set of equal-length columns.
type Table struct {
	Columns []*Column
}

// New returns a table over the given columns. It does not copy.
func New(cols ...*Column) *Table {
	return &Table{Columns: cols}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil || len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Values)
}

// Width returns the number of columns.
func (t *Table) Width() int {
	if t == nil {
		return 0
	}
	return len(t.Columns)
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	out := make([]string, 0, t.Width())
	for _, c := range t.Columns {
		out = append(out, c.Name)
	}
	return out
}

// Column looks up a column by exact name.
func (t *Table) Column(name string) (*Column, bool) {
	if t == nil {
		return nil, false
	}
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// OfType returns the columns of the given type, in table order.
func (t *Table) OfType(ct ColumnType) []*Column {
	var out []*Column
	if t == nil {
		return out
	}
	for _, c := range t.Columns {
		if c.Type == ct {
			out = append(out, c)
		}
	}
	return out
}

// TypeCounts returns how many columns carry each type.
func (t *Table) TypeCounts() map[ColumnType]int {
	out := map[ColumnType]int{}
	if t == nil {
		return out
	}
	for _, c := range t.Columns {
		out[c.Type]++
	}
	return out
}

// Row returns the cells at position i across all columns.
func (t *Table) Row(i int) []any {
	row := make([]any, len(t.Columns))
	for j, c := range t.Columns {
		row[j] = c.Values[i]
	}
	return row
}

// Validate checks the table shape: equal column lengths and names that
// are unique after trimming.
func (t *Table) Validate() error {
	if t == nil {
		return errors.New("nil table")
	}
	seen := make(map[string]struct{}, len(t.Columns))
	n := t.Len()
	for _, c := range t.Columns {
		key := strings.TrimSpace(c.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate column name %q", key)
		}
		seen[key] = struct{}{}
		if len(c.Values) != n {
			return fmt.Errorf("column %q has %d values, want %d", c.Name, len(c.Values), n)
		}
	}
	return nil
}

// Clone returns a deep copy of the column structure. Cell values are immutable
// scalars so they are shared.
func (t *Table) Clone() *Table {
	out := &Table{Columns: make([]*Column, len(t.Columns))}
	for i, c := range t.Columns {
		vals := make([]any, len(c.Values))
		copy(vals, c.Values)
		out.Columns[i] = &Column{Name: c.Name, Type: c.Type, Values: vals}
	}
	return out
}

// Take builds a new table from the given row positions, in order.
func (t *Table) Take(rows []int) *Table {
	out := &Table{Columns: make([]*Column, len(t.Columns))}
	for i, c := range t.Columns {
		vals := make([]any, len(rows))
		for k, r := range rows {
			vals[k] = c.Values[r]
		}
		out.Columns[i] = &Column{Name: c.Name, Type: c.Type, Values: vals}
	}
	return out
}

// Head returns the first n rows (all rows when n <= 0 or n >= Len).
func (t *Table) Head(n int) *Table {
	if n <= 0 || n >= t.Len() {
		return t.Clone()
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return t.Take(rows)
}

// Select keeps the named columns in the order given. Unknown names are an error.
func (t *Table) Select(names ...string) (*Table, error) {
	out := &Table{}
	for _, name := range names {
		c, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("unknown column %q", name)
		}
		out.Columns = append(out.Columns, c)
	}
	return out.Clone(), nil
}

// SortDesc returns the positions of all rows ordered by the column descending.
// Nulls sort last; ties keep their original order.
func (t *Table) SortDesc(col *Column) []int {
	idx := make([]int, len(col.Values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		va, vb := col.Values[idx[a]], col.Values[idx[b]]
		if va == nil {
			return false
		}
		if vb == nil {
			return true
		}
		return Less(vb, va)
	})
	return idx
}

// NullCount returns the number of nil cells.
func (c *Column) NullCount() int {
	n := 0
	for _, v := range c.Values {
		if v == nil {
			n++
		}
	}
	return n
}

// NonNull returns the number of non-nil cells.
func (c *Column) NonNull() int { return len(c.Values) - c.NullCount() }

// Floats returns the non-null numeric cells in row order.
func (c *Column) Floats() []float64 {
	out := make([]float64, 0, len(c.Values))
	for _, v := range c.Values {
		if f, ok := v.(float64); ok {
			out = append(out, f)
		}
	}
	return out
}

// Less orders two non-null cells of the same kind. Mixed kinds compare by
// their formatted text.
func Less(a, b any) bool {
	switch x := a.(type) {
	case float64:
		if y, ok := b.(float64); ok {
			return x < y
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Before(y)
		}
	case string:
		if y, ok := b.(string); ok {
			return x < y
		}
	}
	return Format(a) < Format(b)
}

// TimeLayout is the layout used when timestamps are rendered as text.
const TimeLayout = "2006-01-02 15:04:05"

// Format renders a cell for display and text exports. Nulls render empty.
func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return x.Format(TimeLayout)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
