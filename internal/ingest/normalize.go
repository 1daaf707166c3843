package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/datalens/internal/table"
)

// Inference records one type decision made during normalization.
type Inference struct {
	Column   string           `json:"column"`
	Step     string           `json:"step"` // numeric|timestamp
	From     table.ColumnType `json:"from"`
	To       table.ColumnType `json:"to"`
	Parsed   int              `json:"parsed"`
	NonNull  int              `json:"non_null"`
	Ratio    float64          `json:"ratio"`
	Promoted bool             `json:"promoted"`
}

// dateTokens mark a column name as a candidate for timestamp coercion.
var dateTokens = []string{"date", "time", "created", "updated", "timestamp"}

var timeLayouts = []string{
	time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04",
	"2006-01-02", "2006/01/02", "2006-01-02 15:04", "2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999", "01/02/2006", "1/2/2006", "1/2/2006 15:04",
	"1/2/2006 15:04:05", "01-02-06", "02-Jan-2006", "2 Jan 2006", "Jan 2, 2006",
	"January 2, 2006", "Jan 2 2006", time.RFC1123, time.RFC1123Z,
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var numericCleaner = strings.NewReplacer("$", "", ",", "")

func parseNumber(s string) (float64, bool) {
	raw := strings.TrimSpace(numericCleaner.Replace(s))
	if raw == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// table builds an unnormalized table from the frame. A column whose
// non-null cells are all float64 starts numeric, any other column with
// values starts as text.
func (f *Frame) table() (*table.Table, error) {
	names := headerNames(f.Header)
	t := &table.Table{Columns: make([]*table.Column, len(names))}
	for j, name := range names {
		vals := make([]any, len(f.Rows))
		numeric, seen := true, false
		for i, row := range f.Rows {
			if j >= len(row) {
				continue
			}
			vals[i] = row[j]
			switch row[j].(type) {
			case nil:
			case float64:
				seen = true
			default:
				seen = true
				numeric = false
			}
		}
		ct := table.Unknown
		switch {
		case seen && numeric:
			ct = table.Numeric
		case seen:
			ct = table.Text
			for i, v := range vals {
				if x, ok := v.(float64); ok {
					vals[i] = table.Format(x)
				}
			}
		}
		t.Columns[j] = &table.Column{Name: name, Type: ct, Values: vals}
	}
	for i, row := range f.Rows {
		if len(row) > len(names) {
			return nil, fmt.Errorf("row %d has %d cells, header has %d", i+1, len(row), len(names))
		}
	}
	return t, nil
}

// headerNames replaces blank labels with "Unnamed: <i>" and de-duplicates.
func headerNames(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		if strings.TrimSpace(h) == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		out[i] = h
	}
	return dedupe(out)
}

// dedupe renames repeated names to name.1, name.2, ... keeping the first.
func dedupe(names []string) []string {
	used := make(map[string]struct{}, len(names))
	for _, n := range names {
		used[n] = struct{}{}
	}
	seen := make(map[string]int, len(names))
	out := make([]string, len(names))
	for i, n := range names {
		if _, dup := seen[n]; !dup {
			seen[n] = 0
			out[i] = n
			continue
		}
		k := seen[n]
		cand := n
		for {
			k++
			cand = fmt.Sprintf("%s.%d", n, k)
			if _, taken := used[cand]; !taken {
				break
			}
		}
		seen[n] = k
		used[cand] = struct{}{}
		out[i] = cand
	}
	return out
}

// Normalize cleans a table in a fixed order: drop all-null rows and columns,
// trim and de-duplicate names, promote mostly-numeric text columns, then
// coerce date-like text columns to timestamps. The input is not modified.
// Rows whose only values fail coercion stay as all-null rows. Normalizing
// an already normalized table assigns the same names and types.
func Normalize(in *table.Table) (*table.Table, []Inference) {
	t := dropEmpty(in.Clone())

	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = strings.TrimSpace(c.Name)
	}
	for i, n := range dedupe(names) {
		t.Columns[i].Name = n
	}

	var log []Inference
	for _, c := range t.Columns {
		if c.Type != table.Text {
			continue
		}
		log = append(log, promoteNumeric(c))
	}
	for _, c := range t.Columns {
		if c.Type != table.Text || !dateLike(c.Name) {
			continue
		}
		log = append(log, coerceTimestamp(c))
	}
	return t, log
}

func dateLike(name string) bool {
	lower := strings.ToLower(name)
	for _, tok := range dateTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

func promoteNumeric(c *table.Column) Inference {
	inf := Inference{Column: c.Name, Step: "numeric", From: c.Type, To: c.Type}
	parsed := make([]any, len(c.Values))
	for i, v := range c.Values {
		if v == nil {
			continue
		}
		inf.NonNull++
		if f, ok := parseNumber(table.Format(v)); ok {
			parsed[i] = f
			inf.Parsed++
		}
	}
	if inf.NonNull > 0 {
		inf.Ratio = float64(inf.Parsed) / float64(inf.NonNull)
	}
	if inf.Ratio > 0.5 {
		c.Values = parsed
		c.Type = table.Numeric
		inf.To = table.Numeric
		inf.Promoted = true
	}
	return inf
}

func coerceTimestamp(c *table.Column) Inference {
	inf := Inference{Column: c.Name, Step: "timestamp", From: c.Type, To: c.Type}
	parsed := make([]any, len(c.Values))
	for i, v := range c.Values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		inf.NonNull++
		if ts, ok := parseTime(s); ok {
			parsed[i] = ts
			inf.Parsed++
		}
	}
	if inf.NonNull > 0 {
		inf.Ratio = float64(inf.Parsed) / float64(inf.NonNull)
	}
	if inf.Parsed > 0 {
		c.Values = parsed
		c.Type = table.Timestamp
		inf.To = table.Timestamp
		inf.Promoted = true
	}
	return inf
}

// dropEmpty removes all-null rows, then all-null columns when rows remain.
// A table left without rows keeps its columns, typed unknown.
func dropEmpty(t *table.Table) *table.Table {
	var keep []int
	for i := 0; i < t.Len(); i++ {
		for _, c := range t.Columns {
			if c.Values[i] != nil {
				keep = append(keep, i)
				break
			}
		}
	}
	if len(keep) != t.Len() {
		t = t.Take(keep)
	}
	if t.Len() == 0 {
		for _, c := range t.Columns {
			c.Type = table.Unknown
		}
		return t
	}
	cols := t.Columns[:0]
	for _, c := range t.Columns {
		if c.NonNull() > 0 {
			cols = append(cols, c)
		}
	}
	t.Columns = cols
	return t
}
