package insight

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/datalens/internal/table"
)

// maxResultRows caps the rows returned by sort and filter.
const maxResultRows = 10

// Result is the table produced by a locally executed DataOperation.
type Result struct {
	Operation OperationType `json:"operation"`
	// Label names the single aggregate row: Total, Average or Count.
	Label string       `json:"label,omitempty"`
	Table *table.Table `json:"-"`
	// Unfiltered is set when filter conditions could not be applied and
	// the rows are simply the first rows of the table.
	Unfiltered bool   `json:"unfiltered,omitempty"`
	Note       string `json:"note,omitempty"`
}

// Execute runs op against t. It returns nil when the operation does not
// apply: unknown columns, a non-numeric sum or mean, calculate, or an
// unknown type.
func Execute(t *table.Table, op DataOperation) *Result {
	p := op.Parameters
	switch op.Type {
	case OpAggregate:
		return aggregate(t, p)
	case OpSort:
		if len(p.Columns) == 0 {
			return nil
		}
		c, ok := t.Column(p.Columns[0])
		if !ok {
			return nil
		}
		rows := t.SortDesc(c)
		if len(rows) > maxResultRows {
			rows = rows[:maxResultRows]
		}
		return &Result{Operation: OpSort, Table: t.Take(rows)}
	case OpFilter:
		return filter(t, p.Conditions)
	}
	// calculate carries free text that is not executed.
	return nil
}

var aggregateLabels = map[string]string{"sum": "Total", "mean": "Average", "count": "Count"}

func aggregate(t *table.Table, p Parameters) *Result {
	if len(p.Columns) == 0 {
		return nil
	}
	method := strings.ToLower(strings.TrimSpace(p.Aggregation))
	if method == "" {
		method = "sum"
	}
	label, ok := aggregateLabels[method]
	if !ok {
		return nil
	}
	out := &table.Table{}
	for _, name := range p.Columns {
		c, ok := t.Column(name)
		if !ok {
			return nil
		}
		if method != "count" && c.Type != table.Numeric {
			return nil
		}
		vals := c.Floats()
		var cell any
		switch method {
		case "count":
			cell = float64(c.NonNull())
		case "sum":
			sum := 0.0
			for _, v := range vals {
				sum += v
			}
			cell = sum
		case "mean":
			if len(vals) > 0 {
				sum := 0.0
				for _, v := range vals {
					sum += v
				}
				cell = sum / float64(len(vals))
			}
		}
		out.Columns = append(out.Columns, &table.Column{Name: c.Name, Type: table.Numeric, Values: []any{cell}})
	}
	return &Result{Operation: OpAggregate, Label: label, Table: out}
}

type condition struct {
	col   *table.Column
	op    string
	value string
}

var (
	clauseSplit   = regexp.MustCompile(`(?i)\s+and\s+`)
	containsRE    = regexp.MustCompile(`(?i)^(.+?)\s+contains\s+(.+)$`)
	comparisonRE  = regexp.MustCompile(`^(.+?)\s*(==|!=|>=|<=|=|>|<)\s*(.+)$`)
	unquoteCutset = "'\"` "
)

// filter applies "<column> <op> <value>" clauses joined by "and". When the
// conditions are empty or any clause cannot be parsed the first rows are
// returned and the result says so.
func filter(t *table.Table, conditions string) *Result {
	conds, err := parseConditions(t, conditions)
	if err != nil {
		return &Result{
			Operation:  OpFilter,
			Table:      t.Head(maxResultRows),
			Unfiltered: true,
			Note:       fmt.Sprintf("conditions not applied (%v); showing the first %d rows", err, maxResultRows),
		}
	}
	var rows []int
	for i := 0; i < t.Len() && len(rows) < maxResultRows; i++ {
		if matchAll(conds, i) {
			rows = append(rows, i)
		}
	}
	return &Result{Operation: OpFilter, Table: t.Take(rows)}
}

func parseConditions(t *table.Table, s string) ([]condition, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("no conditions given")
	}
	var out []condition
	for _, clause := range clauseSplit.Split(s, -1) {
		var name, op, value string
		if m := containsRE.FindStringSubmatch(clause); m != nil {
			name, op, value = m[1], "contains", m[2]
		} else if m := comparisonRE.FindStringSubmatch(clause); m != nil {
			name, op, value = m[1], m[2], m[3]
		} else {
			return nil, fmt.Errorf("cannot parse %q", clause)
		}
		name = strings.Trim(name, unquoteCutset)
		c, ok := lookupFold(t, name)
		if !ok {
			return nil, fmt.Errorf("unknown column %q", name)
		}
		if op == "=" {
			op = "=="
		}
		out = append(out, condition{col: c, op: op, value: strings.Trim(value, unquoteCutset)})
	}
	return out, nil
}

func lookupFold(t *table.Table, name string) (*table.Column, bool) {
	if c, ok := t.Column(name); ok {
		return c, true
	}
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return nil, false
}

func matchAll(conds []condition, row int) bool {
	for _, c := range conds {
		if !c.match(row) {
			return false
		}
	}
	return true
}

func (c condition) match(row int) bool {
	v := c.col.Values[row]
	if v == nil {
		return false
	}
	if c.op == "contains" {
		return strings.Contains(strings.ToLower(table.Format(v)), strings.ToLower(c.value))
	}
	var cmp int
	switch x := v.(type) {
	case float64:
		want, err := strconv.ParseFloat(strings.NewReplacer("$", "", ",", "").Replace(c.value), 64)
		if err != nil {
			return false
		}
		cmp = compare(x < want, x > want)
	case time.Time:
		want, ok := parseDate(c.value)
		if !ok {
			return false
		}
		cmp = compare(x.Before(want), x.After(want))
	default:
		cmp = strings.Compare(table.Format(v), c.value)
	}
	switch c.op {
	case "==":
		return cmp == 0
	case "!=":
		return cmp != 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	}
	return false
}

func compare(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range []string{table.TimeLayout, time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
