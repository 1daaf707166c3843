package table

import "sort"

// CategoryCount is a value and how often it occurs.
type CategoryCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ValueCounts returns the distinct non-null values of c with their counts,
// most frequent first. Ties keep first-appearance order.
func ValueCounts(c *Column) []CategoryCount {
	pos := map[string]int{}
	var out []CategoryCount
	for _, v := range c.Values {
		if v == nil {
			continue
		}
		key := Format(v)
		if i, ok := pos[key]; ok {
			out[i].Count++
			continue
		}
		pos[key] = len(out)
		out = append(out, CategoryCount{Value: key, Count: 1})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// Unique returns the number of distinct non-null values.
func Unique(c *Column) int {
	seen := map[string]struct{}{}
	for _, v := range c.Values {
		if v == nil {
			continue
		}
		seen[Format(v)] = struct{}{}
	}
	return len(seen)
}

// Top returns at most n entries of ValueCounts.
func Top(c *Column, n int) []CategoryCount {
	vc := ValueCounts(c)
	if n > 0 && len(vc) > n {
		vc = vc[:n]
	}
	return vc
}

// GroupSum sums the numeric cells of val per non-null key of key, returning
// groups ordered by key ascending.
func GroupSum(key, val *Column) []GroupTotal {
	sums := map[string]float64{}
	var order []string
	for i, k := range key.Values {
		if k == nil {
			continue
		}
		ks := Format(k)
		if _, ok := sums[ks]; !ok {
			order = append(order, ks)
			sums[ks] = 0
		}
		if f, ok := val.Values[i].(float64); ok {
			sums[ks] += f
		}
	}
	sort.Strings(order)
	out := make([]GroupTotal, 0, len(order))
	for _, k := range order {
		out = append(out, GroupTotal{Key: k, Sum: sums[k]})
	}
	return out
}

// GroupTotal is one group of GroupSum.
type GroupTotal struct {
	Key string  `json:"key"`
	Sum float64 `json:"sum"`
}
