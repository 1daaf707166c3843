package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

// outlierThreshold is the robust |z| above which a value counts as an outlier.
const outlierThreshold = 3.5

// minOutlierSample is the smallest column for which outliers are scored.
const minOutlierSample = 8

// NumericStats is the describe-style summary of one numeric column.
type NumericStats struct {
	Column string   `json:"column"`
	Count  int      `json:"count"`
	Mean   float64  `json:"mean"`
	Std    *float64 `json:"std,omitempty"`
	Min    float64  `json:"min"`
	Q1     float64  `json:"p25"`
	Median float64  `json:"p50"`
	Q3     float64  `json:"p75"`
	Max    float64  `json:"max"`
	// Outliers counts values with robust |z| above the threshold (MAD based).
	Outliers int     `json:"outliers"`
	MaxAbsZ  float64 `json:"max_abs_z,omitempty"`
}

// Describe computes count, mean, sample std, min, quartiles and max.
// The standard deviation is omitted below two values.
func Describe(name string, vals []float64) (NumericStats, error) {
	ns := NumericStats{Column: name, Count: len(vals)}
	data := stats.Float64Data(vals)
	var err error
	if ns.Mean, err = stats.Mean(data); err != nil {
		return ns, fmt.Errorf("mean of %q: %w", name, err)
	}
	if ns.Min, err = stats.Min(data); err != nil {
		return ns, fmt.Errorf("min of %q: %w", name, err)
	}
	if ns.Max, err = stats.Max(data); err != nil {
		return ns, fmt.Errorf("max of %q: %w", name, err)
	}
	if len(vals) >= 2 {
		sd, err := stats.StandardDeviationSample(data)
		if err != nil {
			return ns, fmt.Errorf("std of %q: %w", name, err)
		}
		ns.Std = &sd
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	ns.Q1 = quantile(sorted, 0.25)
	ns.Median = quantile(sorted, 0.5)
	ns.Q3 = quantile(sorted, 0.75)

	if len(vals) >= minOutlierSample {
		median, mad := medianMAD(vals)
		if mad > 0 {
			for _, v := range vals {
				z := math.Abs(0.6745 * (v - median) / mad)
				if z > outlierThreshold {
					ns.Outliers++
				}
				if z > ns.MaxAbsZ {
					ns.MaxAbsZ = z
				}
			}
		}
	}
	return ns, nil
}

// medianMAD computes median and MAD (median absolute deviation) of values.
func medianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	median = quantile(cp, 0.5)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = quantile(dev, 0.5)
	return
}

// quantile interpolates linearly between closest ranks of a sorted slice.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
