// Package stats provides the pure statistical computations consumed by
// the arqueo and customer analytics aggregators. Nothing in this
// package touches the database.
package stats

import (
	"math"
	"sort"
)

// Summary describes the distribution of signed cent differences.
type Summary struct {
	Count     int            `json:"count"`
	MeanCents float64        `json:"mean_cents"`
	Median    float64        `json:"median_cents"`
	StdDev    float64        `json:"std_dev_cents"`
	MinCents  int64          `json:"min_cents"`
	MaxCents  int64          `json:"max_cents"`
	Q1        float64        `json:"q1_cents"`
	Q3        float64        `json:"q3_cents"`
	IQR       float64        `json:"iqr_cents"`
	Histogram []HistogramBin `json:"histogram"`
}

// HistogramBin is one of ten equal-width buckets over [0, max(|v|)].
type HistogramBin struct {
	LowCents  float64 `json:"low_cents"`
	HighCents float64 `json:"high_cents"`
	Count     int     `json:"count"`
}

const histogramBins = 10

// Summarize computes the variance-analysis summary for a list of signed
// cent values.
func Summarize(values []int64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	floats := make([]float64, len(values))
	min, max := values[0], values[0]
	for i, v := range values {
		floats[i] = float64(v)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	sorted := append([]float64(nil), floats...)
	sort.Float64s(sorted)

	mean := Mean(floats)
	q1 := Percentile(sorted, 25)
	q3 := Percentile(sorted, 75)

	return Summary{
		Count:     len(values),
		MeanCents: mean,
		Median:    Percentile(sorted, 50),
		StdDev:    StdDev(floats, mean),
		MinCents:  min,
		MaxCents:  max,
		Q1:        q1,
		Q3:        q3,
		IQR:       q3 - q1,
		Histogram: histogram(values),
	}
}

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation around mean.
func StdDev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

// Percentile computes the p-th percentile of an ascending-sorted slice
// using linear interpolation between closest ranks.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(n-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

func histogram(values []int64) []HistogramBin {
	var maxAbs float64
	for _, v := range values {
		if a := math.Abs(float64(v)); a > maxAbs {
			maxAbs = a
		}
	}
	bins := make([]HistogramBin, histogramBins)
	width := maxAbs / histogramBins
	for i := range bins {
		bins[i].LowCents = width * float64(i)
		bins[i].HighCents = width * float64(i+1)
	}
	if maxAbs == 0 {
		bins[0].Count = len(values)
		return bins
	}
	for _, v := range values {
		idx := int(math.Abs(float64(v)) / width)
		if idx >= histogramBins {
			idx = histogramBins - 1
		}
		bins[idx].Count++
	}
	return bins
}

// Round2 rounds to two decimals for presentation fields.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
