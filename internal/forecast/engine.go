// Package forecast produces moving-average predictions with trend
// decay, day-of-week seasonality, outlier exclusion, and synthesized
// natural variation for sales, capacity, and stock planning.
package forecast

import (
	"math"
	"math/rand/v2"
	"time"
)

// Confidence grades how much history backs a projection.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Method names reported on projections.
const (
	MethodMovingAverage    = "moving_average"
	MethodInsufficientData = "insufficient_data"
)

const (
	minSamplePoints = 3
	outlierSigma    = 3.0

	trendMin        = 0.5
	trendMax        = 2.0
	trendNeutralEps = 0.05
	trendDecayStep  = 0.05

	cvMin = 0.05
	cvMax = 0.3

	dowMinDays     = 14
	dowMinWeekdays = 5
)

// defaultDOWFactors applies when history is too thin to derive weekday
// seasonality: weekends and Friday run hotter.
var defaultDOWFactors = map[time.Weekday]float64{
	time.Friday:   1.15,
	time.Saturday: 1.25,
	time.Sunday:   1.20,
}

// HistoryPoint is one observed day of the series being projected.
type HistoryPoint struct {
	Date  time.Time
	Value float64
}

// Point is one projected day.
type Point struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Projection is the engine output for one series.
type Projection struct {
	Method          string     `json:"method"`
	Forecast        []Point    `json:"forecast"`
	Confidence      Confidence `json:"confidence"`
	BaselineMean    float64    `json:"baseline_mean"`
	TrendFactor     float64    `json:"trend_factor"`
	CV              float64    `json:"cv"`
	HistoryDays     int        `json:"history_days"`
	OutliersRemoved int        `json:"outliers_removed"`
}

// Engine runs the projection pipeline. The normal-deviate source is
// injectable so tests can pin the synthesized variation.
type Engine struct {
	norm func() float64
}

// NewEngine constructs an Engine with a seeded gaussian source.
func NewEngine() *Engine {
	return &Engine{norm: rand.NormFloat64}
}

// WithNorm overrides the standard-normal source.
func (e *Engine) WithNorm(norm func() float64) {
	if norm != nil {
		e.norm = norm
	}
}

// Project runs the full pipeline: validate sample size, drop outliers
// beyond 3 sigma, compute baseline and trend, derive day-of-week
// factors, then synthesize days forecast points starting the day after
// start. Values are floored at zero.
func (e *Engine) Project(history []HistoryPoint, days int, start time.Time) Projection {
	if len(history) < minSamplePoints {
		return Projection{
			Method:      MethodInsufficientData,
			Forecast:    []Point{},
			Confidence:  ConfidenceLow,
			HistoryDays: len(history),
		}
	}

	clean, removed := removeOutliers(history)
	baseline := meanOf(clean)
	trend := trendFactor(clean)
	dow := dowFactors(clean, baseline)
	cv := clampedCV(clean, baseline)

	forecast := make([]Point, 0, days)
	for i := 1; i <= days; i++ {
		date := start.AddDate(0, 0, i)
		value := baseline * decayedTrend(trend, i) * dowFactor(dow, date.Weekday())
		value += e.norm() * value * cv
		if value < 0 {
			value = 0
		}
		forecast = append(forecast, Point{Date: date.Format("2006-01-02"), Value: value})
	}

	return Projection{
		Method:          MethodMovingAverage,
		Forecast:        forecast,
		Confidence:      confidence(len(history), removed, trend),
		BaselineMean:    baseline,
		TrendFactor:     trend,
		CV:              cv,
		HistoryDays:     len(history),
		OutliersRemoved: removed,
	}
}

// removeOutliers drops points beyond 3 sigma from the raw mean.
func removeOutliers(history []HistoryPoint) ([]HistoryPoint, int) {
	mean := meanOf(history)
	stdev := stdevOf(history, mean)
	if stdev == 0 {
		return history, 0
	}
	clean := make([]HistoryPoint, 0, len(history))
	for _, p := range history {
		if math.Abs(p.Value-mean) > outlierSigma*stdev {
			continue
		}
		clean = append(clean, p)
	}
	if len(clean) < minSamplePoints {
		return history, 0
	}
	return clean, len(history) - len(clean)
}

// trendFactor is mean(last 7)/mean(previous 7), clamped to [0.5, 2.0].
// Neutral (1.0) when history is too short or the ratio is within 5%.
func trendFactor(history []HistoryPoint) float64 {
	if len(history) < 14 {
		return 1.0
	}
	last := meanOf(history[len(history)-7:])
	prev := meanOf(history[len(history)-14 : len(history)-7])
	if prev == 0 {
		return 1.0
	}
	trend := last / prev
	if trend < trendMin {
		trend = trendMin
	}
	if trend > trendMax {
		trend = trendMax
	}
	if math.Abs(trend-1.0) <= trendNeutralEps {
		return 1.0
	}
	return trend
}

// decayedTrend fades the trend linearly so its effect vanishes by day 20.
func decayedTrend(trend float64, day int) float64 {
	weight := 1.0 - trendDecayStep*float64(day)
	if weight < 0 {
		weight = 0
	}
	return 1.0 + (trend-1.0)*weight
}

// dowFactors derives weekday seasonality from history when at least 14
// days spanning 5 distinct weekdays exist, else the default table.
func dowFactors(history []HistoryPoint, overall float64) map[time.Weekday]float64 {
	if len(history) < dowMinDays || overall == 0 {
		return defaultDOWFactors
	}
	sums := make(map[time.Weekday]float64)
	counts := make(map[time.Weekday]int)
	for _, p := range history {
		wd := p.Date.Weekday()
		sums[wd] += p.Value
		counts[wd]++
	}
	if len(counts) < dowMinWeekdays {
		return defaultDOWFactors
	}
	factors := make(map[time.Weekday]float64, len(counts))
	for wd, sum := range sums {
		factors[wd] = sum / float64(counts[wd]) / overall
	}
	return factors
}

func dowFactor(factors map[time.Weekday]float64, wd time.Weekday) float64 {
	if f, ok := factors[wd]; ok {
		return f
	}
	return 1.0
}

// clampedCV derives the coefficient of variation from history, clamped
// to [0.05, 0.3] so forecasts are neither flat nor wild.
func clampedCV(history []HistoryPoint, mean float64) float64 {
	if mean == 0 {
		return cvMin
	}
	cv := stdevOf(history, mean) / math.Abs(mean)
	if cv < cvMin {
		return cvMin
	}
	if cv > cvMax {
		return cvMax
	}
	return cv
}

// confidence grades history depth and trend stability, downgrading one
// level when more than 10% of points were dropped as outliers.
func confidence(historyDays, removed int, trend float64) Confidence {
	var level Confidence
	switch {
	case historyDays >= 14 && math.Abs(trend-1.0) <= 0.2:
		level = ConfidenceHigh
	case historyDays >= 7:
		level = ConfidenceMedium
	default:
		level = ConfidenceLow
	}
	if float64(removed) > 0.1*float64(historyDays) {
		switch level {
		case ConfidenceHigh:
			level = ConfidenceMedium
		case ConfidenceMedium:
			level = ConfidenceLow
		}
	}
	return level
}

func meanOf(points []HistoryPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	var sum float64
	for _, p := range points {
		sum += p.Value
	}
	return sum / float64(len(points))
}

func stdevOf(points []HistoryPoint, mean float64) float64 {
	if len(points) == 0 {
		return 0
	}
	var sum float64
	for _, p := range points {
		d := p.Value - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(points)))
}
