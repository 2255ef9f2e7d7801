package stats

import (
	"math"
	"sort"
)

// Severity classifies how far outside the IQR fences a value sits.
type Severity string

const (
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// Observation is a labelled signed cent value, e.g. one arqueo difference.
type Observation struct {
	Label string
	Value int64
}

// Anomaly is an observation flagged outside the IQR fences.
type Anomaly struct {
	Label      string   `json:"label"`
	ValueCents int64    `json:"value_cents"`
	Severity   Severity `json:"severity"`
	ZScore     float64  `json:"z_score"`
}

// DetectAnomalies flags observations outside the Tukey fences: severe
// beyond 3*IQR, moderate beyond 1.5*IQR. Results are ordered by
// absolute difference descending.
func DetectAnomalies(observations []Observation) []Anomaly {
	if len(observations) == 0 {
		return nil
	}
	values := make([]int64, len(observations))
	for i, o := range observations {
		values[i] = o.Value
	}
	summary := Summarize(values)

	severeLow := summary.Q1 - 3*summary.IQR
	severeHigh := summary.Q3 + 3*summary.IQR
	moderateLow := summary.Q1 - 1.5*summary.IQR
	moderateHigh := summary.Q3 + 1.5*summary.IQR

	var anomalies []Anomaly
	for _, o := range observations {
		v := float64(o.Value)
		var severity Severity
		switch {
		case v < severeLow || v > severeHigh:
			severity = SeveritySevere
		case v < moderateLow || v > moderateHigh:
			severity = SeverityModerate
		default:
			continue
		}
		z := 0.0
		if summary.StdDev != 0 {
			z = (v - summary.Median) / summary.StdDev
		}
		anomalies = append(anomalies, Anomaly{
			Label:      o.Label,
			ValueCents: o.Value,
			Severity:   severity,
			ZScore:     Round2(z),
		})
	}
	sort.Slice(anomalies, func(i, j int) bool {
		return math.Abs(float64(anomalies[i].ValueCents)) > math.Abs(float64(anomalies[j].ValueCents))
	})
	return anomalies
}
