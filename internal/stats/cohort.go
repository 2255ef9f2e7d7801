package stats

import (
	"sort"
	"time"
)

// Granularity selects the cohort bucketing period.
type Granularity string

const (
	GranularityDaily   Granularity = "daily"
	GranularityWeekly  Granularity = "weekly"
	GranularityMonthly Granularity = "monthly"
)

// ValidGranularity reports whether g is a supported cohort granularity.
func ValidGranularity(g Granularity) bool {
	switch g {
	case GranularityDaily, GranularityWeekly, GranularityMonthly:
		return true
	}
	return false
}

// FirstVisit records when a customer first appeared.
type FirstVisit struct {
	CustomerKey string
	At          time.Time
}

// Cohort counts distinct customers whose first visit fell in a bucket.
type Cohort struct {
	Period    string `json:"period"`
	Customers int    `json:"customers"`
}

// GroupCohorts buckets customers by first-visit period. Duplicate
// customer keys count once, keeping the earliest visit.
func GroupCohorts(visits []FirstVisit, granularity Granularity) []Cohort {
	earliest := make(map[string]time.Time, len(visits))
	for _, v := range visits {
		if existing, ok := earliest[v.CustomerKey]; !ok || v.At.Before(existing) {
			earliest[v.CustomerKey] = v.At
		}
	}
	buckets := make(map[string]int)
	for _, at := range earliest {
		buckets[bucketKey(at, granularity)]++
	}
	cohorts := make([]Cohort, 0, len(buckets))
	for period, count := range buckets {
		cohorts = append(cohorts, Cohort{Period: period, Customers: count})
	}
	sort.Slice(cohorts, func(i, j int) bool {
		return cohorts[i].Period < cohorts[j].Period
	})
	return cohorts
}

func bucketKey(at time.Time, granularity Granularity) string {
	switch granularity {
	case GranularityMonthly:
		return at.Format("2006-01")
	case GranularityWeekly:
		// Monday of the ISO week.
		weekday := int(at.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		monday := at.AddDate(0, 0, -(weekday - 1))
		return monday.Format("2006-01-02")
	default:
		return at.Format("2006-01-02")
	}
}
