package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGroupCohortsMonthly(t *testing.T) {
	visits := []FirstVisit{
		{CustomerKey: "a", At: time.Date(2026, 6, 3, 10, 0, 0, 0, time.UTC)},
		{CustomerKey: "b", At: time.Date(2026, 6, 28, 12, 0, 0, 0, time.UTC)},
		{CustomerKey: "c", At: time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)},
	}
	cohorts := GroupCohorts(visits, GranularityMonthly)
	require.Equal(t, []Cohort{
		{Period: "2026-06", Customers: 2},
		{Period: "2026-07", Customers: 1},
	}, cohorts)
}

func TestGroupCohortsWeeklyBucketsOnMonday(t *testing.T) {
	// 2026-08-19 is a Wednesday; 2026-08-23 is the Sunday of the same week.
	visits := []FirstVisit{
		{CustomerKey: "a", At: time.Date(2026, 8, 19, 0, 0, 0, 0, time.UTC)},
		{CustomerKey: "b", At: time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)},
		{CustomerKey: "c", At: time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)}, // next Monday
	}
	cohorts := GroupCohorts(visits, GranularityWeekly)
	require.Equal(t, []Cohort{
		{Period: "2026-08-17", Customers: 2},
		{Period: "2026-08-24", Customers: 1},
	}, cohorts)
}

func TestGroupCohortsDeduplicatesCustomers(t *testing.T) {
	visits := []FirstVisit{
		{CustomerKey: "a", At: time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)},
		{CustomerKey: "a", At: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)},
	}
	cohorts := GroupCohorts(visits, GranularityDaily)
	require.Equal(t, []Cohort{{Period: "2026-08-02", Customers: 1}}, cohorts)
}

func TestValidGranularity(t *testing.T) {
	require.True(t, ValidGranularity(GranularityDaily))
	require.True(t, ValidGranularity(GranularityWeekly))
	require.True(t, ValidGranularity(GranularityMonthly))
	require.False(t, ValidGranularity("hourly"))
}
