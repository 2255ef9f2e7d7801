package reports

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServicesReportTimerCounts(t *testing.T) {
	live := []TimerRow{
		{ID: 1, Status: TimerActive},
		{ID: 2, Status: TimerActive},
		{ID: 3, Status: TimerScheduled},
		{ID: 4, Status: TimerExtended},
	}
	todays := []TimerRow{
		{ID: 5, Status: TimerCompleted},
		{ID: 6, Status: TimerCompleted},
		{ID: 7, Status: TimerCancelled},
		{ID: 1, Status: TimerActive},
	}
	report := buildServicesReport(live, todays, nil, nil, day("2026-08-18"), day("2026-08-24"), testNow)

	assert.Equal(t, 4, report.ActiveTimers)
	assert.Equal(t, 1, report.ScheduledTimers)
	assert.Equal(t, 1, report.ExtendedTimers)
	assert.Equal(t, 2, report.CompletedToday)
}

func TestServicesReportPeakHoursTopFive(t *testing.T) {
	hours := []HourCount{
		{Hour: 16, Count: 40},
		{Hour: 17, Count: 35},
		{Hour: 12, Count: 30},
		{Hour: 15, Count: 22},
		{Hour: 11, Count: 18},
		{Hour: 10, Count: 9},
		{Hour: 9, Count: 2},
	}
	report := buildServicesReport(nil, nil, nil, hours, day("2026-08-18"), day("2026-08-24"), testNow)

	require.Len(t, report.PeakHours, 5)
	assert.Equal(t, 16, report.PeakHours[0].Hour)
	assert.Equal(t, 11, report.PeakHours[4].Hour)
}

func TestServicesReportUsagePassthrough(t *testing.T) {
	usage := []ServiceUsageRow{
		{ServiceID: 1, Name: "Brincolin", Count: 12, RevenueCents: 60000},
		{ServiceID: 2, Name: "Arcade", Count: 7, RevenueCents: 21000},
	}
	report := buildServicesReport(nil, nil, usage, nil, day("2026-08-18"), day("2026-08-24"), testNow)

	require.Len(t, report.ByService, 2)
	assert.Equal(t, "Brincolin", report.ByService[0].Name)
	assert.Equal(t, int64(60000), report.ByService[0].RevenueCents)
}

func TestServicesReportEmpty(t *testing.T) {
	report := buildServicesReport(nil, nil, nil, nil, day("2026-08-24"), day("2026-08-24"), testNow)
	assert.Equal(t, 0, report.ActiveTimers)
	assert.Equal(t, 0, report.CompletedToday)
	assert.Empty(t, report.PeakHours)
	assert.Empty(t, report.ByService)
}
