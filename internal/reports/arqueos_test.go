package reports

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidipark/kidipark/internal/stats"
)

func arqueoFixture() []ArqueoRow {
	rows := []ArqueoRow{
		{ID: 1, BranchID: 1, UserRole: "admin", Date: day("2026-08-20"), SystemTotalCents: 50000, PhysicalCountCents: 50000},
		{ID: 2, BranchID: 1, UserRole: "kidibar", Date: day("2026-08-21"), SystemTotalCents: 30000, PhysicalCountCents: 29800},
		{ID: 3, BranchID: 2, UserRole: "recepcion", Date: day("2026-08-21"), SystemTotalCents: 42000, PhysicalCountCents: 42000},
		{ID: 4, BranchID: 1, UserRole: "kidibar", Date: day("2026-08-22"), SystemTotalCents: 28000, PhysicalCountCents: 28150},
	}
	for i := range rows {
		rows[i].DifferenceCents = rows[i].PhysicalCountCents - rows[i].SystemTotalCents
	}
	return rows
}

func TestArqueosReportCounts(t *testing.T) {
	report := buildArqueosReport(arqueoFixture(), day("2026-07-26"), day("2026-08-24"), testNow)

	assert.Equal(t, 4, report.TotalArqueos)
	assert.Equal(t, 2, report.PerfectMatches)
	assert.Equal(t, 2, report.Discrepancies)
	assert.Equal(t, 50.0, report.DiscrepancyRate)
}

func TestArqueosReportInvariant(t *testing.T) {
	report := buildArqueosReport(arqueoFixture(), day("2026-07-26"), day("2026-08-24"), testNow)

	for _, a := range report.Arqueos {
		assert.Equal(t, a.DifferenceCents, a.PhysicalCountCents-a.SystemTotalCents)
	}
	assert.Equal(t, report.PhysicalTotalCents-report.SystemTotalCents, report.DifferenceTotalCents)
	assert.GreaterOrEqual(t, report.DiscrepancyRate, 0.0)
	assert.LessOrEqual(t, report.DiscrepancyRate, 100.0)
}

func TestArqueosReportRoleAttribution(t *testing.T) {
	report := buildArqueosReport(arqueoFixture(), day("2026-07-26"), day("2026-08-24"), testNow)

	assert.Equal(t, 2, report.KidibarCloses)
	assert.Equal(t, 2, report.RecepcionCloses)

	byID := make(map[int64]ArqueoEntry)
	for _, a := range report.Arqueos {
		byID[a.ID] = a
	}
	// Attribution follows the closing user's role only.
	assert.Equal(t, "recepcion", byID[1].Module)
	assert.Equal(t, "kidibar", byID[2].Module)
	assert.Equal(t, "recepcion", byID[3].Module)
}

func TestArqueosReportAnomalies(t *testing.T) {
	rows := arqueoFixture()
	// A tight cluster plus one large shortfall should flag one anomaly.
	rows = append(rows,
		ArqueoRow{ID: 5, BranchID: 1, UserRole: "admin", Date: day("2026-08-23"), SystemTotalCents: 40000, PhysicalCountCents: 40000},
		ArqueoRow{ID: 6, BranchID: 1, UserRole: "admin", Date: day("2026-08-24"), SystemTotalCents: 60000, PhysicalCountCents: 10000, DifferenceCents: -50000},
	)
	report := buildArqueosReport(rows, day("2026-07-26"), day("2026-08-24"), testNow)

	require.NotEmpty(t, report.Anomalies)
	assert.Equal(t, int64(-50000), report.Anomalies[0].ValueCents)
	assert.Equal(t, stats.SeveritySevere, report.Anomalies[0].Severity)
}

func TestArqueosReportEmpty(t *testing.T) {
	report := buildArqueosReport(nil, day("2026-08-24"), day("2026-08-24"), testNow)
	assert.Equal(t, 0, report.TotalArqueos)
	assert.Equal(t, 0.0, report.DiscrepancyRate)
	assert.Empty(t, report.Anomalies)
	assert.Equal(t, 0, report.Variance.Count)
}
