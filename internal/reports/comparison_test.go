package reports

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaselineWindows(t *testing.T) {
	from, to := day("2026-08-18"), day("2026-08-24")

	pf, pt := baselineWindow(from, to, ComparePreviousPeriod)
	assert.Equal(t, "2026-08-11", isoDate(pf))
	assert.Equal(t, "2026-08-17", isoDate(pt))

	mf, mt := baselineWindow(from, to, CompareMonthOverMonth)
	assert.Equal(t, "2026-07-18", isoDate(mf))
	assert.Equal(t, "2026-07-24", isoDate(mt))

	yf, yt := baselineWindow(from, to, CompareYearOverYear)
	assert.Equal(t, "2025-08-18", isoDate(yf))
	assert.Equal(t, "2025-08-24", isoDate(yt))
}

func TestComparisonReportChangePercents(t *testing.T) {
	current := []SaleRow{
		{ID: 1, Type: SaleTypeProduct, TotalCents: 6000, PayerName: "Ana"},
		{ID: 2, Type: SaleTypeService, TotalCents: 9000, PayerName: "Bruno"},
	}
	previous := []SaleRow{
		{ID: 3, Type: SaleTypeProduct, TotalCents: 10000, PayerName: "Ana"},
	}
	report := buildComparisonReport(current, previous, ModuleAll, ComparePreviousPeriod,
		day("2026-08-18"), day("2026-08-24"), day("2026-08-11"), day("2026-08-17"), testNow)

	assert.Equal(t, int64(15000), report.Current.TotalRevenueCents)
	assert.Equal(t, int64(10000), report.Previous.TotalRevenueCents)
	assert.Equal(t, 50.0, report.RevenueChangePct)
	assert.Equal(t, 100.0, report.SalesChangePct)
	assert.Equal(t, 100.0, report.CustomersChangePct)
}

func TestComparisonReportZeroBaseline(t *testing.T) {
	current := []SaleRow{{ID: 1, Type: SaleTypeProduct, TotalCents: 5000}}
	report := buildComparisonReport(current, nil, ModuleAll, CompareYearOverYear,
		day("2026-08-24"), day("2026-08-24"), day("2025-08-24"), day("2025-08-24"), testNow)

	assert.Equal(t, 100.0, report.RevenueChangePct)

	empty := buildComparisonReport(nil, nil, ModuleAll, CompareYearOverYear,
		day("2026-08-24"), day("2026-08-24"), day("2025-08-24"), day("2025-08-24"), testNow)
	assert.Equal(t, 0.0, empty.RevenueChangePct)
}

func TestComparisonReportModuleFiltered(t *testing.T) {
	current := []SaleRow{
		{ID: 1, Type: SaleTypeService, TotalCents: 8000},
		{ID: 2, Type: SaleTypeProduct, TotalCents: 3000},
		{ID: 3, Type: SaleTypePackage, TotalCents: 5000, PackageKind: PackageMixed},
	}
	report := buildComparisonReport(current, nil, ModuleRecepcion, ComparePreviousPeriod,
		day("2026-08-18"), day("2026-08-24"), day("2026-08-11"), day("2026-08-17"), testNow)

	assert.Equal(t, int64(8000), report.Current.TotalRevenueCents)
	assert.Equal(t, 1, report.Current.SalesCount)
}

func TestGetComparisonReportRejectsUnknownType(t *testing.T) {
	svc := newTestService(t, &stubRepo{})
	_, err := svc.GetComparisonReport(t.Context(), Filter{BranchID: 1}, "week_over_week")
	require.ErrorIs(t, err, ErrInvalidComparison)
}
