package reports

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidipark/kidipark/internal/stats"
)

func at(iso string, hour int) time.Time {
	return day(iso).Add(time.Duration(hour) * time.Hour)
}

func TestCustomersReportReceptionKeyedByChildAndAge(t *testing.T) {
	visits := []ReceptionVisitRow{
		{ChildName: "Mateo", ChildAge: 5, VisitAt: at("2026-08-01", 11), RevenueCents: 10000},
		{ChildName: "Mateo", ChildAge: 5, VisitAt: at("2026-08-15", 12), RevenueCents: 12000},
		{ChildName: "Mateo", ChildAge: 8, VisitAt: at("2026-08-10", 16), RevenueCents: 9000},
		{ChildName: "", ChildAge: 0, VisitAt: at("2026-08-10", 16), RevenueCents: 5000},
	}
	report := buildCustomersReport(visits, nil, ModuleRecepcion, stats.GranularityMonthly,
		day("2026-05-27"), day("2026-08-24"), testNow)

	// Same name with different ages are distinct children; anonymous
	// visits are dropped.
	assert.Equal(t, 2, report.TotalCustomers)
	assert.Equal(t, 2, report.RecepcionCustomers)
	assert.Equal(t, 0, report.KidibarCustomers)

	require.Len(t, report.TopCustomers, 2)
	assert.Equal(t, "recepcion:Mateo:5", report.TopCustomers[0].Key)
	assert.Equal(t, 2, report.TopCustomers[0].Visits)
	assert.Equal(t, int64(22000), report.TopCustomers[0].RevenueCents)
	assert.Equal(t, "2026-08-01", report.TopCustomers[0].FirstVisit)
	assert.Equal(t, "2026-08-15", report.TopCustomers[0].LastVisit)
}

func TestCustomersReportKidibarMergesPackagesWithoutDoubleCount(t *testing.T) {
	snacks := []KidibarSaleRow{
		{SaleID: 1, PayerName: "Laura", SaleAt: at("2026-08-05", 13), RevenueCents: 3000},
		{SaleID: 2, PayerName: "Laura", SaleAt: at("2026-08-12", 13), RevenueCents: 4500, FromPackage: true},
		{SaleID: 3, PayerName: "Diego", SaleAt: at("2026-08-12", 14), RevenueCents: 2000},
	}
	report := buildCustomersReport(nil, snacks, ModuleKidibar, stats.GranularityMonthly,
		day("2026-05-27"), day("2026-08-24"), testNow)

	assert.Equal(t, 2, report.TotalCustomers)

	var laura CustomerEntry
	for _, c := range report.TopCustomers {
		if c.Name == "Laura" {
			laura = c
		}
	}
	// Direct and package sales merge under one key, summing both.
	assert.Equal(t, 2, laura.Visits)
	assert.Equal(t, int64(7500), laura.RevenueCents)

	var total int64
	for _, c := range report.TopCustomers {
		total += c.RevenueCents
	}
	assert.Equal(t, int64(9500), total)
}

func TestCustomersReportRFMAndSegmentCounts(t *testing.T) {
	visits := []ReceptionVisitRow{
		{ChildName: "Mateo", ChildAge: 5, VisitAt: at("2026-08-23", 11), RevenueCents: 20000},
		{ChildName: "Sofia", ChildAge: 6, VisitAt: at("2026-06-01", 11), RevenueCents: 3000},
	}
	report := buildCustomersReport(visits, nil, ModuleAll, stats.GranularityMonthly,
		day("2026-05-27"), day("2026-08-24"), testNow)

	require.Len(t, report.RFM, 2)
	var counted int
	for _, n := range report.SegmentCounts {
		counted += n
	}
	assert.Equal(t, len(report.RFM), counted)
}

func TestCustomersReportCohorts(t *testing.T) {
	visits := []ReceptionVisitRow{
		{ChildName: "Mateo", ChildAge: 5, VisitAt: at("2026-06-10", 11)},
		{ChildName: "Mateo", ChildAge: 5, VisitAt: at("2026-08-02", 11)},
		{ChildName: "Sofia", ChildAge: 6, VisitAt: at("2026-08-05", 11)},
	}
	report := buildCustomersReport(visits, nil, ModuleAll, stats.GranularityMonthly,
		day("2026-05-27"), day("2026-08-24"), testNow)

	// First visit decides the cohort; the repeat visit does not.
	require.Len(t, report.Cohorts, 2)
	assert.Equal(t, stats.Cohort{Period: "2026-06", Customers: 1}, report.Cohorts[0])
	assert.Equal(t, stats.Cohort{Period: "2026-08", Customers: 1}, report.Cohorts[1])
}

func TestCustomersReportInvalidGranularity(t *testing.T) {
	svc := newTestService(t, &stubRepo{})
	_, err := svc.GetCustomersReport(t.Context(), Filter{BranchID: 1}, "hourly")
	assert.Error(t, err)
}

func TestCustomersReportEmpty(t *testing.T) {
	report := buildCustomersReport(nil, nil, ModuleAll, stats.GranularityMonthly,
		day("2026-08-24"), day("2026-08-24"), testNow)
	assert.Equal(t, 0, report.TotalCustomers)
	assert.Empty(t, report.RFM)
	assert.Empty(t, report.Cohorts)
}
