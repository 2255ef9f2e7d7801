package reports

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func salesFixture() []SaleRow {
	return []SaleRow{
		{ID: 1, BranchID: 1, Type: SaleTypeService, TotalCents: 10000, PaymentMethod: PaymentCash, PayerName: "Ana"},
		{ID: 2, BranchID: 1, Type: SaleTypeProduct, TotalCents: 2500, PaymentMethod: PaymentCard, PayerName: "Bruno"},
		{ID: 3, BranchID: 2, Type: SaleTypePackage, TotalCents: 15000, PaymentMethod: PaymentCash, PayerName: "Ana", PackageKind: PackageServiceOnly},
		{ID: 4, BranchID: 2, Type: SaleTypePackage, TotalCents: 8000, PaymentMethod: PaymentTransfer, PayerName: "Carla", PackageKind: PackageProductOnly},
		{ID: 5, BranchID: 1, Type: SaleTypePackage, TotalCents: 12000, PaymentMethod: PaymentCard, PayerName: "", PackageKind: PackageMixed},
	}
}

func buildFor(t *testing.T, module Module) SalesReport {
	t.Helper()
	from, to := day("2026-08-18"), day("2026-08-24")
	return buildSalesReport(salesFixture(), module, from, to, testNow)
}

func TestSalesReportAllModules(t *testing.T) {
	report := buildFor(t, ModuleAll)

	assert.Equal(t, int64(47500), report.TotalRevenueCents)
	assert.Equal(t, 5, report.SalesCount)
	assert.Equal(t, int64(9500), report.AverageTransactionValueCents)
	assert.Equal(t, 3, report.UniqueCustomers) // empty payer excluded
}

func TestSalesReportModulePartition(t *testing.T) {
	report := buildFor(t, ModuleAll)

	assert.Equal(t, int64(25000), report.RecepcionRevenueCents)
	assert.Equal(t, int64(10500), report.KidibarRevenueCents)
	assert.Equal(t, int64(12000), report.MixedPackageRevenueCents)
	assert.Equal(t, report.TotalRevenueCents,
		report.RecepcionRevenueCents+report.KidibarRevenueCents+report.MixedPackageRevenueCents)
}

func TestSalesReportMixedExcludedFromModules(t *testing.T) {
	recepcion := buildFor(t, ModuleRecepcion)
	assert.Equal(t, int64(25000), recepcion.TotalRevenueCents)
	assert.Equal(t, 2, recepcion.SalesCount)

	kidibar := buildFor(t, ModuleKidibar)
	assert.Equal(t, int64(10500), kidibar.TotalRevenueCents)
	assert.Equal(t, 2, kidibar.SalesCount)

	// The mixed package appears in neither module view.
	assert.Equal(t, int64(12000),
		buildFor(t, ModuleAll).TotalRevenueCents-recepcion.TotalRevenueCents-kidibar.TotalRevenueCents)
}

func TestSalesReportBreakdownsConserveMoney(t *testing.T) {
	report := buildFor(t, ModuleAll)

	var byType, byPayment, byBranch int64
	for _, b := range report.ByType {
		byType += b.RevenueCents
	}
	for _, b := range report.ByPaymentMethod {
		byPayment += b.RevenueCents
	}
	for _, b := range report.ByBranch {
		byBranch += b.RevenueCents
	}
	assert.Equal(t, report.TotalRevenueCents, byType)
	assert.Equal(t, report.TotalRevenueCents, byPayment)
	assert.Equal(t, report.TotalRevenueCents, byBranch)
}

func TestSalesReportZeroSales(t *testing.T) {
	report := buildSalesReport(nil, ModuleAll, day("2026-08-24"), day("2026-08-24"), testNow)

	assert.Equal(t, int64(0), report.TotalRevenueCents)
	assert.Equal(t, 0, report.SalesCount)
	assert.Equal(t, int64(0), report.AverageTransactionValueCents)
	assert.Equal(t, 0, report.UniqueCustomers)
	assert.Empty(t, report.ByType)
}

func TestSalesReportDeterministicOrdering(t *testing.T) {
	first := buildFor(t, ModuleAll)
	second := buildFor(t, ModuleAll)
	require.Equal(t, first, second)

	// Branch breakdown sorted by id, types by revenue descending.
	require.Len(t, first.ByBranch, 2)
	assert.Less(t, first.ByBranch[0].BranchID, first.ByBranch[1].BranchID)
	for i := 1; i < len(first.ByType); i++ {
		assert.GreaterOrEqual(t, first.ByType[i-1].RevenueCents, first.ByType[i].RevenueCents)
	}
}

func TestSalesReportTimestampFormat(t *testing.T) {
	report := buildFor(t, ModuleAll)
	_, err := time.Parse(time.RFC3339, report.GeneratedAt)
	assert.NoError(t, err)
	assert.Equal(t, "2026-08-18", report.From)
	assert.Equal(t, "2026-08-24", report.To)
}
