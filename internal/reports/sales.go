package reports

import (
	"context"
	"sort"
	"time"
)

// TypeBreakdown aggregates revenue and count for one sale type.
type TypeBreakdown struct {
	Type         string `json:"type"`
	RevenueCents int64  `json:"revenue_cents"`
	Count        int    `json:"count"`
}

// PaymentBreakdown aggregates revenue and count for one payment method.
type PaymentBreakdown struct {
	Method       string `json:"method"`
	RevenueCents int64  `json:"revenue_cents"`
	Count        int    `json:"count"`
}

// BranchBreakdown aggregates revenue and count for one sucursal.
type BranchBreakdown struct {
	BranchID     int64 `json:"branch_id"`
	RevenueCents int64 `json:"revenue_cents"`
	Count        int   `json:"count"`
}

// SalesReport is the composed sales aggregate for a range and module.
type SalesReport struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Module string `json:"module"`

	TotalRevenueCents            int64 `json:"total_revenue_cents"`
	SalesCount                   int   `json:"sales_count"`
	AverageTransactionValueCents int64 `json:"average_transaction_value_cents"`
	UniqueCustomers              int   `json:"unique_customers"`

	ByType          []TypeBreakdown    `json:"by_type"`
	ByPaymentMethod []PaymentBreakdown `json:"by_payment_method"`
	ByBranch        []BranchBreakdown  `json:"by_branch"`

	// Module partition of the unfiltered view: recepcion + kidibar +
	// mixed equals total. Zero for module-filtered views.
	RecepcionRevenueCents    int64 `json:"recepcion_revenue_cents"`
	KidibarRevenueCents      int64 `json:"kidibar_revenue_cents"`
	MixedPackageRevenueCents int64 `json:"mixed_package_revenue_cents"`

	GeneratedAt string `json:"generated_at"`
}

// GetSalesReport aggregates sales within the filter range, defaulting
// to the branch's business date.
func (s *Service) GetSalesReport(ctx context.Context, f Filter) (SalesReport, error) {
	if err := f.Validate(); err != nil {
		return SalesReport{}, err
	}
	tz, err := s.resolver.Timezone(ctx, f.BranchID)
	if err != nil {
		return SalesReport{}, err
	}
	from, to, err := s.resolveRange(ctx, f, 0)
	if err != nil {
		return SalesReport{}, err
	}

	key := Key("sales", f.BranchID, from, to, f.Module)
	return cached(ctx, s, key, s.ttl.Standard, f.UseCache, func(ctx context.Context) (SalesReport, error) {
		rows, err := s.repo.SalesInRange(ctx, f.BranchID, from, to, tz)
		if err != nil {
			return SalesReport{}, err
		}
		return buildSalesReport(rows, f.Module, from, to, s.now().UTC()), nil
	})
}

// buildSalesReport is the pure aggregation over raw sale rows.
func buildSalesReport(rows []SaleRow, module Module, from, to time.Time, generatedAt time.Time) SalesReport {
	if module == "" {
		module = ModuleAll
	}
	report := SalesReport{
		From:        isoDate(from),
		To:          isoDate(to),
		Module:      string(module),
		GeneratedAt: generatedAt.Format(time.RFC3339),
	}

	byType := make(map[string]*TypeBreakdown)
	byPayment := make(map[string]*PaymentBreakdown)
	byBranch := make(map[int64]*BranchBreakdown)
	payers := make(map[string]struct{})

	for _, row := range rows {
		if module == ModuleAll {
			switch {
			case saleInModule(row, ModuleRecepcion):
				report.RecepcionRevenueCents += row.TotalCents
			case saleInModule(row, ModuleKidibar):
				report.KidibarRevenueCents += row.TotalCents
			default:
				report.MixedPackageRevenueCents += row.TotalCents
			}
		}
		if !saleInModule(row, module) {
			continue
		}

		report.TotalRevenueCents += row.TotalCents
		report.SalesCount++
		if row.PayerName != "" {
			payers[row.PayerName] = struct{}{}
		}

		t := byType[string(row.Type)]
		if t == nil {
			t = &TypeBreakdown{Type: string(row.Type)}
			byType[string(row.Type)] = t
		}
		t.RevenueCents += row.TotalCents
		t.Count++

		p := byPayment[string(row.PaymentMethod)]
		if p == nil {
			p = &PaymentBreakdown{Method: string(row.PaymentMethod)}
			byPayment[string(row.PaymentMethod)] = p
		}
		p.RevenueCents += row.TotalCents
		p.Count++

		b := byBranch[row.BranchID]
		if b == nil {
			b = &BranchBreakdown{BranchID: row.BranchID}
			byBranch[row.BranchID] = b
		}
		b.RevenueCents += row.TotalCents
		b.Count++
	}

	report.UniqueCustomers = len(payers)
	if report.SalesCount > 0 {
		report.AverageTransactionValueCents = report.TotalRevenueCents / int64(report.SalesCount)
	}

	report.ByType = make([]TypeBreakdown, 0, len(byType))
	for _, t := range byType {
		report.ByType = append(report.ByType, *t)
	}
	sort.Slice(report.ByType, func(i, j int) bool {
		if report.ByType[i].RevenueCents != report.ByType[j].RevenueCents {
			return report.ByType[i].RevenueCents > report.ByType[j].RevenueCents
		}
		return report.ByType[i].Type < report.ByType[j].Type
	})

	report.ByPaymentMethod = make([]PaymentBreakdown, 0, len(byPayment))
	for _, p := range byPayment {
		report.ByPaymentMethod = append(report.ByPaymentMethod, *p)
	}
	sort.Slice(report.ByPaymentMethod, func(i, j int) bool {
		if report.ByPaymentMethod[i].RevenueCents != report.ByPaymentMethod[j].RevenueCents {
			return report.ByPaymentMethod[i].RevenueCents > report.ByPaymentMethod[j].RevenueCents
		}
		return report.ByPaymentMethod[i].Method < report.ByPaymentMethod[j].Method
	})

	report.ByBranch = make([]BranchBreakdown, 0, len(byBranch))
	for _, b := range byBranch {
		report.ByBranch = append(report.ByBranch, *b)
	}
	sort.Slice(report.ByBranch, func(i, j int) bool {
		return report.ByBranch[i].BranchID < report.ByBranch[j].BranchID
	})

	return report
}
