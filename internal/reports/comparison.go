package reports

import (
	"context"
	"time"

	"github.com/kidipark/kidipark/internal/stats"
)

// PeriodTotals is the sales summary for one comparison window.
type PeriodTotals struct {
	From              string `json:"from"`
	To                string `json:"to"`
	TotalRevenueCents int64  `json:"total_revenue_cents"`
	SalesCount        int    `json:"sales_count"`
	UniqueCustomers   int    `json:"unique_customers"`
}

// ComparisonReport contrasts the current window against a baseline.
type ComparisonReport struct {
	Type     string       `json:"type"`
	Module   string       `json:"module"`
	Current  PeriodTotals `json:"current"`
	Previous PeriodTotals `json:"previous"`

	RevenueChangePct   float64 `json:"revenue_change_pct"`
	SalesChangePct     float64 `json:"sales_change_pct"`
	CustomersChangePct float64 `json:"customers_change_pct"`

	GeneratedAt string `json:"generated_at"`
}

// GetComparisonReport compares sales totals for the filter window
// against a baseline window selected by the comparison type:
// previous_period shifts back by the window length, month_over_month
// by one calendar month, year_over_year by one calendar year.
func (s *Service) GetComparisonReport(ctx context.Context, f Filter, compare ComparisonType) (ComparisonReport, error) {
	if err := f.Validate(); err != nil {
		return ComparisonReport{}, err
	}
	if _, err := ParseComparisonType(string(compare)); err != nil {
		return ComparisonReport{}, err
	}
	tz, err := s.resolver.Timezone(ctx, f.BranchID)
	if err != nil {
		return ComparisonReport{}, err
	}
	from, to, err := s.resolveRange(ctx, f, 7)
	if err != nil {
		return ComparisonReport{}, err
	}
	prevFrom, prevTo := baselineWindow(from, to, compare)

	key := Key("comparison", f.BranchID, from, to, f.Module, string(compare))
	return cached(ctx, s, key, s.ttl.Standard, f.UseCache, func(ctx context.Context) (ComparisonReport, error) {
		current, err := s.repo.SalesInRange(ctx, f.BranchID, from, to, tz)
		if err != nil {
			return ComparisonReport{}, err
		}
		previous, err := s.repo.SalesInRange(ctx, f.BranchID, prevFrom, prevTo, tz)
		if err != nil {
			return ComparisonReport{}, err
		}
		return buildComparisonReport(current, previous, f.Module, compare,
			from, to, prevFrom, prevTo, s.now().UTC()), nil
	})
}

// baselineWindow computes the previous window for a comparison type.
func baselineWindow(from, to time.Time, compare ComparisonType) (time.Time, time.Time) {
	switch compare {
	case CompareMonthOverMonth:
		return from.AddDate(0, -1, 0), to.AddDate(0, -1, 0)
	case CompareYearOverYear:
		return from.AddDate(-1, 0, 0), to.AddDate(-1, 0, 0)
	default:
		days := int(to.Sub(from).Hours()/24) + 1
		return from.AddDate(0, 0, -days), to.AddDate(0, 0, -days)
	}
}

func buildComparisonReport(current, previous []SaleRow, module Module, compare ComparisonType, from, to, prevFrom, prevTo time.Time, generatedAt time.Time) ComparisonReport {
	if module == "" {
		module = ModuleAll
	}
	cur := periodTotals(current, module, from, to)
	prev := periodTotals(previous, module, prevFrom, prevTo)
	return ComparisonReport{
		Type:               string(compare),
		Module:             string(module),
		Current:            cur,
		Previous:           prev,
		RevenueChangePct:   changePercent(float64(cur.TotalRevenueCents), float64(prev.TotalRevenueCents)),
		SalesChangePct:     changePercent(float64(cur.SalesCount), float64(prev.SalesCount)),
		CustomersChangePct: changePercent(float64(cur.UniqueCustomers), float64(prev.UniqueCustomers)),
		GeneratedAt:        generatedAt.Format(time.RFC3339),
	}
}

func periodTotals(rows []SaleRow, module Module, from, to time.Time) PeriodTotals {
	totals := PeriodTotals{From: isoDate(from), To: isoDate(to)}
	payers := make(map[string]struct{})
	for _, row := range rows {
		if !saleInModule(row, module) {
			continue
		}
		totals.TotalRevenueCents += row.TotalCents
		totals.SalesCount++
		if row.PayerName != "" {
			payers[row.PayerName] = struct{}{}
		}
	}
	totals.UniqueCustomers = len(payers)
	return totals
}

// changePercent follows the growth-from-zero convention: a zero
// baseline reports 100% when the current value is positive, 0 otherwise.
func changePercent(current, previous float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return stats.Round2((current - previous) / previous * 100)
}
