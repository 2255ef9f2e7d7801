package reports

import (
	"context"
	"sort"
	"time"
)

// StockAlert flags a product at or below its alert threshold.
type StockAlert struct {
	ProductID    int64  `json:"product_id"`
	BranchID     int64  `json:"branch_id"`
	Name         string `json:"name"`
	StockQty     int64  `json:"stock_qty"`
	ThresholdQty int64  `json:"threshold_alert_qty"`
	PriceCents   int64  `json:"price_cents"`
}

// StockReport is the point-in-time inventory aggregate.
type StockReport struct {
	TotalProducts            int          `json:"total_products"`
	TotalUnits               int64        `json:"total_units"`
	TotalInventoryValueCents int64        `json:"total_inventory_value_cents"`
	LowStockAlerts           []StockAlert `json:"low_stock_alerts"`
	GeneratedAt              string       `json:"generated_at"`
}

// GetStockReport computes inventory totals and low-stock alerts over
// the active, non-deleted catalog.
func (s *Service) GetStockReport(ctx context.Context, f Filter) (StockReport, error) {
	if err := f.Validate(); err != nil {
		return StockReport{}, err
	}
	key := Key("stock", f.BranchID)
	return cached(ctx, s, key, s.ttl.Standard, f.UseCache, func(ctx context.Context) (StockReport, error) {
		products, err := s.repo.ActiveProducts(ctx, f.BranchID)
		if err != nil {
			return StockReport{}, err
		}
		return buildStockReport(products, s.now().UTC()), nil
	})
}

func buildStockReport(products []ProductRow, generatedAt time.Time) StockReport {
	report := StockReport{
		TotalProducts: len(products),
		GeneratedAt:   generatedAt.Format(time.RFC3339),
	}
	for _, p := range products {
		report.TotalUnits += p.StockQty
		report.TotalInventoryValueCents += p.StockQty * p.PriceCents
		if p.StockQty <= p.ThresholdQty {
			report.LowStockAlerts = append(report.LowStockAlerts, StockAlert{
				ProductID:    p.ID,
				BranchID:     p.BranchID,
				Name:         p.Name,
				StockQty:     p.StockQty,
				ThresholdQty: p.ThresholdQty,
				PriceCents:   p.PriceCents,
			})
		}
	}
	// Most urgent first.
	sort.Slice(report.LowStockAlerts, func(i, j int) bool {
		if report.LowStockAlerts[i].StockQty != report.LowStockAlerts[j].StockQty {
			return report.LowStockAlerts[i].StockQty < report.LowStockAlerts[j].StockQty
		}
		return report.LowStockAlerts[i].ProductID < report.LowStockAlerts[j].ProductID
	})
	return report
}
