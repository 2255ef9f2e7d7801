package forecast

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Fallback is the payload substituted when one forecast kind fails.
// Sibling forecasts continue unaffected.
type Fallback struct {
	Error      bool       `json:"error"`
	Message    string     `json:"message"`
	Forecast   []struct{} `json:"forecast"`
	Confidence Confidence `json:"confidence"`
}

// Bundle carries all prediction kinds. Fields hold either the typed
// forecast or a Fallback when that kind failed.
type Bundle struct {
	Sales       any    `json:"sales"`
	Capacity    any    `json:"capacity"`
	Stock       any    `json:"stock"`
	SalesByType any    `json:"sales_by_type"`
	PeakHours   any    `json:"peak_hours"`
	BusiestDays any    `json:"busiest_days"`
	GeneratedAt string `json:"generated_at"`
}

// GenerateAll computes every forecast kind concurrently, each on its
// own data session. A failing kind is logged and replaced with a
// low-confidence fallback payload; it never aborts the others.
func (s *Service) GenerateAll(ctx context.Context, branchID int64, days int) (Bundle, error) {
	days, err := horizon(days)
	if err != nil {
		return Bundle{}, err
	}

	bundle := Bundle{GeneratedAt: s.now().UTC().Format(time.RFC3339)}

	g, ctx := errgroup.WithContext(ctx)
	run := func(kind string, dest *any, compute func(context.Context) (any, error)) {
		g.Go(func() error {
			result, err := compute(ctx)
			if err != nil {
				s.logger.Error("forecast kind failed",
					slog.String("kind", kind),
					slog.Int64("sucursal_id", branchID),
					slog.Any("error", err))
				*dest = Fallback{
					Error:      true,
					Message:    err.Error(),
					Forecast:   []struct{}{},
					Confidence: ConfidenceLow,
				}
				return nil
			}
			*dest = result
			return nil
		})
	}

	run("sales", &bundle.Sales, func(ctx context.Context) (any, error) {
		return s.PredictSales(ctx, branchID, days)
	})
	run("capacity", &bundle.Capacity, func(ctx context.Context) (any, error) {
		return s.PredictCapacity(ctx, branchID, days)
	})
	run("stock", &bundle.Stock, func(ctx context.Context) (any, error) {
		return s.PredictStockNeeds(ctx, branchID, days)
	})
	run("sales_by_type", &bundle.SalesByType, func(ctx context.Context) (any, error) {
		return s.PredictSalesByType(ctx, branchID, days)
	})
	run("peak_hours", &bundle.PeakHours, func(ctx context.Context) (any, error) {
		return s.PredictPeakHours(ctx, branchID, days)
	})
	run("busiest_days", &bundle.BusiestDays, func(ctx context.Context) (any, error) {
		return s.PredictBusiestDays(ctx, branchID, days)
	})

	if err := g.Wait(); err != nil {
		return Bundle{}, err
	}
	return bundle, nil
}
