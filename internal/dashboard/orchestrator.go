package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kidipark/kidipark/internal/forecast"
	"github.com/kidipark/kidipark/internal/reports"
)

// Summary is the composed dashboard payload. A failed sub-report is
// explicitly null, never half-populated, with its error listed.
type Summary struct {
	Sales       *reports.SalesReport    `json:"sales"`
	Stock       *reports.StockReport    `json:"stock"`
	Services    *reports.ServicesReport `json:"services"`
	Errors      []string                `json:"errors,omitempty"`
	GeneratedAt string                  `json:"generated_at"`
}

// RefreshOptions controls a master refresh.
type RefreshOptions struct {
	Filter reports.Filter
	// InvalidatePatterns are cache wildcards cleared before recompute,
	// e.g. "reports:sales:*".
	InvalidatePatterns []string
}

// Orchestrator fans report and forecast computations out and applies
// the per-user gates on refresh and prediction generation.
type Orchestrator struct {
	reports     *reports.Service
	forecasts   *forecast.Service
	logger      *slog.Logger
	now         func() time.Time
	refreshGate *limiter
	predictGate *limiter
}

// NewOrchestrator wires the orchestrator. store may be shared across
// instances (Redis) or process-local (memory).
func NewOrchestrator(reportSvc *reports.Service, forecastSvc *forecast.Service, store CounterStore, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now
	return &Orchestrator{
		reports:     reportSvc,
		forecasts:   forecastSvc,
		logger:      logger,
		now:         now,
		refreshGate: &limiter{store: store, limits: RefreshLimits, op: "refresh", now: now},
		predictGate: &limiter{store: store, limits: PredictionLimits, op: "prediction", now: now},
	}
}

// WithNow overrides the clock for deterministic tests.
func (o *Orchestrator) WithNow(now func() time.Time) {
	if now == nil {
		return
	}
	o.now = now
	o.refreshGate.now = now
	o.predictGate.now = now
}

// Summary fans the sales, stock, and services aggregators out
// concurrently and waits for all of them. Individual failures null
// that section instead of failing the whole summary.
func (o *Orchestrator) Summary(ctx context.Context, f reports.Filter) (Summary, error) {
	summary := Summary{GeneratedAt: o.now().UTC().Format(time.RFC3339)}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []string
	)
	fail := func(section string, err error) {
		o.logger.Error("dashboard section failed",
			slog.String("section", section), slog.Any("error", err))
		mu.Lock()
		errs = append(errs, section+": "+err.Error())
		mu.Unlock()
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		if report, err := o.reports.GetSalesReport(ctx, f); err != nil {
			fail("sales", err)
		} else {
			summary.Sales = &report
		}
	}()
	go func() {
		defer wg.Done()
		if report, err := o.reports.GetStockReport(ctx, f); err != nil {
			fail("stock", err)
		} else {
			summary.Stock = &report
		}
	}()
	go func() {
		defer wg.Done()
		if report, err := o.reports.GetServicesReport(ctx, f); err != nil {
			fail("services", err)
		} else {
			summary.Services = &report
		}
	}()
	wg.Wait()

	summary.Errors = errs
	return summary, nil
}

// Refresh is the rate-limited master refresh: rejected when one is
// already in-flight for the user, when called within two seconds of
// the previous one, or past the 30-per-session budget. The in-flight
// flag is cleared on every exit path.
func (o *Orchestrator) Refresh(ctx context.Context, userID string, opts RefreshOptions) (Summary, error) {
	release, err := o.refreshGate.acquire(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	defer release()

	if err := o.refreshGate.record(ctx, userID); err != nil {
		return Summary{}, err
	}

	for _, pattern := range opts.InvalidatePatterns {
		if err := o.reports.InvalidateCache(ctx, pattern); err != nil {
			o.logger.Warn("cache invalidation failed",
				slog.String("pattern", pattern), slog.Any("error", err))
		}
	}

	opts.Filter.UseCache = false
	return o.Summary(ctx, opts.Filter)
}

// Predictions runs the full forecast bundle behind the stricter gate:
// five-second spacing and ten runs per session.
func (o *Orchestrator) Predictions(ctx context.Context, userID string, branchID int64, days int) (forecast.Bundle, error) {
	release, err := o.predictGate.acquire(ctx, userID)
	if err != nil {
		return forecast.Bundle{}, err
	}
	defer release()

	if err := o.predictGate.record(ctx, userID); err != nil {
		return forecast.Bundle{}, err
	}
	return o.forecasts.GenerateAll(ctx, branchID, days)
}
