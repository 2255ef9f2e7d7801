package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/kidipark/kidipark/internal/branches"
	"github.com/kidipark/kidipark/internal/reports"
)

// BranchLister lists the branches a warmup run covers.
type BranchLister interface {
	ListActive(ctx context.Context) ([]branches.Branch, error)
}

// ReportWarmer is the slice of the report service the warmup exercises.
type ReportWarmer interface {
	GetSalesReport(ctx context.Context, f reports.Filter) (reports.SalesReport, error)
	GetStockReport(ctx context.Context, f reports.Filter) (reports.StockReport, error)
	GetServicesReport(ctx context.Context, f reports.Filter) (reports.ServicesReport, error)
}

// WarmupJob recomputes the dashboard reports per branch with the cache
// bypassed, repopulating entries before the first user request.
type WarmupJob struct {
	branches BranchLister
	reports  ReportWarmer
	logger   *slog.Logger
	clock    func() time.Time
}

// NewWarmupJob initialises the warmup handler.
func NewWarmupJob(lister BranchLister, warmer ReportWarmer, logger *slog.Logger) *WarmupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &WarmupJob{
		branches: lister,
		reports:  warmer,
		logger:   logger,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the warmup. Per-branch failures are logged and do
// not abort the remaining branches.
func (j *WarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("warmup: handler not configured")
	}
	var payload ReportsWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	logger := j.logger.With(slog.String("trace_id", payload.TraceID))
	start := j.clock()

	targets, err := j.targets(ctx, payload.SucursalID)
	if err != nil {
		logger.Error("warmup target lookup failed", slog.Any("error", err))
		return err
	}

	warmed, failed := 0, 0
	for _, branchID := range targets {
		if err := j.warmBranch(ctx, branchID); err != nil {
			failed++
			logger.Error("branch warmup failed",
				slog.Int64("sucursal_id", branchID), slog.Any("error", err))
			continue
		}
		warmed++
	}

	logger.Info("report warmup completed",
		slog.Int("warmed", warmed),
		slog.Int("failed", failed),
		slog.Duration("duration", time.Since(start)),
	)
	if warmed == 0 && failed > 0 {
		return errors.New("warmup: every branch failed")
	}
	return nil
}

func (j *WarmupJob) targets(ctx context.Context, sucursalID int64) ([]int64, error) {
	if sucursalID > 0 {
		return []int64{sucursalID}, nil
	}
	active, err := j.branches.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(active))
	for _, b := range active {
		ids = append(ids, b.ID)
	}
	return ids, nil
}

func (j *WarmupJob) warmBranch(ctx context.Context, branchID int64) error {
	filter := reports.Filter{BranchID: branchID, UseCache: false}
	if _, err := j.reports.GetSalesReport(ctx, filter); err != nil {
		return err
	}
	if _, err := j.reports.GetStockReport(ctx, filter); err != nil {
		return err
	}
	if _, err := j.reports.GetServicesReport(ctx, filter); err != nil {
		return err
	}
	return nil
}
