package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/kidipark/kidipark/internal/reports"
)

const defaultScanWindowDays = 30

// ArqueoSource provides the day-close report the scan inspects and the
// branch-local calendar date anchoring the window.
type ArqueoSource interface {
	GetArqueosReport(ctx context.Context, f reports.Filter) (reports.ArqueosReport, error)
	BusinessDate(ctx context.Context, branchID int64) (time.Time, error)
}

// ArqueoScanJob flags day-close differences outside the IQR fences and
// logs a warning per anomaly for the operations team.
type ArqueoScanJob struct {
	source ArqueoSource
	logger *slog.Logger
	clock  func() time.Time
}

// NewArqueoScanJob initialises the anomaly scan handler.
func NewArqueoScanJob(source ArqueoSource, logger *slog.Logger) *ArqueoScanJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArqueoScanJob{
		source: source,
		logger: logger,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// Handle executes the anomaly scan.
func (j *ArqueoScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("anomaly scan: handler not configured")
	}
	var payload ArqueoAnomalyScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.WindowDays <= 0 {
		payload.WindowDays = defaultScanWindowDays
	}

	logger := j.logger.With(
		slog.String("trace_id", payload.TraceID),
		slog.Int64("sucursal_id", payload.SucursalID),
		slog.Int("window_days", payload.WindowDays),
	)
	logger.Info("starting arqueo anomaly scan")
	start := j.clock()

	// Anchor the window on the branch-local calendar date so a scan
	// running near local midnight matches the report semantics.
	to, err := j.source.BusinessDate(ctx, payload.SucursalID)
	if err != nil {
		logger.Error("business date lookup failed", slog.Any("error", err))
		return err
	}
	report, err := j.source.GetArqueosReport(ctx, reports.Filter{
		BranchID: payload.SucursalID,
		From:     to.AddDate(0, 0, -(payload.WindowDays - 1)),
		To:       to,
		UseCache: false,
	})
	if err != nil {
		logger.Error("scan failed", slog.Any("error", err))
		return err
	}

	for _, a := range report.Anomalies {
		logger.Warn("arqueo anomaly detected",
			slog.String("arqueo", a.Label),
			slog.Int64("difference_cents", a.ValueCents),
			slog.String("severity", string(a.Severity)),
			slog.Float64("z_score", a.ZScore),
		)
	}

	logger.Info("completed arqueo anomaly scan",
		slog.Int("arqueos", report.TotalArqueos),
		slog.Int("anomalies", len(report.Anomalies)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}
