// Package jobs holds the asynq task definitions and handlers for the
// background report warmup and arqueo anomaly scans.
package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskReportsWarmup recomputes dashboard reports per branch so the
	// cache is warm before opening hours.
	TaskReportsWarmup = "reports:warmup"
	// TaskArqueoAnomalyScan inspects trailing day-close differences for
	// outliers.
	TaskArqueoAnomalyScan = "arqueos:anomaly_scan"
)

// ReportsWarmupPayload scopes a warmup run. SucursalID 0 warms every
// active branch.
type ReportsWarmupPayload struct {
	SucursalID int64  `json:"sucursal_id"`
	TraceID    string `json:"trace_id"`
}

// NewReportsWarmupTask constructs a warmup task with a fresh trace id.
func NewReportsWarmupTask(payload ReportsWarmupPayload) (*asynq.Task, error) {
	if payload.TraceID == "" {
		payload.TraceID = uuid.NewString()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReportsWarmup, data), nil
}

// ArqueoAnomalyScanPayload scopes an anomaly scan.
type ArqueoAnomalyScanPayload struct {
	SucursalID int64  `json:"sucursal_id"`
	WindowDays int    `json:"window_days"`
	TraceID    string `json:"trace_id"`
}

// NewArqueoAnomalyScanTask constructs an anomaly scan task.
func NewArqueoAnomalyScanTask(payload ArqueoAnomalyScanPayload) (*asynq.Task, error) {
	if payload.TraceID == "" {
		payload.TraceID = uuid.NewString()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskArqueoAnomalyScan, data), nil
}
