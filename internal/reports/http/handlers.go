// Package reporthttp exposes the report, dashboard, and prediction
// endpoints. Authentication lives upstream; this layer only parses,
// validates, and maps domain errors to problem responses.
package reporthttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kidipark/kidipark/internal/dashboard"
	"github.com/kidipark/kidipark/internal/forecast"
	"github.com/kidipark/kidipark/internal/platform/httpx"
	"github.com/kidipark/kidipark/internal/reports"
	"github.com/kidipark/kidipark/internal/stats"
)

const requestTimeout = 15 * time.Second

// ReportService is the aggregator contract the handler depends on.
type ReportService interface {
	GetSalesReport(ctx context.Context, f reports.Filter) (reports.SalesReport, error)
	GetStockReport(ctx context.Context, f reports.Filter) (reports.StockReport, error)
	GetServicesReport(ctx context.Context, f reports.Filter) (reports.ServicesReport, error)
	GetArqueosReport(ctx context.Context, f reports.Filter) (reports.ArqueosReport, error)
	GetCustomersReport(ctx context.Context, f reports.Filter, g stats.Granularity) (reports.CustomersReport, error)
	GetComparisonReport(ctx context.Context, f reports.Filter, c reports.ComparisonType) (reports.ComparisonReport, error)
}

// DashboardService is the orchestrator contract.
type DashboardService interface {
	Summary(ctx context.Context, f reports.Filter) (dashboard.Summary, error)
	Refresh(ctx context.Context, userID string, opts dashboard.RefreshOptions) (dashboard.Summary, error)
	Predictions(ctx context.Context, userID string, branchID int64, days int) (forecast.Bundle, error)
}

// Handler serves the reporting API.
type Handler struct {
	logger    *slog.Logger
	service   ReportService
	dashboard DashboardService
	validate  *validator.Validate
}

// NewHandler constructs the reporting HTTP handler.
func NewHandler(logger *slog.Logger, service ReportService, dash DashboardService) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		dashboard: dash,
		validate:  validator.New(),
	}
}

// filterParams is the raw query-string shape, validated before any
// conversion so unknown enum values are rejected, never defaulted.
type filterParams struct {
	SucursalID  string `validate:"omitempty,number"`
	From        string `validate:"omitempty,datetime=2006-01-02"`
	To          string `validate:"omitempty,datetime=2006-01-02"`
	Module      string `validate:"omitempty,oneof=all recepcion kidibar"`
	UseCache    string `validate:"omitempty,oneof=true false"`
	Granularity string `validate:"omitempty,oneof=daily weekly monthly"`
	Comparison  string `validate:"omitempty,oneof=previous_period month_over_month year_over_year"`
	Days        string `validate:"omitempty,number"`
}

func (h *Handler) parseFilter(r *http.Request) (reports.Filter, filterParams, error) {
	q := r.URL.Query()
	params := filterParams{
		SucursalID:  q.Get("sucursal_id"),
		From:        q.Get("from"),
		To:          q.Get("to"),
		Module:      q.Get("module"),
		UseCache:    q.Get("use_cache"),
		Granularity: q.Get("granularity"),
		Comparison:  q.Get("comparison_type"),
		Days:        q.Get("days"),
	}
	if err := h.validate.Struct(params); err != nil {
		return reports.Filter{}, params, fmt.Errorf("%w: %s", httpx.ErrValidation, err)
	}

	filter := reports.Filter{UseCache: true, Module: reports.Module(params.Module)}
	if params.SucursalID != "" {
		id, err := strconv.ParseInt(params.SucursalID, 10, 64)
		if err != nil || id < 0 {
			return reports.Filter{}, params, fmt.Errorf("%w: invalid sucursal_id %q", httpx.ErrValidation, params.SucursalID)
		}
		filter.BranchID = id
	}
	if params.From != "" {
		filter.From, _ = time.Parse("2006-01-02", params.From)
	}
	if params.To != "" {
		filter.To, _ = time.Parse("2006-01-02", params.To)
	}
	if params.UseCache == "false" {
		filter.UseCache = false
	}
	if err := filter.Validate(); err != nil {
		return reports.Filter{}, params, fmt.Errorf("%w: %s", httpx.ErrValidation, err)
	}
	return filter, params, nil
}

func (params filterParams) days() int {
	if params.Days == "" {
		return 0
	}
	days, _ := strconv.Atoi(params.Days)
	return days
}

// userID identifies the caller for rate limiting. The upstream auth
// layer injects the header; unauthenticated callers degrade to their
// remote address.
func userID(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return r.RemoteAddr
}

// respondDomainError maps core rejections onto problem responses.
func (h *Handler) respondDomainError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, reports.ErrInvalidModule),
		errors.Is(err, reports.ErrInvalidDateRange),
		errors.Is(err, reports.ErrInvalidComparison),
		errors.Is(err, forecast.ErrInvalidHorizon):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, httpx.ErrValidation),
		errors.Is(err, httpx.ErrTooManyRequests):
		httpx.RespondError(w, err)
	default:
		h.logger.Error("report request failed", slog.String("op", op), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

type reportFunc[T any] func(ctx context.Context, f reports.Filter) (T, error)

// serveReport runs the shared parse/validate/compute/respond flow.
func serveReport[T any](h *Handler, w http.ResponseWriter, r *http.Request, op string, compute reportFunc[T]) {
	filter, _, err := h.parseFilter(r)
	if err != nil {
		h.respondDomainError(w, op, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	result, err := compute(ctx, filter)
	if err != nil {
		h.respondDomainError(w, op, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleSales(w http.ResponseWriter, r *http.Request) {
	serveReport(h, w, r, "sales", h.service.GetSalesReport)
}

func (h *Handler) handleStock(w http.ResponseWriter, r *http.Request) {
	serveReport(h, w, r, "stock", h.service.GetStockReport)
}

func (h *Handler) handleServices(w http.ResponseWriter, r *http.Request) {
	serveReport(h, w, r, "services", h.service.GetServicesReport)
}

func (h *Handler) handleArqueos(w http.ResponseWriter, r *http.Request) {
	serveReport(h, w, r, "arqueos", h.service.GetArqueosReport)
}

func (h *Handler) handleCustomers(w http.ResponseWriter, r *http.Request) {
	filter, params, err := h.parseFilter(r)
	if err != nil {
		h.respondDomainError(w, "customers", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	report, err := h.service.GetCustomersReport(ctx, filter, stats.Granularity(params.Granularity))
	if err != nil {
		h.respondDomainError(w, "customers", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleComparison(w http.ResponseWriter, r *http.Request) {
	filter, params, err := h.parseFilter(r)
	if err != nil {
		h.respondDomainError(w, "comparison", err)
		return
	}
	if params.Comparison == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "comparison_type is required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	report, err := h.service.GetComparisonReport(ctx, filter, reports.ComparisonType(params.Comparison))
	if err != nil {
		h.respondDomainError(w, "comparison", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	serveReport(h, w, r, "summary", h.dashboard.Summary)
}

type refreshRequest struct {
	InvalidatePatterns []string `json:"invalidate_patterns" validate:"omitempty,dive,startswith=reports:"`
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	filter, _, err := h.parseFilter(r)
	if err != nil {
		h.respondDomainError(w, "refresh", err)
		return
	}

	var body refreshRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &body); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
			return
		}
		if err := h.validate.Struct(body); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	summary, err := h.dashboard.Refresh(ctx, userID(r), dashboard.RefreshOptions{
		Filter:             filter,
		InvalidatePatterns: body.InvalidatePatterns,
	})
	if err != nil {
		h.respondDomainError(w, "refresh", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handlePredictions(w http.ResponseWriter, r *http.Request) {
	filter, params, err := h.parseFilter(r)
	if err != nil {
		h.respondDomainError(w, "predictions", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	bundle, err := h.dashboard.Predictions(ctx, userID(r), filter.BranchID, params.days())
	if err != nil {
		h.respondDomainError(w, "predictions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, bundle)
}
