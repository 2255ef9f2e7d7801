package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidipark/kidipark/internal/branches"
	"github.com/kidipark/kidipark/internal/forecast"
	"github.com/kidipark/kidipark/internal/platform/httpx"
	"github.com/kidipark/kidipark/internal/reports"
)

var testNow = time.Date(2026, 8, 24, 18, 0, 0, 0, time.UTC)

type stubLookup struct{}

func (stubLookup) Get(_ context.Context, id int64) (branches.Branch, error) {
	return branches.Branch{ID: id, Timezone: "UTC", Active: true}, nil
}

// reportsRepo stubs the reports queries; stockErr makes the stock
// section fail on demand.
type reportsRepo struct {
	sales      []reports.SaleRow
	stockErr   error
	salesCalls int
}

func (r *reportsRepo) SalesInRange(context.Context, int64, time.Time, time.Time, string) ([]reports.SaleRow, error) {
	r.salesCalls++
	return r.sales, nil
}

func (r *reportsRepo) ActiveProducts(context.Context, int64) ([]reports.ProductRow, error) {
	if r.stockErr != nil {
		return nil, r.stockErr
	}
	return nil, nil
}

func (r *reportsRepo) LiveTimers(context.Context, int64, time.Time) ([]reports.TimerRow, error) {
	return nil, nil
}

func (r *reportsRepo) TimersInRange(context.Context, int64, time.Time, time.Time, string) ([]reports.TimerRow, error) {
	return nil, nil
}

func (r *reportsRepo) ServiceUsage(context.Context, int64, time.Time, time.Time, string) ([]reports.ServiceUsageRow, error) {
	return nil, nil
}

func (r *reportsRepo) ServiceSaleHours(context.Context, int64, time.Time, time.Time, string) ([]reports.HourCount, error) {
	return nil, nil
}

func (r *reportsRepo) ArqueosInRange(context.Context, int64, time.Time, time.Time) ([]reports.ArqueoRow, error) {
	return nil, nil
}

func (r *reportsRepo) ReceptionVisits(context.Context, int64, time.Time, time.Time, string) ([]reports.ReceptionVisitRow, error) {
	return nil, nil
}

func (r *reportsRepo) KidibarSales(context.Context, int64, time.Time, time.Time, string) ([]reports.KidibarSaleRow, error) {
	return nil, nil
}

type failingSessions struct{}

func (failingSessions) Session(context.Context) (forecast.Repository, func(), error) {
	return nil, nil, errors.New("pool exhausted")
}

func newTestOrchestrator(t *testing.T, repo *reportsRepo) *Orchestrator {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	resolver := branches.NewResolver(stubLookup{}, "")
	reportSvc := reports.NewService(repo, reports.NewCache(client, slog.Default()), resolver, slog.Default())
	reportSvc.WithNow(func() time.Time { return testNow })

	forecastSvc := forecast.NewService(failingSessions{}, resolver, slog.Default())
	forecastSvc.WithNow(func() time.Time { return testNow })

	orch := NewOrchestrator(reportSvc, forecastSvc, NewMemoryCounterStore(), slog.Default())
	orch.WithNow(func() time.Time { return testNow })
	return orch
}

func TestSummaryComposesAllSections(t *testing.T) {
	repo := &reportsRepo{sales: []reports.SaleRow{
		{ID: 1, BranchID: 1, Type: reports.SaleTypeProduct, TotalCents: 500, PayerName: "Ana"},
	}}
	orch := newTestOrchestrator(t, repo)

	summary, err := orch.Summary(context.Background(), reports.Filter{BranchID: 1})
	require.NoError(t, err)

	require.NotNil(t, summary.Sales)
	require.NotNil(t, summary.Stock)
	require.NotNil(t, summary.Services)
	assert.Empty(t, summary.Errors)
	assert.Equal(t, int64(500), summary.Sales.TotalRevenueCents)

	_, err = time.Parse(time.RFC3339, summary.GeneratedAt)
	assert.NoError(t, err)
}

func TestSummaryNullsFailedSection(t *testing.T) {
	repo := &reportsRepo{stockErr: errors.New("query timeout")}
	orch := newTestOrchestrator(t, repo)

	summary, err := orch.Summary(context.Background(), reports.Filter{BranchID: 1})
	require.NoError(t, err)

	assert.Nil(t, summary.Stock)
	require.NotNil(t, summary.Sales)
	require.NotNil(t, summary.Services)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "stock")
}

func TestRefreshGateAndRecovery(t *testing.T) {
	repo := &reportsRepo{}
	orch := newTestOrchestrator(t, repo)
	ctx := context.Background()

	_, err := orch.Refresh(ctx, "u1", RefreshOptions{Filter: reports.Filter{BranchID: 1}})
	require.NoError(t, err)

	// Immediate retry hits the spacing gate, not a stuck in-flight
	// flag: the flag must clear when the first refresh returns.
	_, err = orch.Refresh(ctx, "u1", RefreshOptions{Filter: reports.Filter{BranchID: 1}})
	require.ErrorIs(t, err, httpx.ErrTooManyRequests)
	assert.Contains(t, err.Error(), "wait")
}

func TestRefreshInvalidatesAndRecomputes(t *testing.T) {
	repo := &reportsRepo{}
	orch := newTestOrchestrator(t, repo)
	ctx := context.Background()

	// Prime the cache.
	_, err := orch.Summary(ctx, reports.Filter{BranchID: 1, UseCache: true})
	require.NoError(t, err)
	primed := repo.salesCalls

	_, err = orch.Refresh(ctx, "u1", RefreshOptions{
		Filter:             reports.Filter{BranchID: 1, UseCache: true},
		InvalidatePatterns: []string{"reports:sales:*"},
	})
	require.NoError(t, err)
	assert.Greater(t, repo.salesCalls, primed, "refresh must bypass the cache")
}

func TestPredictionsGateIsStricter(t *testing.T) {
	orch := newTestOrchestrator(t, &reportsRepo{})
	ctx := context.Background()

	bundle, err := orch.Predictions(ctx, "u1", 1, 7)
	require.NoError(t, err)

	// Session acquisition failed, so every kind carries the fallback.
	fallback, ok := bundle.Sales.(forecast.Fallback)
	require.True(t, ok)
	assert.True(t, fallback.Error)

	_, err = orch.Predictions(ctx, "u1", 1, 7)
	require.ErrorIs(t, err, httpx.ErrTooManyRequests)
}
