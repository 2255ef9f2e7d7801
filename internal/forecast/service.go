package forecast

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kidipark/kidipark/internal/branches"
)

// History window and horizon bounds for every predictor.
const (
	historyDays    = 60
	defaultHorizon = 7
	maxHorizon     = 30
)

// ErrInvalidHorizon rejects out-of-range forecast horizons.
var ErrInvalidHorizon = fmt.Errorf("forecast: horizon must be between 1 and %d days", maxHorizon)

// Service runs the predictors. Every prediction opens its own data
// session so concurrent forecasts never share a connection.
type Service struct {
	sessions Sessions
	resolver *branches.Resolver
	engine   *Engine
	logger   *slog.Logger
	now      func() time.Time
}

// NewService wires the forecast service.
func NewService(sessions Sessions, resolver *branches.Resolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		sessions: sessions,
		resolver: resolver,
		engine:   NewEngine(),
		logger:   logger,
		now:      time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
		s.resolver.WithNow(now)
	}
}

// WithNorm overrides the engine's gaussian source for tests.
func (s *Service) WithNorm(norm func() float64) {
	s.engine.WithNorm(norm)
}

// horizon validates and defaults the requested forecast length.
func horizon(days int) (int, error) {
	if days == 0 {
		return defaultHorizon, nil
	}
	if days < 1 || days > maxHorizon {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidHorizon, days)
	}
	return days, nil
}

// window returns the history range ending on the branch business date.
func (s *Service) window(ctx context.Context, branchID int64) (from, to time.Time, tz string, err error) {
	tz, err = s.resolver.Timezone(ctx, branchID)
	if err != nil {
		return time.Time{}, time.Time{}, "", err
	}
	to, err = s.resolver.BusinessDate(ctx, branchID, nil)
	if err != nil {
		return time.Time{}, time.Time{}, "", err
	}
	return to.AddDate(0, 0, -(historyDays - 1)), to, tz, nil
}

func toHistory(values []DayValue) []HistoryPoint {
	points := make([]HistoryPoint, len(values))
	for i, v := range values {
		points[i] = HistoryPoint{Date: v.Date, Value: v.Value}
	}
	return points
}

// centsPoints converts projected float values to integer cents, never
// negative.
func centsPoints(points []Point) []CentsPoint {
	out := make([]CentsPoint, len(points))
	for i, p := range points {
		cents := int64(p.Value + 0.5)
		if cents < 0 {
			cents = 0
		}
		out[i] = CentsPoint{Date: p.Date, PredictedCents: cents}
	}
	return out
}

// CentsPoint is one projected day with an integer-cent prediction.
type CentsPoint struct {
	Date           string `json:"date"`
	PredictedCents int64  `json:"predicted_cents"`
}
