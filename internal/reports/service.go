package reports

import (
	"context"
	"log/slog"
	"time"

	"github.com/kidipark/kidipark/internal/branches"
)

// TTLSet groups the cache lifetimes per report churn class.
type TTLSet struct {
	Live     time.Duration
	Standard time.Duration
	Slow     time.Duration
}

// Service coordinates aggregator execution with the cache layer and
// timezone resolution.
type Service struct {
	repo     Repository
	cache    *Cache
	resolver *branches.Resolver
	logger   *slog.Logger
	ttl      TTLSet
	now      func() time.Time
}

// NewService wires a Repository with the report cache and resolver.
func NewService(repo Repository, cache *Cache, resolver *branches.Resolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		cache:    cache,
		resolver: resolver,
		logger:   logger,
		ttl:      TTLSet{Live: TTLLive, Standard: TTLStandard, Slow: TTLSlow},
		now:      time.Now,
	}
}

// WithTTLs overrides the cache lifetimes. Zero fields keep the defaults.
func (s *Service) WithTTLs(ttl TTLSet) {
	if ttl.Live > 0 {
		s.ttl.Live = ttl.Live
	}
	if ttl.Standard > 0 {
		s.ttl.Standard = ttl.Standard
	}
	if ttl.Slow > 0 {
		s.ttl.Slow = ttl.Slow
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
		s.resolver.WithNow(now)
	}
}

// BusinessDate exposes the branch-local calendar date used for range
// defaulting, for callers composing their own windows.
func (s *Service) BusinessDate(ctx context.Context, branchID int64) (time.Time, error) {
	return s.resolver.BusinessDate(ctx, branchID, nil)
}

// InvalidateCache removes cached reports matching pattern, e.g.
// "reports:sales:*". Used by the refresh orchestrator.
func (s *Service) InvalidateCache(ctx context.Context, pattern string) error {
	return s.cache.Invalidate(ctx, pattern)
}

// resolveRange applies date-range defaulting: both absent yields the
// business date for point-in-time reports (trailingDays 0) or a
// trailing window ending today for trend reports.
func (s *Service) resolveRange(ctx context.Context, f Filter, trailingDays int) (time.Time, time.Time, error) {
	today, err := s.resolver.BusinessDate(ctx, f.BranchID, nil)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	from, to := f.From, f.To
	if to.IsZero() {
		to = today
	}
	if from.IsZero() {
		if trailingDays > 0 {
			from = to.AddDate(0, 0, -(trailingDays - 1))
		} else {
			from = to
		}
	}
	if from.After(to) {
		return time.Time{}, time.Time{}, ErrInvalidDateRange
	}
	return from, to, nil
}

// cached runs the cache-through protocol: check when useCache, compute,
// then always store so subsequent cached reads benefit.
func cached[T any](ctx context.Context, s *Service, key string, ttl time.Duration, useCache bool, compute func(context.Context) (T, error)) (T, error) {
	var out T
	if useCache && s.cache.Get(ctx, key, &out) {
		return out, nil
	}
	out, err := compute(ctx)
	if err != nil {
		return out, err
	}
	s.cache.Set(ctx, key, out, ttl)
	return out, nil
}

// saleInModule reports whether a sale row belongs to the module view.
// Mixed packages are excluded from both module-filtered views.
func saleInModule(row SaleRow, module Module) bool {
	switch module {
	case "", ModuleAll:
		return true
	case ModuleRecepcion:
		return row.Type == SaleTypeService ||
			(row.Type == SaleTypePackage && row.PackageKind == PackageServiceOnly)
	case ModuleKidibar:
		return row.Type == SaleTypeProduct ||
			(row.Type == SaleTypePackage && row.PackageKind == PackageProductOnly)
	}
	return false
}
