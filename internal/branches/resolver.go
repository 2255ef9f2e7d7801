package branches

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"
)

// DefaultTimezone is used when a branch is missing or has no timezone set.
const DefaultTimezone = "America/Mexico_City"

// tzPattern is the allow-list for zone names interpolated into SQL.
// Anything outside it is rejected, never escaped or passed through.
var tzPattern = regexp.MustCompile(`^[A-Za-z0-9_/]+$`)

// ErrInvalidTimezone indicates a zone name failed the allow-list guard.
var ErrInvalidTimezone = errors.New("branches: timezone failed validation")

// Lookup is the subset of the repository the resolver depends on.
type Lookup interface {
	Get(ctx context.Context, id int64) (Branch, error)
}

// Resolver resolves a branch's IANA timezone and derives business dates.
// Resolutions are cached for the lifetime of the owning service instance.
type Resolver struct {
	repo      Lookup
	defaultTZ string

	mu    sync.Mutex
	cache map[int64]string

	now func() time.Time
}

// NewResolver constructs a Resolver with an instance-lifetime cache.
func NewResolver(repo Lookup, defaultTZ string) *Resolver {
	if defaultTZ == "" {
		defaultTZ = DefaultTimezone
	}
	return &Resolver{
		repo:      repo,
		defaultTZ: defaultTZ,
		cache:     make(map[int64]string),
		now:       time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (r *Resolver) WithNow(now func() time.Time) {
	if now != nil {
		r.now = now
	}
}

// Timezone resolves the branch timezone, defaulting when the branch is
// missing or has no timezone configured.
func (r *Resolver) Timezone(ctx context.Context, branchID int64) (string, error) {
	r.mu.Lock()
	if tz, ok := r.cache[branchID]; ok {
		r.mu.Unlock()
		return tz, nil
	}
	r.mu.Unlock()

	tz := r.defaultTZ
	if branchID > 0 {
		branch, err := r.repo.Get(ctx, branchID)
		switch {
		case errors.Is(err, ErrBranchNotFound):
			// fall through to default
		case err != nil:
			return "", err
		case branch.Timezone != "":
			tz = branch.Timezone
		}
	}
	if !tzPattern.MatchString(tz) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimezone, tz)
	}

	r.mu.Lock()
	r.cache[branchID] = tz
	r.mu.Unlock()
	return tz, nil
}

// Location resolves the branch timezone into a *time.Location.
func (r *Resolver) Location(ctx context.Context, branchID int64) (*time.Location, error) {
	tz, err := r.Timezone(ctx, branchID)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("branches: load location %q: %w", tz, err)
	}
	return loc, nil
}

// BusinessDate returns the calendar date in the branch's civil timezone.
// An explicit date is returned unchanged.
func (r *Resolver) BusinessDate(ctx context.Context, branchID int64, explicit *time.Time) (time.Time, error) {
	if explicit != nil {
		return time.Date(explicit.Year(), explicit.Month(), explicit.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	loc, err := r.Location(ctx, branchID)
	if err != nil {
		return time.Time{}, err
	}
	local := r.now().UTC().In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC), nil
}

// DateInTZ produces a SQL expression extracting the civil date of a
// UTC-stored timestamp column in the given zone.
func DateInTZ(column, tz string) (string, error) {
	if !tzPattern.MatchString(tz) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimezone, tz)
	}
	return fmt.Sprintf("DATE(%s AT TIME ZONE 'UTC' AT TIME ZONE '%s')", column, tz), nil
}

// HourInTZ produces a SQL expression extracting the local hour (0-23).
func HourInTZ(column, tz string) (string, error) {
	if !tzPattern.MatchString(tz) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimezone, tz)
	}
	return fmt.Sprintf("EXTRACT(HOUR FROM %s AT TIME ZONE 'UTC' AT TIME ZONE '%s')::int", column, tz), nil
}

// DayOfWeekInTZ produces a SQL expression extracting the local day of
// week, 0=Sunday through 6=Saturday.
func DayOfWeekInTZ(column, tz string) (string, error) {
	if !tzPattern.MatchString(tz) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimezone, tz)
	}
	return fmt.Sprintf("EXTRACT(DOW FROM %s AT TIME ZONE 'UTC' AT TIME ZONE '%s')::int", column, tz), nil
}
