package branches

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubLookup struct {
	branch Branch
	err    error
	calls  int
}

func (s *stubLookup) Get(ctx context.Context, id int64) (Branch, error) {
	s.calls++
	return s.branch, s.err
}

func TestTimezoneDefaultsWhenBranchMissing(t *testing.T) {
	repo := &stubLookup{err: ErrBranchNotFound}
	r := NewResolver(repo, "")

	tz, err := r.Timezone(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, DefaultTimezone, tz)
}

func TestTimezoneDefaultsWhenUnset(t *testing.T) {
	repo := &stubLookup{branch: Branch{ID: 3, Timezone: ""}}
	r := NewResolver(repo, "")

	tz, err := r.Timezone(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, DefaultTimezone, tz)
}

func TestTimezoneCachedPerBranch(t *testing.T) {
	repo := &stubLookup{branch: Branch{ID: 7, Timezone: "America/Cancun"}}
	r := NewResolver(repo, "")

	ctx := context.Background()
	tz, err := r.Timezone(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, "America/Cancun", tz)

	_, err = r.Timezone(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, 1, repo.calls, "second resolution must hit the cache")
}

func TestTimezoneRejectsMalformedZone(t *testing.T) {
	repo := &stubLookup{branch: Branch{ID: 9, Timezone: "America/Cancun'; DROP TABLE sales;--"}}
	r := NewResolver(repo, "")

	_, err := r.Timezone(context.Background(), 9)
	require.ErrorIs(t, err, ErrInvalidTimezone)
}

func TestBusinessDateConvertsUTCNow(t *testing.T) {
	repo := &stubLookup{branch: Branch{ID: 1, Timezone: "America/Mexico_City"}}
	r := NewResolver(repo, "")
	// 03:00 UTC is still the previous day in Mexico City (UTC-6).
	r.WithNow(func() time.Time {
		return time.Date(2026, 8, 25, 3, 0, 0, 0, time.UTC)
	})

	date, err := r.BusinessDate(context.Background(), 1, nil)
	require.NoError(t, err)
	require.Equal(t, "2026-08-24", date.Format("2006-01-02"))
}

func TestBusinessDateExplicitUnchanged(t *testing.T) {
	repo := &stubLookup{branch: Branch{ID: 1, Timezone: "America/Mexico_City"}}
	r := NewResolver(repo, "")

	explicit := time.Date(2026, 1, 15, 18, 30, 0, 0, time.UTC)
	date, err := r.BusinessDate(context.Background(), 1, &explicit)
	require.NoError(t, err)
	require.Equal(t, "2026-01-15", date.Format("2006-01-02"))
}

func TestSQLExpressionsGuardZone(t *testing.T) {
	expr, err := DateInTZ("v.created_at", "America/Mexico_City")
	require.NoError(t, err)
	require.Equal(t, "DATE(v.created_at AT TIME ZONE 'UTC' AT TIME ZONE 'America/Mexico_City')", expr)

	_, err = DateInTZ("v.created_at", "bad zone'") // space and quote
	require.ErrorIs(t, err, ErrInvalidTimezone)

	_, err = HourInTZ("v.created_at", "x; --")
	require.ErrorIs(t, err, ErrInvalidTimezone)

	_, err = DayOfWeekInTZ("v.created_at", "UTC' OR '1'='1")
	require.ErrorIs(t, err, ErrInvalidTimezone)
}
