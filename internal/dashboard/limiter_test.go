package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidipark/kidipark/internal/platform/httpx"
)

func newTestLimiter(limits Limits, op string) (*limiter, *time.Time) {
	now := time.Date(2026, 8, 24, 18, 0, 0, 0, time.UTC)
	l := &limiter{
		store:  NewMemoryCounterStore(),
		limits: limits,
		op:     op,
		now:    func() time.Time { return now },
	}
	return l, &now
}

func TestLimiterRejectsInFlight(t *testing.T) {
	l, _ := newTestLimiter(RefreshLimits, "refresh")
	ctx := context.Background()

	release, err := l.acquire(ctx, "u1")
	require.NoError(t, err)

	_, err = l.acquire(ctx, "u1")
	require.ErrorIs(t, err, httpx.ErrTooManyRequests)
	assert.Contains(t, err.Error(), "in progress")

	// Another user is unaffected.
	other, err := l.acquire(ctx, "u2")
	require.NoError(t, err)
	other()

	release()
	release2, err := l.acquire(ctx, "u1")
	require.NoError(t, err)
	release2()
}

func TestLimiterEnforcesSpacing(t *testing.T) {
	l, now := newTestLimiter(RefreshLimits, "refresh")
	ctx := context.Background()

	release, err := l.acquire(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, l.record(ctx, "u1"))
	release()

	*now = now.Add(500 * time.Millisecond)
	_, err = l.acquire(ctx, "u1")
	require.ErrorIs(t, err, httpx.ErrTooManyRequests)
	assert.Contains(t, err.Error(), "wait")

	*now = now.Add(2 * time.Second)
	release, err = l.acquire(ctx, "u1")
	require.NoError(t, err)
	release()
}

func TestLimiterSessionCap(t *testing.T) {
	l, now := newTestLimiter(PredictionLimits, "prediction")
	ctx := context.Background()

	for i := int64(0); i < PredictionLimits.SessionCap; i++ {
		release, err := l.acquire(ctx, "u1")
		require.NoError(t, err)
		require.NoError(t, l.record(ctx, "u1"))
		release()
		*now = now.Add(PredictionLimits.MinInterval)
	}

	_, err := l.acquire(ctx, "u1")
	require.ErrorIs(t, err, httpx.ErrTooManyRequests)
	assert.Contains(t, err.Error(), "session limit")
}

func TestLimiterReleaseSurvivesCancelledContext(t *testing.T) {
	l, _ := newTestLimiter(RefreshLimits, "refresh")

	ctx, cancel := context.WithCancel(context.Background())
	release, err := l.acquire(ctx, "u1")
	require.NoError(t, err)

	// An abandoned request cancels its context before release runs;
	// the flag must still clear or the user is locked out.
	cancel()
	release()

	inFlight, err := l.store.InFlight(context.Background(), "refresh:u1")
	require.NoError(t, err)
	assert.False(t, inFlight)
}

func newRedisStore(t *testing.T) (*RedisCounterStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCounterStore(client), mr
}

func TestRedisCounterStore(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()

	inFlight, err := store.InFlight(ctx, "refresh:u1")
	require.NoError(t, err)
	assert.False(t, inFlight)

	require.NoError(t, store.Begin(ctx, "refresh:u1"))
	inFlight, err = store.InFlight(ctx, "refresh:u1")
	require.NoError(t, err)
	assert.True(t, inFlight)

	require.NoError(t, store.End(ctx, "refresh:u1"))
	inFlight, err = store.InFlight(ctx, "refresh:u1")
	require.NoError(t, err)
	assert.False(t, inFlight)

	last, err := store.LastRun(ctx, "refresh:u1")
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	at := time.Date(2026, 8, 24, 18, 0, 0, 0, time.UTC)
	require.NoError(t, store.MarkRun(ctx, "refresh:u1", at))
	require.NoError(t, store.MarkRun(ctx, "refresh:u1", at.Add(3*time.Second)))

	last, err = store.LastRun(ctx, "refresh:u1")
	require.NoError(t, err)
	assert.Equal(t, at.Add(3*time.Second), last)

	count, err := store.Count(ctx, "refresh:u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestRedisCounterStoreInFlightSelfExpires(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Begin(ctx, "refresh:u1"))
	mr.FastForward(inFlightTTL + time.Second)

	inFlight, err := store.InFlight(ctx, "refresh:u1")
	require.NoError(t, err)
	assert.False(t, inFlight, "a crashed instance must not lock the user out forever")
}
