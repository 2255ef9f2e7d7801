// Package dashboard composes aggregator and forecast results into
// dashboard summaries and guards the expensive refresh and prediction
// operations with per-user rate limits.
package dashboard

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kidipark/kidipark/internal/platform/httpx"
)

// Limits is the per-user policy for one guarded operation.
type Limits struct {
	MinInterval time.Duration
	SessionCap  int64
}

// Refreshes are cheap-ish; predictions are expensive and get a
// stricter gate.
var (
	RefreshLimits    = Limits{MinInterval: 2 * time.Second, SessionCap: 30}
	PredictionLimits = Limits{MinInterval: 5 * time.Second, SessionCap: 10}
)

// CounterStore tracks per-user limiter state. The in-memory store
// covers a single instance; deployments running several replicas use
// the Redis-backed store so limits hold across instances.
type CounterStore interface {
	InFlight(ctx context.Context, key string) (bool, error)
	Begin(ctx context.Context, key string) error
	End(ctx context.Context, key string) error
	LastRun(ctx context.Context, key string) (time.Time, error)
	Count(ctx context.Context, key string) (int64, error)
	MarkRun(ctx context.Context, key string, at time.Time) error
}

// limiter applies a Limits policy on top of a CounterStore.
type limiter struct {
	store  CounterStore
	limits Limits
	op     string
	now    func() time.Time
}

func (l *limiter) key(userID string) string {
	return l.op + ":" + userID
}

// acquire runs the gate checks and marks the operation in-flight. The
// returned release func must run on every exit path, including error
// and abandonment, or the user is locked out permanently.
func (l *limiter) acquire(ctx context.Context, userID string) (release func(), err error) {
	key := l.key(userID)

	inFlight, err := l.store.InFlight(ctx, key)
	if err != nil {
		return nil, err
	}
	if inFlight {
		return nil, fmt.Errorf("%w: %s already in progress", httpx.ErrTooManyRequests, l.op)
	}

	last, err := l.store.LastRun(ctx, key)
	if err != nil {
		return nil, err
	}
	if !last.IsZero() {
		if elapsed := l.now().Sub(last); elapsed < l.limits.MinInterval {
			wait := l.limits.MinInterval - elapsed
			return nil, fmt.Errorf("%w: wait %.1fs before the next %s",
				httpx.ErrTooManyRequests, wait.Seconds(), l.op)
		}
	}

	count, err := l.store.Count(ctx, key)
	if err != nil {
		return nil, err
	}
	if count >= l.limits.SessionCap {
		return nil, fmt.Errorf("%w: session limit of %d %s requests reached",
			httpx.ErrTooManyRequests, l.limits.SessionCap, l.op)
	}

	if err := l.store.Begin(ctx, key); err != nil {
		return nil, err
	}
	return func() {
		// End must not inherit a cancelled request context.
		_ = l.store.End(context.WithoutCancel(ctx), key)
	}, nil
}

// record counts a completed run against the session budget.
func (l *limiter) record(ctx context.Context, userID string) error {
	return l.store.MarkRun(ctx, l.key(userID), l.now())
}

type memoryState struct {
	inFlight bool
	lastRun  time.Time
	count    int64
}

// MemoryCounterStore is the single-instance default.
type MemoryCounterStore struct {
	mu    sync.Mutex
	state map[string]*memoryState
}

// NewMemoryCounterStore constructs an empty in-memory store.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{state: make(map[string]*memoryState)}
}

func (m *MemoryCounterStore) get(key string) *memoryState {
	s := m.state[key]
	if s == nil {
		s = &memoryState{}
		m.state[key] = s
	}
	return s
}

func (m *MemoryCounterStore) InFlight(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(key).inFlight, nil
}

func (m *MemoryCounterStore) Begin(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.get(key).inFlight = true
	return nil
}

func (m *MemoryCounterStore) End(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.get(key).inFlight = false
	return nil
}

func (m *MemoryCounterStore) LastRun(_ context.Context, key string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(key).lastRun, nil
}

func (m *MemoryCounterStore) Count(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(key).count, nil
}

func (m *MemoryCounterStore) MarkRun(_ context.Context, key string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.get(key)
	s.lastRun = at
	s.count++
	return nil
}

// Redis key lifetimes: the in-flight flag self-expires as a safety net
// against a crashed instance never calling End; session counters reset
// after twelve idle hours.
const (
	inFlightTTL = 2 * time.Minute
	sessionTTL  = 12 * time.Hour
)

// RedisCounterStore shares limiter state across instances.
type RedisCounterStore struct {
	client *redis.Client
}

// NewRedisCounterStore constructs a Redis-backed store.
func NewRedisCounterStore(client *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

func redisKey(key, field string) string {
	return "dashboard:limits:" + key + ":" + field
}

func (r *RedisCounterStore) InFlight(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, redisKey(key, "inflight")).Result()
	if err != nil {
		return false, fmt.Errorf("dashboard: inflight check: %w", err)
	}
	return n > 0, nil
}

func (r *RedisCounterStore) Begin(ctx context.Context, key string) error {
	return r.client.Set(ctx, redisKey(key, "inflight"), 1, inFlightTTL).Err()
}

func (r *RedisCounterStore) End(ctx context.Context, key string) error {
	return r.client.Del(ctx, redisKey(key, "inflight")).Err()
}

func (r *RedisCounterStore) LastRun(ctx context.Context, key string) (time.Time, error) {
	raw, err := r.client.Get(ctx, redisKey(key, "last")).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("dashboard: last run: %w", err)
	}
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("dashboard: last run payload: %w", err)
	}
	return time.UnixMilli(millis).UTC(), nil
}

func (r *RedisCounterStore) Count(ctx context.Context, key string) (int64, error) {
	count, err := r.client.Get(ctx, redisKey(key, "count")).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("dashboard: count: %w", err)
	}
	return count, nil
}

func (r *RedisCounterStore) MarkRun(ctx context.Context, key string, at time.Time) error {
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, redisKey(key, "last"), at.UnixMilli(), sessionTTL)
	pipe.Incr(ctx, redisKey(key, "count"))
	pipe.Expire(ctx, redisKey(key, "count"), sessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("dashboard: mark run: %w", err)
	}
	return nil
}
