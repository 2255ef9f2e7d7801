package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL classes per report kind. Live covers high-churn reports such as
// active services; slow covers RFM and cohort segmentation.
const (
	TTLLive     = 60 * time.Second
	TTLStandard = 300 * time.Second
	TTLSlow     = 600 * time.Second
)

// Cache wraps Redis based caching for report payloads. All operations
// are best-effort: a Redis failure is treated as a miss and never
// fails the report computation.
type Cache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: client, logger: logger}
}

// Key composes the report kind and all filter values into a single
// deterministic lookup key. Parts are nil-safe: a nil or zero part
// becomes the "-" token so identical filters always collide.
func Key(kind string, parts ...any) string {
	tokens := make([]string, 0, len(parts)+2)
	tokens = append(tokens, "reports", kind)
	for _, part := range parts {
		tokens = append(tokens, keyToken(part))
	}
	return strings.Join(tokens, ":")
}

func keyToken(part any) string {
	switch v := part.(type) {
	case nil:
		return "-"
	case string:
		if v == "" {
			return "-"
		}
		return v
	case time.Time:
		if v.IsZero() {
			return "-"
		}
		return v.Format("2006-01-02")
	case *time.Time:
		if v == nil || v.IsZero() {
			return "-"
		}
		return v.Format("2006-01-02")
	case int64:
		if v == 0 {
			return "-"
		}
		return fmt.Sprintf("%d", v)
	case *int64:
		if v == nil {
			return "-"
		}
		return fmt.Sprintf("%d", *v)
	case Module:
		if v == "" {
			return string(ModuleAll)
		}
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Get loads a cached payload into dest, reporting whether it was found.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	if c == nil || c.client == nil {
		return false
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		c.logger.Warn("report cache read failed", slog.String("key", key), slog.Any("error", err))
		return false
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		c.logger.Warn("report cache payload corrupt", slog.String("key", key), slog.Any("error", err))
		return false
	}
	return true
}

// Set stores a payload with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("report cache marshal failed", slog.String("key", key), slog.Any("error", err))
		return
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.logger.Warn("report cache write failed", slog.String("key", key), slog.Any("error", err))
	}
}

// Invalidate removes keys matching pattern. A trailing ":*" matches all
// keys sharing the prefix; anything else deletes the exact key.
func (c *Cache) Invalidate(ctx context.Context, pattern string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if !strings.HasSuffix(pattern, ":*") {
		return c.client.Del(ctx, pattern).Err()
	}
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("reports: scan %q: %w", pattern, err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
