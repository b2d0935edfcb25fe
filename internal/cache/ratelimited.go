package cache

import (
	"context"
	"encoding/json"
	"log/slog"
)

// RateLimitedCache puts a Cache in front of rate-limited external lookups.
// The limiter operation is the lookup's source name.
type RateLimitedCache struct {
	cache   *Cache
	limiter *Limiter
	logger  *slog.Logger
}

// NewRateLimited composes c and l.
func NewRateLimited(c *Cache, l *Limiter, logger *slog.Logger) *RateLimitedCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimitedCache{cache: c, limiter: l, logger: logger}
}

// Fetch returns the cached value for (subject, source) or, on a miss, waits
// for the source's rate limit slot, calls fetch and caches its result.
// Errors from fetch are returned as is and nothing is cached.
func Fetch[T any](ctx context.Context, rc *RateLimitedCache, subject, source string, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	if raw, ok := rc.cache.Get(ctx, subject, source); ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		rc.logger.Warn("discarding undecodable cache entry", "subject", subject, "source", source)
	}

	if err := rc.limiter.Wait(ctx, source); err != nil {
		return zero, err
	}
	v, err := fetch(ctx)
	if err != nil {
		return zero, err
	}
	if err := rc.cache.Set(ctx, subject, source, v); err != nil {
		rc.logger.Warn("cache write failed", "subject", subject, "source", source, "err", err)
	}
	return v, nil
}
