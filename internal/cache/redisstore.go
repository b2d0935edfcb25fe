package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "etfsentinel:cache"

// RedisStore keeps entries in Redis. Keys expire after the TTL so stale
// entries do not accumulate; freshness is still decided by the Cache.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(subject, source string) string {
	return fmt.Sprintf("%s:%s:%s", redisKeyPrefix, subject, source)
}

func (s *RedisStore) Load(ctx context.Context, subject, source string) (*Entry, error) {
	raw, err := s.client.Get(ctx, redisKey(subject, source)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var rec fileRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode redis entry: %w", err)
	}
	return &Entry{
		Subject:   subject,
		Source:    source,
		Payload:   rec.Data,
		FetchedAt: time.UnixMilli(int64(rec.Timestamp * 1000)),
	}, nil
}

func (s *RedisStore) Save(ctx context.Context, e *Entry) error {
	raw, err := json.Marshal(fileRecord{Timestamp: float64(e.FetchedAt.UnixMilli()) / 1000, Data: e.Payload})
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, redisKey(e.Subject, e.Source), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
