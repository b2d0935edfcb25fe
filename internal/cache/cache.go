// Package cache provides a TTL cache for external lookups, a per-operation
// rate limiter, and the composition of both.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultTTL is how long a cached payload stays fresh.
const DefaultTTL = 24 * time.Hour

// ErrNotFound is returned by a Store that holds nothing for a key.
var ErrNotFound = errors.New("cache entry not found")

// Entry is a cached payload for one (subject, source) pair.
type Entry struct {
	Subject   string
	Source    string
	Payload   json.RawMessage
	FetchedAt time.Time
}

// Store persists entries. Implementations must be safe for concurrent use.
type Store interface {
	Load(ctx context.Context, subject, source string) (*Entry, error)
	Save(ctx context.Context, e *Entry) error
}

// Cache serves fresh entries from a Store. Stale entries are misses; they are
// overwritten by the next Set, never removed early.
type Cache struct {
	store   Store
	ttl     time.Duration
	clock   Clock
	metrics *Metrics
	logger  *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCacheClock replaces the wall clock.
func WithCacheClock(clock Clock) Option {
	return func(c *Cache) { c.clock = clock }
}

// WithCacheMetrics records hits and misses.
func WithCacheMetrics(m *Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// New creates a Cache over store.
func New(store Store, logger *slog.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{store: store, ttl: DefaultTTL, clock: SystemClock(), logger: logger}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get returns the payload if it was stored less than the TTL ago.
// Store failures are logged and reported as misses.
func (c *Cache) Get(ctx context.Context, subject, source string) (json.RawMessage, bool) {
	e, err := c.store.Load(ctx, subject, source)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn("cache load failed", "subject", subject, "source", source, "err", err)
		}
		c.metrics.lookup(source, "miss")
		return nil, false
	}
	if c.clock.Now().Sub(e.FetchedAt) >= c.ttl {
		c.metrics.lookup(source, "stale")
		return nil, false
	}
	c.metrics.lookup(source, "hit")
	return e.Payload, true
}

// Set stores v as JSON with the current time, replacing any previous entry.
func (c *Cache) Set(ctx context.Context, subject, source string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal cache payload: %w", err)
	}
	e := &Entry{Subject: subject, Source: source, Payload: payload, FetchedAt: c.clock.Now()}
	if err := c.store.Save(ctx, e); err != nil {
		return fmt.Errorf("save cache entry %s/%s: %w", subject, source, err)
	}
	return nil
}

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Load(_ context.Context, subject, source string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[subject+"\x00"+source]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (s *MemoryStore) Save(_ context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[e.Subject+"\x00"+e.Source] = *e
	return nil
}
