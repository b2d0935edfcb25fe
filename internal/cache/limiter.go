package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter enforces a minimum spacing between calls to each named operation.
// State is shared by every caller of the same Limiter; operations are limited
// independently of the subject being fetched.
type Limiter struct {
	mu         sync.Mutex
	clock      Clock
	defaultCPM float64
	perOp      map[string]float64
	limiters   map[string]*rate.Limiter
	metrics    *Metrics
	logger     *slog.Logger
}

// LimiterOption configures a Limiter.
type LimiterOption func(*Limiter)

// WithClock replaces the wall clock.
func WithClock(c Clock) LimiterOption {
	return func(l *Limiter) { l.clock = c }
}

// WithOperationRate overrides calls per minute for one operation.
func WithOperationRate(op string, callsPerMinute float64) LimiterOption {
	return func(l *Limiter) { l.perOp[op] = callsPerMinute }
}

// WithLimiterMetrics records waits.
func WithLimiterMetrics(m *Metrics) LimiterOption {
	return func(l *Limiter) { l.metrics = m }
}

// NewLimiter creates a Limiter allowing callsPerMinute calls per operation by default.
func NewLimiter(callsPerMinute float64, logger *slog.Logger, opts ...LimiterOption) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Limiter{
		clock:      SystemClock(),
		defaultCPM: callsPerMinute,
		perOp:      make(map[string]float64),
		limiters:   make(map[string]*rate.Limiter),
		logger:     logger,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Interval returns the minimum spacing enforced for op. Zero means unlimited.
func (l *Limiter) Interval(op string) time.Duration {
	cpm := l.defaultCPM
	if v, ok := l.perOp[op]; ok {
		cpm = v
	}
	if cpm <= 0 {
		return 0
	}
	return time.Duration(float64(time.Minute) / cpm)
}

func (l *Limiter) limiterFor(op string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters[op]; ok {
		return lim
	}
	every := l.Interval(op)
	limit := rate.Inf
	if every > 0 {
		limit = rate.Every(every)
	}
	lim := rate.NewLimiter(limit, 1)
	l.limiters[op] = lim
	return lim
}

// Wait blocks until op may run. The first call for an operation never waits.
// A cancelled wait gives its slot back.
func (l *Limiter) Wait(ctx context.Context, op string) error {
	lim := l.limiterFor(op)
	now := l.clock.Now()
	res := lim.ReserveN(now, 1)
	if !res.OK() {
		return fmt.Errorf("rate limit for %s cannot be satisfied", op)
	}
	delay := res.DelayFrom(now)
	if delay <= 0 {
		return nil
	}
	l.logger.Debug("rate limit wait", "operation", op, "delay", delay)
	if err := l.clock.Sleep(ctx, delay); err != nil {
		res.CancelAt(l.clock.Now())
		return fmt.Errorf("rate limit wait for %s: %w", op, err)
	}
	l.metrics.waited(op, delay)
	return nil
}
