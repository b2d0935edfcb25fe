// Package guard checks real-time quotes before they are used.
package guard

import (
	"fmt"
	"log/slog"
	"time"
	_ "time/tzdata"

	"ETFSentinel/internal/model"
)

// DefaultMaxAge is how old a quote may be before it is considered stale.
const DefaultMaxAge = 15 * time.Minute

// InvalidQuoteError is returned when a quote's bid is not below its ask.
type InvalidQuoteError struct {
	Symbol string
	Bid    float64
	Ask    float64
}

func (e *InvalidQuoteError) Error() string {
	return fmt.Sprintf("invalid quote for %s: bid %.4f >= ask %.4f", e.Symbol, e.Bid, e.Ask)
}

// StaleDataError is returned when a quote is older than the allowed age.
type StaleDataError struct {
	Symbol string
	Age    time.Duration
	MaxAge time.Duration
}

func (e *StaleDataError) Error() string {
	return fmt.Sprintf("stale quote for %s: %s old, limit %s", e.Symbol, e.Age.Round(time.Second), e.MaxAge)
}

// Calendar describes the regular session of an exchange.
type Calendar struct {
	Location *time.Location
	Open     time.Duration // offset from local midnight
	Close    time.Duration
}

// NewCalendar loads the timezone and parses "HH:MM" session bounds.
func NewCalendar(tz, open, close string) (Calendar, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Calendar{}, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	o, err := parseClock(open)
	if err != nil {
		return Calendar{}, err
	}
	c, err := parseClock(close)
	if err != nil {
		return Calendar{}, err
	}
	if c <= o {
		return Calendar{}, fmt.Errorf("session close %s must be after open %s", close, open)
	}
	return Calendar{Location: loc, Open: o, Close: c}, nil
}

// USEquities is the NYSE/Nasdaq regular session.
func USEquities() Calendar {
	cal, err := NewCalendar("America/New_York", "09:30", "16:00")
	if err != nil {
		panic(err)
	}
	return cal
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse session time %q: %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// IsOpen reports whether now falls within the session, Monday to Friday.
// Exchange holidays are not modelled.
func (c Calendar) IsOpen(now time.Time) bool {
	local := now.In(c.Location)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.Location)
	since := local.Sub(midnight)
	return since >= c.Open && since < c.Close
}

// Guard validates quotes against a calendar and a freshness limit. It never
// modifies the quote; callers decide whether to proceed on error.
type Guard struct {
	cal    Calendar
	maxAge time.Duration
	logger *slog.Logger
}

// New creates a Guard. A non-positive maxAge uses DefaultMaxAge.
func New(cal Calendar, maxAge time.Duration, logger *slog.Logger) *Guard {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if cal.Location == nil {
		cal = USEquities()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{cal: cal, maxAge: maxAge, logger: logger}
}

// IsMarketOpen reports whether the regular session is open at now.
func (g *Guard) IsMarketOpen(now time.Time) bool {
	return g.cal.IsOpen(now)
}

// Validate checks a crossed or locked book first, then freshness.
func (g *Guard) Validate(q *model.Quote, now time.Time) error {
	if q.Crossed() {
		g.logger.Warn("invalid quote", "symbol", q.Symbol, "bid", q.Bid.Float64, "ask", q.Ask.Float64)
		return &InvalidQuoteError{Symbol: q.Symbol, Bid: q.Bid.Float64, Ask: q.Ask.Float64}
	}
	if age := now.Sub(q.Timestamp); age > g.maxAge {
		g.logger.Warn("stale quote", "symbol", q.Symbol, "age", age)
		return &StaleDataError{Symbol: q.Symbol, Age: age, MaxAge: g.maxAge}
	}
	return nil
}
