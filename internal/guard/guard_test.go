package guard

import (
	"errors"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ETFSentinel/internal/model"
)

func nyTime(t *testing.T, value string) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	ts, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	require.NoError(t, err)
	return ts
}

func TestIsMarketOpen(t *testing.T) {
	g := New(USEquities(), 0, nil)
	tests := []struct {
		at   string
		want bool
	}{
		{"2024-03-13 09:29", false},
		{"2024-03-13 09:30", true},
		{"2024-03-13 12:00", true},
		{"2024-03-13 15:59", true},
		{"2024-03-13 16:00", false},
		{"2024-03-16 12:00", false}, // Saturday
		{"2024-03-17 12:00", false}, // Sunday
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, g.IsMarketOpen(nyTime(t, tt.at)), tt.at)
	}
}

func TestIsMarketOpen_OtherZone(t *testing.T) {
	g := New(USEquities(), 0, nil)
	// 14:00 UTC is 10:00 in New York during daylight time.
	assert.True(t, g.IsMarketOpen(time.Date(2024, 7, 10, 14, 0, 0, 0, time.UTC)))
	assert.False(t, g.IsMarketOpen(time.Date(2024, 7, 10, 21, 0, 0, 0, time.UTC)))
}

func TestValidate(t *testing.T) {
	g := New(USEquities(), 0, nil)
	now := nyTime(t, "2024-03-13 11:00")

	ok := &model.Quote{Symbol: "SPY", Bid: null.FloatFrom(100), Ask: null.FloatFrom(100.02), Timestamp: now.Add(-time.Minute)}
	assert.NoError(t, g.Validate(ok, now))

	crossed := &model.Quote{Symbol: "SPY", Bid: null.FloatFrom(100.05), Ask: null.FloatFrom(100), Timestamp: now.Add(-time.Hour)}
	var invalid *InvalidQuoteError
	require.True(t, errors.As(g.Validate(crossed, now), &invalid), "crossed book reported before staleness")
	assert.Equal(t, 100.05, invalid.Bid)

	locked := &model.Quote{Symbol: "SPY", Bid: null.FloatFrom(100), Ask: null.FloatFrom(100), Timestamp: now}
	assert.ErrorAs(t, g.Validate(locked, now), &invalid)

	stale := &model.Quote{Symbol: "SPY", Bid: null.FloatFrom(100), Ask: null.FloatFrom(100.01), Timestamp: now.Add(-16 * time.Minute)}
	var staleErr *StaleDataError
	require.ErrorAs(t, g.Validate(stale, now), &staleErr)
	assert.Equal(t, 16*time.Minute, staleErr.Age)

	noBook := &model.Quote{Symbol: "SPY", Timestamp: now.Add(-15 * time.Minute)}
	assert.NoError(t, g.Validate(noBook, now))
	assert.False(t, noBook.Bid.Valid, "quote untouched")
}

func TestNewCalendar_Invalid(t *testing.T) {
	_, err := NewCalendar("Mars/Olympus", "09:30", "16:00")
	assert.Error(t, err)
	_, err = NewCalendar("UTC", "16:00", "09:30")
	assert.Error(t, err)
	_, err = NewCalendar("UTC", "9h", "16:00")
	assert.Error(t, err)
}
