package recorder

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/guregu/null/v6"

	"ETFSentinel/internal/model"
)

// MetricSnapshot holds the computed metrics of one fund in one run.
type MetricSnapshot struct {
	RunID      string
	Symbol     string
	Period     string
	Metrics    *model.Metrics
	OneWayCost null.Float
	PremiumPct null.Float
	At         time.Time
}

// ValidationEvent holds the reconciliation records of one fund in one run.
type ValidationEvent struct {
	RunID   string
	Symbol  string
	Records []model.ValidationRecord
	At      time.Time
}

// Recorder persists analysis history.
type Recorder interface {
	RecordMetrics(ctx context.Context, snap *MetricSnapshot) error
	RecordValidation(ctx context.Context, evt *ValidationEvent) error
	// LastSeverities returns the severity per metric recorded by the most
	// recent run that reconciled symbol.
	LastSeverities(ctx context.Context, symbol string) (map[string]model.Severity, error)
	Close() error
}

// NewRunID returns a fresh identifier grouping the rows written by one run.
func NewRunID() string {
	return uuid.NewString()
}
