package recorder

import (
	"context"

	"ETFSentinel/internal/model"
)

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordMetrics(context.Context, *MetricSnapshot) error      { return nil }
func (n *NoopRecorder) RecordValidation(context.Context, *ValidationEvent) error { return nil }
func (n *NoopRecorder) LastSeverities(context.Context, string) (map[string]model.Severity, error) {
	return map[string]model.Severity{}, nil
}
func (n *NoopRecorder) Close() error { return nil }
