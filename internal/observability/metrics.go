package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/rezkam/retryq/internal/engine"
)

// EngineMetrics reports the engine's counters through an OTel Meter. Every
// method is fire-and-forget: instrument recording does not block the
// dispatch loop on an exporter round trip.
type EngineMetrics struct {
	submitAccepted     metric.Int64Counter
	submitRejected     metric.Int64Counter
	attemptSucceeded   metric.Int64Counter
	attemptRescheduled metric.Int64Counter
	attemptExhausted   metric.Int64Counter
}

var _ engine.Metrics = (*EngineMetrics)(nil)

// NewEngineMetrics creates the counters under the given meter.
func NewEngineMetrics(meter metric.Meter) (*EngineMetrics, error) {
	submitAccepted, err := meter.Int64Counter("retryq.submit.accepted",
		metric.WithDescription("messages accepted by Submit"))
	if err != nil {
		return nil, err
	}
	submitRejected, err := meter.Int64Counter("retryq.submit.rejected",
		metric.WithDescription("messages rejected by Submit"))
	if err != nil {
		return nil, err
	}
	attemptSucceeded, err := meter.Int64Counter("retryq.attempt.succeeded",
		metric.WithDescription("attempts that ended in SUCCEEDED"))
	if err != nil {
		return nil, err
	}
	attemptRescheduled, err := meter.Int64Counter("retryq.attempt.rescheduled",
		metric.WithDescription("attempts that were rescheduled per retry policy"))
	if err != nil {
		return nil, err
	}
	attemptExhausted, err := meter.Int64Counter("retryq.attempt.exhausted",
		metric.WithDescription("attempts that ended in FAILED"))
	if err != nil {
		return nil, err
	}

	return &EngineMetrics{
		submitAccepted:     submitAccepted,
		submitRejected:     submitRejected,
		attemptSucceeded:   attemptSucceeded,
		attemptRescheduled: attemptRescheduled,
		attemptExhausted:   attemptExhausted,
	}, nil
}

func (m *EngineMetrics) SubmitAccepted() { m.submitAccepted.Add(context.Background(), 1) }
func (m *EngineMetrics) SubmitRejected() { m.submitRejected.Add(context.Background(), 1) }

func (m *EngineMetrics) AttemptSucceeded(attemptCount int) {
	m.attemptSucceeded.Add(context.Background(), 1, metric.WithAttributes(attribute.Int("attempt_count", attemptCount)))
}

func (m *EngineMetrics) AttemptRescheduled(attemptCount int) {
	m.attemptRescheduled.Add(context.Background(), 1, metric.WithAttributes(attribute.Int("attempt_count", attemptCount)))
}

func (m *EngineMetrics) AttemptExhausted(attemptCount int) {
	m.attemptExhausted.Add(context.Background(), 1, metric.WithAttributes(attribute.Int("attempt_count", attemptCount)))
}
