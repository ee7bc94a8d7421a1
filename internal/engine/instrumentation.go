package engine

import (
	"context"

	"github.com/rezkam/retryq/internal/domain"
)

// Metrics receives best-effort counters from the dispatch loop. The engine
// never blocks or fails on a Metrics call; implementations that need to
// reach an external backend should do so asynchronously. A nil Metrics is
// replaced with noopMetrics.
type Metrics interface {
	SubmitAccepted()
	SubmitRejected()
	AttemptSucceeded(attemptCount int)
	AttemptRescheduled(attemptCount int)
	AttemptExhausted(attemptCount int)
}

type noopMetrics struct{}

func (noopMetrics) SubmitAccepted()                    {}
func (noopMetrics) SubmitRejected()                    {}
func (noopMetrics) AttemptSucceeded(attemptCount int)   {}
func (noopMetrics) AttemptRescheduled(attemptCount int) {}
func (noopMetrics) AttemptExhausted(attemptCount int)   {}

// AuditSink receives a best-effort notification for every terminal
// transition (§ SPEC_FULL "Audit trail"). Its failures are logged by the
// engine and never block or fail the transition itself — the object store
// document remains the source of truth.
type AuditSink interface {
	RecordTerminal(ctx context.Context, record *domain.Record) error
}

type noopAuditSink struct{}

func (noopAuditSink) RecordTerminal(ctx context.Context, record *domain.Record) error { return nil }
