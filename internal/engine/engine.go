// Package engine implements the in-memory scheduling engine: a priority
// queue of PENDING records ordered by next_retry_at, a single dispatch loop
// that hands due records to a bounded sender pool, and the submit/shutdown
// surface the rest of the module drives it through (§3, §4.1, §4.5).
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/rezkam/retryq/internal/clock"
	"github.com/rezkam/retryq/internal/domain"
	"github.com/rezkam/retryq/internal/objectstore"
	"github.com/rezkam/retryq/internal/retrypolicy"
	"github.com/rezkam/retryq/internal/sender"
)

// Engine holds every PENDING record in memory and drives it from submission
// through to a terminal transition. The object store is the durable source
// of truth; the heap and index are a rebuildable cache of it (§3, §4.4).
type Engine struct {
	mu       sync.Mutex
	pq       priorityQueue
	index    map[string]*entry
	seq      uint64
	draining bool
	inFlight int

	totalSubmitted uint64
	totalSucceeded uint64
	totalFailed    uint64

	doorbell chan struct{}
	loopDone chan struct{}
	sem      chan struct{}

	gateway objectstore.Gateway
	policy  retrypolicy.Policy
	clock   clock.Clock
	sender  sender.Sender
	metrics Metrics
	audit   AuditSink
	logger  *slog.Logger

	cfg Config
}

// New builds an Engine over the given collaborators. The heap starts empty;
// callers that need to resume a prior process lifetime must call Seed for
// every record the recovery driver loads before calling Run (§4.4).
func New(gw objectstore.Gateway, policy retrypolicy.Policy, clk clock.Clock, snd sender.Sender, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		index:    make(map[string]*entry),
		doorbell: make(chan struct{}, 1),
		loopDone: make(chan struct{}),
		gateway:  gw,
		policy:   policy,
		clock:    clk,
		sender:   snd,
		metrics:  noopMetrics{},
		audit:    noopAuditSink{},
		logger:   logger,
		cfg:      DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.cfg.applyDefaults()
	e.sem = make(chan struct{}, e.cfg.SenderPoolSize)
	return e
}

// Seed inserts a record recovered from the object store directly into the
// heap and index, bypassing PutActive — recovery must never rewrite a
// document it only means to resume (§4.4). Must be called before Run.
func (e *Engine) Seed(record *domain.Record) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	record.SetSequence(e.seq)
	en := &entry{record: record}
	pushEntry(&e.pq, en)
	e.index[record.MessageID] = en
}

// Submit validates and admits a new message, persisting it durably before
// returning (§4.1 step 1-3, §9 "Allowed tightening"). The in-memory
// insertion is visible to the dispatcher — marked writing — before the
// gateway call returns, so a concurrent Stats call already counts it
// pending; if the gateway call fails the insertion is rolled back and the
// message id is free to resubmit.
func (e *Engine) Submit(ctx context.Context, msg domain.Message) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	now := e.clock.Now()
	record := domain.NewRecord(msg, now)

	e.mu.Lock()
	if e.draining {
		e.mu.Unlock()
		e.metrics.SubmitRejected()
		return "", domain.ErrShutdownInProgress
	}
	if _, exists := e.index[record.MessageID]; exists {
		e.mu.Unlock()
		e.metrics.SubmitRejected()
		return "", domain.ErrDuplicateMessageID
	}
	e.seq++
	record.SetSequence(e.seq)
	en := &entry{record: record, writing: true}
	pushEntry(&e.pq, en)
	e.index[record.MessageID] = en
	e.mu.Unlock()

	// Submission-path gateway errors surface to the caller uncushioned: the
	// engine cannot know yet whether persistence ever lands, so it does not
	// retry here, only rolls back (§7 GatewayError).
	if err := e.gateway.PutActive(ctx, record.Clone()); err != nil {
		e.mu.Lock()
		removeEntry(&e.pq, en)
		delete(e.index, record.MessageID)
		e.mu.Unlock()
		e.metrics.SubmitRejected()
		return "", fmt.Errorf("submitting %s: %w", record.MessageID, err)
	}

	e.mu.Lock()
	en.writing = false
	e.totalSubmitted++
	e.mu.Unlock()

	e.metrics.SubmitAccepted()
	e.wake()
	return record.MessageID, nil
}

// Wake nudges the dispatch loop, in case it is parked waiting on a timer
// set before a relevant change (e.g. a newly-seeded record with an earlier
// next_retry_at than anything previously in the heap).
func (e *Engine) Wake() { e.wake() }

func (e *Engine) wake() {
	select {
	case e.doorbell <- struct{}{}:
	default:
	}
}

// Stats is a point-in-time snapshot of the engine's counters (§6 GET /api/stats).
type Stats struct {
	Pending        int
	TotalSubmitted uint64
	TotalSucceeded uint64
	TotalFailed    uint64
	NextDueAt      *time.Time
}

// Stats returns a snapshot of the engine's current counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Stats{
		Pending:        e.pq.Len(),
		TotalSubmitted: e.totalSubmitted,
		TotalSucceeded: e.totalSucceeded,
		TotalFailed:    e.totalFailed,
	}
	if head := e.pq.peek(); head != nil {
		t := head.record.NextRetryAt
		s.NextDueAt = &t
	}
	return s
}

// Run drives the dispatch loop until Shutdown is called and every in-flight
// attempt has completed, or ctx is cancelled. It is meant to be run in its
// own goroutine by the caller (§5).
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.loopDone)

	for {
		e.mu.Lock()

		if e.draining {
			if e.inFlight == 0 {
				e.mu.Unlock()
				return nil
			}
			// Stop pulling new work; wait for in-flight attempts to finish
			// and signal the doorbell themselves. Does not flush the heap —
			// whatever remains stays durable in the object store for the
			// next process's recovery pass (§4.1 step 2, §4.4).
			e.mu.Unlock()
			select {
			case <-e.doorbell:
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		head := e.pq.peek()
		if head == nil {
			e.mu.Unlock()
			select {
			case <-e.doorbell:
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		now := e.clock.Now()
		if head.writing {
			e.mu.Unlock()
			select {
			case <-e.doorbell:
			case <-e.clock.After(e.cfg.WritingPollInterval):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		if head.record.NextRetryAt.After(now) {
			wait := head.record.NextRetryAt.Sub(now)
			e.mu.Unlock()
			select {
			case <-e.doorbell:
			case <-e.clock.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		batch := make([]*entry, 0, e.cfg.BatchSize)
		for len(batch) < e.cfg.BatchSize {
			h := e.pq.peek()
			if h == nil || h.writing || h.record.NextRetryAt.After(now) {
				break
			}
			popEntry(&e.pq)
			delete(e.index, h.record.MessageID)
			batch = append(batch, h)
		}
		e.inFlight += len(batch)
		e.mu.Unlock()

		for i, en := range batch {
			select {
			case e.sem <- struct{}{}:
			case <-ctx.Done():
				// Return this entry and everything after it in the batch —
				// none of them were ever handed to a sender goroutine.
				e.abandonBatch(batch[i:])
				return ctx.Err()
			}
			go func(en *entry) {
				defer func() { <-e.sem }()
				e.handleAttempt(ctx, en)
			}(en)
		}
	}
}

// abandonBatch returns entries that were popped from the heap but never
// handed to a sender goroutine (only reachable on ctx cancellation mid-fan-out).
func (e *Engine) abandonBatch(entries []*entry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, en := range entries {
		pushEntry(&e.pq, en)
		e.index[en.record.MessageID] = en
		e.inFlight--
	}
}

// Shutdown requests the dispatch loop stop pulling new work and blocks
// until every already-dispatched attempt has completed, or ctx expires
// first (§5).
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.draining = true
	e.mu.Unlock()
	e.wake()

	select {
	case <-e.loopDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleAttempt invokes the sender for one popped entry and persists the
// outcome. It runs outside the engine mutex for the duration of the send
// and the gateway call; the mutex is only taken to mutate the heap/index
// once the outcome is known (§4.1 steps 7-10).
func (e *Engine) handleAttempt(ctx context.Context, en *entry) {
	prior := *en.record // shallow snapshot for rollback on gateway failure

	result := e.invokeSender(ctx, en.record)
	now := e.clock.Now()

	switch result {
	case sender.Success:
		en.record.Status = domain.StatusSucceeded
		en.record.UpdatedAt = now
		if err := e.withBackoff(ctx, func() error { return e.gateway.PutSuccess(ctx, en.record.Clone()) }); err != nil {
			e.logger.Error("persisting success document failed, returning record to heap unresolved",
				"message_id", en.record.MessageID, "error", err)
			*en.record = prior
			e.reinsert(en)
			return
		}
		e.deleteActiveBestEffort(ctx, en.record.MessageID)
		e.recordAuditBestEffort(ctx, en.record)

		e.mu.Lock()
		e.totalSucceeded++
		e.inFlight--
		e.mu.Unlock()
		e.metrics.AttemptSucceeded(en.record.AttemptCount)
		e.wake()

	case sender.TransientFailure, sender.PermanentFailure:
		attempts := en.record.AttemptCount + 1
		terminal := result == sender.PermanentFailure

		var nextAt time.Time
		if !terminal {
			next, ok := e.policy.NextTime(en.record.CreatedAt, attempts)
			if !ok {
				terminal = true
			} else {
				nextAt = next
			}
		}

		if terminal {
			en.record.AttemptCount = attempts
			en.record.Status = domain.StatusFailed
			en.record.UpdatedAt = now
			if err := e.withBackoff(ctx, func() error { return e.gateway.PutFailed(ctx, en.record.Clone()) }); err != nil {
				e.logger.Error("persisting failed document failed, returning record to heap unresolved",
					"message_id", en.record.MessageID, "error", err)
				*en.record = prior
				e.reinsert(en)
				return
			}
			e.deleteActiveBestEffort(ctx, en.record.MessageID)
			e.recordAuditBestEffort(ctx, en.record)

			e.mu.Lock()
			e.totalFailed++
			e.inFlight--
			e.mu.Unlock()
			e.metrics.AttemptExhausted(attempts)
			e.wake()
			return
		}

		en.record.AttemptCount = attempts
		en.record.NextRetryAt = nextAt
		en.record.UpdatedAt = now
		if err := e.withBackoff(ctx, func() error { return e.gateway.PutActive(ctx, en.record.Clone()) }); err != nil {
			e.logger.Error("persisting rescheduled document failed, returning record to heap unresolved",
				"message_id", en.record.MessageID, "error", err)
			*en.record = prior
			e.reinsert(en)
			return
		}
		e.reinsert(en)
		e.metrics.AttemptRescheduled(attempts)
	}
}

// reinsert puts en back into the heap and index, decrements inFlight, and
// wakes the dispatcher. Used both for a successful reschedule and for the
// rollback-to-prior-state path when a gateway write keeps failing.
func (e *Engine) reinsert(en *entry) {
	e.mu.Lock()
	pushEntry(&e.pq, en)
	e.index[en.record.MessageID] = en
	e.inFlight--
	e.mu.Unlock()
	e.wake()
}

func (e *Engine) deleteActiveBestEffort(ctx context.Context, messageID string) {
	if err := e.withBackoff(ctx, func() error { return e.gateway.DeleteActive(ctx, messageID) }); err != nil {
		e.logger.Warn("failed to delete active document after terminal write; the terminal document is already durable",
			"message_id", messageID, "error", err)
	}
}

func (e *Engine) recordAuditBestEffort(ctx context.Context, record *domain.Record) {
	if err := e.audit.RecordTerminal(ctx, record.Clone()); err != nil {
		e.logger.Warn("audit sink rejected terminal record", "message_id", record.MessageID, "error", err)
	}
}

// invokeSender calls the sender, mapping any panic to TransientFailure so a
// misbehaving capability never takes the dispatch loop down with it (§7 SenderError).
func (e *Engine) invokeSender(ctx context.Context, record *domain.Record) (result sender.Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("sender panicked, treating as transient failure",
				"message_id", record.MessageID, "panic", r)
			result = sender.TransientFailure
		}
	}()
	return e.sender.Send(ctx, record.Message)
}

// withBackoff retries op with bounded exponential back-off, for the
// dispatcher-side gateway writes the engine cannot proceed past without
// persisting (§7 GatewayError). Submission-path writes do not use this —
// they surface immediately to the caller instead.
func (e *Engine) withBackoff(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.cfg.GatewayBaseDelay
	b.MaxInterval = e.cfg.GatewayMaxDelay

	var lastErr error
	for attempt := 0; attempt < e.cfg.GatewayMaxRetries; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == e.cfg.GatewayMaxRetries-1 {
			break
		}
		wait := b.NextBackOff()
		if wait == backoff.Stop {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.clock.After(wait):
		}
	}
	return lastErr
}
