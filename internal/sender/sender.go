// Package sender defines the pluggable delivery capability the engine
// invokes once per attempt (§4.5), plus a demo implementation and a
// scripted one for tests.
package sender

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/rezkam/retryq/internal/domain"
)

// Result is the outcome of one Sender.Send invocation.
type Result int

const (
	// Success means the message was delivered; the record becomes SUCCEEDED.
	Success Result = iota
	// TransientFailure means the attempt failed but should be retried per
	// policy (ordinary failure).
	TransientFailure
	// PermanentFailure means the carrier refused the message outright; the
	// engine treats this like exhausted retries and the record becomes
	// FAILED immediately (§4.5).
	PermanentFailure
)

func (r Result) String() string {
	switch r {
	case Success:
		return "SUCCESS"
	case TransientFailure:
		return "TRANSIENT_FAILURE"
	case PermanentFailure:
		return "PERMANENT_FAILURE"
	default:
		return "UNKNOWN"
	}
}

// Sender is the capability the engine invokes once per attempt.
type Sender interface {
	// Send attempts delivery of msg. Any error or panic recovered from an
	// implementation is mapped to TransientFailure by the engine's caller
	// (§4.5, §7 SenderError) — Send itself should simply return the result
	// it observed, not the Go error it may have encountered, wherever possible.
	Send(ctx context.Context, msg domain.Message) Result
}

// Func adapts a plain function to the Sender interface.
type Func func(ctx context.Context, msg domain.Message) Result

func (f Func) Send(ctx context.Context, msg domain.Message) Result { return f(ctx, msg) }

// Demo is the sample sender described in §4.5: it returns SUCCESS with a
// configurable probability and TRANSIENT_FAILURE otherwise. It never
// returns PERMANENT_FAILURE — that classification is reserved for carriers
// with a real distinction between "try again" and "never again".
type Demo struct {
	// SuccessProbability is in [0, 1]; defaults to 0.7 if unset (zero value).
	SuccessProbability float64
}

// NewDemo returns a Demo sender with the given success probability.
func NewDemo(successProbability float64) *Demo {
	return &Demo{SuccessProbability: successProbability}
}

func (d *Demo) Send(ctx context.Context, msg domain.Message) Result {
	p := d.SuccessProbability
	if p <= 0 {
		p = 0.7
	}
	if rand.Float64() < p {
		return Success
	}
	return TransientFailure
}

// Scripted is a test double that returns a fixed sequence of results per
// message id, then repeats the last entry once exhausted. It records every
// call so tests can assert invocation order and counts (§8 property 2, 3).
type Scripted struct {
	mu       sync.Mutex
	scripts  map[string][]Result
	cursor   map[string]int
	calls    []Call
}

// Call records one observed Send invocation, in the order they occurred.
type Call struct {
	MessageID string
}

// NewScripted builds a Scripted sender. scripts maps message id to the
// sequence of results that id's sends should return, in order.
func NewScripted(scripts map[string][]Result) *Scripted {
	return &Scripted{
		scripts: scripts,
		cursor:  make(map[string]int),
	}
}

func (s *Scripted) Send(ctx context.Context, msg domain.Message) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, Call{MessageID: msg.MessageID})

	seq, ok := s.scripts[msg.MessageID]
	if !ok || len(seq) == 0 {
		return TransientFailure
	}
	idx := s.cursor[msg.MessageID]
	if idx >= len(seq) {
		idx = len(seq) - 1
	}
	s.cursor[msg.MessageID] = idx + 1
	return seq[idx]
}

// Calls returns a snapshot of every Send invocation observed so far, in
// call order.
func (s *Scripted) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Panicking wraps a Sender and panics instead of calling through on every
// send for a listed message id, to exercise §7's SenderError ->
// TransientFailure mapping.
type Panicking struct {
	Inner      Sender
	PanicOnIDs map[string]bool
}

func (p *Panicking) Send(ctx context.Context, msg domain.Message) Result {
	if p.PanicOnIDs[msg.MessageID] {
		panic(fmt.Sprintf("sender: simulated panic for %s", msg.MessageID))
	}
	return p.Inner.Send(ctx, msg)
}
