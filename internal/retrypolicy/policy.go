// Package retrypolicy implements the pure function mapping an attempt count
// to the next absolute retry timestamp (§3, §4.3).
package retrypolicy

import "time"

// Policy is a pure function from (created_at, attempts_completed) to the
// next absolute attempt time, or "terminal" once attempts are exhausted.
// Implementations must be total over non-negative attempt counts (§4.3).
type Policy interface {
	// NextTime returns the absolute instant the (attemptsCompleted+1)-th
	// attempt is due, or ok=false when attemptsCompleted exceeds the policy's
	// maximum and the record should become terminal.
	NextTime(createdAt time.Time, attemptsCompleted int) (next time.Time, ok bool)

	// MaxAttempts returns the attempt count beyond which the policy returns
	// ok=false — i.e. attemptsCompleted > MaxAttempts() is terminal.
	MaxAttempts() int
}

// DefaultDelayTable is the §3 default retry schedule: delay in seconds from
// created_at, indexed by attempts completed. Index 0 is the initial
// (immediate) attempt. Strictly monotonically increasing, zero first delay,
// deterministic termination after index 5 (6 total attempts).
var DefaultDelayTable = []time.Duration{
	0,
	60 * time.Second,
	300 * time.Second,
	1800 * time.Second,
	7200 * time.Second,
	21600 * time.Second,
}

// TablePolicy implements Policy over a fixed delay table. Attempts beyond
// len(table)-1 are terminal.
type TablePolicy struct {
	table []time.Duration
}

// NewTablePolicy constructs a TablePolicy from a delay table. The table must
// be non-empty and strictly increasing with table[0] == 0; NewDefaultPolicy
// is the convenience constructor for §3's default table.
func NewTablePolicy(table []time.Duration) *TablePolicy {
	cp := make([]time.Duration, len(table))
	copy(cp, table)
	return &TablePolicy{table: cp}
}

// NewDefaultPolicy returns the §3 default retry policy.
func NewDefaultPolicy() *TablePolicy {
	return NewTablePolicy(DefaultDelayTable)
}

// MaxAttempts returns len(table)-1: attempts completed beyond this are terminal.
func (p *TablePolicy) MaxAttempts() int {
	return len(p.table) - 1
}

// NextTime implements Policy. The computation depends only on createdAt and
// attemptsCompleted — never on prior dispatch or wall-clock-at-call-time —
// so retries never drift on sender latency (§3 invariant 4).
func (p *TablePolicy) NextTime(createdAt time.Time, attemptsCompleted int) (time.Time, bool) {
	if attemptsCompleted < 0 || attemptsCompleted >= len(p.table) {
		return time.Time{}, false
	}
	return createdAt.Add(p.table[attemptsCompleted]), true
}
