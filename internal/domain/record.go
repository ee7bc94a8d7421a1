package domain

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a Record (§3).
type Status string

const (
	// StatusPending means the record is live in the engine: present in both
	// the heap and the id index, with exactly one active-prefix document.
	StatusPending Status = "PENDING"
	// StatusSucceeded is terminal: the sender reported success.
	StatusSucceeded Status = "SUCCEEDED"
	// StatusFailed is terminal: attempts were exhausted or the sender
	// refused permanently.
	StatusFailed Status = "FAILED"
)

// Record is the unit persisted to the object store and scheduled by the
// engine (§3). created_at/updated_at are wall-clock instants with
// fractional-second precision, matching the §6 document schema.
type Record struct {
	MessageID     string    `json:"message_id"`
	Message       Message   `json:"message"`
	AttemptCount  int       `json:"attempt_count"`
	NextRetryAt   time.Time `json:"next_retry_at"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// sequence breaks ties between records that share NextRetryAt, in
	// submission order (§3 invariant 5, §4.1 "tie-breaking"). It is not
	// persisted — it is reassigned by the engine on every load (submission
	// or recovery) so that ordering is well defined within one process
	// lifetime, never compared across restarts.
	sequence uint64 `json:"-"`
}

// NewRecord constructs the record created by a submission: attempt 0,
// immediate first attempt, PENDING (§3 Lifecycle).
func NewRecord(msg Message, now time.Time) *Record {
	return &Record{
		MessageID:    msg.MessageID,
		Message:      msg,
		AttemptCount: 0,
		NextRetryAt:  now,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// recordWire is the on-the-wire shape of Record: timestamps are numeric
// seconds since epoch with fractional precision, not RFC 3339 strings (§6
// document schema).
type recordWire struct {
	MessageID    string  `json:"message_id"`
	Message      Message `json:"message"`
	AttemptCount int     `json:"attempt_count"`
	NextRetryAt  float64 `json:"next_retry_at"`
	Status       Status  `json:"status"`
	CreatedAt    float64 `json:"created_at"`
	UpdatedAt    float64 `json:"updated_at"`
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func fromEpochSeconds(f float64) time.Time {
	return time.Unix(0, int64(f*float64(time.Second))).UTC()
}

// MarshalJSON encodes the record per §6's document schema.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordWire{
		MessageID:    r.MessageID,
		Message:      r.Message,
		AttemptCount: r.AttemptCount,
		NextRetryAt:  epochSeconds(r.NextRetryAt),
		Status:       r.Status,
		CreatedAt:    epochSeconds(r.CreatedAt),
		UpdatedAt:    epochSeconds(r.UpdatedAt),
	})
}

// UnmarshalJSON decodes a record per §6's document schema. The tie-breaking
// sequence is never part of the wire format; callers must assign one via
// SetSequence before the record enters the heap.
func (r *Record) UnmarshalJSON(data []byte) error {
	var w recordWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.MessageID = w.MessageID
	r.Message = w.Message
	r.AttemptCount = w.AttemptCount
	r.NextRetryAt = fromEpochSeconds(w.NextRetryAt)
	r.Status = w.Status
	r.CreatedAt = fromEpochSeconds(w.CreatedAt)
	r.UpdatedAt = fromEpochSeconds(w.UpdatedAt)
	return nil
}

// Sequence returns the tie-breaking insertion sequence assigned by the engine.
func (r *Record) Sequence() uint64 { return r.sequence }

// SetSequence is called once by the engine when a record enters the heap,
// either on submission or during recovery replay.
func (r *Record) SetSequence(seq uint64) { r.sequence = seq }

// Clone returns a deep-enough copy safe to hand to the object store gateway
// without aliasing the engine's in-memory copy across the mutex boundary.
func (r *Record) Clone() *Record {
	clone := *r
	if r.Message.Metadata != nil {
		clone.Message.Metadata = make(map[string]string, len(r.Message.Metadata))
		for k, v := range r.Message.Metadata {
			clone.Message.Metadata[k] = v
		}
	}
	return &clone
}
