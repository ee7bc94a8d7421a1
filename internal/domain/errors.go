// Package domain holds the types and sentinel errors shared by the
// scheduling engine, the object store gateway, and the recovery driver.
package domain

import "errors"

// Sentinel errors returned by the scheduling engine and its collaborators.
var (
	// ErrEmptyMessageID indicates a Message was submitted without an identifier.
	ErrEmptyMessageID = errors.New("message id must not be empty")

	// ErrShutdownInProgress indicates submit was called after shutdown was requested.
	ErrShutdownInProgress = errors.New("scheduler is shutting down, rejecting submission")

	// ErrRecordNotFound indicates the requested record has no active-prefix document.
	ErrRecordNotFound = errors.New("record not found")

	// ErrDuplicateMessageID indicates a submission reused the message id of a
	// PENDING record that is waiting in the engine's heap. A record whose
	// attempt is in flight has left the engine's index and is not detected
	// as a duplicate. The source specification leaves this
	// choice to the implementer; this module rejects duplicates rather than
	// silently orphaning the index entry for the earlier submission (see
	// the Open Questions section of DESIGN.md).
	ErrDuplicateMessageID = errors.New("message id already has a pending record")
)

// ConfigurationError indicates the process cannot start because required
// configuration is missing or malformed. Fatal at startup (§7).
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Key == "" {
		return "configuration error: " + e.Reason
	}
	return "configuration error for " + e.Key + ": " + e.Reason
}

// GatewayError wraps any object-store failure (network/transport errors,
// throttling, etc). The engine decides retry policy around it; the gateway
// itself performs no internal retries (§4.2, §7).
type GatewayError struct {
	Op  string
	Key string
	Err error
}

func (e *GatewayError) Error() string {
	return "object store " + e.Op + " failed for " + e.Key + ": " + e.Err.Error()
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// SerializationError indicates a document could not be decoded during
// recovery. By default it aborts recovery; when skipping malformed
// documents is enabled, the offending key is logged and skipped and
// recovery continues (§4.4, §7).
type SerializationError struct {
	Key string
	Err error
}

func (e *SerializationError) Error() string {
	return "failed to decode document " + e.Key + ": " + e.Err.Error()
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}
