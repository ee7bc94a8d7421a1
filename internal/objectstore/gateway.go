// Package objectstore defines the Gateway contract: a stateless façade over
// put/get/delete/list-by-prefix for JSON documents under three key prefixes
// (§4.2). gcs and fs are the two concrete backends; compliance holds a
// shared behavioral test suite both backends run against.
package objectstore

import (
	"context"
	"fmt"

	"github.com/rezkam/retryq/internal/domain"
)

// Prefixes names the three key prefixes the gateway writes under (§6).
type Prefixes struct {
	Active  string
	Success string
	Failed  string
}

// DefaultPrefixes matches the §6 configuration defaults.
func DefaultPrefixes() Prefixes {
	return Prefixes{Active: "state", Success: "success", Failed: "failed"}
}

// ActiveKey returns the key a PENDING record is stored under.
func (p Prefixes) ActiveKey(messageID string) string {
	return fmt.Sprintf("%s/%s.json", p.Active, messageID)
}

// SuccessKey returns the key a terminal-success document is stored under.
// epochMillis is the record's updated_at, giving natural chronological
// ordering when the prefix is listed (§4.2).
func (p Prefixes) SuccessKey(epochMillis int64, messageID string) string {
	return fmt.Sprintf("%s/%d_%s.json", p.Success, epochMillis, messageID)
}

// FailedKey returns the key a terminal-failed document is stored under.
func (p Prefixes) FailedKey(epochMillis int64, messageID string) string {
	return fmt.Sprintf("%s/%d_%s.json", p.Failed, epochMillis, messageID)
}

// Gateway is the typed adapter over the bucket (§4.2). Every write is a
// full-document overwrite; there is no partial update and no internal
// retry — the engine decides retry policy around gateway failures (§7).
type Gateway interface {
	// PutActive writes record under its active-prefix key.
	PutActive(ctx context.Context, record *domain.Record) error

	// GetActive fetches and deserializes the active document for messageID.
	// Returns domain.ErrRecordNotFound if absent.
	GetActive(ctx context.Context, messageID string) (*domain.Record, error)

	// DeleteActive removes the active document for messageID. Absence is
	// not an error (§4.2).
	DeleteActive(ctx context.Context, messageID string) error

	// ListActive enumerates every message id with a live active document,
	// for use during recovery only (§4.2, §4.4).
	ListActive(ctx context.Context) ([]string, error)

	// PutSuccess writes record's terminal-success document.
	PutSuccess(ctx context.Context, record *domain.Record) error

	// PutFailed writes record's terminal-failed document.
	PutFailed(ctx context.Context, record *domain.Record) error
}
