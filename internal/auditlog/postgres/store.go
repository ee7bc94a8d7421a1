package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rezkam/retryq/internal/domain"
	"github.com/rezkam/retryq/internal/engine"
)

var _ engine.AuditSink = (*Store)(nil)

// Store implements engine.AuditSink over a Postgres table. It is
// best-effort from the engine's point of view: a failure here is logged by
// the caller and never blocks or retries a terminal transition.
type Store struct {
	pool *pgxpool.Pool
}

// NewStoreFromPool wraps an already-migrated pool, for tests that manage
// their own connection lifecycle.
func NewStoreFromPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// RecordTerminal upserts the terminal snapshot of record. Upsert rather
// than insert because a crash-recovery reconciliation (§4.4) can legitimately
// write the same terminal document's audit row twice.
func (s *Store) RecordTerminal(ctx context.Context, record *domain.Record) error {
	const stmt = `
		INSERT INTO audit_records (message_id, status, attempt_count, created_at, updated_at, recorded_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (message_id) DO UPDATE SET
			status        = EXCLUDED.status,
			attempt_count = EXCLUDED.attempt_count,
			updated_at    = EXCLUDED.updated_at,
			recorded_at   = now()
	`
	_, err := s.pool.Exec(ctx, stmt,
		record.MessageID, string(record.Status), record.AttemptCount, record.CreatedAt, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("recording audit row for %s: %w", record.MessageID, err)
	}
	return nil
}

// CountByStatus returns how many audit rows carry the given status, for
// operational dashboards and tests.
func (s *Store) CountByStatus(ctx context.Context, status domain.Status) (int64, error) {
	const q = `SELECT count(*) FROM audit_records WHERE status = $1`
	var n int64
	if err := s.pool.QueryRow(ctx, q, string(status)).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting audit rows for status %s: %w", status, err)
	}
	return n, nil
}
