package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rezkam/retryq/internal/domain"
)

// testDSN returns the audit database DSN for integration tests, skipping
// when it is not configured — these tests need a real Postgres instance and
// do not run by default.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("RETRYQ_TEST_AUDIT_DATABASE_URL")
	if dsn == "" {
		t.Skip("RETRYQ_TEST_AUDIT_DATABASE_URL not set, skipping audit store integration test")
	}
	return dsn
}

func TestStore_RecordTerminal_UpsertAndCount(t *testing.T) {
	dsn := testDSN(t)
	ctx := context.Background()

	store, err := NewStore(ctx, PoolConfig{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(store.Close)

	now := time.Now().UTC()
	record := domain.NewRecord(domain.Message{MessageID: "audit-1", Content: "hi"}, now)
	record.Status = domain.StatusSucceeded
	record.AttemptCount = 2

	require.NoError(t, store.RecordTerminal(ctx, record))

	count, err := store.CountByStatus(ctx, domain.StatusSucceeded)
	require.NoError(t, err)
	require.GreaterOrEqual(t, count, int64(1))

	// Recovery can legitimately write the same terminal document's audit
	// row twice (§4.4); this must upsert, not fail or duplicate.
	record.AttemptCount = 3
	require.NoError(t, store.RecordTerminal(ctx, record))

	countAfter, err := store.CountByStatus(ctx, domain.StatusSucceeded)
	require.NoError(t, err)
	require.Equal(t, count, countAfter, "upsert must not create a second row")
}
