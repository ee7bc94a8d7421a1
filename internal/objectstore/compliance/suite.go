// Package compliance holds one behavioral test suite run against every
// Gateway backend, mirroring the dual-backend compliance harness used
// elsewhere in this module's lineage for its own storage abstraction.
package compliance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/retryq/internal/domain"
	"github.com/rezkam/retryq/internal/objectstore"
)

// RunGatewayComplianceTest runs a standard set of behavioral tests against
// an objectstore.Gateway implementation. setup returns a fresh gateway and
// a teardown func invoked after each subtest.
func RunGatewayComplianceTest(t *testing.T, setup func(t *testing.T) (objectstore.Gateway, func())) {
	t.Run("PutAndGetActive", func(t *testing.T) {
		gw, teardown := setup(t)
		defer teardown()
		ctx := context.Background()

		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		record := domain.NewRecord(domain.Message{MessageID: "m1", Content: "hello"}, now)

		require.NoError(t, gw.PutActive(ctx, record))

		fetched, err := gw.GetActive(ctx, "m1")
		require.NoError(t, err)
		assert.Equal(t, record.MessageID, fetched.MessageID)
		assert.Equal(t, record.Message.Content, fetched.Message.Content)
		assert.Equal(t, record.Status, fetched.Status)
		assert.WithinDuration(t, record.CreatedAt, fetched.CreatedAt, time.Millisecond)
	})

	t.Run("GetActiveMissingReturnsNotFound", func(t *testing.T) {
		gw, teardown := setup(t)
		defer teardown()
		ctx := context.Background()

		_, err := gw.GetActive(ctx, "does-not-exist")
		assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	})

	t.Run("PutActiveOverwrites", func(t *testing.T) {
		gw, teardown := setup(t)
		defer teardown()
		ctx := context.Background()

		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		record := domain.NewRecord(domain.Message{MessageID: "m2", Content: "v1"}, now)
		require.NoError(t, gw.PutActive(ctx, record))

		record.AttemptCount = 1
		record.UpdatedAt = now.Add(time.Minute)
		require.NoError(t, gw.PutActive(ctx, record))

		fetched, err := gw.GetActive(ctx, "m2")
		require.NoError(t, err)
		assert.Equal(t, 1, fetched.AttemptCount)
	})

	t.Run("DeleteActiveIsIdempotent", func(t *testing.T) {
		gw, teardown := setup(t)
		defer teardown()
		ctx := context.Background()

		require.NoError(t, gw.DeleteActive(ctx, "never-existed"))

		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		record := domain.NewRecord(domain.Message{MessageID: "m3"}, now)
		require.NoError(t, gw.PutActive(ctx, record))
		require.NoError(t, gw.DeleteActive(ctx, "m3"))
		require.NoError(t, gw.DeleteActive(ctx, "m3"))

		_, err := gw.GetActive(ctx, "m3")
		assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	})

	t.Run("ListActiveEnumeratesAllPendingKeysOnly", func(t *testing.T) {
		gw, teardown := setup(t)
		defer teardown()
		ctx := context.Background()

		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		r1 := domain.NewRecord(domain.Message{MessageID: "a1"}, now)
		r2 := domain.NewRecord(domain.Message{MessageID: "a2"}, now)
		require.NoError(t, gw.PutActive(ctx, r1))
		require.NoError(t, gw.PutActive(ctx, r2))

		// A terminal document must not appear when listing the active prefix.
		r2.Status = domain.StatusSucceeded
		r2.UpdatedAt = now.Add(time.Second)
		require.NoError(t, gw.PutSuccess(ctx, r2))
		require.NoError(t, gw.DeleteActive(ctx, "a2"))

		ids, err := gw.ListActive(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a1"}, ids)
	})

	t.Run("PutSuccessAndPutFailedAreSeparatePrefixes", func(t *testing.T) {
		gw, teardown := setup(t)
		defer teardown()
		ctx := context.Background()

		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		succ := domain.NewRecord(domain.Message{MessageID: "s1"}, now)
		succ.Status = domain.StatusSucceeded
		succ.UpdatedAt = now.Add(time.Second)
		require.NoError(t, gw.PutSuccess(ctx, succ))

		fail := domain.NewRecord(domain.Message{MessageID: "f1"}, now)
		fail.Status = domain.StatusFailed
		fail.UpdatedAt = now.Add(time.Second)
		require.NoError(t, gw.PutFailed(ctx, fail))

		// Neither terminal write should produce an active document.
		ids, err := gw.ListActive(ctx)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})
}
