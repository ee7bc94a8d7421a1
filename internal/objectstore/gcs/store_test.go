package gcs

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rezkam/retryq/internal/objectstore"
	"github.com/rezkam/retryq/internal/objectstore/compliance"
)

func TestStore_Compliance(t *testing.T) {
	bucket := os.Getenv("TEST_GCS_BUCKET")
	if bucket == "" {
		t.Skip("TEST_GCS_BUCKET not set, skipping GCS tests")
	}

	compliance.RunGatewayComplianceTest(t, func(t *testing.T) (objectstore.Gateway, func()) {
		ctx := context.Background()

		store, err := New(ctx, bucket, objectstore.DefaultPrefixes())
		require.NoError(t, err)

		cleanup := func() {
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			it := store.client.Bucket(bucket).Objects(cleanupCtx, nil)
			var names []string
			for {
				attrs, err := it.Next()
				if err != nil {
					break
				}
				names = append(names, attrs.Name)
			}
			for _, name := range names {
				if err := store.client.Bucket(bucket).Object(name).Delete(cleanupCtx); err != nil {
					t.Logf("warning: failed to delete object %s during cleanup: %v", name, err)
				}
			}
		}

		return store, cleanup
	})
}
