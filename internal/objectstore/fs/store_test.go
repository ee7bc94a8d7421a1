package fs

import (
	"testing"

	"github.com/rezkam/retryq/internal/objectstore"
	"github.com/rezkam/retryq/internal/objectstore/compliance"
)

func TestStore_Compliance(t *testing.T) {
	compliance.RunGatewayComplianceTest(t, func(t *testing.T) (objectstore.Gateway, func()) {
		dir := t.TempDir()
		store, err := New(dir, objectstore.DefaultPrefixes())
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return store, func() {}
	})
}
