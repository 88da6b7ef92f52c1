package testutil

import (
	"testing"

	"github.com/nhle/pmcore/internal/kvstore"
)

// NewTestSQLite creates an in-memory SQLiteStore with all migrations
// applied. It automatically closes the store when the test completes.
func NewTestSQLite(t *testing.T) *kvstore.SQLiteStore {
	t.Helper()

	s, err := kvstore.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}
