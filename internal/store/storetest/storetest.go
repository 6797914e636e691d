// Package storetest provides a throwaway in-memory Store for unit tests:
// tests run SQL through a genuine SQLite connection rather than a mock.
package storetest

import (
	"context"
	"testing"

	"github.com/ysksm/jd-sub000/internal/store"
)

// Open returns a fully-migrated in-memory Store, closed automatically
// when the test ends.
func Open(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), "file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
