package testsupport

import (
	"testing"

	"github.com/bozzyboy/nano-director-5/internal/catalog"
)

// MustOpenCatalog opens a catalog.Store for tests and registers cleanup.
func MustOpenCatalog(t testing.TB, path string) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(path)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
