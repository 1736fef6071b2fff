package testsupport

import (
	"context"
	"testing"

	"neuroflow/internal/batch"
)

// MustOpenStore opens a batch results store for tests and registers cleanup.
func MustOpenStore(t testing.TB, dir string) *batch.Store {
	t.Helper()

	store, err := batch.OpenStore(context.Background(), dir)
	if err != nil {
		t.Fatalf("batch.OpenStore: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
