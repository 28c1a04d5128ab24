package testsupport

import (
	"context"
	"fmt"
	"testing"

	"loom/internal/config"
	"loom/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SeedItems inserts count sequential work items and returns them in priority order.
func SeedItems(t testing.TB, st *store.Store, count int) []*store.Item {
	t.Helper()

	items := make([]*store.Item, 0, count)
	for i := 1; i <= count; i++ {
		item, err := st.Add(context.Background(), store.Draft{
			Category:    "test",
			Name:        fmt.Sprintf("Item %d", i),
			Description: fmt.Sprintf("Test work item %d", i),
			Steps:       []string{"step 1", "step 2"},
		})
		if err != nil {
			t.Fatalf("store.Add: %v", err)
		}
		items = append(items, item)
	}
	return items
}
