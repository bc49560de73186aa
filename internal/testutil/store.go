// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"testing"

	"github.com/nhle/agency-dashboard/internal/model"
	"github.com/nhle/agency-dashboard/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with every store migrated.
// The store is closed when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
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

// SeedClients creates one client per name and returns them in input order.
func SeedClients(t *testing.T, s store.Store, names ...string) []model.Client {
	t.Helper()

	clients := make([]model.Client, 0, len(names))
	for _, name := range names {
		c, err := s.CreateClient(context.Background(), model.Client{Name: name})
		if err != nil {
			t.Fatalf("seeding client %q: %v", name, err)
		}
		clients = append(clients, *c)
	}
	return clients
}
