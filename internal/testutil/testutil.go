// Package testutil provides shared test fixtures for the object store,
// the search engine and the tracker.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/starford/tabdex/internal/coordinator"
	"github.com/starford/tabdex/internal/engine"
	"github.com/starford/tabdex/internal/objects"
	"github.com/starford/tabdex/internal/state"
	"github.com/starford/tabdex/internal/storage"
	"github.com/starford/tabdex/internal/tracker"
)

// TestDB creates a temporary object store that is automatically closed.
func TestDB(t *testing.T) *objects.DB {
	t.Helper()
	db, err := objects.Open(filepath.Join(t.TempDir(), "objects.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestEngine creates an engine with database 0 prepared in memory.
func TestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	eng := engine.New("", nil)
	if err := eng.Prepare(engine.DefaultDB, ""); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

// TestServices wires a coordinator over TestDB and TestEngine and a
// tracker over an in-memory area that purges through the coordinator.
func TestServices(t *testing.T) (*coordinator.Service, *tracker.Tracker) {
	t.Helper()
	coord := coordinator.New(TestDB(t), TestEngine(t), nil)
	tr := tracker.New(state.NewAdapter(storage.NewMemoryArea(), coord, nil), nil)
	t.Cleanup(tr.Close)
	if err := tr.Ensure(context.Background()); err != nil {
		t.Fatal(err)
	}
	return coord, tr
}
