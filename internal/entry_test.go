package internal

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/starford/tabdex/internal/models"
)

func tempConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.State.Dir = filepath.Join(dir, "state")
	cfg.SQLite.Path = filepath.Join(dir, "objects.db")
	cfg.Engine.Dir = filepath.Join(dir, "engine")
	cfg.Prefs.Path = filepath.Join(dir, "prefs.yaml")
	return cfg
}

func TestRun_RequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Fatal("Run without config should fail")
	}
}

func TestOpen_StatePersistsAcrossRestart(t *testing.T) {
	cfg := tempConfig(t)
	app, err := newApplication([]Option{WithConfig(cfg), WithLogOutput(io.Discard)})
	if err != nil {
		t.Fatal(err)
	}
	logger := app.newLogger()
	ctx := context.Background()

	svc, err := open(cfg, logger)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := svc.tracker.OnCreate(ctx, 11); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.coord.Add(ctx, models.PageFields{Title: "kept", Body: "durable words"}, nil, ""); err != nil {
		t.Fatal(err)
	}
	svc.close()

	svc, err = open(cfg, logger)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer svc.close()

	q, err := svc.tracker.DrainQueue(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if q[11] != models.DeltaNew {
		t.Errorf("queue after restart = %v, want tab 11 new", q)
	}
	res, err := svc.coord.Search(ctx, models.SearchParams{Query: "durable"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Size != 1 {
		t.Errorf("hits after restart = %d, want 1", res.Size)
	}
}

func TestReset_PurgesEverything(t *testing.T) {
	cfg := tempConfig(t)
	opts := []Option{WithConfig(cfg), WithLogOutput(io.Discard)}
	ctx := context.Background()

	app, err := newApplication(opts)
	if err != nil {
		t.Fatal(err)
	}
	svc, err := open(cfg, app.newLogger())
	if err != nil {
		t.Fatal(err)
	}
	_ = svc.tracker.OnCreate(ctx, 3)
	_, _ = svc.coord.Add(ctx, models.PageFields{Title: "gone"}, nil, "")
	svc.close()

	if err := Reset(ctx, opts...); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	svc, err = open(cfg, app.newLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer svc.close()
	q, _ := svc.tracker.DrainQueue(ctx)
	if len(q) != 0 {
		t.Errorf("queue after reset = %v", q)
	}
	if n, _ := svc.coord.Count(ctx); n != 0 {
		t.Errorf("records after reset = %d", n)
	}
}

func TestOpen_FirstStartKeepsPagesAddedBeforeTabEvents(t *testing.T) {
	cfg := tempConfig(t)
	app, err := newApplication([]Option{WithConfig(cfg), WithLogOutput(io.Discard)})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	svc, err := open(cfg, app.newLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer svc.close()

	guid, err := svc.coord.Add(ctx, models.PageFields{Title: "early", Body: "written before any tab event"}, nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.tracker.OnCreate(ctx, 1); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.coord.Body(ctx, guid); err != nil {
		t.Errorf("body after first tab event: %v", err)
	}
	res, err := svc.coord.Search(ctx, models.SearchParams{Query: "written"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Size != 1 {
		t.Errorf("hits after first tab event = %d, want 1", res.Size)
	}
}
