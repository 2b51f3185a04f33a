package objects

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/tabdex/internal/apperr"
	"github.com/starford/tabdex/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "objects.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM objects`).Scan(&count); err != nil {
		t.Fatalf("objects table missing: %v", err)
	}
	for _, idx := range []string{"idx_objects_timestamp", "idx_objects_pinned"} {
		var name string
		err := db.conn.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'index' AND name = ?`, idx).Scan(&name)
		if err != nil {
			t.Errorf("index %s missing: %v", idx, err)
		}
	}
}

func TestPutGeneratesSequentialGUIDs(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	g1, err := db.Put(ctx, models.ContentRecord{Title: "one"})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	g2, _ := db.Put(ctx, models.ContentRecord{Title: "two"})
	if g1 != "1" || g2 != "2" {
		t.Fatalf("guids = %q, %q, want 1, 2", g1, g2)
	}
}

func TestPutAndGet(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	guid, err := db.Put(ctx, models.ContentRecord{
		URL: "https://example.com/a", Hostname: "example.com", Title: "A", Body: "hello world",
		Mime: "text/html", Timestamp: ts, Hidden: map[string]any{"favicon": "x.ico"},
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	rec, err := db.Get(ctx, guid)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Title != "A" || rec.URL != "https://example.com/a" || rec.Body != "hello world" {
		t.Errorf("record = %+v", rec)
	}
	if !rec.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", rec.Timestamp, ts)
	}
	if rec.Hidden["favicon"] != "x.ico" {
		t.Errorf("hidden = %v", rec.Hidden)
	}
}

func TestPutCallerGUIDReplaces(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	_, _ = db.Put(ctx, models.ContentRecord{GUID: "g1", Title: "Old"})
	guid, err := db.Put(ctx, models.ContentRecord{GUID: "g1", Title: "New"})
	if err != nil || guid != "g1" {
		t.Fatalf("Put = %q, %v", guid, err)
	}
	rec, _ := db.Get(ctx, "g1")
	if rec.Title != "New" {
		t.Errorf("title = %q, want New", rec.Title)
	}
	if n, _ := db.Count(ctx); n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestNumericCallerGUIDAdvancesSequence(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	_, _ = db.Put(ctx, models.ContentRecord{Title: "auto"})
	_, _ = db.Put(ctx, models.ContentRecord{GUID: "10", Title: "explicit"})
	guid, err := db.Put(ctx, models.ContentRecord{Title: "next"})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if guid != "11" {
		t.Errorf("guid = %q, want 11", guid)
	}
}

func TestGetCoercesNumericGUID(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	guid, _ := db.Put(ctx, models.ContentRecord{Title: "auto"})

	for _, key := range []string{guid, "01", "1.0", " 1"} {
		rec, err := db.Get(ctx, key)
		if err != nil {
			t.Errorf("Get(%q): %v", key, err)
			continue
		}
		if rec.GUID != guid {
			t.Errorf("Get(%q).GUID = %q", key, rec.GUID)
		}
	}
}

func TestGetPrefersLiteralKey(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_, _ = db.Put(ctx, models.ContentRecord{Title: "generated"})
	_, _ = db.Put(ctx, models.ContentRecord{GUID: "01", Title: "literal"})

	rec, err := db.Get(ctx, "01")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Title != "literal" {
		t.Errorf("title = %q, want literal", rec.Title)
	}
}

func TestGetNotFound(t *testing.T) {
	db := testDB(t)
	_, err := db.Get(context.Background(), "missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRecentAndPinned(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, title := range []string{"a", "b", "c"} {
		_, _ = db.Put(ctx, models.ContentRecord{GUID: title, Title: title, Timestamp: base.Add(time.Duration(i) * time.Hour)})
	}
	if err := db.SetPinned(ctx, "a", true); err != nil {
		t.Fatalf("SetPinned: %v", err)
	}

	recent, err := db.Recent(ctx, 2, false)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 || recent[0].GUID != "c" || recent[1].GUID != "b" {
		t.Errorf("recent = %+v", recent)
	}

	pinned, _ := db.Recent(ctx, 0, true)
	if len(pinned) != 1 || pinned[0].GUID != "a" || !pinned[0].Pinned {
		t.Errorf("pinned = %+v", pinned)
	}

	if err := db.SetPinned(ctx, "missing", true); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("SetPinned(missing) = %v, want ErrNotFound", err)
	}
}

func TestPurgeRestartsSequence(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_, _ = db.Put(ctx, models.ContentRecord{Title: "a"})
	_, _ = db.Put(ctx, models.ContentRecord{Title: "b"})

	if err := db.Purge(ctx); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if n, _ := db.Count(ctx); n != 0 {
		t.Errorf("count = %d, want 0", n)
	}
	guid, _ := db.Put(ctx, models.ContentRecord{Title: "c"})
	if guid != "1" {
		t.Errorf("guid after purge = %q, want 1", guid)
	}
}

func TestReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "objects.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	guid, _ := db.Put(context.Background(), models.ContentRecord{Title: "kept"})
	db.Close()

	db2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db2.Close()
	if _, err := db2.Get(context.Background(), guid); err != nil {
		t.Errorf("Get after reopen: %v", err)
	}
}
