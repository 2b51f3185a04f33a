package coordinator

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/tabdex/internal/apperr"
	"github.com/starford/tabdex/internal/engine"
	"github.com/starford/tabdex/internal/models"
	"github.com/starford/tabdex/internal/objects"
)

func newService(t *testing.T) (*Service, *objects.DB) {
	t.Helper()
	store, err := objects.Open(filepath.Join(t.TempDir(), "objects.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	eng := engine.New("", nil)
	require.NoError(t, eng.Prepare(engine.DefaultDB, ""))
	t.Cleanup(func() { _ = eng.Close() })

	return New(store, eng, nil), store
}

func TestAddWithoutGUIDThenBody(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	guid, err := svc.Add(ctx, models.PageFields{URL: "https://example.com/a/b?q=1", Title: "A", Body: "hello world"}, nil, "")
	require.NoError(t, err)
	require.NotEmpty(t, guid)

	rec, err := svc.Body(ctx, guid)
	require.NoError(t, err)
	assert.Equal(t, "A", rec.Title)
	assert.Equal(t, "https://example.com/a/b?q=1", rec.URL)
	assert.Equal(t, "hello world", rec.Body)
	assert.Equal(t, "example.com", rec.Hostname)
	assert.False(t, rec.Timestamp.IsZero())
}

func TestAddSearchSnippet(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	guid, err := svc.Add(ctx, models.PageFields{URL: "https://example.com/a", Title: "A", Body: "hello world"}, map[string]any{}, "g1")
	require.NoError(t, err)
	assert.Equal(t, "g1", guid)

	res, err := svc.Search(ctx, models.SearchParams{Query: "hello"})
	require.NoError(t, err)
	require.GreaterOrEqual(t, res.Size, 1)
	assert.Equal(t, "g1", res.Hits[0].GUID)
	assert.Equal(t, 100, res.Hits[0].Percent)

	snip, err := svc.Snippet(ctx, SnippetRequest{Index: 0, Content: "hello world", Size: 20})
	require.NoError(t, err)
	assert.Contains(t, snip, "hello")
}

func TestRemoveKeepsRecord(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, models.PageFields{URL: "https://example.com/a", Title: "A", Body: "hello world"}, nil, "g1")
	require.NoError(t, err)
	require.NoError(t, svc.Remove(ctx, "g1", engine.DefaultDB))

	res, err := svc.Search(ctx, models.SearchParams{Query: "hello"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Size)

	rec, err := svc.Body(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "hello world", rec.Body)
}

func TestSnippetFromStoredBody(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, models.PageFields{Title: "T", Body: "stored page about gophers"}, nil, "")
	require.NoError(t, err)
	_, err = svc.Search(ctx, models.SearchParams{Query: "gophers"})
	require.NoError(t, err)

	snip, err := svc.Snippet(ctx, SnippetRequest{Index: 0})
	require.NoError(t, err)
	assert.Contains(t, snip, "<b>gophers</b>")

	rec, err := svc.BodyAt(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "T", rec.Title)
}

func TestSnippetWithoutStoredBody(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, models.PageFields{Title: "only title"}, nil, "")
	require.NoError(t, err)
	_, err = svc.Search(ctx, models.SearchParams{Query: "title"})
	require.NoError(t, err)

	_, err = svc.Snippet(ctx, SnippetRequest{Index: 0})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSnippetIndexOutOfRange(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Snippet(context.Background(), SnippetRequest{Index: 3})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestBodyNumericGUID(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	guid, err := svc.Add(ctx, models.PageFields{Title: "numbered"}, nil, "")
	require.NoError(t, err)

	rec, err := svc.Body(ctx, "0"+guid)
	require.NoError(t, err)
	assert.Equal(t, guid, rec.GUID)

	_, err = svc.Body(ctx, "nope")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAddRejectsBadURL(t *testing.T) {
	svc, store := newService(t)
	_, err := svc.Add(context.Background(), models.PageFields{URL: "http://[::1"}, nil, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSearchDefaults(t *testing.T) {
	fake := &recordingEngine{}
	svc := New(nopStore{}, fake, nil)

	_, err := svc.Search(context.Background(), models.SearchParams{Query: "x"})
	require.NoError(t, err)
	assert.Equal(t, engine.Query{
		Lang: engine.DefaultLanguage, Text: "x", Start: 0, Length: DefaultLength,
		Partial: true, Descending: true,
	}, fake.last)

	off := false
	_, err = svc.Search(context.Background(), models.SearchParams{Query: "x", Lang: "french", Length: 5, Partial: &off, Descending: &off})
	require.NoError(t, err)
	assert.Equal(t, "french", fake.last.Lang)
	assert.Equal(t, 5, fake.last.Length)
	assert.False(t, fake.last.Partial)
	assert.False(t, fake.last.Descending)
}

func TestWithLanguageDefault(t *testing.T) {
	fake := &recordingEngine{}
	svc := New(nopStore{}, fake, nil, WithLanguage("german"))

	_, err := svc.Search(context.Background(), models.SearchParams{Query: "x"})
	require.NoError(t, err)
	assert.Equal(t, "german", fake.last.Lang)
}

func TestSearchEngineError(t *testing.T) {
	fake := &recordingEngine{queryErr: fmt.Errorf("boom: %w", apperr.ErrEngine)}
	svc := New(nopStore{}, fake, nil)

	_, err := svc.Search(context.Background(), models.SearchParams{Query: "x"})
	assert.ErrorIs(t, err, apperr.ErrEngine)
}

func TestAddIndexFailureKeepsRecord(t *testing.T) {
	store, err := objects.Open(filepath.Join(t.TempDir(), "objects.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	svc := New(store, &recordingEngine{addErr: apperr.ErrEngine}, nil)
	ctx := context.Background()

	_, err = svc.Add(ctx, models.PageFields{Title: "t"}, nil, "g1")
	assert.ErrorIs(t, err, apperr.ErrEngine)

	_, err = store.Get(ctx, "g1")
	assert.NoError(t, err)
}

func TestPurge(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, models.PageFields{Title: "t", Body: "purged words"}, nil, "")
	require.NoError(t, err)
	require.NoError(t, svc.Purge(ctx))

	res, err := svc.Search(ctx, models.SearchParams{Query: "purged"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Size)
	n, _ := store.Count(ctx)
	assert.Zero(t, n)
}

func TestRecentAndPin(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, models.PageFields{Title: "first"}, nil, "a")
	require.NoError(t, err)
	require.NoError(t, svc.Pin(ctx, "a", true))

	pinned, err := svc.Recent(ctx, 10, true)
	require.NoError(t, err)
	require.Len(t, pinned, 1)
	assert.Equal(t, "a", pinned[0].GUID)
}

func TestAddMergesHiddenColumns(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	hidden := map[string]any{"pinned": true, "title": "stored title", "tabId": float64(7)}
	_, err := svc.Add(ctx, models.PageFields{Title: "indexed title", Body: "merge body"}, hidden, "h")
	require.NoError(t, err)

	pinned, err := svc.Recent(ctx, 10, true)
	require.NoError(t, err)
	require.Len(t, pinned, 1)
	assert.Equal(t, "h", pinned[0].GUID)

	rec, err := svc.Body(ctx, "h")
	require.NoError(t, err)
	assert.True(t, rec.Pinned)
	assert.Equal(t, "stored title", rec.Title)
	assert.Equal(t, map[string]any{"tabId": float64(7)}, rec.Hidden)

	res, err := svc.Search(ctx, models.SearchParams{Query: "indexed"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Size)
}

func TestNormalizeKeywords(t *testing.T) {
	assert.Equal(t, "go,search,engine", NormalizeKeywords("go , search ,  engine"))
	assert.Equal(t, "", NormalizeKeywords(""))
	assert.Equal(t, "single", NormalizeKeywords("single"))
}

type recordingEngine struct {
	last     engine.Query
	queryErr error
	addErr   error
}

func (r *recordingEngine) Add(int, engine.Document) error { return r.addErr }
func (r *recordingEngine) Commit(int) error               { return nil }
func (r *recordingEngine) Query(_ int, q engine.Query) (engine.Result, error) {
	r.last = q
	return engine.Result{}, r.queryErr
}
func (r *recordingEngine) Key(int) (string, error)                           { return "", apperr.ErrNotFound }
func (r *recordingEngine) Percent(int) (int, error)                          { return 0, apperr.ErrNotFound }
func (r *recordingEngine) Snippet(_, content string, _ int, _ string) string { return content }
func (r *recordingEngine) Clean(int, string) error                           { return nil }
func (r *recordingEngine) Purge() error                                      { return nil }

type nopStore struct{}

func (nopStore) Put(context.Context, models.ContentRecord) (string, error) { return "", nil }
func (nopStore) Get(context.Context, string) (*models.ContentRecord, error) {
	return nil, apperr.ErrNotFound
}
func (nopStore) Recent(context.Context, int, bool) ([]models.ContentRecord, error) { return nil, nil }
func (nopStore) SetPinned(context.Context, string, bool) error                     { return nil }
func (nopStore) Count(context.Context) (int, error)                                { return 0, nil }
func (nopStore) Purge(context.Context) error                                       { return nil }
