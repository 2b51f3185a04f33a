package state

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/tabdex/internal/apperr"
	"github.com/starford/tabdex/internal/models"
	"github.com/starford/tabdex/internal/storage"
)

type countingPurger struct {
	calls int
	err   error
}

func (p *countingPurger) Purge(context.Context) error {
	p.calls++
	return p.err
}

// brokenArea fails every operation, modelling an unavailable durable area.
type brokenArea struct{}

func (brokenArea) Get(context.Context, string) ([]byte, error) { return nil, errors.New("disk gone") }
func (brokenArea) Set(context.Context, string, []byte) error   { return errors.New("disk gone") }
func (brokenArea) Delete(context.Context, string) error        { return errors.New("disk gone") }

func populated(a *Adapter) {
	b := a.Bundle()
	b.IndexQueue[1] = models.DeltaNew
	b.IndexQueue[2] = models.DeltaStale
	b.IndexQueue[3] = models.DeltaRemoved
	b.AllSeenTabs[2] = struct{}{}
	b.AllSeenTabs[9] = struct{}{}
	b.TabHighlight[2] = models.HighlightRequest{Query: "go", Snippet: "<b>go</b>", TabID: 2, WindowID: 5}
	b.Docs = 4
}

func TestRestore_NoBundle(t *testing.T) {
	a := NewAdapter(storage.NewMemoryArea(), nil, nil)
	assert.False(t, a.Restore(context.Background()))
	assert.Nil(t, a.Bundle())
}

func TestSave_UninitializedIsNoop(t *testing.T) {
	area := storage.NewMemoryArea()
	a := NewAdapter(area, nil, nil)

	ok, err := a.Save(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = area.Get(context.Background(), BundleKey)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSaveRestore_RoundTripAcrossRestart(t *testing.T) {
	ctx := context.Background()
	area := storage.NewMemoryArea()

	a := NewAdapter(area, nil, nil)
	require.NoError(t, a.Reset(ctx))
	populated(a)
	ok, err := a.Save(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	want := a.Bundle().Clone()

	// A fresh adapter over the same area models a restarted process.
	restarted := NewAdapter(area, nil, nil)
	require.True(t, restarted.Restore(ctx))
	assert.Equal(t, want, restarted.Bundle())
}

func TestRestore_Idempotent(t *testing.T) {
	ctx := context.Background()
	area := storage.NewMemoryArea()
	a := NewAdapter(area, nil, nil)
	require.NoError(t, a.Reset(ctx))
	populated(a)
	_, err := a.Save(ctx)
	require.NoError(t, err)

	require.True(t, a.Restore(ctx))
	first := a.Bundle().Clone()
	require.True(t, a.Restore(ctx))
	assert.Equal(t, first, a.Bundle())
}

func TestRestore_CorruptBundle(t *testing.T) {
	ctx := context.Background()
	area := storage.NewMemoryArea()
	require.NoError(t, area.Set(ctx, BundleKey, []byte("{not json")))

	a := NewAdapter(area, nil, nil)
	assert.False(t, a.Restore(ctx))
}

func TestRestore_IncompleteBundle(t *testing.T) {
	ctx := context.Background()
	area := storage.NewMemoryArea()
	require.NoError(t, area.Set(ctx, BundleKey, []byte(`{"docs":3}`)))

	a := NewAdapter(area, nil, nil)
	assert.False(t, a.Restore(ctx))
}

func TestRestore_SeenSetOptional(t *testing.T) {
	ctx := context.Background()
	area := storage.NewMemoryArea()
	require.NoError(t, area.Set(ctx, BundleKey, []byte(`{"index_queue":{"7":1},"tab_highlight":{}}`)))

	a := NewAdapter(area, nil, nil)
	require.True(t, a.Restore(ctx))
	assert.Equal(t, models.DeltaNew, a.Bundle().IndexQueue[7])
	assert.Empty(t, a.Bundle().AllSeenTabs)
}

func TestRestore_InvalidDeltaRejected(t *testing.T) {
	ctx := context.Background()
	area := storage.NewMemoryArea()
	require.NoError(t, area.Set(ctx, BundleKey, []byte(`{"index_queue":{"7":5},"tab_highlight":{}}`)))

	a := NewAdapter(area, nil, nil)
	assert.False(t, a.Restore(ctx))
}

func TestReset_PurgesAndPersistsEmpty(t *testing.T) {
	ctx := context.Background()
	area := storage.NewMemoryArea()
	purger := &countingPurger{}
	a := NewAdapter(area, purger, nil)
	require.NoError(t, a.Reset(ctx))
	populated(a)
	_, _ = a.Save(ctx)

	require.NoError(t, a.Reset(ctx))
	assert.Equal(t, 2, purger.calls)
	assert.Empty(t, a.Bundle().IndexQueue)
	assert.Empty(t, a.Bundle().AllSeenTabs)
	assert.Empty(t, a.Bundle().TabHighlight)
	assert.Zero(t, a.Bundle().Docs)

	restarted := NewAdapter(area, nil, nil)
	require.True(t, restarted.Restore(ctx))
	assert.Equal(t, NewBundle(), restarted.Bundle())
}

func TestReset_PurgeFailureDoesNotBlock(t *testing.T) {
	a := NewAdapter(storage.NewMemoryArea(), &countingPurger{err: errors.New("engine locked")}, nil)
	require.NoError(t, a.Reset(context.Background()))
	assert.NotNil(t, a.Bundle())
}

func TestEnsure_ResetsWhenAreaUnavailable(t *testing.T) {
	purger := &countingPurger{}
	a := NewAdapter(brokenArea{}, purger, nil)

	err := a.Ensure(context.Background())
	assert.ErrorIs(t, err, apperr.ErrPersistenceUnavailable)
	// Maps are usable even though the bundle could not be persisted.
	require.NotNil(t, a.Bundle())
	assert.Equal(t, 1, purger.calls)
}

func TestEnsure_RestoresExisting(t *testing.T) {
	ctx := context.Background()
	area := storage.NewMemoryArea()
	first := NewAdapter(area, nil, nil)
	require.NoError(t, first.Ensure(ctx))
	populated(first)
	_, _ = first.Save(ctx)

	purger := &countingPurger{}
	second := NewAdapter(area, purger, nil)
	require.NoError(t, second.Ensure(ctx))
	assert.Zero(t, purger.calls, "restore path must not purge")
	assert.Equal(t, 4, second.Bundle().Docs)
}
