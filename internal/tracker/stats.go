package tracker

import (
	"context"

	"github.com/starford/tabdex/internal/models"
	"github.com/starford/tabdex/internal/state"
)

// Stats summarizes tracker state.
type Stats struct {
	Pending    int `json:"pending"`
	New        int `json:"new"`
	Stale      int `json:"stale"`
	Removed    int `json:"removed"`
	Seen       int `json:"seen"`
	Highlights int `json:"highlights"`
	Docs       int `json:"docs"`
}

// Stats returns counters over the current bundle.
func (t *Tracker) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := t.exec(ctx, func(_ context.Context, a *state.Adapter) bool {
		b := a.Bundle()
		s.Pending = len(b.IndexQueue)
		for _, d := range b.IndexQueue {
			switch d {
			case models.DeltaNew:
				s.New++
			case models.DeltaStale:
				s.Stale++
			case models.DeltaRemoved:
				s.Removed++
			}
		}
		s.Seen = len(b.AllSeenTabs)
		s.Highlights = len(b.TabHighlight)
		s.Docs = b.Docs
		return false
	})
	return s, err
}

// Snapshot returns a deep copy of the bundle, mainly for diagnostics.
func (t *Tracker) Snapshot(ctx context.Context) (*state.Bundle, error) {
	var out *state.Bundle
	err := t.exec(ctx, func(_ context.Context, a *state.Adapter) bool {
		out = a.Bundle().Clone()
		return false
	})
	return out, err
}
