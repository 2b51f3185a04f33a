package state

import (
	"encoding/json"
	"slices"

	"github.com/samber/lo"

	"github.com/starford/tabdex/internal/models"
)

// Bundle is the tracker state that must survive a process restart.
type Bundle struct {
	IndexQueue   models.Queue
	AllSeenTabs  map[models.TabID]struct{}
	TabHighlight map[models.TabID]models.HighlightRequest
	Docs         int
}

// NewBundle returns a bundle with all maps initialized and empty.
func NewBundle() *Bundle {
	return &Bundle{
		IndexQueue:   make(models.Queue),
		AllSeenTabs:  make(map[models.TabID]struct{}),
		TabHighlight: make(map[models.TabID]models.HighlightRequest),
	}
}

// initialized reports whether every map is non-nil.
func (b *Bundle) initialized() bool {
	return b != nil && b.IndexQueue != nil && b.AllSeenTabs != nil && b.TabHighlight != nil
}

// Seen reports whether id is in the seen set.
func (b *Bundle) Seen(id models.TabID) bool {
	_, ok := b.AllSeenTabs[id]
	return ok
}

// Clone returns a deep copy of b.
func (b *Bundle) Clone() *Bundle {
	out := NewBundle()
	for k, v := range b.IndexQueue {
		out.IndexQueue[k] = v
	}
	for k := range b.AllSeenTabs {
		out.AllSeenTabs[k] = struct{}{}
	}
	for k, v := range b.TabHighlight {
		out.TabHighlight[k] = v
	}
	out.Docs = b.Docs
	return out
}

// wireBundle is the persisted record layout.
type wireBundle struct {
	IndexQueue   models.Queue                             `json:"index_queue"`
	AllSeenTabs  []models.TabID                           `json:"all_seen_tabs,omitempty"`
	TabHighlight map[models.TabID]models.HighlightRequest `json:"tab_highlight"`
	Docs         int                                      `json:"docs"`
}

// MarshalJSON encodes the bundle in the persisted layout. The seen set is
// written sorted so identical state always produces identical bytes.
func (b *Bundle) MarshalJSON() ([]byte, error) {
	seen := lo.Keys(b.AllSeenTabs)
	slices.Sort(seen)
	return json.Marshal(wireBundle{
		IndexQueue:   b.IndexQueue,
		AllSeenTabs:  seen,
		TabHighlight: b.TabHighlight,
		Docs:         b.Docs,
	})
}

// UnmarshalJSON decodes the persisted layout. A missing index_queue or
// tab_highlight leaves the corresponding map nil so the caller can reject
// the bundle; all_seen_tabs is optional.
func (b *Bundle) UnmarshalJSON(data []byte) error {
	var w wireBundle
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	b.IndexQueue = w.IndexQueue
	b.TabHighlight = w.TabHighlight
	b.Docs = w.Docs
	b.AllSeenTabs = make(map[models.TabID]struct{}, len(w.AllSeenTabs))
	for _, id := range w.AllSeenTabs {
		b.AllSeenTabs[id] = struct{}{}
	}
	return nil
}
