// Package models defines the domain types for tabdex.
package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// TabID is the opaque tab handle assigned by the host browser.
type TabID int64

// String implements fmt.Stringer.
func (id TabID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseTabID parses a decimal tab handle.
func ParseTabID(s string) (TabID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("models: parse tab id %q: %w", s, err)
	}
	return TabID(n), nil
}

// QueueDelta is the pending indexing status of a tab.
type QueueDelta int

// Queue deltas. The numeric values match the persisted bundle layout.
const (
	DeltaRemoved QueueDelta = -1
	DeltaStale   QueueDelta = 0
	DeltaNew     QueueDelta = 1
)

// String implements fmt.Stringer.
func (d QueueDelta) String() string {
	switch d {
	case DeltaNew:
		return "new"
	case DeltaStale:
		return "stale"
	case DeltaRemoved:
		return "removed"
	default:
		return "unknown(" + strconv.Itoa(int(d)) + ")"
	}
}

// Valid reports whether d is one of the three known deltas.
func (d QueueDelta) Valid() bool {
	return d == DeltaNew || d == DeltaStale || d == DeltaRemoved
}

// UnmarshalJSON rejects unknown delta values.
func (d *QueueDelta) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	v := QueueDelta(n)
	if !v.Valid() {
		return fmt.Errorf("models: invalid queue delta %d", n)
	}
	*d = v
	return nil
}

// Queue is the pending-work mapping handed to indexing workers.
type Queue map[TabID]QueueDelta

// Clone returns a shallow copy of q.
func (q Queue) Clone() Queue {
	out := make(Queue, len(q))
	for k, v := range q {
		out[k] = v
	}
	return out
}

// HighlightRequest is the last search-navigation payload for a tab.
type HighlightRequest struct {
	Query    string `json:"query"`
	Snippet  string `json:"snippet"`
	TabID    TabID  `json:"tabId"`
	WindowID int64  `json:"windowId"`
}
