package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/tabdex/internal/models"
	"github.com/starford/tabdex/internal/tracker"
)

// Host lifecycle events accepted by POST /api/tabs/events.
const (
	EventCreated   = "created"
	EventUpdated   = "updated"
	EventActivated = "activated"
	EventRemoved   = "removed"
	EventSnapshot  = "snapshot"
)

// TabEventRequest is one host lifecycle event. Snapshot carries every
// open tab at startup in TabIDs; the other events name a single tab.
type TabEventRequest struct {
	Event     string         `json:"event" example:"updated" validate:"required"`
	TabID     models.TabID   `json:"tabId,omitempty" example:"7"`
	Discarded bool           `json:"discarded,omitempty"`
	TabIDs    []models.TabID `json:"tabIds,omitempty"`
}

// Validate checks the event shape.
func (r *TabEventRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Event, validation.Required,
			validation.In(EventCreated, EventUpdated, EventActivated, EventRemoved, EventSnapshot)),
		validation.Field(&r.TabID, validation.When(r.Event != EventSnapshot, validation.Required)),
		validation.Field(&r.TabIDs, validation.Each(validation.Required)),
	)
}

// AddDocumentRequest is the body of POST /api/documents: the page fields
// plus an optional caller guid and fields stored but never indexed.
type AddDocumentRequest struct {
	models.PageFields
	GUID   string         `json:"guid,omitempty" example:"g1"`
	Hidden map[string]any `json:"hidden,omitempty"`
}

// AddDocumentResponse carries the resolved guid.
type AddDocumentResponse struct {
	GUID string `json:"guid" example:"1" validate:"required"`
}

// DocumentListResponse wraps a listing of content records.
type DocumentListResponse struct {
	Documents []models.ContentRecord `json:"documents" validate:"required"`
}

// PinRequest is the body of POST /api/documents/{guid}/pin.
type PinRequest struct {
	Pinned bool `json:"pinned"`
}

// SnippetResponse wraps a highlighted excerpt.
type SnippetResponse struct {
	Snippet string `json:"snippet" validate:"required"`
}

// StatsResponse summarizes the service state.
type StatsResponse struct {
	Queue   tracker.Stats `json:"queue"`
	Records int           `json:"records"`
	Shims   int           `json:"shims"`
}
