package gateway

import (
	"encoding/json"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/tabdex/internal/apperr"
	"github.com/starford/tabdex/internal/models"
)

// Gateway methods.
const (
	MethodFind          = "find"
	MethodGetHighlight  = "get_highlight"
	MethodDelete        = "delete"
	MethodGroup         = "group"
	MethodGetJobs       = "get_jobs"
	MethodIndexComplete = "index_complete"
)

// Request is one decoded gateway call. Each method has its own type.
type Request interface {
	Method() string
	Validate() error
}

// FindRequest navigates to a search hit.
type FindRequest struct {
	TabID    models.TabID `json:"tabId"`
	WindowID int64        `json:"windowId"`
	Query    string       `json:"query"`
	Snippet  string       `json:"snippet"`
}

// GetHighlightRequest asks for the highlight stored for the sender's tab.
type GetHighlightRequest struct{}

// DeleteRequest closes tabs.
type DeleteRequest struct {
	IDs []models.TabID `json:"ids"`
}

// GroupRequest moves tabs into a new window; the first id is the anchor.
type GroupRequest struct {
	IDs []models.TabID `json:"ids"`
}

// GetJobsRequest asks for the pending-work mapping.
type GetJobsRequest struct{}

// IndexCompleteRequest acknowledges every queued tab.
type IndexCompleteRequest struct{}

func (FindRequest) Method() string          { return MethodFind }
func (GetHighlightRequest) Method() string  { return MethodGetHighlight }
func (DeleteRequest) Method() string        { return MethodDelete }
func (GroupRequest) Method() string         { return MethodGroup }
func (GetJobsRequest) Method() string       { return MethodGetJobs }
func (IndexCompleteRequest) Method() string { return MethodIndexComplete }

func (r FindRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.TabID, validation.Required),
		validation.Field(&r.WindowID, validation.Min(int64(0))),
	)
}

func (r DeleteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.IDs, validation.Required, validation.Each(validation.Required)),
	)
}

func (r GroupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.IDs, validation.Required, validation.Each(validation.Required)),
	)
}

func (GetHighlightRequest) Validate() error  { return nil }
func (GetJobsRequest) Validate() error       { return nil }
func (IndexCompleteRequest) Validate() error { return nil }

// Decode parses a {"method": ...} envelope into its typed request.
// Unknown methods and invalid payloads fail with apperr.ErrInvalidRequest.
func Decode(data []byte) (Request, error) {
	var env struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("gateway: %w: %w", apperr.ErrInvalidRequest, err)
	}

	var (
		req Request
		err error
	)
	switch env.Method {
	case MethodFind:
		req, err = decodeAs[FindRequest](data)
	case MethodGetHighlight:
		req = GetHighlightRequest{}
	case MethodDelete:
		req, err = decodeAs[DeleteRequest](data)
	case MethodGroup:
		req, err = decodeAs[GroupRequest](data)
	case MethodGetJobs:
		req = GetJobsRequest{}
	case MethodIndexComplete:
		req = IndexCompleteRequest{}
	case "":
		return nil, fmt.Errorf("gateway: %w: missing method", apperr.ErrInvalidRequest)
	default:
		return nil, fmt.Errorf("gateway: %w: unknown method %q", apperr.ErrInvalidRequest, env.Method)
	}
	if err == nil {
		err = req.Validate()
	}
	if err != nil {
		return nil, fmt.Errorf("gateway: %s: %w: %w", env.Method, apperr.ErrInvalidRequest, err)
	}
	return req, nil
}

func decodeAs[T Request](data []byte) (Request, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
