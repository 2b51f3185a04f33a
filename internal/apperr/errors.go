// Package apperr holds the sentinel errors shared across tabdex layers.
package apperr

import "errors"

var (
	// ErrNotFound is a lookup miss: no content record or document for a guid.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest reports an unknown gateway method or a malformed payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrEngine wraps an error reported by the search engine instead of a result.
	ErrEngine = errors.New("search engine error")
	// ErrActivation reports that the host refused or could not focus a tab.
	ErrActivation = errors.New("activation failure")
	// ErrPersistenceUnavailable reports a missing or corrupt durable bundle.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
)
