// Package storage provides the durable key-value area that outlives the
// indexing process. It is the only place tracker state touches disk.
package storage

import "context"

// Area is a small key-value store for process-independent state.
type Area interface {
	// Get returns the value stored under key, or apperr.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set atomically replaces the value stored under key.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
