package objects

import (
	"context"

	"github.com/starford/tabdex/internal/models"
)

// Store defines the content object store operations.
// Consumers depend on this interface rather than the concrete *DB type.
type Store interface {
	Put(ctx context.Context, rec models.ContentRecord) (string, error)
	Get(ctx context.Context, guid string) (*models.ContentRecord, error)
	Recent(ctx context.Context, limit int, pinnedOnly bool) ([]models.ContentRecord, error)
	SetPinned(ctx context.Context, guid string, pinned bool) error
	Count(ctx context.Context) (int, error)
	Purge(ctx context.Context) error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
