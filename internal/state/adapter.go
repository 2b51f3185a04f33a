// Package state persists and restores the tracker's bundle of maps across
// process restarts. It holds no business logic.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/tabdex/internal/apperr"
	"github.com/starford/tabdex/internal/storage"
)

// BundleKey is the area key the bundle is stored under.
const BundleKey = "bundle"

// Purger removes durable search data that may reference content which is
// no longer valid. It is invoked by Reset.
type Purger interface {
	Purge(ctx context.Context) error
}

// Adapter moves the bundle between memory and a durable area.
//
// Adapter is not safe for concurrent use; the tracker owns it from a single
// goroutine.
type Adapter struct {
	area   storage.Area
	purger Purger
	logger *slog.Logger
	bundle *Bundle
}

// NewAdapter creates an Adapter. purger may be nil.
func NewAdapter(area storage.Area, purger Purger, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{area: area, purger: purger, logger: logger}
}

// Bundle returns the in-memory bundle, or nil before the first restore or reset.
func (a *Adapter) Bundle() *Bundle {
	return a.bundle
}

// Restore loads the bundle from the durable area. It is the only read path
// for persisted state and reports whether a valid bundle was found. On
// failure the in-memory bundle is left untouched.
func (a *Adapter) Restore(ctx context.Context) bool {
	data, err := a.area.Get(ctx, BundleKey)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			a.logger.Debug("state: no bundle found")
		} else {
			a.logger.Warn("state: restore failed", slog.String("error", err.Error()))
		}
		return false
	}

	b := &Bundle{}
	if err := json.Unmarshal(data, b); err != nil {
		a.logger.Warn("state: bundle corrupt", slog.String("error", err.Error()))
		return false
	}
	if !b.initialized() {
		a.logger.Warn("state: bundle incomplete")
		return false
	}
	a.bundle = b
	return true
}

// Save writes the in-memory bundle back. It returns false without writing
// while any map is still uninitialized.
func (a *Adapter) Save(ctx context.Context) (bool, error) {
	if !a.bundle.initialized() {
		return false, nil
	}
	data, err := json.Marshal(a.bundle)
	if err != nil {
		return false, fmt.Errorf("state: encode bundle: %w", err)
	}
	if err := a.area.Set(ctx, BundleKey, data); err != nil {
		return false, fmt.Errorf("state: save bundle: %w: %w", apperr.ErrPersistenceUnavailable, err)
	}
	return true, nil
}

// Reset clears every map, purges orphaned search data and persists the
// empty bundle immediately. A purge failure is logged, not returned, so a
// broken search store never blocks the tracker.
func (a *Adapter) Reset(ctx context.Context) error {
	if a.purger != nil {
		if err := a.purger.Purge(ctx); err != nil {
			a.logger.Warn("state: purge failed", slog.String("error", err.Error()))
		}
	}
	a.bundle = NewBundle()
	a.logger.Info("state: reset")
	_, err := a.Save(ctx)
	return err
}

// Ensure guarantees an initialized bundle: it is a no-op once the bundle is
// hydrated, otherwise it restores, falling back to Reset when no valid
// bundle exists.
func (a *Adapter) Ensure(ctx context.Context) error {
	if a.bundle.initialized() {
		return nil
	}
	if a.Restore(ctx) {
		return nil
	}
	return a.Reset(ctx)
}
