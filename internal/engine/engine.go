// Package engine binds the full-text search engine used to index captured
// pages. Databases are addressed by a small integer index; 0 is the default.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	bolt "go.etcd.io/bbolt"

	"github.com/starford/tabdex/internal/apperr"
)

// DefaultDB is the database index used by all current callers.
const DefaultDB = 0

const dbSuffix = ".bleve"

// lockTimeout bounds the wait for an index held open by another process.
const lockTimeout = time.Second

// ErrLocked reports an index held open by another process.
var ErrLocked = errors.New("engine: index locked by another process")

type database struct {
	index bleve.Index
	path  string
	batch *bleve.Batch
}

// flush applies buffered writes.
func (d *database) flush() error {
	if d.batch.Size() == 0 {
		return nil
	}
	if err := d.index.Batch(d.batch); err != nil {
		return err
	}
	d.batch.Reset()
	return nil
}

// Engine is a synchronous wrapper over one or more bleve indexes.
//
// Like the engine it replaces, it keeps the result set of the most recent
// query so callers can resolve ranks to guids with Key and Percent.
type Engine struct {
	mu      sync.Mutex
	root    string
	mapping *mapping.IndexMappingImpl
	dbs     map[int]*database
	logger  *slog.Logger

	lastHits  []*search.DocumentMatch
	lastMax   float64
	lastQuery Query
}

// New creates an engine that keeps its databases under root. An empty
// root keeps every database in memory.
func New(root string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		root:    root,
		mapping: newIndexMapping(),
		dbs:     make(map[int]*database),
		logger:  logger,
	}
}

// PathFor returns the default on-disk location of database db, or "" for
// an in-memory engine.
func (e *Engine) PathFor(db int) string {
	if e.root == "" {
		return ""
	}
	return filepath.Join(e.root, fmt.Sprintf("db-%d%s", db, dbSuffix))
}

// Prepare opens or creates database db at path. An empty path creates an
// in-memory database. Preparing an already open database at the same path
// is a no-op; a different path replaces it.
func (e *Engine) Prepare(db int, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prepareLocked(db, path)
}

func (e *Engine) prepareLocked(db int, path string) error {
	if cur, ok := e.dbs[db]; ok {
		if cur.path == path {
			return nil
		}
		e.releaseLocked(db)
	}
	idx, err := e.open(path)
	if err != nil {
		return fmt.Errorf("engine: prepare %d: %w: %w", db, apperr.ErrEngine, err)
	}
	e.dbs[db] = &database{index: idx, path: path, batch: idx.NewBatch()}
	e.logger.Debug("engine: prepared", slog.Int("db", db), slog.String("path", path))
	return nil
}

// open returns the index at path, recreating it when the stored copy is
// unreadable. Indexed pages can always be recaptured, so a corrupt index
// is cleared rather than surfaced. An index locked by another process is
// never cleared; open fails with ErrLocked after lockTimeout.
func (e *Engine) open(path string) (bleve.Index, error) {
	if path == "" {
		return bleve.NewMemOnly(e.mapping)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}
	idx, err := bleve.OpenUsing(path, map[string]interface{}{
		"bolt_timeout": lockTimeout.String(),
	})
	if err == nil {
		return idx, nil
	}
	if errors.Is(err, bolt.ErrTimeout) {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	if !errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		e.logger.Warn("engine: open failed, recreating",
			slog.String("path", path),
			slog.String("error", err.Error()))
		if rmErr := os.RemoveAll(path); rmErr != nil {
			return nil, fmt.Errorf("clear corrupt index: %w (original: %v)", rmErr, err)
		}
	}
	return bleve.New(path, e.mapping)
}

func (e *Engine) get(db int) (*database, error) {
	d, ok := e.dbs[db]
	if !ok {
		return nil, fmt.Errorf("engine: database %d: %w: not prepared", db, apperr.ErrEngine)
	}
	return d, nil
}

// Add buffers a document for database db. Buffered documents are visible
// to this engine's queries immediately and reach the index on Commit.
func (e *Engine) Add(db int, doc Document) error {
	if doc.GUID == "" {
		return fmt.Errorf("engine: add: %w: empty guid", apperr.ErrEngine)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	d, err := e.get(db)
	if err != nil {
		return err
	}
	if err := d.batch.Index(doc.GUID, newIndexedDoc(doc)); err != nil {
		return fmt.Errorf("engine: add %s: %w: %w", doc.GUID, apperr.ErrEngine, err)
	}
	return nil
}

// Commit flushes buffered writes of database db into its index.
func (e *Engine) Commit(db int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, err := e.get(db)
	if err != nil {
		return err
	}
	if err := d.flush(); err != nil {
		return fmt.Errorf("engine: commit %d: %w: %w", db, apperr.ErrEngine, err)
	}
	return nil
}

// Clean deletes the document for guid from database db.
func (e *Engine) Clean(db int, guid string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, err := e.get(db)
	if err != nil {
		return err
	}
	if err := d.flush(); err != nil {
		return fmt.Errorf("engine: clean %s: %w: %w", guid, apperr.ErrEngine, err)
	}
	if err := d.index.Delete(guid); err != nil {
		return fmt.Errorf("engine: clean %s: %w: %w", guid, apperr.ErrEngine, err)
	}
	return nil
}

// Count returns the number of committed documents in database db.
func (e *Engine) Count(db int) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, err := e.get(db)
	if err != nil {
		return 0, err
	}
	if err := d.flush(); err != nil {
		return 0, fmt.Errorf("engine: count: %w: %w", apperr.ErrEngine, err)
	}
	return d.index.DocCount()
}

// Release commits and closes database db.
func (e *Engine) Release(db int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.releaseLocked(db)
}

func (e *Engine) releaseLocked(db int) {
	d, ok := e.dbs[db]
	if !ok {
		return
	}
	if err := d.flush(); err != nil {
		e.logger.Warn("engine: flush on release failed", slog.Int("db", db), slog.String("error", err.Error()))
	}
	if err := d.index.Close(); err != nil {
		e.logger.Warn("engine: close failed", slog.Int("db", db), slog.String("error", err.Error()))
	}
	delete(e.dbs, db)
	e.lastHits = nil
}

// Purge drops every database: open ones are recreated empty at their
// paths, and leftover database directories under the root are removed.
func (e *Engine) Purge() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	open := make(map[int]string, len(e.dbs))
	for db, d := range e.dbs {
		open[db] = d.path
		e.releaseLocked(db)
	}

	var errs []error
	for _, path := range open {
		if path == "" {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			errs = append(errs, err)
		}
	}
	if e.root != "" {
		entries, err := os.ReadDir(e.root)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
		for _, ent := range entries {
			if ent.IsDir() && strings.HasSuffix(ent.Name(), dbSuffix) {
				if err := os.RemoveAll(filepath.Join(e.root, ent.Name())); err != nil {
					errs = append(errs, err)
				}
			}
		}
	}

	for db, path := range open {
		if err := e.prepareLocked(db, path); err != nil {
			errs = append(errs, err)
		}
	}
	e.logger.Info("engine: purged", slog.Int("databases", len(open)))
	if len(errs) > 0 {
		return fmt.Errorf("engine: purge: %w", errors.Join(errs...))
	}
	return nil
}

// Close releases every database.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for db := range e.dbs {
		e.releaseLocked(db)
	}
	return nil
}
