package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"github.com/starford/tabdex/internal/apperr"
)

const lockFileName = ".area.lock"

// FileArea implements Area backed by one JSON file per key in a directory.
// Writes are serialized across processes with an flock on the directory.
type FileArea struct {
	root string // absolute path to the area directory
	lock *flock.Flock
}

// NewFileArea creates a FileArea rooted at dir, creating the directory if needed.
func NewFileArea(dir string) (*FileArea, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: mkdir root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FileArea{
		root: abs,
		lock: flock.New(filepath.Join(abs, lockFileName)),
	}, nil
}

// keyPath maps a key to its file and rejects keys that would escape the root.
func (a *FileArea) keyPath(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("storage: invalid key %q", key)
	}
	return filepath.Join(a.root, key+".json"), nil
}

// Get reads the value stored under key.
func (a *FileArea) Get(_ context.Context, key string) ([]byte, error) {
	p, err := a.keyPath(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("storage: get %s: %w", key, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: get %s: %w", key, err)
	}
	return data, nil
}

// Set writes value atomically: tmp file → fsync → rename, under the area lock.
func (a *FileArea) Set(ctx context.Context, key string, value []byte) error {
	p, err := a.keyPath(key)
	if err != nil {
		return err
	}
	unlock, err := a.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	tmp, err := os.CreateTemp(a.root, ".tabdex-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(value); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes the file for key.
func (a *FileArea) Delete(ctx context.Context, key string) error {
	p, err := a.keyPath(key)
	if err != nil {
		return err
	}
	unlock, err := a.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

func (a *FileArea) acquire(ctx context.Context) (func(), error) {
	if err := a.lock.Lock(); err != nil {
		return nil, fmt.Errorf("storage: acquire lock: %w", err)
	}
	if err := ctx.Err(); err != nil {
		_ = a.lock.Unlock()
		return nil, err
	}
	return func() { _ = a.lock.Unlock() }, nil
}

// Root returns the absolute area directory.
func (a *FileArea) Root() string {
	return a.root
}

var _ Area = (*FileArea)(nil)
