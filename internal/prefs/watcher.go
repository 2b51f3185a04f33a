package prefs

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeCallback is called after a reload that changed the preferences.
type ChangeCallback func(old, updated Prefs)

const reloadDelay = 100 * time.Millisecond

// Watch reloads the preferences whenever the file changes, until ctx is
// cancelled. The parent directory is watched so editors that replace the
// file by rename are seen. Bursts of events are coalesced.
func (s *Store) Watch(ctx context.Context, cb ChangeCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := w.Add(dir); err != nil {
		return err
	}
	name := filepath.Clean(s.path)

	s.logger.Info("prefs: watching", slog.String("path", s.path))

	notified := s.Get()
	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			s.logger.Info("prefs: watcher stopped")
			return nil

		case <-reloadCh:
			reloadCh = nil
			updated, err := s.reload()
			if err != nil {
				s.logger.Warn("prefs: reload failed, keeping previous", slog.String("error", err.Error()))
				continue
			}
			// Set stores before the file event arrives, so compare with
			// what was last reported rather than with the current value.
			if updated == notified {
				continue
			}
			old := notified
			notified = updated
			s.logger.Info("prefs: reloaded",
				slog.Bool("strict", updated.Strict),
				slog.String("open_mode", updated.OpenMode))
			if cb != nil {
				cb(old, updated)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != name {
				continue
			}
			if reloadTimer == nil {
				reloadTimer = time.NewTimer(reloadDelay)
			} else {
				reloadTimer.Reset(reloadDelay)
			}
			reloadCh = reloadTimer.C

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("prefs: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}
