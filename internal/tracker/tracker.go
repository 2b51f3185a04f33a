// Package tracker turns host tab lifecycle events into the pending-work
// queue consumed by indexing workers.
package tracker

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/samber/lo"

	"github.com/starford/tabdex/internal/models"
	"github.com/starford/tabdex/internal/state"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("tracker: closed")

// op runs inside the event loop with exclusive access to the adapter. It
// reports whether the bundle changed and must be persisted.
type op func(ctx context.Context, a *state.Adapter) (changed bool)

type request struct {
	ctx  context.Context
	fn   op
	done chan struct{}
}

// Tracker owns the state bundle.
//
// A single event loop goroutine owns the adapter and its maps. Each public
// method is one request processed as a hydrate → mutate → save critical
// section.
type Tracker struct {
	adapter *state.Adapter
	logger  *slog.Logger

	reqCh   chan request
	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// New starts a tracker over adapter.
func New(adapter *state.Adapter, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{
		adapter: adapter,
		logger:  logger,
		reqCh:   make(chan request),
		stopCh:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *Tracker) run() {
	defer close(t.stopped)
	for {
		select {
		case <-t.stopCh:
			return
		case req := <-t.reqCh:
			t.handle(req)
			close(req.done)
		}
	}
}

func (t *Tracker) handle(req request) {
	// Once accepted, a request runs to completion even if its caller goes away.
	ctx := context.WithoutCancel(req.ctx)

	if err := t.adapter.Ensure(ctx); err != nil {
		t.logger.Warn("tracker: state hydrate failed", slog.String("error", err.Error()))
	}
	if !req.fn(ctx, t.adapter) {
		return
	}
	if _, err := t.adapter.Save(ctx); err != nil {
		t.logger.Warn("tracker: persist failed", slog.String("error", err.Error()))
	}
}

// exec submits fn to the event loop and waits for it to finish.
func (t *Tracker) exec(ctx context.Context, fn op) error {
	if t.closed.Load() {
		return ErrClosed
	}
	req := request{ctx: ctx, fn: fn, done: make(chan struct{})}
	select {
	case t.reqCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-t.stopped:
		return ErrClosed
	}
	<-req.done
	return nil
}

// Close stops the event loop. Requests already accepted complete first.
func (t *Tracker) Close() {
	if t.closed.CompareAndSwap(false, true) {
		close(t.stopCh)
	}
	<-t.stopped
}

// Ensure hydrates the bundle, running the reset path when no valid bundle
// is stored. Call it once at startup before content is written, since a
// reset purges the search databases and the object store.
func (t *Tracker) Ensure(ctx context.Context) error {
	var ensureErr error
	err := t.exec(ctx, func(ctx context.Context, a *state.Adapter) bool {
		ensureErr = a.Ensure(ctx)
		return false
	})
	if err != nil {
		return err
	}
	return ensureErr
}

// OnCreate records a newly created tab as never indexed.
func (t *Tracker) OnCreate(ctx context.Context, id models.TabID) error {
	return t.exec(ctx, func(_ context.Context, a *state.Adapter) bool {
		a.Bundle().IndexQueue[id] = models.DeltaNew
		t.logger.Debug("tracker: created", slog.String("tab", id.String()))
		return true
	})
}

// OnUpdate marks a tab whose content changed. Discarding a tab is not a
// content change and is ignored.
func (t *Tracker) OnUpdate(ctx context.Context, id models.TabID, discarded bool) error {
	if discarded {
		return nil
	}
	return t.exec(ctx, func(_ context.Context, a *state.Adapter) bool {
		touch(a.Bundle(), id)
		t.logger.Debug("tracker: updated", slog.String("tab", id.String()))
		return true
	})
}

// OnActivate marks a tab that was brought to the foreground, since it may
// surface content that was never captured.
func (t *Tracker) OnActivate(ctx context.Context, id models.TabID) error {
	return t.exec(ctx, func(_ context.Context, a *state.Adapter) bool {
		touch(a.Bundle(), id)
		t.logger.Debug("tracker: activated", slog.String("tab", id.String()))
		return true
	})
}

// OnRemove handles a closed tab. A tab closed before it was ever seen
// leaves no trace in the queue.
func (t *Tracker) OnRemove(ctx context.Context, id models.TabID) error {
	return t.exec(ctx, func(_ context.Context, a *state.Adapter) bool {
		b := a.Bundle()
		delete(b.TabHighlight, id)
		if b.Seen(id) {
			delete(b.AllSeenTabs, id)
			b.IndexQueue[id] = models.DeltaRemoved
		} else {
			delete(b.IndexQueue, id)
		}
		t.logger.Debug("tracker: removed", slog.String("tab", id.String()))
		return true
	})
}

// Seed queues every open tab reported by the host at startup. Tabs already
// seen keep their current status.
func (t *Tracker) Seed(ctx context.Context, ids []models.TabID) error {
	return t.exec(ctx, func(_ context.Context, a *state.Adapter) bool {
		b := a.Bundle()
		for _, id := range ids {
			if b.Seen(id) {
				continue
			}
			b.IndexQueue[id] = models.DeltaNew
		}
		t.logger.Info("tracker: seeded", slog.Int("tabs", len(ids)))
		return len(ids) > 0
	})
}

// touch applies the update/activate transition.
func touch(b *state.Bundle, id models.TabID) {
	if b.Seen(id) {
		b.IndexQueue[id] = models.DeltaStale
		return
	}
	b.IndexQueue[id] = models.DeltaNew
	b.AllSeenTabs[id] = struct{}{}
}

// DrainQueue returns a copy of the pending-work mapping. The queue is not
// cleared; entries disappear only through MarkComplete, so a caller that
// never completes can safely drain again.
func (t *Tracker) DrainQueue(ctx context.Context) (models.Queue, error) {
	var out models.Queue
	err := t.exec(ctx, func(_ context.Context, a *state.Adapter) bool {
		out = a.Bundle().IndexQueue.Clone()
		t.logger.Debug("tracker: drain", slog.Any("tabs", lo.Keys(out)))
		return false
	})
	return out, err
}

// MarkComplete acknowledges processed tabs: each leaves the queue and,
// unless its delta was Removed, joins the seen set.
func (t *Tracker) MarkComplete(ctx context.Context, ids []models.TabID) error {
	return t.exec(ctx, func(_ context.Context, a *state.Adapter) bool {
		complete(a.Bundle(), ids)
		return true
	})
}

// CompleteAll acknowledges every tab currently queued and returns how many
// entries were cleared.
func (t *Tracker) CompleteAll(ctx context.Context) (int, error) {
	var n int
	err := t.exec(ctx, func(_ context.Context, a *state.Adapter) bool {
		ids := lo.Keys(a.Bundle().IndexQueue)
		n = len(ids)
		complete(a.Bundle(), ids)
		return n > 0
	})
	return n, err
}

func complete(b *state.Bundle, ids []models.TabID) {
	for _, id := range ids {
		delta, queued := b.IndexQueue[id]
		delete(b.IndexQueue, id)
		if queued && delta == models.DeltaRemoved {
			continue
		}
		if queued {
			b.Docs++
		}
		b.AllSeenTabs[id] = struct{}{}
	}
}

// SetHighlight stores the last search navigation for a tab.
func (t *Tracker) SetHighlight(ctx context.Context, req models.HighlightRequest) error {
	return t.exec(ctx, func(_ context.Context, a *state.Adapter) bool {
		a.Bundle().TabHighlight[req.TabID] = req
		return true
	})
}

// Highlight returns the stored highlight request for a tab.
func (t *Tracker) Highlight(ctx context.Context, id models.TabID) (models.HighlightRequest, bool, error) {
	var (
		hr models.HighlightRequest
		ok bool
	)
	err := t.exec(ctx, func(_ context.Context, a *state.Adapter) bool {
		hr, ok = a.Bundle().TabHighlight[id]
		return false
	})
	return hr, ok, err
}

// Reset runs the full reset path: all maps cleared, search data purged.
func (t *Tracker) Reset(ctx context.Context) error {
	var resetErr error
	err := t.exec(ctx, func(ctx context.Context, a *state.Adapter) bool {
		resetErr = a.Reset(ctx)
		return false
	})
	if err != nil {
		return err
	}
	return resetErr
}
