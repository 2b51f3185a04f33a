// Package gateway multiplexes external callers onto the tracker and the
// host browser through a single request/response protocol.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/tabdex/internal/apperr"
	"github.com/starford/tabdex/internal/engine"
	"github.com/starford/tabdex/internal/host"
	"github.com/starford/tabdex/internal/models"
)

// Tracker is the part of the tab tracker the gateway drives.
type Tracker interface {
	DrainQueue(ctx context.Context) (models.Queue, error)
	CompleteAll(ctx context.Context) (int, error)
	SetHighlight(ctx context.Context, req models.HighlightRequest) error
	Highlight(ctx context.Context, id models.TabID) (models.HighlightRequest, bool, error)
}

// Prefs exposes the preferences the gateway reads.
type Prefs interface {
	Strict() bool
}

// Sender identifies the caller. Tab is nil for callers outside a tab.
type Sender struct {
	Tab *models.TabID
}

// CompleteResult reports how many queue entries index_complete cleared.
type CompleteResult struct {
	Completed int `json:"completed"`
}

// Gateway dispatches decoded requests.
type Gateway struct {
	tracker Tracker
	host    host.Host
	prefs   Prefs
	logger  *slog.Logger
}

// New creates a gateway.
func New(tr Tracker, h host.Host, p Prefs, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{tracker: tr, host: h, prefs: p, logger: logger}
}

// Handle runs req and returns its result: a *models.HighlightRequest for
// get_highlight (nil when none is stored), a models.Queue for get_jobs, a
// CompleteResult for index_complete and nil otherwise.
func (g *Gateway) Handle(ctx context.Context, req Request, sender Sender) (any, error) {
	switch r := req.(type) {
	case FindRequest:
		g.find(ctx, r)
		return nil, nil
	case GetHighlightRequest:
		return g.highlight(ctx, sender), nil
	case DeleteRequest:
		g.bestEffort("delete", g.host.CloseTabs(ctx, r.IDs))
		return nil, nil
	case GroupRequest:
		g.bestEffort("group", g.host.GroupTabs(ctx, r.IDs))
		return nil, nil
	case GetJobsRequest:
		return g.jobs(ctx), nil
	case IndexCompleteRequest:
		n, err := g.tracker.CompleteAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("gateway: index_complete: %w", err)
		}
		g.logger.Info("gateway: index complete", slog.Int("tabs", n))
		return CompleteResult{Completed: n}, nil
	default:
		return nil, fmt.Errorf("gateway: %w: unsupported request %T", apperr.ErrInvalidRequest, req)
	}
}

// HandleRaw decodes and runs one request.
func (g *Gateway) HandleRaw(ctx context.Context, data []byte, sender Sender) (any, error) {
	req, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return g.Handle(ctx, req, sender)
}

// find brings the hit's tab forward and, when the snippet carries matched
// terms or strict mode is on, asks the tab to highlight them.
func (g *Gateway) find(ctx context.Context, r FindRequest) {
	g.bestEffort("find: activate tab", g.host.ActivateTab(ctx, r.TabID))
	if r.WindowID != 0 {
		g.bestEffort("find: focus window", g.host.FocusWindow(ctx, r.WindowID))
	}

	if r.Snippet == "" {
		return
	}
	if !strings.Contains(r.Snippet, engine.HighlightStart) && !g.prefs.Strict() {
		return
	}
	hr := models.HighlightRequest{Query: r.Query, Snippet: r.Snippet, TabID: r.TabID, WindowID: r.WindowID}
	if err := g.tracker.SetHighlight(ctx, hr); err != nil {
		g.logger.Warn("gateway: store highlight failed",
			slog.String("tab", r.TabID.String()), slog.String("error", err.Error()))
	}
	g.bestEffort("find: inject highlight", g.host.InjectHighlight(ctx, hr))
}

func (g *Gateway) highlight(ctx context.Context, sender Sender) *models.HighlightRequest {
	if sender.Tab == nil {
		return nil
	}
	hr, ok, err := g.tracker.Highlight(ctx, *sender.Tab)
	if err != nil {
		g.logger.Warn("gateway: highlight lookup failed", slog.String("error", err.Error()))
		return nil
	}
	if !ok {
		return nil
	}
	return &hr
}

// jobs degrades to an empty mapping when the tracker is unavailable;
// callers read that as nothing pending.
func (g *Gateway) jobs(ctx context.Context) models.Queue {
	q, err := g.tracker.DrainQueue(ctx)
	if err != nil {
		g.logger.Warn("gateway: drain failed", slog.String("error", err.Error()))
		return models.Queue{}
	}
	g.logger.Debug("gateway: jobs", slog.Int("tabs", len(q)))
	return q
}

func (g *Gateway) bestEffort(op string, err error) {
	if err != nil {
		g.logger.Warn("gateway: "+op+" failed", slog.String("error", err.Error()))
	}
}
