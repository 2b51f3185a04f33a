// Package host reaches the browser that owns the tabs. Commands are
// best effort: a failure is reported to the caller, which logs it.
package host

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/tabdex/internal/apperr"
	"github.com/starford/tabdex/internal/models"
	"github.com/starford/tabdex/internal/sse"
)

// Command event types consumed by the browser shim.
const (
	CmdActivateTab  = "tabs.activate"
	CmdFocusWindow  = "windows.focus"
	CmdHighlight    = "scripting.highlight"
	CmdCloseTabs    = "tabs.remove"
	CmdGroupTabs    = "tabs.group"
	CmdSetPopupMode = "action.popup"
)

// Host is the browser collaborator.
type Host interface {
	ActivateTab(ctx context.Context, tab models.TabID) error
	FocusWindow(ctx context.Context, window int64) error
	InjectHighlight(ctx context.Context, req models.HighlightRequest) error
	CloseTabs(ctx context.Context, ids []models.TabID) error
	GroupTabs(ctx context.Context, ids []models.TabID) error
	SetPopupMode(ctx context.Context, popup bool) error
}

// Publisher delivers an event and reports how many listeners got it.
type Publisher interface {
	Deliver(ctx context.Context, event sse.Event) (int, error)
}

// Bridge implements Host by publishing commands on the SSE stream the
// shim listens to.
type Bridge struct {
	pub    Publisher
	logger *slog.Logger
}

var _ Host = (*Bridge)(nil)

// NewBridge creates a Bridge publishing on pub.
func NewBridge(pub Publisher, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{pub: pub, logger: logger}
}

type tabCmd struct {
	TabID models.TabID `json:"tabId"`
}

type windowCmd struct {
	WindowID int64 `json:"windowId"`
}

type highlightCmd struct {
	TabID     models.TabID `json:"tabId"`
	AllFrames bool         `json:"allFrames"`
	Query     string       `json:"query"`
	Snippet   string       `json:"snippet"`
}

type tabsCmd struct {
	IDs []models.TabID `json:"ids"`
}

// groupCmd moves Rest into a new window opened around Anchor.
type groupCmd struct {
	Anchor models.TabID   `json:"anchor"`
	Rest   []models.TabID `json:"rest"`
}

type popupCmd struct {
	Popup bool `json:"popup"`
}

func (b *Bridge) ActivateTab(ctx context.Context, tab models.TabID) error {
	return b.send(ctx, CmdActivateTab, tabCmd{TabID: tab})
}

func (b *Bridge) FocusWindow(ctx context.Context, window int64) error {
	return b.send(ctx, CmdFocusWindow, windowCmd{WindowID: window})
}

func (b *Bridge) InjectHighlight(ctx context.Context, req models.HighlightRequest) error {
	return b.send(ctx, CmdHighlight, highlightCmd{
		TabID:     req.TabID,
		AllFrames: true,
		Query:     req.Query,
		Snippet:   req.Snippet,
	})
}

func (b *Bridge) CloseTabs(ctx context.Context, ids []models.TabID) error {
	if len(ids) == 0 {
		return nil
	}
	return b.send(ctx, CmdCloseTabs, tabsCmd{IDs: ids})
}

// GroupTabs opens a new window around the first tab and moves the others
// into it.
func (b *Bridge) GroupTabs(ctx context.Context, ids []models.TabID) error {
	if len(ids) == 0 {
		return nil
	}
	rest := append([]models.TabID{}, ids[1:]...)
	return b.send(ctx, CmdGroupTabs, groupCmd{Anchor: ids[0], Rest: rest})
}

// SetPopupMode switches the browser action between the popup and a tab.
func (b *Bridge) SetPopupMode(ctx context.Context, popup bool) error {
	return b.send(ctx, CmdSetPopupMode, popupCmd{Popup: popup})
}

func (b *Bridge) send(ctx context.Context, kind string, data any) error {
	n, err := b.pub.Deliver(ctx, sse.Event{Type: kind, Data: data})
	if err != nil {
		return fmt.Errorf("host: %s: %w: %w", kind, apperr.ErrActivation, err)
	}
	if n == 0 {
		return fmt.Errorf("host: %s: %w: no shim connected", kind, apperr.ErrActivation)
	}
	b.logger.Debug("host: command sent", slog.String("type", kind), slog.Int("listeners", n))
	return nil
}
