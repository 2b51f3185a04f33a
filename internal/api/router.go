package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/starford/tabdex/internal/coordinator"
	"github.com/starford/tabdex/internal/gateway"
	"github.com/starford/tabdex/internal/prefs"
	"github.com/starford/tabdex/internal/sse"
	"github.com/starford/tabdex/internal/tracker"
)

// Deps are the services exposed over HTTP. Broker may be nil, in which
// case the host command stream is not mounted.
type Deps struct {
	Gateway     *gateway.Gateway
	Tracker     *tracker.Tracker
	Coordinator *coordinator.Service
	Prefs       *prefs.Store
	Broker      *sse.Broker
}

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
func NewRouter(d Deps, authEnabled bool, token string) chi.Router {
	h := NewHandler(d)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Gateway protocol and host lifecycle events.
	r.Post("/gateway", h.Gateway)
	r.Post("/tabs/events", h.TabEvent)

	// Content records and search documents.
	r.Get("/documents", h.ListDocuments)
	r.Post("/documents", h.AddDocument)
	r.Get("/documents/{guid}", h.GetDocument)
	r.Delete("/documents/{guid}", h.RemoveDocument)
	r.Post("/documents/{guid}/pin", h.PinDocument)
	r.Post("/commit", h.Commit)

	// Search.
	r.Get("/search", h.Search)
	r.Post("/snippet", h.Snippet)

	r.Get("/stats", h.Stats)
	r.Get("/prefs", h.GetPrefs)
	r.Put("/prefs", h.PutPrefs)

	// Host command stream for the browser shim (protected by same auth middleware).
	if d.Broker != nil {
		r.Get("/host/events", d.Broker.ServeHTTP)
	}

	return r
}
