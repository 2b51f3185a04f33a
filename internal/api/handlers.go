package api

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tabdex/internal/apperr"
	"github.com/starford/tabdex/internal/coordinator"
	"github.com/starford/tabdex/internal/engine"
	"github.com/starford/tabdex/internal/gateway"
	"github.com/starford/tabdex/internal/models"
)

// SenderTabHeader names the tab a gateway request comes from.
const SenderTabHeader = "X-Sender-Tab"

// Handler holds API route handlers.
type Handler struct {
	d Deps
}

// NewHandler creates a new Handler.
func NewHandler(d Deps) *Handler {
	return &Handler{d: d}
}

// Gateway handles POST /api/gateway.
//
//	@Summary		Run one gateway method (find, get_highlight, delete, group, get_jobs, index_complete)
//	@Tags			gateway
//	@Accept			json
//	@Produce		json
//	@Param			X-Sender-Tab	header	int	false	"Tab the request comes from"
//	@Success		200
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/gateway [post]
func (h *Handler) Gateway(w http.ResponseWriter, r *http.Request) {
	var sender gateway.Sender
	if raw := r.Header.Get(SenderTabHeader); raw != "" {
		id, err := models.ParseTabID(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid "+SenderTabHeader+" header"))
			return
		}
		sender.Tab = &id
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	res, err := h.d.Gateway.HandleRaw(r.Context(), body, sender)
	if err != nil {
		writeError(w, "gateway", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// TabEvent handles POST /api/tabs/events.
//
//	@Summary		Report a host tab lifecycle event
//	@Tags			tabs
//	@Accept			json
//	@Param			body	body	TabEventRequest	true	"Lifecycle event"
//	@Success		204
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tabs/events [post]
func (h *Handler) TabEvent(w http.ResponseWriter, r *http.Request) {
	var req TabEventRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx := r.Context()
	tr := h.d.Tracker
	var err error
	switch req.Event {
	case EventCreated:
		err = tr.OnCreate(ctx, req.TabID)
	case EventUpdated:
		err = tr.OnUpdate(ctx, req.TabID, req.Discarded)
	case EventActivated:
		err = tr.OnActivate(ctx, req.TabID)
	case EventRemoved:
		err = tr.OnRemove(ctx, req.TabID)
	case EventSnapshot:
		err = tr.Seed(ctx, req.TabIDs)
	}
	if err != nil {
		writeError(w, "tab event", err)
		return
	}

	if h.d.Broker != nil {
		if st, err := tr.Stats(ctx); err == nil && st.Pending > 0 {
			h.d.Broker.NotifyQueue(st.Pending)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddDocument handles POST /api/documents.
//
//	@Summary		Store a captured page and index it
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			body	body		AddDocumentRequest	true	"Page"
//	@Success		201		{object}	AddDocumentResponse
//	@Failure		400		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents [post]
func (h *Handler) AddDocument(w http.ResponseWriter, r *http.Request) {
	var req AddDocumentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	guid, err := h.d.Coordinator.Add(r.Context(), req.PageFields, req.Hidden, req.GUID)
	if err != nil {
		writeError(w, "add document", err)
		return
	}
	writeJSON(w, http.StatusCreated, AddDocumentResponse{GUID: guid})
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List stored pages, newest first
//	@Tags			documents
//	@Produce		json
//	@Param			limit	query		int		false	"Max records"
//	@Param			pinned	query		bool	false	"Only pinned records"
//	@Success		200		{object}	DocumentListResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	pinned, _ := strconv.ParseBool(q.Get("pinned"))

	docs, err := h.d.Coordinator.Recent(r.Context(), limit, pinned)
	if err != nil {
		writeError(w, "list documents", err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: docs})
}

// GetDocument handles GET /api/documents/{guid}.
//
//	@Summary		Get a stored page by guid
//	@Tags			documents
//	@Produce		json
//	@Param			guid	path		string	true	"Document guid"
//	@Success		200		{object}	models.ContentRecord
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{guid} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	rec, err := h.d.Coordinator.Body(r.Context(), chi.URLParam(r, "guid"))
	if err != nil {
		writeError(w, "get document", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// RemoveDocument handles DELETE /api/documents/{guid}. Only the search
// document is removed; the stored page stays readable.
//
//	@Summary		Remove a page from the search index
//	@Tags			documents
//	@Param			guid	path	string	true	"Document guid"
//	@Param			db		query	int		false	"Database index"
//	@Success		204
//	@Security		BearerAuth
//	@Router			/documents/{guid} [delete]
func (h *Handler) RemoveDocument(w http.ResponseWriter, r *http.Request) {
	db, ok := dbParam(w, r)
	if !ok {
		return
	}
	if err := h.d.Coordinator.Remove(r.Context(), chi.URLParam(r, "guid"), db); err != nil {
		writeError(w, "remove document", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PinDocument handles POST /api/documents/{guid}/pin.
//
//	@Summary		Pin or unpin a stored page
//	@Tags			documents
//	@Accept			json
//	@Param			guid	path		string		true	"Document guid"
//	@Param			body	body		PinRequest	true	"Pin state"
//	@Success		204
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{guid}/pin [post]
func (h *Handler) PinDocument(w http.ResponseWriter, r *http.Request) {
	var req PinRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.d.Coordinator.Pin(r.Context(), chi.URLParam(r, "guid"), req.Pinned); err != nil {
		writeError(w, "pin document", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Commit handles POST /api/commit.
//
//	@Summary		Flush the search index to disk
//	@Tags			documents
//	@Param			db	query	int	false	"Database index"
//	@Success		204
//	@Security		BearerAuth
//	@Router			/commit [post]
func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	db, ok := dbParam(w, r)
	if !ok {
		return
	}
	if err := h.d.Coordinator.Commit(r.Context(), db); err != nil {
		writeError(w, "commit", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across stored pages
//	@Tags			search
//	@Produce		json
//	@Param			q					query		string	true	"Search query"
//	@Param			start				query		int		false	"First hit"
//	@Param			length				query		int		false	"Page size"
//	@Param			lang				query		string	false	"Stemmer language"
//	@Param			partial				query		bool	false	"Prefix-match the last word"
//	@Param			spell_correction	query		bool	false	"Fuzzy matching"
//	@Param			descending			query		bool	false	"Best hits first"
//	@Success		200					{object}	models.SearchResult
//	@Failure		400					{object}	errResponse
//	@Failure		502					{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := models.SearchParams{Query: q.Get("q"), Lang: q.Get("lang")}
	if params.Query == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}

	var err error
	if params.Start, err = intParam(q.Get("start"), coordinator.DefaultStart); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid start"))
		return
	}
	if params.Length, err = intParam(q.Get("length"), coordinator.DefaultLength); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid length"))
		return
	}
	if params.DB, err = intParam(q.Get("db"), engine.DefaultDB); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid db"))
		return
	}
	for name, dst := range map[string]**bool{"partial": &params.Partial, "descending": &params.Descending} {
		if *dst, err = optionalBool(q.Get(name)); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid "+name))
			return
		}
	}
	params.SpellCorrection, _ = strconv.ParseBool(q.Get("spell_correction"))
	params.Synonym, _ = strconv.ParseBool(q.Get("synonym"))

	res, err := h.d.Coordinator.Search(r.Context(), params)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Snippet handles POST /api/snippet.
//
//	@Summary		Highlighted excerpt of a hit of the last search
//	@Tags			search
//	@Accept			json
//	@Produce		json
//	@Param			body	body		coordinator.SnippetRequest	true	"Snippet request"
//	@Success		200		{object}	SnippetResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/snippet [post]
func (h *Handler) Snippet(w http.ResponseWriter, r *http.Request) {
	var req coordinator.SnippetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s, err := h.d.Coordinator.Snippet(r.Context(), req)
	if err != nil {
		writeError(w, "snippet", err)
		return
	}
	writeJSON(w, http.StatusOK, SnippetResponse{Snippet: s})
}

// Stats handles GET /api/stats.
//
//	@Summary		Queue counters, stored record count and connected shims
//	@Tags			system
//	@Produce		json
//	@Success		200		{object}	StatsResponse
//	@Failure		500		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.d.Tracker.Stats(r.Context())
	if err != nil {
		writeError(w, "stats", err)
		return
	}
	n, err := h.d.Coordinator.Count(r.Context())
	if err != nil {
		writeError(w, "stats", err)
		return
	}
	resp := StatsResponse{Queue: st, Records: n}
	if h.d.Broker != nil {
		resp.Shims = h.d.Broker.ClientCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetPrefs handles GET /api/prefs.
//
//	@Summary		Get user preferences
//	@Tags			prefs
//	@Produce		json
//	@Success		200		{object}	prefs.Prefs
//	@Security		BearerAuth
//	@Router			/prefs [get]
func (h *Handler) GetPrefs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.d.Prefs.Get())
}

// PutPrefs handles PUT /api/prefs. Omitted fields keep their value.
//
//	@Summary		Update user preferences
//	@Tags			prefs
//	@Accept			json
//	@Produce		json
//	@Param			body	body		prefs.Prefs	true	"Preferences"
//	@Success		200		{object}	prefs.Prefs
//	@Failure		400		{object}	errResponse
//	@Failure		500		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/prefs [put]
func (h *Handler) PutPrefs(w http.ResponseWriter, r *http.Request) {
	p := h.d.Prefs.Get()
	if !decodeBody(w, r, &p) {
		return
	}
	if err := h.d.Prefs.Set(p); err != nil {
		slog.Error("save prefs failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func dbParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	db, err := intParam(r.URL.Query().Get("db"), engine.DefaultDB)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid db"))
		return 0, false
	}
	return db, true
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.ErrInvalidRequest
	}
	return n, nil
}

func optionalBool(raw string) (*bool, error) {
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
