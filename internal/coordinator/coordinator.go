// Package coordinator keeps the content object store and the search
// engine correlated by guid.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/starford/tabdex/internal/apperr"
	"github.com/starford/tabdex/internal/engine"
	"github.com/starford/tabdex/internal/models"
	"github.com/starford/tabdex/internal/objects"
)

// Search defaults applied when a caller leaves a parameter unset.
const (
	DefaultStart  = 0
	DefaultLength = 30
)

// SearchEngine is the subset of the engine the coordinator drives.
type SearchEngine interface {
	Add(db int, doc engine.Document) error
	Commit(db int) error
	Query(db int, q engine.Query) (engine.Result, error)
	Key(i int) (string, error)
	Percent(i int) (int, error)
	Snippet(lang, content string, size int, omit string) string
	Clean(db int, guid string) error
	Purge() error
}

var _ SearchEngine = (*engine.Engine)(nil)

// Service coordinates the object store and the search engine.
type Service struct {
	store  objects.Store
	engine SearchEngine
	logger *slog.Logger
	lang   string

	// mu keeps a query and the key/percent reads of its result set together.
	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithLanguage sets the stemmer used when a caller names none.
func WithLanguage(lang string) Option {
	return func(s *Service) {
		if lang != "" {
			s.lang = lang
		}
	}
}

// New creates a coordinator over store and eng.
func New(store objects.Store, eng SearchEngine, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{store: store, engine: eng, logger: logger, lang: engine.DefaultLanguage}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add stores the page as a content record and then indexes it under the
// same guid. When guid is empty the object store assigns one. An indexing
// failure is returned as is; the stored record is not rolled back.
func (s *Service) Add(ctx context.Context, fields models.PageFields, hidden map[string]any, guid string) (string, error) {
	var hostname, path string
	if fields.URL != "" {
		u, err := url.Parse(fields.URL)
		if err != nil {
			return "", fmt.Errorf("coordinator: add: %w: url: %w", apperr.ErrInvalidRequest, err)
		}
		hostname, path = u.Hostname(), u.Path
	}

	rec := models.ContentRecord{
		GUID:     guid,
		Mime:     fields.Mime,
		URL:      fields.URL,
		Hostname: hostname,
		Title:    fields.Title,
		Body:     fields.Body,
	}
	mergeHidden(&rec, hidden)
	rec.Timestamp = time.Now()

	resolved, err := s.store.Put(ctx, rec)
	if err != nil {
		return "", fmt.Errorf("coordinator: add: %w", err)
	}

	lang := fields.Lang
	if lang == "" {
		lang = s.lang
	}
	doc := engine.Document{
		GUID:        resolved,
		Lang:        lang,
		Hostname:    hostname,
		URL:         fields.URL,
		Date:        fields.Date,
		Path:        path,
		Mime:        fields.Mime,
		Title:       fields.Title,
		Keywords:    NormalizeKeywords(fields.Keywords),
		Description: fields.Description,
		Body:        fields.Body,
	}

	s.mu.Lock()
	err = s.engine.Add(engine.DefaultDB, doc)
	s.mu.Unlock()
	if err != nil {
		s.logger.Error("coordinator: index failed, record kept",
			slog.String("guid", resolved), slog.String("error", err.Error()))
		return "", fmt.Errorf("coordinator: add %s: %w", resolved, err)
	}
	return resolved, nil
}

// mergeHidden overlays hidden fields on rec. Keys naming a record column
// replace that column and only the rest stay in rec.Hidden. Hidden fields
// are stored but never indexed.
func mergeHidden(rec *models.ContentRecord, hidden map[string]any) {
	rest := make(map[string]any, len(hidden))
	for k, v := range hidden {
		var ok bool
		switch k {
		case "pinned":
			rec.Pinned, ok = v.(bool)
		case "mime":
			rec.Mime, ok = stringField(v, rec.Mime)
		case "url":
			rec.URL, ok = stringField(v, rec.URL)
		case "hostname":
			rec.Hostname, ok = stringField(v, rec.Hostname)
		case "title":
			rec.Title, ok = stringField(v, rec.Title)
		case "body":
			rec.Body, ok = stringField(v, rec.Body)
		}
		if !ok {
			rest[k] = v
		}
	}
	if len(rest) > 0 {
		rec.Hidden = rest
	}
}

func stringField(v any, cur string) (string, bool) {
	if s, ok := v.(string); ok {
		return s, true
	}
	return cur, false
}

var keywordSep = regexp.MustCompile(`\s*,\s*`)

// NormalizeKeywords collapses the whitespace around commas.
func NormalizeKeywords(s string) string {
	return strings.Join(keywordSep.Split(s, -1), ",")
}

// Commit flushes database db to durable storage.
func (s *Service) Commit(_ context.Context, db int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.Commit(db); err != nil {
		return fmt.Errorf("coordinator: commit: %w", err)
	}
	return nil
}

// Search runs params against the engine and resolves every hit to its
// guid and relevance.
func (s *Service) Search(_ context.Context, params models.SearchParams) (*models.SearchResult, error) {
	q := engine.Query{
		Lang:            params.Lang,
		Text:            params.Query,
		Start:           params.Start,
		Length:          params.Length,
		Partial:         boolOr(params.Partial, true),
		SpellCorrection: params.SpellCorrection,
		Synonym:         params.Synonym,
		Descending:      boolOr(params.Descending, true),
	}
	if q.Lang == "" {
		q.Lang = s.lang
	}
	if q.Start < 0 {
		q.Start = DefaultStart
	}
	if q.Length <= 0 {
		q.Length = DefaultLength
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.engine.Query(params.DB, q)
	if err != nil {
		return nil, fmt.Errorf("coordinator: search: %w", err)
	}
	out := &models.SearchResult{Size: res.Size, Estimated: res.Estimated, Hits: make([]models.SearchHit, 0, res.Size)}
	for i := 0; i < res.Size; i++ {
		guid, err := s.engine.Key(i)
		if err != nil {
			return nil, fmt.Errorf("coordinator: search: hit %d: %w", i, err)
		}
		pct, err := s.engine.Percent(i)
		if err != nil {
			return nil, fmt.Errorf("coordinator: search: hit %d: %w", i, err)
		}
		out.Hits = append(out.Hits, models.SearchHit{Index: i, GUID: guid, Percent: pct})
	}
	return out, nil
}

// Body returns the content record stored under guid.
func (s *Service) Body(ctx context.Context, guid string) (*models.ContentRecord, error) {
	rec, err := s.store.Get(ctx, guid)
	if err != nil {
		return nil, fmt.Errorf("coordinator: body: %w", err)
	}
	return rec, nil
}

// BodyAt returns the content record of the index-th hit of the last search.
func (s *Service) BodyAt(ctx context.Context, index int) (*models.ContentRecord, error) {
	s.mu.Lock()
	guid, err := s.engine.Key(index)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("coordinator: body: %w", err)
	}
	return s.Body(ctx, guid)
}

// SnippetRequest selects the text to snippet: Content when set, otherwise
// the stored body of the Index-th hit of the last search.
type SnippetRequest struct {
	Index   int    `json:"index"`
	Content string `json:"content,omitempty"`
	Lang    string `json:"lang,omitempty"`
	Omit    string `json:"omit,omitempty"`
	Size    int    `json:"size,omitempty"`
}

// Snippet returns a highlighted excerpt for req.
func (s *Service) Snippet(ctx context.Context, req SnippetRequest) (string, error) {
	if req.Lang == "" {
		req.Lang = s.lang
	}
	if req.Size <= 0 {
		req.Size = engine.DefaultSnippetSize
	}
	content := req.Content
	if content == "" {
		rec, err := s.BodyAt(ctx, req.Index)
		if err != nil {
			return "", fmt.Errorf("coordinator: snippet: %w", err)
		}
		if rec.Body == "" {
			return "", fmt.Errorf("coordinator: snippet %s: %w: body not stored", rec.GUID, apperr.ErrNotFound)
		}
		content = rec.Body
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Snippet(req.Lang, content, req.Size, req.Omit), nil
}

// Remove deletes the search document for guid from database db. The
// content record stays in the object store.
func (s *Service) Remove(_ context.Context, guid string, db int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.Clean(db, guid); err != nil {
		return fmt.Errorf("coordinator: remove %s: %w", guid, err)
	}
	return nil
}

// Recent lists stored records newest first.
func (s *Service) Recent(ctx context.Context, limit int, pinnedOnly bool) ([]models.ContentRecord, error) {
	return s.store.Recent(ctx, limit, pinnedOnly)
}

// Count returns the number of stored records.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

// Pin flags or unflags the record stored under guid.
func (s *Service) Pin(ctx context.Context, guid string, pinned bool) error {
	return s.store.SetPinned(ctx, guid, pinned)
}

// Purge empties the search databases and the object store.
func (s *Service) Purge(ctx context.Context) error {
	s.mu.Lock()
	engErr := s.engine.Purge()
	s.mu.Unlock()
	if engErr != nil {
		return fmt.Errorf("coordinator: purge: %w", engErr)
	}
	if err := s.store.Purge(ctx); err != nil {
		return fmt.Errorf("coordinator: purge: %w", err)
	}
	s.logger.Info("coordinator: purged")
	return nil
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
