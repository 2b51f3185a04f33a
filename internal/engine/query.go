package engine

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/starford/tabdex/internal/apperr"
)

// Query describes one search against a database.
type Query struct {
	Lang            string
	Text            string
	Start           int
	Length          int
	Partial         bool
	SpellCorrection bool
	// Synonym is accepted for compatibility; no thesaurus is configured.
	Synonym    bool
	Descending bool
}

// Result is the size of the returned page and the estimated total matches.
type Result struct {
	Size      int
	Estimated int
}

// Query runs q against database db and remembers the hits for Key,
// Percent and Snippet. Buffered writes are applied first so a writer
// always sees its own documents.
func (e *Engine) Query(db int, q Query) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, err := e.get(db)
	if err != nil {
		return Result{}, err
	}
	if err := d.flush(); err != nil {
		return Result{}, fmt.Errorf("engine: query: %w: %w", apperr.ErrEngine, err)
	}

	e.lastQuery = q
	e.lastHits = nil
	e.lastMax = 0

	text := strings.TrimSpace(q.Text)
	if text == "" {
		return Result{}, nil
	}
	if q.Start < 0 || q.Length < 0 {
		return Result{}, fmt.Errorf("engine: query: %w: negative window", apperr.ErrEngine)
	}

	req := bleve.NewSearchRequestOptions(buildQuery(q, text), q.Length, q.Start, false)
	if !q.Descending {
		req.SortBy([]string{"_score"})
	}

	res, err := d.index.Search(req)
	if err != nil {
		return Result{}, fmt.Errorf("engine: query: %w: %w", apperr.ErrEngine, err)
	}

	e.lastHits = res.Hits
	e.lastMax = res.MaxScore
	return Result{Size: len(res.Hits), Estimated: int(res.Total)}, nil
}

func buildQuery(q Query, text string) query.Query {
	analyzer := analyzerFor(q.Lang)

	match := bleve.NewMatchQuery(text)
	match.Analyzer = analyzer
	if q.SpellCorrection {
		match.SetFuzziness(1)
	}
	if !q.Partial {
		return match
	}

	// Partial matching treats the final word as a prefix still being typed.
	fields := strings.Fields(text)
	last := strings.ToLower(strings.TrimFunc(fields[len(fields)-1], notWordRune))
	if last == "" {
		return match
	}
	return bleve.NewDisjunctionQuery(match, bleve.NewPrefixQuery(last))
}

// Key returns the guid of the i-th hit of the last query.
func (e *Engine) Key(i int) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= len(e.lastHits) {
		return "", fmt.Errorf("engine: key %d: %w", i, apperr.ErrNotFound)
	}
	return e.lastHits[i].ID, nil
}

// Percent returns the relevance of the i-th hit of the last query scaled
// against the best hit, from 0 to 100.
func (e *Engine) Percent(i int) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i < 0 || i >= len(e.lastHits) {
		return 0, fmt.Errorf("engine: percent %d: %w", i, apperr.ErrNotFound)
	}
	if e.lastMax <= 0 {
		return 0, nil
	}
	return int(math.Round(e.lastHits[i].Score / e.lastMax * 100)), nil
}

func notWordRune(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
