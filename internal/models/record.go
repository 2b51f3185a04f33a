package models

import "time"

// ContentRecord is a raw captured page stored in the object store.
// Hidden carries caller-supplied fields that are stored but never indexed.
type ContentRecord struct {
	GUID      string         `json:"guid"`
	Mime      string         `json:"mime"`
	URL       string         `json:"url"`
	Hostname  string         `json:"hostname"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Pinned    bool           `json:"pinned"`
	Timestamp time.Time      `json:"timestamp"`
	Hidden    map[string]any `json:"hidden,omitempty"`
}

// PageFields are the indexable fields a caller pushes for one page.
type PageFields struct {
	Mime        string `json:"mime"`
	Keywords    string `json:"keywords"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Lang        string `json:"lang"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Body        string `json:"body"`
}

// SearchParams are the caller-facing search options.
type SearchParams struct {
	Query           string `json:"query"`
	Start           int    `json:"start"`
	Length          int    `json:"length"`
	Lang            string `json:"lang"`
	Partial         *bool  `json:"partial,omitempty"`
	SpellCorrection bool   `json:"spell_correction"`
	Synonym         bool   `json:"synonym"`
	Descending      *bool  `json:"descending,omitempty"`
	DB              int    `json:"db"`
}

// SearchHit is one ranked match.
type SearchHit struct {
	Index   int    `json:"index"`
	GUID    string `json:"guid"`
	Percent int    `json:"percent"`
}

// SearchResult is the outcome of a search.
type SearchResult struct {
	Size      int         `json:"size"`
	Estimated int         `json:"estimated"`
	Hits      []SearchHit `json:"hits"`
}
