package engine

import (
	"html"
	"strings"
	"unicode/utf8"
)

// DefaultSnippetSize is the snippet length in bytes used when size is 0.
const DefaultSnippetSize = 300

// Highlight markers wrapped around matched terms.
const (
	HighlightStart = "<b>"
	HighlightEnd   = "</b>"
)

type span struct{ start, end int }

// Snippet extracts the window of content that best matches the last
// query, at most size bytes long. Matched words are wrapped in <b>…</b>
// and omit marks text cut from either side. The text is HTML-escaped.
func (e *Engine) Snippet(lang, content string, size int, omit string) string {
	if size <= 0 {
		size = DefaultSnippetSize
	}
	e.mu.Lock()
	q := e.lastQuery
	e.mu.Unlock()

	matches := e.matchSpans(lang, content, q)
	start, end := window(len(content), size, matches)
	start, end = snapRunes(content, start, end)

	var b strings.Builder
	if start > 0 {
		b.WriteString(omit)
	}
	pos := start
	for _, m := range matches {
		if m.start < start || m.end > end {
			continue
		}
		b.WriteString(html.EscapeString(content[pos:m.start]))
		b.WriteString(HighlightStart)
		b.WriteString(html.EscapeString(content[m.start:m.end]))
		b.WriteString(HighlightEnd)
		pos = m.end
	}
	b.WriteString(html.EscapeString(content[pos:end]))
	if end < len(content) {
		b.WriteString(omit)
	}
	return b.String()
}

// matchSpans returns byte ranges of content whose analyzed terms match the
// analyzed query, in order and without overlaps.
func (e *Engine) matchSpans(lang, content string, q Query) []span {
	text := strings.TrimSpace(q.Text)
	if text == "" || content == "" {
		return nil
	}
	analyzer := e.mapping.AnalyzerNamed(analyzerFor(lang))
	if analyzer == nil {
		return nil
	}

	terms := make(map[string]struct{})
	for _, tok := range analyzer.Analyze([]byte(text)) {
		terms[string(tok.Term)] = struct{}{}
	}
	var prefix string
	if q.Partial {
		fields := strings.Fields(text)
		prefix = strings.ToLower(strings.TrimFunc(fields[len(fields)-1], notWordRune))
	}

	var out []span
	prevEnd := 0
	for _, tok := range analyzer.Analyze([]byte(content)) {
		if tok.Start < prevEnd || tok.End > len(content) {
			continue
		}
		_, hit := terms[string(tok.Term)]
		if !hit && prefix != "" {
			hit = strings.HasPrefix(strings.ToLower(content[tok.Start:tok.End]), prefix)
		}
		if hit {
			out = append(out, span{tok.Start, tok.End})
			prevEnd = tok.End
		}
	}
	return out
}

// window picks the size-byte range of an n-byte text containing the most
// matches, starting slightly before the first match it covers.
func window(n, size int, matches []span) (int, int) {
	if n <= size {
		return 0, n
	}
	if len(matches) == 0 {
		return 0, size
	}
	lead := size / 8
	bestStart, bestCount := 0, -1
	for _, m := range matches {
		ws := max(m.start-lead, 0)
		we := ws + size
		if we > n {
			we = n
			ws = n - size
		}
		count := 0
		for _, o := range matches {
			if o.start >= ws && o.end <= we {
				count++
			}
		}
		if count > bestCount {
			bestStart, bestCount = ws, count
		}
	}
	return bestStart, bestStart + size
}

// snapRunes moves the window edges inward so no UTF-8 sequence is split.
func snapRunes(s string, start, end int) (int, int) {
	for start < end && start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	for end > start && end < len(s) && !utf8.RuneStart(s[end]) {
		end--
	}
	return start, end
}
