package mcpserver

// QuerySyntax describes how search_pages interprets its query so LLM
// clients can phrase queries that actually match.
const QuerySyntax = `# Tabdex Query Syntax

Queries run against every page captured from the browser: title, body,
description, keywords and URL.

## Matching

- Words are stemmed in the page language, so ` + "`run`" + ` also finds
  ` + "`running`" + ` and ` + "`runs`" + `.
- With ` + "`partial`" + ` (on by default) the last word is a prefix:
  ` + "`kuber`" + ` finds ` + "`kubernetes`" + `.
- ` + "`spell_correction`" + ` tolerates one or two typos per word.
- Hits are ranked best first. Each hit carries a relevance percentage
  relative to the best hit.

## Paging

- ` + "`start`" + ` skips that many hits, ` + "`length`" + ` bounds the page (default 30).
- The result's ` + "`estimated`" + ` field is the total number of matches.

## Reading hits

- ` + "`read_page`" + ` takes a guid from a hit and returns the stored page.
- ` + "`page_snippet`" + ` takes a hit index of the last search and returns an
  excerpt with matched terms wrapped in ` + "`<b>`" + ` tags.
- Hit indexes refer to the most recent search only; search again before
  asking for snippets of an older result.
`
