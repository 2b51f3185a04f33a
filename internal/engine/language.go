package engine

import (
	"strings"

	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/lang/de"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/lang/es"
	"github.com/blevesearch/bleve/v2/analysis/lang/fr"
	"github.com/blevesearch/bleve/v2/analysis/lang/it"
	"github.com/blevesearch/bleve/v2/analysis/lang/pt"

	_ "github.com/blevesearch/bleve/v2/analysis/lang/ar"
	_ "github.com/blevesearch/bleve/v2/analysis/lang/ru"
)

// DefaultLanguage is the stemmer used when a caller does not name one.
const DefaultLanguage = "english"

// isoLanguages maps ISO 639-1 codes to stemmer names.
var isoLanguages = map[string]string{
	"ar": "arabic",
	"fa": "arabic",
	"hy": "armenian",
	"eu": "basque",
	"ca": "catalan",
	"da": "danish",
	"nl": "dutch",
	"en": "english",
	"fi": "finnish",
	"fr": "french",
	"de": "german",
	"hu": "hungarian",
	"id": "indonesian",
	"ga": "irish",
	"it": "italian",
	"lt": "lithuanian",
	"ne": "nepali",
	"no": "norwegian",
	"nn": "norwegian",
	"nb": "norwegian",
	"pt": "portuguese",
	"ro": "romanian",
	"ru": "russian",
	"es": "spanish",
	"sv": "swedish",
	"ta": "tamil",
	"tr": "turkish",
}

// stemmerAnalyzers maps stemmer names to registered bleve analyzers.
// Stemmers without a bleve analyzer fall back to the standard analyzer.
var stemmerAnalyzers = map[string]string{
	"english":    en.AnalyzerName,
	"french":     fr.AnalyzerName,
	"german":     de.AnalyzerName,
	"spanish":    es.AnalyzerName,
	"italian":    it.AnalyzerName,
	"portuguese": pt.AnalyzerName,
	"russian":    "ru",
	"arabic":     "ar",
}

// Language maps a locale such as "pt-BR" to a stemmer name, defaulting to english.
func Language(code string) string {
	code, _, _ = strings.Cut(strings.ToLower(code), "-")
	if name, ok := isoLanguages[code]; ok {
		return name
	}
	return DefaultLanguage
}

// analyzerFor returns the bleve analyzer for a stemmer name.
func analyzerFor(lang string) string {
	if lang == "" {
		lang = DefaultLanguage
	}
	if a, ok := stemmerAnalyzers[strings.ToLower(lang)]; ok {
		return a
	}
	return standard.Name
}

// analyzerNames lists every analyzer a document can be typed with.
func analyzerNames() []string {
	names := []string{standard.Name}
	for _, a := range stemmerAnalyzers {
		names = append(names, a)
	}
	return names
}

// KnownLanguage reports whether name is a stemmer name Language can return.
func KnownLanguage(name string) bool {
	for _, l := range isoLanguages {
		if l == strings.ToLower(name) {
			return true
		}
	}
	return false
}
