package engine

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// Document is a search document correlated 1:1 with a content record by GUID.
type Document struct {
	GUID        string
	Lang        string
	Hostname    string
	URL         string
	Date        string
	Path        string
	Mime        string
	Title       string
	Keywords    string
	Description string
	Body        string
}

// indexedDoc is the shape handed to bleve.
type indexedDoc struct {
	analyzer    string `json:"-"`
	Lang        string `json:"lang"`
	Hostname    string `json:"hostname"`
	URL         string `json:"url"`
	Date        string `json:"date"`
	Path        string `json:"path"`
	Mime        string `json:"mime"`
	Title       string `json:"title"`
	Keywords    string `json:"keywords"`
	Description string `json:"description"`
	Body        string `json:"body"`
}

// BleveType routes the document to the mapping for its language analyzer.
func (d indexedDoc) BleveType() string {
	return d.analyzer
}

func newIndexedDoc(doc Document) indexedDoc {
	return indexedDoc{
		analyzer:    analyzerFor(doc.Lang),
		Lang:        doc.Lang,
		Hostname:    doc.Hostname,
		URL:         doc.URL,
		Date:        doc.Date,
		Path:        doc.Path,
		Mime:        doc.Mime,
		Title:       doc.Title,
		Keywords:    doc.Keywords,
		Description: doc.Description,
		Body:        doc.Body,
	}
}

// keywordFields are matched verbatim rather than stemmed.
var keywordFields = []string{"lang", "hostname", "url", "date", "path", "mime"}

// newIndexMapping builds one document mapping per language analyzer. Text
// fields use the language analyzer; metadata fields are keywords.
func newIndexMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name

	for _, analyzer := range analyzerNames() {
		dm := bleve.NewDocumentMapping()
		dm.DefaultAnalyzer = analyzer
		for _, f := range keywordFields {
			fm := bleve.NewTextFieldMapping()
			fm.Analyzer = keyword.Name
			dm.AddFieldMappingsAt(f, fm)
		}
		im.AddDocumentMapping(analyzer, dm)
	}
	return im
}
