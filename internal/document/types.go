package document

import "time"

// Type classifies a document within the corpus.
type Type string

const (
	TypeDocumentation Type = "documentation"
	TypeCode          Type = "code"
	TypeTutorial      Type = "tutorial"
	TypeAPIRef        Type = "api-ref"
)

// Valid reports whether t is a known document type.
func (t Type) Valid() bool {
	switch t {
	case TypeDocumentation, TypeCode, TypeTutorial, TypeAPIRef:
		return true
	}
	return false
}

// Metadata describes a document's provenance.
type Metadata struct {
	// Source identifies where the document came from (e.g. a docs site).
	Source string `json:"source"`

	// Type classifies the document.
	Type Type `json:"type"`

	// Tags are free-form labels. Duplicates are dropped on add.
	Tags []string `json:"tags,omitempty"`

	// LastUpdated is when the upstream content last changed. Drives the
	// stale document rate during reindexing.
	LastUpdated time.Time `json:"last_updated"`

	// URL is an optional canonical link, carried into citations.
	URL string `json:"url,omitempty"`
}

// Document is a unit of corpus content. Content is immutable once added;
// replacing a document means removing and re-adding it.
type Document struct {
	// ID is the unique document identifier.
	ID string `json:"id"`

	// Title is the human-readable document title.
	Title string `json:"title"`

	// Content is the full document text.
	Content string `json:"content"`

	// Metadata describes the document's provenance.
	Metadata Metadata `json:"metadata"`

	// Embedding is an optional precomputed vector. Unused by the lexical
	// scorer but preserved for embedding-based scorers.
	Embedding []float64 `json:"embedding,omitempty"`
}
