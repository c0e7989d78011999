// Package citation derives deduplicated, confidence-scored citations from
// retrieved chunks.
package citation

import "github.com/fyrsmithlabs/ragd/internal/chunker"

// DefaultConfidence is used when a chunk carries no similarity score.
const DefaultConfidence = 0.8

// Citation points a generated answer back at its source material.
type Citation struct {
	Title      string  `json:"title"`
	Source     string  `json:"source"`
	URL        string  `json:"url,omitempty"`
	Confidence float64 `json:"confidence"`
}

// sourceKey is the composite dedup key. A struct key cannot collide the way
// a separator-joined string can when titles contain the separator.
type sourceKey struct {
	title  string
	source string
}

// Extractor builds citation lists from retrieved chunks.
type Extractor struct{}

// NewExtractor creates a citation extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns one citation per unique (title, source) pair, in
// first-appearance order within the retrieved set. Confidence is the
// chunk's similarity when present, DefaultConfidence otherwise.
func (e *Extractor) Extract(chunks []chunker.Chunk) []Citation {
	if len(chunks) == 0 {
		return []Citation{}
	}

	seen := make(map[sourceKey]bool, len(chunks))
	citations := make([]Citation, 0, len(chunks))

	for _, c := range chunks {
		key := sourceKey{title: c.Metadata.Title, source: c.Metadata.Source}
		if seen[key] {
			continue
		}
		seen[key] = true

		confidence := c.Metadata.Similarity
		if confidence == 0 {
			confidence = DefaultConfidence
		}

		citations = append(citations, Citation{
			Title:      c.Metadata.Title,
			Source:     c.Metadata.Source,
			URL:        c.Metadata.URL,
			Confidence: confidence,
		})
	}

	return citations
}
