// Package chunker splits documents into overlapping word windows, the unit
// of retrieval.
package chunker

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/ragd/internal/document"
)

// Chunk is a fixed-size, overlapping slice of a document's text.
type Chunk struct {
	// ID is derived from the document id and chunk index and is stable
	// across runs: <documentID>_chunk_<index>.
	ID string `json:"id"`

	// DocumentID references the owning document.
	DocumentID string `json:"document_id"`

	// Content is the chunk's text slice.
	Content string `json:"content"`

	// Metadata carries provenance for prompts and citations.
	Metadata Metadata `json:"metadata"`
}

// Metadata describes a chunk's origin and, transiently, its retrieval score.
type Metadata struct {
	Title  string `json:"title"`
	Source string `json:"source"`
	URL    string `json:"url,omitempty"`

	// ChunkIndex is the 0-based emission order within the document.
	ChunkIndex int `json:"chunk_index"`

	// Similarity is populated only on retrieval results.
	Similarity float64 `json:"similarity,omitempty"`
}

// Chunker splits documents deterministically using a sliding word window.
//
// Windows start at word offsets 0, W-O, 2(W-O), ... so consecutive chunks
// share exactly O words; the final chunk may be shorter than W. Every word
// of the document lands in at least one chunk.
type Chunker struct {
	windowWords  int
	overlapWords int
}

// New creates a Chunker with the given window size and overlap, both in
// words. Overlap must be smaller than the window.
func New(windowWords, overlapWords int) (*Chunker, error) {
	if windowWords <= 0 {
		return nil, fmt.Errorf("window must be positive, got %d", windowWords)
	}
	if overlapWords < 0 || overlapWords >= windowWords {
		return nil, fmt.Errorf("overlap must be in [0, window), got %d", overlapWords)
	}
	return &Chunker{
		windowWords:  windowWords,
		overlapWords: overlapWords,
	}, nil
}

// Chunk splits a document into ordered chunks. A document shorter than the
// window produces exactly one chunk with index 0.
func (c *Chunker) Chunk(doc document.Document) []Chunk {
	words := strings.Fields(doc.Content)
	if len(words) == 0 {
		return nil
	}

	stride := c.windowWords - c.overlapWords
	chunks := make([]Chunk, 0, len(words)/stride+1)

	for start, index := 0, 0; start < len(words); start, index = start+stride, index+1 {
		end := start + c.windowWords
		if end > len(words) {
			end = len(words)
		}

		chunks = append(chunks, Chunk{
			ID:         fmt.Sprintf("%s_chunk_%d", doc.ID, index),
			DocumentID: doc.ID,
			Content:    strings.Join(words[start:end], " "),
			Metadata: Metadata{
				Title:      doc.Title,
				Source:     doc.Metadata.Source,
				URL:        doc.Metadata.URL,
				ChunkIndex: index,
			},
		})

		// The tail of the document is already fully covered once a
		// window reaches it; emitting further windows would only
		// duplicate overlap words.
		if end == len(words) {
			break
		}
	}

	return chunks
}
