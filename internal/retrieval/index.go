// Package retrieval holds the chunk index and similarity-ranked retrieval.
package retrieval

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/fyrsmithlabs/ragd/internal/chunker"
)

// ErrNilContext is returned when a nil context is passed to Retrieve.
var ErrNilContext = errors.New("context cannot be nil")

// Index stores chunks keyed by document and serves similarity-ranked
// retrieval against an immutable snapshot.
//
// Readers never observe a partially applied mutation: every write builds a
// fresh chunk slice and swaps it in one commit, so an in-flight retrieval
// keeps ranking against the snapshot it started with even while a reindex
// replaces the corpus.
//
// All mutations serialize on writeMu, including the full read-to-commit
// window of a Rebuild. A document removal issued during a rebuild therefore
// applies after the rebuilt snapshot commits and cannot be resurrected by it.
type Index struct {
	scorer Scorer

	writeMu sync.Mutex // serializes mutations; readers never take it

	mu       sync.RWMutex
	snapshot []chunker.Chunk // immutable once published
}

// NewIndex creates an empty index using the given scorer.
func NewIndex(scorer Scorer) (*Index, error) {
	if scorer == nil {
		return nil, errors.New("scorer is required")
	}
	return &Index{scorer: scorer}, nil
}

// UpsertDocument replaces the chunks for one document. The document's old
// chunks and new chunks are never visible together.
func (idx *Index) UpsertDocument(documentID string, chunks []chunker.Chunk) {
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	next := make([]chunker.Chunk, 0, len(idx.snapshot)+len(chunks))
	for _, c := range idx.snapshot {
		if c.DocumentID != documentID {
			next = append(next, c)
		}
	}
	next = append(next, chunks...)
	idx.publish(next)
}

// RemoveDocument drops all chunks belonging to a document.
func (idx *Index) RemoveDocument(documentID string) {
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	next := make([]chunker.Chunk, 0, len(idx.snapshot))
	for _, c := range idx.snapshot {
		if c.DocumentID != documentID {
			next = append(next, c)
		}
	}
	idx.publish(next)
}

// Rebuild replaces the entire index contents in one commit. The build
// callback runs inside the write critical section: no upsert or removal can
// interleave between reading the corpus and committing its chunks, so a
// rebuild never re-commits chunks of a document removed after the corpus
// was read. Returning false abandons the rebuild and keeps the current
// snapshot.
func (idx *Index) Rebuild(build func() ([]chunker.Chunk, bool)) {
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()

	chunks, ok := build()
	if !ok {
		return
	}
	next := make([]chunker.Chunk, len(chunks))
	copy(next, chunks)
	idx.publish(next)
}

// publish swaps the snapshot. Callers must hold writeMu; snapshot reads
// under writeMu are safe because every swap happens under it too.
func (idx *Index) publish(next []chunker.Chunk) {
	idx.mu.Lock()
	idx.snapshot = next
	idx.mu.Unlock()
}

// Len returns the number of indexed chunks.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.snapshot)
}

// Retrieve returns up to topK chunks scoring at least threshold against the
// query, ranked by descending similarity with insertion-order tie breaks.
// An empty result means no grounding is available; it is not an error.
func (idx *Index) Retrieve(ctx context.Context, query string, topK int, threshold float64) ([]chunker.Chunk, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	idx.mu.RLock()
	snapshot := idx.snapshot
	idx.mu.RUnlock()

	// Score against the snapshot outside the lock; writers publish new
	// slices rather than mutating this one.
	scored := make([]chunker.Chunk, 0, len(snapshot))
	for _, c := range snapshot {
		sim := idx.scorer.Score(query, c.Content)
		if sim < threshold {
			continue
		}
		c.Metadata.Similarity = sim
		scored = append(scored, c)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Metadata.Similarity > scored[j].Metadata.Similarity
	})

	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}
