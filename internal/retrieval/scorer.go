package retrieval

import "strings"

// Scorer computes a similarity score in [0,1] between a query and chunk
// content. Implementations must be safe for concurrent use.
//
// The retrieval orchestration only depends on this interface, so the
// lexical reference scorer can be swapped for embedding-based cosine
// similarity without touching the index.
type Scorer interface {
	Score(query, content string) float64
}

// LexicalScorer scores by Jaccard overlap of lowercase token sets:
// |intersection| / |union|. Identical token sets score 1.0, disjoint
// vocabularies score 0.0.
type LexicalScorer struct{}

// NewLexicalScorer creates the reference lexical scorer.
func NewLexicalScorer() *LexicalScorer {
	return &LexicalScorer{}
}

// Score implements Scorer.
func (s *LexicalScorer) Score(query, content string) float64 {
	querySet := tokenSet(query)
	contentSet := tokenSet(content)

	if len(querySet) == 0 && len(contentSet) == 0 {
		return 0
	}

	intersection := 0
	for token := range querySet {
		if contentSet[token] {
			intersection++
		}
	}
	union := len(querySet) + len(contentSet) - intersection

	return float64(intersection) / float64(union)
}

func tokenSet(text string) map[string]bool {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}
