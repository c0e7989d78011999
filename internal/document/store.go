// Package document owns the corpus document records.
package document

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Sentinel errors for document store operations.
var (
	// ErrNotFound is returned when a document id is unknown.
	ErrNotFound = errors.New("document not found")

	// ErrExists is returned when adding a document whose id is already
	// present. Content is immutable; remove and re-add to replace.
	ErrExists = errors.New("document already exists")

	// ErrInvalidDocument indicates a document failed validation.
	ErrInvalidDocument = errors.New("invalid document")
)

// Store holds the corpus documents. It is constructed explicitly and
// injected into the engine; there is no ambient global state.
//
// All methods are safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	docs map[string]Document
}

// NewStore creates an empty document store.
func NewStore() *Store {
	return &Store{
		docs: make(map[string]Document),
	}
}

// Add inserts a document. The id must be unique and the document valid.
func (s *Store) Add(doc Document) error {
	if err := validate(doc); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[doc.ID]; ok {
		return fmt.Errorf("%w: %s", ErrExists, doc.ID)
	}

	doc.Metadata.Tags = dedupeTags(doc.Metadata.Tags)
	s.docs[doc.ID] = doc
	return nil
}

// Remove deletes a document by id.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.docs, id)
	return nil
}

// Get returns a document by id.
func (s *Store) Get(id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return doc, nil
}

// Exists reports whether a document id is present.
func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[id]
	return ok
}

// List returns all documents ordered by id for deterministic iteration.
func (s *Store) List() []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Document, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of documents in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func validate(doc Document) error {
	if doc.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidDocument)
	}
	if doc.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidDocument)
	}
	if doc.Content == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidDocument)
	}
	if !doc.Metadata.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidDocument, doc.Metadata.Type)
	}
	return nil
}

func dedupeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if !seen[tag] {
			seen[tag] = true
			out = append(out, tag)
		}
	}
	return out
}
