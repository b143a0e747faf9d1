package state

import (
	"context"
	"slices"
	"sync"

	"github.com/camarohq/hunter/internal/model"
)

// MemoryStore keeps state in process memory. Values are copied on the way in
// and out so callers cannot mutate stored state.
type MemoryStore struct {
	mu      sync.Mutex
	seen    model.SeenLedger
	catalog model.CatalogDocument
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: model.NewSeenLedger()}
}

// LoadSeen implements Store.
func (s *MemoryStore) LoadSeen(_ context.Context) (model.SeenLedger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen.Union(), nil
}

// SaveSeen implements Store.
func (s *MemoryStore) SaveSeen(_ context.Context, seen model.SeenLedger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = seen.Union()
	return nil
}

// LoadCatalog implements Store.
func (s *MemoryStore) LoadCatalog(_ context.Context) (model.CatalogDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.catalog
	doc.Listings = slices.Clone(doc.Listings)
	return doc, nil
}

// SaveCatalog implements Store.
func (s *MemoryStore) SaveCatalog(_ context.Context, doc model.CatalogDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc.Listings = slices.Clone(doc.Listings)
	s.catalog = doc
	return nil
}

// Commit implements Store.
func (s *MemoryStore) Commit(_ context.Context, doc model.CatalogDocument, seen model.SeenLedger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc.Listings = slices.Clone(doc.Listings)
	s.catalog = doc
	s.seen = seen.Union()
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
