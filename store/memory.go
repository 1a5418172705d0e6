package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type docRecord struct {
	doc     Document
	changes []ChangeRecord // append order, oldest first
}

// MemoryStore is an in-memory implementation of DocumentStore and
// ChangeLog. The mutex makes every Create/Update a single atomic unit.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*docRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*docRecord)}
}

func (s *MemoryStore) Create(_ context.Context, doc Document, rec ChangeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[doc.ID]; exists {
		return fmt.Errorf("document %q already exists", doc.ID)
	}
	s.docs[doc.ID] = &docRecord{
		doc:     doc,
		changes: []ChangeRecord{rec},
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	doc := rec.doc
	return &doc, nil
}

func (s *MemoryStore) List(_ context.Context) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Document, 0, len(s.docs))
	for _, rec := range s.docs {
		result = append(result, rec.doc)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

func (s *MemoryStore) Update(_ context.Context, id, title, content string, expectedVersion int, modifiedBy string, rec ChangeRecord) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dr, ok := s.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if dr.doc.Version != expectedVersion {
		return nil, &VersionMismatchError{Expected: expectedVersion, Current: dr.doc.Version}
	}

	dr.doc.Title = title
	dr.doc.Content = content
	dr.doc.Version++
	dr.doc.LastModifiedBy = modifiedBy
	dr.doc.UpdatedAt = time.Now()
	dr.changes = append(dr.changes, rec)

	doc := dr.doc
	return &doc, nil
}

func (s *MemoryStore) Changes(_ context.Context, docID string, limit, offset int) ([]ChangeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dr, ok := s.docs[docID]
	if !ok {
		return nil, ErrNotFound
	}

	// Newest first.
	n := len(dr.changes)
	if offset >= n {
		return nil, nil
	}
	end := n - offset
	start := 0
	if limit > 0 && end-limit > 0 {
		start = end - limit
	}
	out := make([]ChangeRecord, 0, end-start)
	for i := end - 1; i >= start; i-- {
		out = append(out, dr.changes[i])
	}
	return out, nil
}

// PutSnapshot unconditionally overwrites a document snapshot. It exists for
// CachedStore flushes, where the cache has already won the version race.
func (s *MemoryStore) PutSnapshot(_ context.Context, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dr, ok := s.docs[doc.ID]; ok {
		dr.doc = doc
		return nil
	}
	s.docs[doc.ID] = &docRecord{doc: doc}
	return nil
}

// PutChange appends a change record without touching the snapshot, for
// CachedStore flushes.
func (s *MemoryStore) PutChange(_ context.Context, docID string, rec ChangeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dr, ok := s.docs[docID]
	if !ok {
		return ErrNotFound
	}
	dr.changes = append(dr.changes, rec)
	return nil
}
