package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/XavierBriggs/fortuna/services/live-scoring/pkg/models"
)

// MemoryStore is an in-process Store for replays and tests. Documents are
// kept serialized so callers never share memory with the stored copy.
type MemoryStore struct {
	mu      sync.Mutex
	docs    map[models.InningsKey][]byte
	version map[models.InningsKey]int64

	// writes counts successful Create and Write calls
	writes int64
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:    make(map[models.InningsKey][]byte),
		version: make(map[models.InningsKey]int64),
	}
}

// Create stores the first version of an innings
func (s *MemoryStore) Create(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling innings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[doc.Key]; ok {
		return ErrExists
	}
	s.docs[doc.Key] = data
	s.version[doc.Key] = doc.Version
	s.writes++
	return nil
}

// Read returns the current document for key
func (s *MemoryStore) Read(ctx context.Context, key models.InningsKey) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	s.mu.Lock()
	data, ok := s.docs[key]
	s.mu.Unlock()
	if !ok {
		return Document{}, ErrNotFound
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("unmarshaling innings %s: %w", key, err)
	}
	return doc, nil
}

// Write replaces the document if the stored version still equals expectedVersion
func (s *MemoryStore) Write(ctx context.Context, doc Document, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling innings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.version[doc.Key]
	if !ok {
		return ErrNotFound
	}
	if current != expectedVersion {
		return ErrVersionConflict
	}
	s.docs[doc.Key] = data
	s.version[doc.Key] = doc.Version
	s.writes++
	return nil
}

// ListInnings returns the innings numbers stored for a match
func (s *MemoryStore) ListInnings(ctx context.Context, matchID string) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var innings []int
	for key := range s.docs {
		if key.MatchID == matchID {
			innings = append(innings, key.Inning)
		}
	}
	sort.Ints(innings)
	return innings, nil
}

// Ping always succeeds
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Writes returns the number of successful writes
func (s *MemoryStore) Writes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
