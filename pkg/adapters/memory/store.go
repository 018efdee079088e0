package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/hybridqa/pkg/domain"
)

// Store implements ports.AnswerStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]domain.RunRecord
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]domain.RunRecord),
	}
}

// Save stores a copy of the record.
func (s *Store) Save(ctx context.Context, runID string, record *domain.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[runID] = record.Clone()
	return nil
}

// Load returns a copy so callers cannot mutate stored records.
func (s *Store) Load(ctx context.Context, runID string) (*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.data[runID]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	ret := record.Clone()
	return &ret, nil
}

func (s *Store) Delete(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, runID)
	return nil
}

// List returns stored run IDs in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]string, 0, len(s.data))
	for id := range s.data {
		runs = append(runs, id)
	}
	sort.Strings(runs)
	return runs, nil
}
