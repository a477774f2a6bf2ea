// Package memory is an in-process RecordStore for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/gosuda/careline/internal/domain"
)

type Store struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

func New() *Store {
	return &Store{data: make(map[string]map[string][]byte)}
}

func (s *Store) Get(_ context.Context, store, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[store][key]
	if !ok {
		return nil, fmt.Errorf("memory.Store.Get %s/%s: %w", store, key, domain.ErrNotFound)
	}
	return slices.Clone(rec), nil
}

func (s *Store) Put(_ context.Context, store, key string, record []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.data[store]
	if !ok {
		bucket = make(map[string][]byte)
		s.data[store] = bucket
	}
	bucket[key] = slices.Clone(record)
	return nil
}

// GetAll returns every record of store ordered by key.
func (s *Store) GetAll(_ context.Context, store string) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket := s.data[store]
	keys := make([]string, 0, len(bucket))
	for k := range bucket {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([][]byte, 0, len(keys))
	for _, k := range keys {
		out = append(out, slices.Clone(bucket[k]))
	}
	return out, nil
}

func (s *Store) Delete(_ context.Context, store, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[store][key]; !ok {
		return fmt.Errorf("memory.Store.Delete %s/%s: %w", store, key, domain.ErrNotFound)
	}
	delete(s.data[store], key)
	return nil
}
