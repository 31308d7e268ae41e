package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/akupila/vcr/cassette"
)

// MemoryStorage keeps cassettes in memory. It is intended for tests.
type MemoryStorage struct {
	mu        sync.RWMutex
	cassettes map[string][]cassette.Interaction
	saves     map[string]int
}

var _ cassette.Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		cassettes: make(map[string][]cassette.Interaction),
		saves:     make(map[string]int),
	}
}

// Load implements cassette.Storage.
func (s *MemoryStorage) Load(ctx context.Context, name string) ([]cassette.Interaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, cassette.NewStorageError("memory", "load", name, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneInteractions(s.cassettes[name]), nil
}

// Save implements cassette.Storage.
func (s *MemoryStorage) Save(ctx context.Context, name string, interactions []cassette.Interaction) error {
	if err := ctx.Err(); err != nil {
		return cassette.NewStorageError("memory", "save", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cassettes[name] = cloneInteractions(interactions)
	s.saves[name]++
	return nil
}

// Saves returns how many times the cassette name was saved.
func (s *MemoryStorage) Saves(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves[name]
}

// List returns the names of all stored cassettes, sorted.
func (s *MemoryStorage) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.cassettes))
	for name := range s.cassettes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func cloneInteractions(in []cassette.Interaction) []cassette.Interaction {
	if in == nil {
		return nil
	}
	out := make([]cassette.Interaction, len(in))
	for i, it := range in {
		out[i] = it.Clone()
	}
	return out
}
