package recordstore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// MemoryStore keeps rows in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]Row
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string]Row)}
}

func (s *MemoryStore) Upsert(_ context.Context, collection string, rows []Row) (int, error) {
	field, err := KeyField(collection)
	if err != nil {
		return 0, err
	}
	keys := make([]string, len(rows))
	for i, row := range rows {
		if keys[i], err = keyOf(row, field); err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := s.data[collection]
	if bucket == nil {
		bucket = make(map[string]Row)
		s.data[collection] = bucket
	}
	for i, row := range rows {
		merged := maps.Clone(bucket[keys[i]])
		if merged == nil {
			merged = Row{DeletedColumn: false}
		}
		maps.Copy(merged, row)
		bucket[keys[i]] = merged
	}
	return len(rows), nil
}

func (s *MemoryStore) SoftDelete(_ context.Context, collection, key string) error {
	if _, err := KeyField(collection); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.data[collection][key]
	if !ok {
		return fmt.Errorf("%w: %s %s", ErrNotFound, collection, key)
	}
	row[DeletedColumn] = true
	return nil
}

func (s *MemoryStore) List(_ context.Context, collection string) ([]Row, error) {
	if _, err := KeyField(collection); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list(collection), nil
}

func (s *MemoryStore) list(collection string) []Row {
	bucket := s.data[collection]
	out := make([]Row, 0, len(bucket))
	for _, k := range slices.Sorted(maps.Keys(bucket)) {
		out = append(out, maps.Clone(bucket[k]))
	}
	return out
}

func (s *MemoryStore) Snapshot(context.Context) (map[string][]Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]Row, len(Collections))
	for _, c := range Collections {
		out[c] = s.list(c)
	}
	return out, nil
}

func (s *MemoryStore) Provision(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
