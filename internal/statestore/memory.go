package statestore

import (
	"context"
	"sort"
	"strings"
	"sync"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore implements Store on an in-process map. It backs local runs
// without Redis and doubles as the test store.
type MemoryStore struct {
	mu     sync.RWMutex
	leaves map[string]string
	meta   map[string]map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		leaves: make(map[string]string),
		meta:   make(map[string]map[string]string),
	}
}

func (s *MemoryStore) EnsureLeaf(_ context.Context, path string, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.leaves[path]; !ok {
		s.leaves[path] = ""
	}
	if len(metadata) > 0 {
		m := s.meta[path]
		if m == nil {
			m = make(map[string]string, len(metadata))
			s.meta[path] = m
		}
		for k, v := range metadata {
			m[k] = v
		}
	}
	return nil
}

func (s *MemoryStore) WriteLeaf(_ context.Context, path, value string, _ bool) error {
	s.mu.Lock()
	s.leaves[path] = value
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) DeleteSubtree(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k := range s.leaves {
		if k == path || strings.HasPrefix(k, path+Sep) {
			delete(s.leaves, k)
			delete(s.meta, k)
		}
	}
	return nil
}

func (s *MemoryStore) ListSubtrees(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for k := range s.leaves {
		if !strings.HasPrefix(k, prefix+Sep) {
			continue
		}
		rest := strings.TrimPrefix(k, prefix+Sep)
		if i := strings.Index(rest, Sep); i >= 0 {
			rest = rest[:i]
		}
		if rest != "" {
			seen[rest] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

// Leaf returns the value at path and whether the leaf exists.
func (s *MemoryStore) Leaf(path string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.leaves[path]
	return v, ok
}

// Meta returns the metadata recorded for path.
func (s *MemoryStore) Meta(path string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta[path]
}

// Snapshot returns a copy of all leaves, for test assertions.
func (s *MemoryStore) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.leaves))
	for k, v := range s.leaves {
		out[k] = v
	}
	return out
}
