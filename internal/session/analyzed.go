package session

import (
	"sort"
	"sync"
)

// AnalyzedSet records which revisions of one repository were already
// integrated. Keys are revisions in their formatted text form.
type AnalyzedSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewAnalyzedSet creates an empty set, optionally seeded with keys
func NewAnalyzedSet(keys ...string) *AnalyzedSet {
	s := &AnalyzedSet{seen: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		s.seen[k] = struct{}{}
	}
	return s
}

// Add marks key as analyzed and reports whether it was new
func (s *AnalyzedSet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Contains reports whether key was analyzed
func (s *AnalyzedSet) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[key]
	return ok
}

// Len returns the number of analyzed revisions
func (s *AnalyzedSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}

// Keys returns the analyzed revisions, sorted
func (s *AnalyzedSet) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.seen))
	for k := range s.seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
