// Package shared holds the process-wide key/value context scenarios use to
// hand data to each other.
package shared

import (
	"sort"
	"sync"
)

type absent struct{}

func (absent) String() string { return "<absent>" }

// Absent is returned by Get for keys that were never written.
var Absent any = absent{}

// IsAbsent reports whether v is the Absent sentinel. Use it instead of ==,
// which panics when v holds an uncomparable value such as a map.
func IsAbsent(v any) bool {
	_, ok := v.(absent)
	return ok
}

// Store is a last-write-wins key/value map. The mutex only keeps the map
// itself consistent; sequences of Get and Put are not atomic unless run
// through Update or WithKey.
type Store struct {
	mu    sync.RWMutex
	items map[string]any

	keyMu   sync.Mutex
	keyLock map[string]*sync.Mutex
}

func NewStore() *Store {
	return &Store{
		items:   make(map[string]any),
		keyLock: make(map[string]*sync.Mutex),
	}
}

// Put stores value under key, replacing any previous value.
func (s *Store) Put(key string, value any) {
	s.mu.Lock()
	s.items[key] = value
	s.mu.Unlock()
}

// Get returns the value for key, or Absent.
func (s *Store) Get(key string) any {
	v, ok := s.Lookup(key)
	if !ok {
		return Absent
	}
	return v
}

func (s *Store) Lookup(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok
}

func (s *Store) Delete(key string) {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

// All returns a snapshot copy of every entry.
func (s *Store) All() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.items))
	for k, v := range s.items {
		out[k] = v
	}
	return out
}

// Keys returns the stored keys sorted.
func (s *Store) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Reset drops every entry.
func (s *Store) Reset() {
	s.mu.Lock()
	s.items = make(map[string]any)
	s.mu.Unlock()
}

// Update applies fn to the current value of key and stores the result.
// Concurrent Update calls on the same key are serialized. fn receives
// Absent when the key is missing; returning Absent deletes the key.
func (s *Store) Update(key string, fn func(current any) any) any {
	var next any
	s.WithKey(key, func() {
		next = fn(s.Get(key))
		if IsAbsent(next) {
			s.Delete(key)
			return
		}
		s.Put(key, next)
	})
	return next
}

// WithKey runs fn while holding the per-key lock for key. fn may call any
// Store method but must not call WithKey or Update for the same key.
func (s *Store) WithKey(key string, fn func()) {
	l := s.lockFor(key)
	l.Lock()
	defer l.Unlock()
	fn()
}

func (s *Store) lockFor(key string) *sync.Mutex {
	s.keyMu.Lock()
	defer s.keyMu.Unlock()
	l, ok := s.keyLock[key]
	if !ok {
		l = &sync.Mutex{}
		s.keyLock[key] = l
	}
	return l
}
