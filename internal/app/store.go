package app

import (
	"maps"
	"sync"

	"github.com/rs/zerolog/log"
)

// Store is a threadsafe keyed arena: one owned resource per key.
// It never closes the resources it holds; owners do that on Remove.
type Store[K comparable, V any] struct {
	module string
	mu     sync.RWMutex
	items  map[K]V
}

func NewStore[K comparable, V any](module string) *Store[K, V] {
	return &Store[K, V]{
		module: module,
		items:  make(map[K]V),
	}
}

// Insert adds v under k unless k is already occupied.
func (s *Store[K, V]) Insert(k K, v V) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[k]; ok {
		log.Debug().Str("module", s.module).Any("key", k).Msg("insert refused, key occupied")
		return false
	}
	s.items[k] = v
	return true
}

// Replace stores v under k and hands back whatever was there before.
func (s *Store[K, V]) Replace(k K, v V) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.items[k]
	s.items[k] = v
	return old, ok
}

func (s *Store[K, V]) Get(k K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[k]
	return v, ok
}

func (s *Store[K, V]) Remove(k K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[k]
	if ok {
		delete(s.items, k)
	}
	return v, ok
}

// RemoveIf deletes k only while it still maps to a value accepted by match.
func (s *Store[K, V]) RemoveIf(k K, match func(V) bool) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[k]
	if !ok || !match(v) {
		var zero V
		return zero, false
	}
	delete(s.items, k)
	return v, true
}

// RemoveWhere deletes every entry accepted by match and returns them.
func (s *Store[K, V]) RemoveWhere(match func(K, V) bool) map[K]V {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[K]V)
	for k, v := range s.items {
		if match(k, v) {
			out[k] = v
			delete(s.items, k)
		}
	}
	return out
}

// Drain empties the store.
func (s *Store[K, V]) Drain() map[K]V {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.items
	s.items = make(map[K]V)
	return out
}

func (s *Store[K, V]) Snapshot() map[K]V {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[K]V, len(s.items))
	maps.Copy(out, s.items)
	return out
}
