package ratelimit

import (
	"sort"
	"sync"
	"time"
)

// Window is the counter kept for one action key. Length is the window
// duration the counter was recorded under.
type Window struct {
	Start  time.Time
	Count  int
	Length time.Duration
}

// Expired reports whether the window has closed at now.
func (w Window) Expired(now time.Time) bool {
	return now.After(w.Start.Add(w.Length))
}

// UpdateFunc receives the current window for a key (ok is false when none is
// stored) and returns the next window and whether to save it.
type UpdateFunc func(current Window, ok bool) (next Window, save bool)

// Store holds windows by action key. Implementations must be safe for
// concurrent use and must run Update atomically per store, which is what lets
// several limiters share one store without exceeding a limit.
type Store interface {
	Load(key string) (Window, bool)
	Save(key string, window Window)
	Update(key string, fn UpdateFunc)
	Delete(key string)
	Prune(now time.Time) int
	Reset()
}

// MemoryStore keeps windows in a map for the lifetime of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	windows map[string]Window
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]Window)}
}

// Ensure the implementation satisfies the interface.
var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Load(key string) (Window, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	window, ok := s.windows[key]
	return window, ok
}

func (s *MemoryStore) Save(key string, window Window) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.windows[key] = window
}

func (s *MemoryStore) Update(key string, fn UpdateFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.windows[key]
	if next, save := fn(current, ok); save {
		s.windows[key] = next
	}
}

func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.windows, key)
}

func (s *MemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.windows = make(map[string]Window)
}

// Keys returns the tracked action keys in sorted order.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.windows))
	for key := range s.windows {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Prune drops windows that have expired at now and returns how many were
// removed.
func (s *MemoryStore) Prune(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, window := range s.windows {
		if window.Expired(now) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}
