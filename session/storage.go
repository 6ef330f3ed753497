package session

import "sync"

// Storage is the tab-scoped key/value backend behind a Store. Implementations
// must be safe for use from UI event callbacks and network callbacks; values
// persist for the lifetime of one tab, not across tabs.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// InMemoryStorage is the default Storage: a mutex-guarded map, one instance
// per tab.
type InMemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{values: make(map[string]string)}
}

func (s *InMemoryStorage) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *InMemoryStorage) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *InMemoryStorage) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}
