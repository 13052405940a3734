package position

import (
	"context"
	"sync"
)

// InMemoryStorage is a Storage implementation backed by a plain map,
// useful for tests and single-process demos.
type InMemoryStorage struct {
	mu        sync.Mutex
	positions map[string]string
}

// NewInMemoryStorage creates an empty InMemoryStorage.
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{positions: make(map[string]string)}
}

func (s *InMemoryStorage) Read(_ context.Context, subscriptionID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, found := s.positions[subscriptionID]

	return pos, found, nil
}

func (s *InMemoryStorage) Save(_ context.Context, subscriptionID string, pos string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions[subscriptionID] = pos

	return nil
}

func (s *InMemoryStorage) Delete(_ context.Context, subscriptionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.positions, subscriptionID)

	return nil
}

var _ Storage = (*InMemoryStorage)(nil)
