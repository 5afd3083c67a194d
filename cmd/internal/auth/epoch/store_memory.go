package epoch

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu     sync.RWMutex
	epochs map[string]int64
}

// NewMemoryStore returns an empty MemoryStore; every account is at epoch 0.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{epochs: make(map[string]int64)}
}

func (s *MemoryStore) Current(_ context.Context, accountID string) (int64, error) {
	if accountID == "" {
		return 0, ErrInvalidInput
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epochs[accountID], nil
}

func (s *MemoryStore) Bump(_ context.Context, _ time.Time, accountID string) (int64, error) {
	if accountID == "" {
		return 0, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epochs[accountID]++
	return s.epochs[accountID], nil
}
