package mocks

import (
	"context"
	"sync"

	"github.com/aimd54/wellness-rewards/internal/models"
)

// MockUserStore is a mock implementation of the public profile store
type MockUserStore struct {
	mu    sync.RWMutex
	Users map[uint]models.User
	Err   error
}

// NewMockUserStore creates a store holding users
func NewMockUserStore(users ...models.User) *MockUserStore {
	m := &MockUserStore{Users: make(map[uint]models.User)}
	for _, u := range users {
		m.Users[u.ID] = u
	}
	return m
}

// Save stores a user
func (m *MockUserStore) Save(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	m.Users[user.ID] = *user
	return nil
}

// GetByIDs returns the known users among ids
func (m *MockUserStore) GetByIDs(ctx context.Context, ids []uint) (map[uint]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}
	result := make(map[uint]models.User, len(ids))
	for _, id := range ids {
		if u, ok := m.Users[id]; ok {
			result[id] = u
		}
	}
	return result, nil
}
