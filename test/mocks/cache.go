package mocks

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"
)

// MockCache is an in-memory mock of the JSON cache used for leaderboards.
// Used for testing without requiring a real Redis instance
type MockCache struct {
	data map[string][]byte
	mu   sync.RWMutex

	// Err, when set, is returned by every operation.
	Err error

	Gets    int
	Sets    int
	Incrs   int
	Deletes int
}

// NewMockCache creates a new mock cache instance
func NewMockCache() *MockCache {
	return &MockCache{
		data: make(map[string][]byte),
	}
}

// GetJSON decodes the value stored at key into dest and reports whether it was found
func (m *MockCache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Gets++
	if m.Err != nil {
		return false, m.Err
	}

	raw, exists := m.data[key]
	if !exists {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

// SetJSON encodes value and stores it at key
func (m *MockCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Sets++
	if m.Err != nil {
		return m.Err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	// Note: ttl is ignored in mock (no expiry implementation)
	m.data[key] = raw
	return nil
}

// Incr increments the integer stored at key, starting from zero
func (m *MockCache) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Incrs++
	if m.Err != nil {
		return 0, m.Err
	}

	var n int64
	if raw, exists := m.data[key]; exists {
		parsed, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return 0, err
		}
		n = parsed
	}
	n++
	m.data[key] = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

// Del deletes keys from the mock cache
func (m *MockCache) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Deletes++
	if m.Err != nil {
		return m.Err
	}

	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

// Has reports whether key is cached
func (m *MockCache) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.data[key]
	return exists
}
