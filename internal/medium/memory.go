package medium

import (
	"context"
	"sync"

	"github.com/patrickmn/go-cache"
)

// Memory keeps items in process memory; contents are lost on restart.
type Memory struct {
	mu       sync.Mutex
	cache    *cache.Cache
	capacity int
	used     int
	closed   bool
}

func NewMemory(capacity int) *Memory {
	return &Memory{
		cache:    cache.New(cache.NoExpiration, 0),
		capacity: capacity,
	}
}

func (m *Memory) SetItem(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrUnavailable
	}

	used := m.used + itemSize(key, value)
	if x, found := m.cache.Get(key); found {
		used -= itemSize(key, x.(string))
	}
	if exceeds(m.capacity, used) {
		return ErrQuotaExceeded
	}
	m.cache.Set(key, value, cache.NoExpiration)
	m.used = used
	return nil
}

func (m *Memory) GetItem(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", false, ErrUnavailable
	}
	if x, found := m.cache.Get(key); found {
		return x.(string), true, nil
	}
	return "", false, nil
}

func (m *Memory) RemoveItem(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrUnavailable
	}
	if x, found := m.cache.Get(key); found {
		m.used -= itemSize(key, x.(string))
		m.cache.Delete(key)
	}
	return nil
}

// Used reports the bytes currently accounted against capacity.
func (m *Memory) Used() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cache.Flush()
	m.used = 0
	return nil
}
