package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrCacheMiss возвращается методом Get, когда ключ отсутствует или истёк.
var ErrCacheMiss = errors.New("cache miss")

// Stats содержит статистику работы кеша.
type Stats struct {
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Size          int   `json:"size"`
	Evictions     int64 `json:"evictions"`
	Invalidations int64 `json:"invalidations"`
}

// Store определяет интерфейс хранилища кеша, потребляемый сервисом инвалидации.
// Реализации: MemStore (в памяти) и RedisStore.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	ClearPrefix(ctx context.Context, prefix string) (int, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// --------------------- MemStore ---------------------

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemStore хранит записи кеша в памяти процесса с опциональным TTL.
type MemStore struct {
	mu            *sync.Mutex
	entries       map[string]entry
	hits          int64
	misses        int64
	evictions     int64
	invalidations int64
}

func NewMemStore() *MemStore {
	return &MemStore{
		mu:      &sync.Mutex{},
		entries: make(map[string]entry),
	}
}

func (m *MemStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		m.misses++
		return nil, ErrCacheMiss
	}
	if e.expired(time.Now()) {
		delete(m.entries, key)
		m.evictions++
		m.misses++
		return nil, ErrCacheMiss
	}

	m.hits++
	return e.value, nil
}

func (m *MemStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

func (m *MemStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemStore) ClearPrefix(ctx context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
			removed++
		}
	}
	m.invalidations += int64(removed)
	return removed, nil
}

func (m *MemStore) Stats(ctx context.Context) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Stats{
		Hits:          m.hits,
		Misses:        m.misses,
		Size:          len(m.entries),
		Evictions:     m.evictions,
		Invalidations: m.invalidations,
	}, nil
}

func (m *MemStore) Close() error {
	return nil
}
