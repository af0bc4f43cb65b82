package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrNotFound возвращается, если сессии нет или срок её жизни истёк.
	ErrNotFound = errors.New("session not found")
	// ErrCorrupt возвращается, если сохранённую сессию не удалось разобрать,
	// например шаг записан другой версией сервиса.
	ErrCorrupt = errors.New("session record is corrupt")
)

// DefaultTTL задаёт срок жизни сессии без активности.
const DefaultTTL = 24 * time.Hour

// Store хранит сессии по ключу со сроком жизни.
type Store interface {
	Get(ctx context.Context, key string) (*Session, error)
	Set(ctx context.Context, key string, s *Session, ttl time.Duration) error
}

// Key возвращает ключ сессии собеседника.
func Key(counterpartyID string) string {
	return "session:" + counterpartyID
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryStore хранит сессии в памяти процесса. Предназначен для тестов:
// сессии не переживают перезапуск.
type MemoryStore struct {
	mu    sync.Mutex
	now   func() time.Time
	items map[string]memoryEntry
}

// NewMemoryStore создаёт хранилище в памяти с указанными часами.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{now: now, items: make(map[string]memoryEntry)}
}

// Get возвращает копию сохранённой сессии.
func (m *MemoryStore) Get(ctx context.Context, key string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.items, key)
		return nil, ErrNotFound
	}
	return Decode(e.data)
}

// Set сохраняет копию сессии.
func (m *MemoryStore) Set(ctx context.Context, key string, s *Session, ttl time.Duration) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = memoryEntry{data: data, expiresAt: m.now().Add(ttl)}
	return nil
}
