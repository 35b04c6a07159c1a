package session

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/platinummonkey/idsync/pkg/identity"
	"github.com/platinummonkey/idsync/pkg/notify"
)

// DefaultMemoryCapacity bounds the in-process session store
const DefaultMemoryCapacity = 10000

type memoryEntry struct {
	mu      sync.Mutex
	session Session
	flash   []notify.Notice
}

// MemoryStore keeps sessions in process, evicting them after the TTL or
// when capacity is exceeded.
type MemoryStore struct {
	cache *expirable.LRU[string, *memoryEntry]
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryStore creates an in-process session store
func NewMemoryStore(capacity int, ttl time.Duration) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		cache: expirable.NewLRU[string, *memoryEntry](capacity, nil, ttl),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Create stores a new session for claims
func (m *MemoryStore) Create(ctx context.Context, claims identity.Claims) (*Session, error) {
	sess := newSession(claims, m.now(), m.ttl)
	m.cache.Add(sess.ID, &memoryEntry{session: *sess})
	return sess, nil
}

// Get returns a copy of the session
func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	entry, ok := m.cache.Get(id)
	if !ok {
		return nil, ErrNotFound
	}

	entry.mu.Lock()
	sess := entry.session
	entry.mu.Unlock()

	if sess.Expired(m.now()) {
		m.cache.Remove(id)
		return nil, ErrNotFound
	}
	return &sess, nil
}

// Delete removes the session
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.cache.Remove(id)
	return nil
}

// PushFlash appends a notice to the session's flash queue
func (m *MemoryStore) PushFlash(ctx context.Context, id string, notice notify.Notice) error {
	entry, ok := m.cache.Peek(id)
	if !ok {
		return ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.flash = append(entry.flash, notice)
	return nil
}

// PopFlash returns and clears the session's queued notices
func (m *MemoryStore) PopFlash(ctx context.Context, id string) ([]notify.Notice, error) {
	entry, ok := m.cache.Peek(id)
	if !ok {
		return nil, nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	notices := entry.flash
	entry.flash = nil
	return notices, nil
}

// DeleteExpired drops sessions past their expiry and returns how many remain
func (m *MemoryStore) DeleteExpired() int {
	now := m.now()
	for _, id := range m.cache.Keys() {
		entry, ok := m.cache.Peek(id)
		if !ok {
			continue
		}
		entry.mu.Lock()
		expired := entry.session.Expired(now)
		entry.mu.Unlock()
		if expired {
			m.cache.Remove(id)
		}
	}
	return m.cache.Len()
}

// Len returns the number of live sessions
func (m *MemoryStore) Len() int {
	return m.cache.Len()
}
