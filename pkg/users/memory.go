package users

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for development and tests
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
	now     func() time.Time
}

// NewMemoryStore creates an empty memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		now:     time.Now,
	}
}

// Upsert inserts or replaces the record for record.SubjectID
func (m *MemoryStore) Upsert(ctx context.Context, record *Record) error {
	if record == nil || record.SubjectID == "" {
		return ErrMissingSubject
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	next := *record
	if existing, ok := m.records[record.SubjectID]; ok {
		next.CreatedAt = existing.CreatedAt
	} else {
		next.CreatedAt = m.now()
	}
	m.records[record.SubjectID] = next

	return nil
}

// Get returns a copy of the stored record
func (m *MemoryStore) Get(ctx context.Context, subjectID string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[subjectID]
	if !ok {
		return nil, ErrNotFound
	}
	return &record, nil
}

// Count returns the number of records
func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records), nil
}
