package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a TransferStore held in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]TransferRecord
	now     func() time.Time
}

var _ TransferStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]TransferRecord),
		now:     time.Now,
	}
}

func (m *MemoryStore) Create(_ context.Context, rec TransferRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[rec.TransferID]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, rec.TransferID)
	}
	m.records[rec.TransferID] = newRecord(rec, m.now())
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*TransferRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &rec, nil
}

func (m *MemoryStore) Transition(_ context.Context, id string, to State, mutate func(*TransferRecord)) (*TransferRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := applyTransition(&rec, to, mutate, m.now()); err != nil {
		return nil, err
	}
	m.records[id] = rec
	return &rec, nil
}

func (m *MemoryStore) Update(_ context.Context, id string, mutate func(*TransferRecord)) (*TransferRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	mutate(&rec)
	rec.UpdatedAt = m.now()
	m.records[id] = rec
	return &rec, nil
}

// List returns every record ordered by creation time.
func (m *MemoryStore) List(_ context.Context) ([]TransferRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]TransferRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	sortRecords(out)
	return out, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func sortRecords(recs []TransferRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].TransferID < recs[j].TransferID
		}
		return recs[i].CreatedAt.Before(recs[j].CreatedAt)
	})
}
