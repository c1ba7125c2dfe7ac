package engine

import (
	"slices"
	"sync"

	"github.com/celerix-dev/labcheck/pkg/schema"
)

// MemStore keeps the record set in memory, optionally in front of a durable backend.
// With a backend, LoadAll rereads it and SaveAll writes through, so edits made directly
// to the backend's file between updates are kept.
type MemStore struct {
	mu      sync.RWMutex
	records []schema.TrainingRecord
	index   map[string]int
	backing RecordStore
}

// NewMemStore initializes a store.
// It accepts existing records (from the backing LoadAll) and a backing store, which may
// be nil for a purely in-memory store.
func NewMemStore(initial []schema.TrainingRecord, backing RecordStore) *MemStore {
	m := &MemStore{backing: backing}
	m.swap(slices.Clone(initial))
	return m
}

// swap MUST be called while holding m.mu.Lock or before m is shared.
func (m *MemStore) swap(records []schema.TrainingRecord) {
	m.records = records
	m.index = make(map[string]int, len(records))
	for i, r := range records {
		m.index[r.Subject] = i
	}
}

func (m *MemStore) LoadAll() ([]schema.TrainingRecord, error) {
	if m.backing == nil {
		m.mu.RLock()
		defer m.mu.RUnlock()
		return slices.Clone(m.records), nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	records, err := m.backing.LoadAll()
	if err != nil {
		return nil, err
	}
	m.swap(slices.Clone(records))
	return records, nil
}

// SaveAll persists to the backing store first and only then replaces the in-memory set,
// so a failed write leaves the previous state visible.
func (m *MemStore) SaveAll(records []schema.TrainingRecord) error {
	if err := checkRecords(records); err != nil {
		return err
	}
	cp := make([]schema.TrainingRecord, len(records))
	for i, r := range records {
		cp[i] = r.WithStatus()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backing != nil {
		if err := m.backing.SaveAll(cp); err != nil {
			return err
		}
	}
	m.swap(cp)
	return nil
}

// Get returns the record of one subject.
func (m *MemStore) Get(subject string) (schema.TrainingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.index[subject]
	if !ok {
		return schema.TrainingRecord{}, ErrRecordNotFound
	}
	return m.records[i], nil
}

// Subjects lists the stored subjects in storage order.
func (m *MemStore) Subjects() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make([]string, len(m.records))
	for i, r := range m.records {
		list[i] = r.Subject
	}
	return list
}

func (m *MemStore) Close() error {
	if m.backing != nil {
		return m.backing.Close()
	}
	return nil
}
