package store

import (
	"context"
	"sync"

	"github.com/banshee-data/progress.report/internal/measure"
)

// Memory is an in-process RecordStore and KVStore. Err, when set, is
// returned (wrapped) from every call.
type Memory struct {
	mu      sync.Mutex
	records []measure.Snapshot
	kv      map[string][]byte
	Err     error
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{kv: make(map[string][]byte)}
}

func (m *Memory) fail(op string) error {
	if m.Err != nil {
		return Failure(op, m.Err)
	}
	return nil
}

// Save implements RecordStore. Saving an existing ID replaces it.
func (m *Memory) Save(ctx context.Context, s measure.Snapshot) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", Failure("save", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("save"); err != nil {
		return "", err
	}
	for i := range m.records {
		if m.records[i].ID == s.ID {
			m.records[i] = s
			return s.ID, nil
		}
	}
	m.records = append(m.records, s)
	return s.ID, nil
}

// GetAll implements RecordStore.
func (m *Memory) GetAll(ctx context.Context) ([]measure.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, Failure("get all", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("get all"); err != nil {
		return nil, err
	}
	out := make([]measure.Snapshot, len(m.records))
	copy(out, m.records)
	return out, nil
}

// Delete implements RecordStore.
func (m *Memory) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return Failure("delete", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("delete"); err != nil {
		return err
	}
	for i := range m.records {
		if m.records[i].ID == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// Get implements KVStore.
func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, Failure("get "+key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("get " + key); err != nil {
		return nil, false, err
	}
	v, ok := m.kv[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set implements KVStore.
func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return Failure("set "+key, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("set " + key); err != nil {
		return err
	}
	m.kv[key] = append([]byte(nil), value...)
	return nil
}
