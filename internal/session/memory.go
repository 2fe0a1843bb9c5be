package session

import (
	"sync"
	"time"
)

// DefaultHistoryLimit bounds the stored history of one session.
const DefaultHistoryLimit = 100

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu         sync.RWMutex
	states     map[string]State
	history    map[string][]HistoryEntry
	maxHistory int
}

// NewMemoryStore creates an empty store keeping at most maxHistory entries
// per session; maxHistory <= 0 selects DefaultHistoryLimit.
func NewMemoryStore(maxHistory int) *MemoryStore {
	if maxHistory <= 0 {
		maxHistory = DefaultHistoryLimit
	}
	return &MemoryStore{
		states:     make(map[string]State),
		history:    make(map[string][]HistoryEntry),
		maxHistory: maxHistory,
	}
}

func (m *MemoryStore) Get(id string) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[id]
	if !ok {
		return State{}, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Put(s State) error {
	if err := validate(s); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, id)
	delete(m.history, id)
	return nil
}

func (m *MemoryStore) DeleteIdle(cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.states {
		if s.UpdatedAt.Before(cutoff) {
			delete(m.states, id)
			delete(m.history, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Count() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states), nil
}

func (m *MemoryStore) AppendHistory(id string, e HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.states[id]; !ok {
		return ErrNotFound
	}
	h := append(m.history[id], e)
	if len(h) > m.maxHistory {
		h = append([]HistoryEntry(nil), h[len(h)-m.maxHistory:]...)
	}
	m.history[id] = h
	return nil
}

func (m *MemoryStore) History(id string, limit int) ([]HistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.states[id]; !ok {
		return nil, ErrNotFound
	}
	h := m.history[id]
	n := len(h)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]HistoryEntry, n)
	for i := 0; i < n; i++ {
		out[i] = h[len(h)-1-i]
	}
	return out, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
