package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"heart-insights/internal/ml"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Gauge receives the live session count.
type Gauge interface {
	Set(float64)
}

// Manager resolves session ids and serializes read-modify-write cycles.
type Manager struct {
	store         Store
	defaultLocale string
	gauge         Gauge
	now           func() time.Time

	mu sync.Mutex
}

// NewManager wraps store. gauge may be nil.
func NewManager(store Store, defaultLocale string, gauge Gauge) *Manager {
	m := &Manager{store: store, defaultLocale: defaultLocale, gauge: gauge, now: time.Now}
	m.reportCount()
	return m
}

// Store returns the backing store.
func (m *Manager) Store() Store { return m.store }

// Resolve returns the session for id, creating one when id is empty, not a
// UUID, or unknown. A well-formed unknown id is kept so clients survive a
// restart of an in-memory store.
func (m *Manager) Resolve(id string) (State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if parsed, err := uuid.Parse(id); err == nil {
		id = parsed.String()
		s, err := m.store.Get(id)
		if err == nil {
			return s, false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return State{}, false, err
		}
	} else {
		id = uuid.NewString()
	}

	now := m.now().UTC()
	s := State{ID: id, Locale: m.defaultLocale, Theme: ThemeLight, CreatedAt: now, UpdatedAt: now}
	if err := m.store.Put(s); err != nil {
		return State{}, false, fmt.Errorf("create session: %w", err)
	}
	m.reportCount()
	log.Debug().Str("session", id).Msg("Session created")
	return s, true, nil
}

// Update applies fn to the stored state and saves the result. fn must not
// retain the pointer.
func (m *Manager) Update(id string, fn func(*State) error) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.store.Get(id)
	if err != nil {
		return State{}, err
	}
	if err := fn(&s); err != nil {
		return State{}, err
	}
	s.ID = id
	s.UpdatedAt = m.now().UTC()
	if err := m.store.Put(s); err != nil {
		return State{}, err
	}
	return s.Clone(), nil
}

// RecordPrediction stores res as the session's last prediction and appends it
// to the history.
func (m *Manager) RecordPrediction(id string, res ml.PredictionResult) (State, error) {
	s, err := m.Update(id, func(s *State) error {
		r := res
		s.LastPrediction = &r
		return nil
	})
	if err != nil {
		return State{}, err
	}
	if err := m.store.AppendHistory(id, HistoryEntry{At: s.UpdatedAt, Result: res}); err != nil {
		log.Warn().Err(err).Str("session", id).Msg("Failed to append prediction history")
	}
	return s, nil
}

// History returns the session's stored predictions, newest first.
func (m *Manager) History(id string, limit int) ([]HistoryEntry, error) {
	return m.store.History(id, limit)
}

// Delete forgets a session.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Delete(id); err != nil {
		return err
	}
	m.reportCount()
	return nil
}

// Expire removes sessions idle for longer than ttl.
func (m *Manager) Expire(ttl time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, err := m.store.DeleteIdle(m.now().UTC().Add(-ttl))
	if err != nil {
		return n, err
	}
	if n > 0 {
		m.reportCount()
		log.Debug().Int("expired", n).Msg("Idle sessions removed")
	}
	return n, nil
}

// RunExpiry calls Expire every interval until ctx is done. ttl <= 0 disables
// expiry.
func (m *Manager) RunExpiry(ctx context.Context, ttl, interval time.Duration) {
	if ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = ttl / 4
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Expire(ttl); err != nil {
				log.Warn().Err(err).Msg("Session expiry failed")
			}
		}
	}
}

func (m *Manager) reportCount() {
	if m.gauge == nil {
		return
	}
	n, err := m.store.Count()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to count sessions")
		return
	}
	m.gauge.Set(float64(n))
}
