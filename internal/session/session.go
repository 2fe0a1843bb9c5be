// Package session keeps per-visitor UI state: locale, theme and the last
// prediction. Sessions never share mutable state; stores hand out copies.
package session

import (
	"errors"
	"fmt"
	"time"

	"heart-insights/internal/ml"
)

// ErrNotFound is returned for unknown session ids.
var ErrNotFound = errors.New("session not found")

// Theme is the colour scheme of the UI.
type Theme string

const (
	ThemeLight Theme = "Light"
	ThemeDark  Theme = "Dark"
)

// Valid reports whether t is a known theme.
func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark
}

// State is everything remembered about one session.
type State struct {
	ID             string               `json:"id"`
	Locale         string               `json:"locale"`
	Theme          Theme                `json:"theme"`
	LastPrediction *ml.PredictionResult `json:"last_prediction,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	if s.LastPrediction != nil {
		p := *s.LastPrediction
		s.LastPrediction = &p
	}
	return s
}

// HistoryEntry is one stored prediction of a session.
type HistoryEntry struct {
	At     time.Time           `json:"at"`
	Result ml.PredictionResult `json:"result"`
}

// Store persists session state. Implementations must be safe for concurrent
// use and must not alias state between callers.
type Store interface {
	Get(id string) (State, error)
	Put(s State) error
	Delete(id string) error
	Count() (int, error)
	AppendHistory(id string, e HistoryEntry) error
	// History returns up to limit entries, newest first. limit <= 0 means all.
	History(id string, limit int) ([]HistoryEntry, error)
	// DeleteIdle removes sessions last updated before cutoff and reports how
	// many were removed.
	DeleteIdle(cutoff time.Time) (int, error)
	Close() error
}

func validate(s State) error {
	if s.ID == "" {
		return errors.New("session id is empty")
	}
	if s.Theme != "" && !s.Theme.Valid() {
		return fmt.Errorf("unknown theme %q", s.Theme)
	}
	return nil
}
