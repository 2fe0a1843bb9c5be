// Package storage provides persistent session storage for the heart-insights
// service. It uses BoltDB as the underlying storage engine to keep session
// state and the prediction history of each session.
//
// The store is safe for concurrent use. History records are keyed by session
// id and timestamp so that one session's history is a single cursor range.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"heart-insights/internal/session"

	"go.etcd.io/bbolt"
)

const (
	sessionsBucket    = "sessions"    // Bucket name for session state
	predictionsBucket = "predictions" // Bucket name for per-session prediction history
)

// Store persists sessions using BoltDB.
type Store struct {
	db         *bbolt.DB
	maxHistory int
}

var _ session.Store = (*Store)(nil)

// New opens (or creates) the database file at path and ensures the buckets
// exist. The parent directory is created when missing. Each session keeps at
// most session.DefaultHistoryLimit history entries.
func New(path string) (*Store, error) {
	return NewWithHistoryLimit(path, 0)
}

// NewWithHistoryLimit is New with a per-session history cap; maxHistory <= 0
// selects session.DefaultHistoryLimit.
func NewWithHistoryLimit(path string, maxHistory int) (*Store, error) {
	if maxHistory <= 0 {
		maxHistory = session.DefaultHistoryLimit
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(sessionsBucket)); err != nil {
			return fmt.Errorf("create sessions bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(predictionsBucket)); err != nil {
			return fmt.Errorf("create predictions bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, maxHistory: maxHistory}, nil
}

// Close closes the database. Closing twice is harmless.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get loads the state of one session.
func (s *Store) Get(id string) (session.State, error) {
	var st session.State
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(sessionsBucket)).Get([]byte(id))
		if data == nil {
			return session.ErrNotFound
		}
		if err := json.Unmarshal(data, &st); err != nil {
			return fmt.Errorf("unmarshal session %s: %w", id, err)
		}
		return nil
	})
	return st, err
}

// Put stores a session, replacing any previous state.
func (s *Store) Put(st session.State) error {
	if st.ID == "" {
		return errors.New("session id is empty")
	}
	if st.Theme != "" && !st.Theme.Valid() {
		return fmt.Errorf("unknown theme %q", st.Theme)
	}

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(sessionsBucket)).Put([]byte(st.ID), data)
	})
}

// Delete removes a session and its history.
func (s *Store) Delete(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return deleteSession(tx, id)
	})
}

// DeleteIdle removes every session last updated before cutoff, together with
// its history. Records that cannot be decoded are removed as well.
func (s *Store) DeleteIdle(cutoff time.Time) (int, error) {
	var removed int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		var idle []string
		err := tx.Bucket([]byte(sessionsBucket)).ForEach(func(k, v []byte) error {
			var st session.State
			if err := json.Unmarshal(v, &st); err != nil || st.UpdatedAt.Before(cutoff) {
				idle = append(idle, string(k))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, id := range idle {
			if err := deleteSession(tx, id); err != nil {
				return err
			}
		}
		removed = len(idle)
		return nil
	})
	return removed, err
}

func deleteSession(tx *bbolt.Tx, id string) error {
	if err := tx.Bucket([]byte(sessionsBucket)).Delete([]byte(id)); err != nil {
		return err
	}
	b := tx.Bucket([]byte(predictionsBucket))
	for _, k := range historyKeys(b, id) {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// historyKeys returns the history keys of a session, oldest first.
func historyKeys(b *bbolt.Bucket, id string) [][]byte {
	prefix := historyPrefix(id)
	var keys [][]byte
	c := b.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	return keys
}

// Count returns the number of stored sessions.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket([]byte(sessionsBucket)).Stats().KeyN
		return nil
	})
	return n, err
}

// AppendHistory records a prediction for an existing session. The key format
// "id_timestamp_sequence" keeps entries ordered and unique. The oldest entries
// beyond the history cap are dropped.
func (s *Store) AppendHistory(id string, e session.HistoryEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(sessionsBucket)).Get([]byte(id)) == nil {
			return session.ErrNotFound
		}
		b := tx.Bucket([]byte(predictionsBucket))
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := fmt.Sprintf("%s%020d_%010d", historyPrefix(id), e.At.UnixNano(), seq)
		if err := b.Put([]byte(key), data); err != nil {
			return err
		}

		keys := historyKeys(b, id)
		for len(keys) > s.maxHistory {
			if err := b.Delete(keys[0]); err != nil {
				return err
			}
			keys = keys[1:]
		}
		return nil
	})
}

// History returns up to limit entries of a session, newest first.
// Malformed records are skipped.
func (s *Store) History(id string, limit int) ([]session.HistoryEntry, error) {
	var out []session.HistoryEntry
	err := s.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(sessionsBucket)).Get([]byte(id)) == nil {
			return session.ErrNotFound
		}
		prefix := historyPrefix(id)
		c := tx.Bucket([]byte(predictionsBucket)).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var e session.HistoryEntry
			if err := json.Unmarshal(v, &e); err != nil {
				continue
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func historyPrefix(id string) []byte {
	return []byte(id + "_")
}
