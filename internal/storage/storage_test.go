package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"heart-insights/internal/ml"
	"heart-insights/internal/patient"
	"heart-insights/internal/session"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "sessions.db")
	store, err := New(path)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, path
}

func testResult(age, p float64) ml.PredictionResult {
	rec := patient.DefaultRecord()
	rec.Age = age
	return ml.PredictionResult{Input: rec, Prediction: ml.Prediction{Probabilities: [2]float64{1 - p, p}}}
}

func TestNew(t *testing.T) {
	store, path := newTestStore(t)

	if store.db == nil {
		t.Error("Store database is nil")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestNew_InvalidPath(t *testing.T) {
	// a regular file cannot be used as the parent directory
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if _, err := New(filepath.Join(file, "sessions.db")); err == nil {
		t.Error("Expected error for invalid path, got nil")
	}
}

func TestStore_Close(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Errorf("Error closing store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("Error closing already closed store: %v", err)
	}
}

func TestStore_CloseNilDB(t *testing.T) {
	store := &Store{db: nil}
	if err := store.Close(); err != nil {
		t.Errorf("Expected no error for nil db, got: %v", err)
	}
}

func TestPutGet(t *testing.T) {
	store, _ := newTestStore(t)
	res := testResult(63, 0.7)
	now := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	st := session.State{ID: "abc", Locale: "mr", Theme: session.ThemeDark, LastPrediction: &res, CreatedAt: now, UpdatedAt: now}
	if err := store.Put(st); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get("abc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Locale != "mr" || got.Theme != session.ThemeDark {
		t.Errorf("Unexpected state %+v", got)
	}
	if got.LastPrediction == nil || got.LastPrediction.Input.Age != 63 {
		t.Errorf("Last prediction not restored: %+v", got.LastPrediction)
	}
	if !got.UpdatedAt.Equal(now) {
		t.Errorf("Expected updated_at %v, got %v", now, got.UpdatedAt)
	}

	if _, err := store.Get("missing"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestPut_Invalid(t *testing.T) {
	store, _ := newTestStore(t)

	tests := []struct {
		name  string
		state session.State
	}{
		{"empty id", session.State{}},
		{"bad theme", session.State{ID: "x", Theme: "Neon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.Put(tt.state); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestHistory(t *testing.T) {
	store, _ := newTestStore(t)
	for _, id := range []string{"a", "b"} {
		if err := store.Put(session.State{ID: id}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	base := time.Now()
	for i := 0; i < 4; i++ {
		e := session.HistoryEntry{At: base.Add(time.Duration(i) * time.Second), Result: testResult(float64(50+i), 0.2)}
		if err := store.AppendHistory("a", e); err != nil {
			t.Fatalf("AppendHistory failed: %v", err)
		}
	}
	// same timestamp twice stays two entries
	same := session.HistoryEntry{At: base, Result: testResult(70, 0.9)}
	for i := 0; i < 2; i++ {
		if err := store.AppendHistory("b", same); err != nil {
			t.Fatalf("AppendHistory failed: %v", err)
		}
	}

	all, err := store.History("a", 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("Expected 4 entries, got %d", len(all))
	}
	if all[0].Result.Input.Age != 53 || all[3].Result.Input.Age != 50 {
		t.Errorf("Expected newest first, got ages %v..%v", all[0].Result.Input.Age, all[3].Result.Input.Age)
	}

	limited, _ := store.History("a", 2)
	if len(limited) != 2 {
		t.Errorf("Expected 2 entries, got %d", len(limited))
	}

	b, _ := store.History("b", 0)
	if len(b) != 2 {
		t.Errorf("Expected 2 entries for b, got %d", len(b))
	}

	if err := store.AppendHistory("missing", same); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := store.History("missing", 0); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestHistoryCap(t *testing.T) {
	store, err := NewWithHistoryLimit(filepath.Join(t.TempDir(), "sessions.db"), 3)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	for _, id := range []string{"a", "ab"} {
		if err := store.Put(session.State{ID: id}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	base := time.Now()
	for i := 0; i < 5; i++ {
		e := session.HistoryEntry{At: base.Add(time.Duration(i) * time.Second), Result: testResult(float64(50+i), 0.2)}
		if err := store.AppendHistory("a", e); err != nil {
			t.Fatalf("AppendHistory failed: %v", err)
		}
	}
	if err := store.AppendHistory("ab", session.HistoryEntry{At: base, Result: testResult(30, 0.1)}); err != nil {
		t.Fatalf("AppendHistory failed: %v", err)
	}

	h, err := store.History("a", 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(h) != 3 {
		t.Fatalf("Expected history capped at 3, got %d", len(h))
	}
	if h[0].Result.Input.Age != 54 || h[2].Result.Input.Age != 52 {
		t.Errorf("Expected the newest three entries, got ages %v..%v", h[0].Result.Input.Age, h[2].Result.Input.Age)
	}
	if other, _ := store.History("ab", 0); len(other) != 1 {
		t.Errorf("Expected other session untouched, got %d entries", len(other))
	}
}

func TestDefaultHistoryCapMatchesMemoryStore(t *testing.T) {
	store, _ := newTestStore(t)
	mem := session.NewMemoryStore(0)

	for _, s := range []session.Store{store, mem} {
		if err := s.Put(session.State{ID: "a"}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		base := time.Now()
		for i := 0; i < session.DefaultHistoryLimit+5; i++ {
			e := session.HistoryEntry{At: base.Add(time.Duration(i) * time.Millisecond), Result: testResult(40, 0.1)}
			if err := s.AppendHistory("a", e); err != nil {
				t.Fatalf("AppendHistory failed: %v", err)
			}
		}
		if h, _ := s.History("a", 0); len(h) != session.DefaultHistoryLimit {
			t.Errorf("%T: expected %d entries, got %d", s, session.DefaultHistoryLimit, len(h))
		}
	}
}

func TestDeleteIdle(t *testing.T) {
	store, _ := newTestStore(t)
	now := time.Now().UTC()

	states := []session.State{
		{ID: "old", UpdatedAt: now.Add(-2 * time.Hour)},
		{ID: "fresh", UpdatedAt: now},
	}
	for _, st := range states {
		if err := store.Put(st); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		store.AppendHistory(st.ID, session.HistoryEntry{At: now, Result: testResult(40, 0.1)})
	}

	n, err := store.DeleteIdle(now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("DeleteIdle failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 idle session removed, got %d", n)
	}
	if _, err := store.Get("old"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("Expected old session gone, got %v", err)
	}
	if h, _ := store.History("fresh", 0); len(h) != 1 {
		t.Errorf("Expected fresh history intact, got %d", len(h))
	}

	// a recreated id must not inherit the removed history
	store.Put(session.State{ID: "old", UpdatedAt: now})
	if h, _ := store.History("old", 0); len(h) != 0 {
		t.Errorf("Expected empty history, got %d", len(h))
	}
}

func TestDelete(t *testing.T) {
	store, _ := newTestStore(t)
	for _, id := range []string{"a", "b"} {
		store.Put(session.State{ID: id})
		store.AppendHistory(id, session.HistoryEntry{At: time.Now(), Result: testResult(40, 0.1)})
	}

	if err := store.Delete("a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if n, _ := store.Count(); n != 1 {
		t.Errorf("Expected 1 session, got %d", n)
	}

	// recreating the session starts with an empty history
	store.Put(session.State{ID: "a"})
	if h, _ := store.History("a", 0); len(h) != 0 {
		t.Errorf("Expected empty history after delete, got %d", len(h))
	}
	if h, _ := store.History("b", 0); len(h) != 1 {
		t.Errorf("Expected b history intact, got %d", len(h))
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	store, err := New(path)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	res := testResult(55, 0.4)
	store.Put(session.State{ID: "keep", Locale: "hi", LastPrediction: &res})
	store.AppendHistory("keep", session.HistoryEntry{At: time.Now(), Result: res})
	store.Close()

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get("keep")
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if got.Locale != "hi" || got.LastPrediction.Disease() != 0.4 {
		t.Errorf("Unexpected state after reopen: %+v", got)
	}
	if h, _ := reopened.History("keep", 0); len(h) != 1 {
		t.Errorf("Expected 1 history entry after reopen, got %d", len(h))
	}
}

func TestWithManager(t *testing.T) {
	store, _ := newTestStore(t)
	m := session.NewManager(store, "en", nil)

	s, created, err := m.Resolve("")
	if err != nil || !created {
		t.Fatalf("Resolve failed: %v (created=%v)", err, created)
	}
	if _, err := m.RecordPrediction(s.ID, testResult(48, 0.35)); err != nil {
		t.Fatalf("RecordPrediction failed: %v", err)
	}

	again, created, err := m.Resolve(s.ID)
	if err != nil || created {
		t.Fatalf("Expected existing session, err=%v created=%v", err, created)
	}
	if again.LastPrediction == nil || again.LastPrediction.Input.Age != 48 {
		t.Errorf("Last prediction not persisted: %+v", again.LastPrediction)
	}
}

func TestConcurrentAccess(t *testing.T) {
	store, _ := newTestStore(t)
	store.Put(session.State{ID: "shared"})

	done := make(chan bool, 10)
	for i := 0; i < 5; i++ {
		go func(id int) {
			for j := 0; j < 10; j++ {
				store.AppendHistory("shared", session.HistoryEntry{At: time.Now(), Result: testResult(float64(id), 0.5)})
			}
			done <- true
		}(i)
	}
	for i := 0; i < 5; i++ {
		go func() {
			for j := 0; j < 10; j++ {
				store.History("shared", 5)
				store.Get("shared")
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	if h, _ := store.History("shared", 0); len(h) != 50 {
		t.Errorf("Expected 50 entries, got %d", len(h))
	}
}

func BenchmarkAppendHistory(b *testing.B) {
	store, err := New(filepath.Join(b.TempDir(), "sessions.db"))
	if err != nil {
		b.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()
	store.Put(session.State{ID: "bench"})

	entry := session.HistoryEntry{At: time.Now(), Result: testResult(50, 0.5)}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		store.AppendHistory("bench", entry)
	}
}
