package ml

import "sync"

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu               sync.Mutex
	predictions      map[string]int
	latencies        int
	scores           []float64
	schemaMismatches int
	trainings        map[string]int
	accuracy         map[string]float64
}

// NewMockMetrics returns an empty recorder.
func NewMockMetrics() *MockMetrics {
	return &MockMetrics{
		predictions: make(map[string]int),
		trainings:   make(map[string]int),
		accuracy:    make(map[string]float64),
	}
}

func (m *MockMetrics) PredictionsInc(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions[kind]++
}

func (m *MockMetrics) PredictionLatencyObserve(float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies++
}

func (m *MockMetrics) PredictionScoreObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores = append(m.scores, v)
}

func (m *MockMetrics) SchemaMismatchInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemaMismatches++
}

func (m *MockMetrics) TrainingDurationObserve(model string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trainings[model]++
}

func (m *MockMetrics) ModelAccuracySet(model, split string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accuracy[model+"/"+split] = v
}

// Predictions returns the prediction count for kind.
func (m *MockMetrics) Predictions(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.predictions[kind]
}

// Scores returns every observed disease probability.
func (m *MockMetrics) Scores() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.scores...)
}

// SchemaMismatches returns how many batches were rejected for missing columns.
func (m *MockMetrics) SchemaMismatches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.schemaMismatches
}

// Trainings returns how many times model was trained.
func (m *MockMetrics) Trainings(model string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trainings[model]
}

// Accuracy returns the last accuracy set for model and split.
func (m *MockMetrics) Accuracy(model, split string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.accuracy[model+"/"+split]
	return v, ok
}
