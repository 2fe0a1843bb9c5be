package ml

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"heart-insights/internal/common"
	"heart-insights/internal/dataset"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"
)

// MetricsInterface defines the metrics the trainer and predictor report
type MetricsInterface interface {
	PredictionsInc(kind string)
	PredictionLatencyObserve(seconds float64)
	PredictionScoreObserve(probability float64)
	SchemaMismatchInc()
	TrainingDurationObserve(model string, seconds float64)
	ModelAccuracySet(model, split string, accuracy float64)
}

// TrainConfig controls how models are fitted and scored.
type TrainConfig struct {
	Seed        int64
	TestSize    float64
	CVFolds     int
	ForestTrees int
	Workers     int
}

// DefaultTrainConfig returns the production training parameters.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Seed:        common.DefaultRandomSeed,
		TestSize:    common.DefaultTestSize,
		CVFolds:     common.DefaultCVFolds,
		ForestTrees: common.DefaultForestTrees,
	}
}

// Algorithms returns the classifiers trained by Train, in name order.
func (c TrainConfig) Algorithms() []Algorithm {
	algs := []Algorithm{
		{Name: common.ModelLogisticRegression, New: func() Classifier { return NewLogisticRegression() }},
		{Name: common.ModelRandomForest, New: func() Classifier { return NewRandomForest(c.ForestTrees, c.Seed, c.Workers) }},
		{Name: common.ModelSVM, New: func() Classifier { return NewSVM(c.Seed) }},
	}
	sort.Slice(algs, func(i, j int) bool { return algs[i].Name < algs[j].Name })
	return algs
}

// permutationRepeats is the number of shuffles per column when a model has no
// built-in importance measure.
const permutationRepeats = 5

// Entry is one trained model and its held-out scores.
type Entry struct {
	Name       string        `json:"name"`
	Model      Classifier    `json:"-"`
	Test       Scores        `json:"test"`
	CVAccuracy float64       `json:"cv_accuracy"`
	CVScores   []float64     `json:"cv_scores"`
	Duration   time.Duration `json:"duration"`

	// Importances is the permutation importance on the test split, in
	// patient.FeatureColumns order. Only set for models that are not an
	// Importancer.
	Importances []float64 `json:"-"`
}

// Models maps algorithm name to its trained entry.
type Models map[string]*Entry

// Names returns the model names in sorted order.
func (m Models) Names() []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Sorted returns the entries ordered by name.
func (m Models) Sorted() []*Entry {
	out := make([]*Entry, 0, len(m))
	for _, n := range m.Names() {
		out = append(out, m[n])
	}
	return out
}

// Trainer fits every algorithm once per dataset and caches the result.
type Trainer struct {
	cfg     TrainConfig
	metrics MetricsInterface

	mu    sync.Mutex
	cache map[*dataset.Dataset]Models
}

// NewTrainer creates a trainer. metrics may be nil.
func NewTrainer(cfg TrainConfig, metrics MetricsInterface) *Trainer {
	return &Trainer{cfg: cfg, metrics: metrics, cache: make(map[*dataset.Dataset]Models)}
}

// Train returns the models for ds, fitting them on first use. Concurrent
// callers for the same dataset wait for the single training run.
func (t *Trainer) Train(ds *dataset.Dataset) (Models, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if m, ok := t.cache[ds]; ok {
		return m, nil
	}
	m, err := TrainModels(t.cfg, ds.Features.Rows, ds.Labels, t.metrics)
	if err != nil {
		return nil, err
	}
	t.cache[ds] = m
	return m, nil
}

// TrainModels fits every algorithm on a seeded train split, scores it on the
// test split and runs stratified cross-validation over all rows.
func TrainModels(cfg TrainConfig, X [][]float64, y []int, metrics MetricsInterface) (Models, error) {
	if err := checkTrainingSet(X, y); err != nil {
		return nil, err
	}

	trainIdx, testIdx, err := TrainTestSplit(len(X), cfg.TestSize, cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTrainingFailed, err)
	}
	trX, trY := take(X, y, trainIdx)
	teX, teY := take(X, y, testIdx)

	folds, err := StratifiedKFold(y, cfg.CVFolds)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTrainingFailed, err)
	}

	models := make(Models)
	for _, alg := range cfg.Algorithms() {
		start := time.Now()

		clf := alg.New()
		if err := clf.Fit(trX, trY); err != nil {
			return nil, fmt.Errorf("fit %s: %w", alg.Name, err)
		}
		test := Evaluate(clf, teX, teY)

		cv, err := crossValidate(alg, X, y, folds)
		if err != nil {
			return nil, fmt.Errorf("cross-validate %s: %w", alg.Name, err)
		}

		entry := &Entry{
			Name:       alg.Name,
			Model:      clf,
			Test:       test,
			CVAccuracy: stat.Mean(cv, nil),
			CVScores:   cv,
			Duration:   time.Since(start),
		}
		if _, ok := clf.(Importancer); !ok {
			entry.Importances = PermutationImportance(clf, teX, teY, permutationRepeats, cfg.Seed)
		}
		models[alg.Name] = entry

		if metrics != nil {
			metrics.TrainingDurationObserve(alg.Name, entry.Duration.Seconds())
			metrics.ModelAccuracySet(alg.Name, "test", test.Accuracy)
			metrics.ModelAccuracySet(alg.Name, "cv", entry.CVAccuracy)
		}

		log.Info().
			Str("model", alg.Name).
			Float64("test_accuracy", test.Accuracy).
			Float64("cv_accuracy", entry.CVAccuracy).
			Float64("f1", test.F1).
			Dur("duration", entry.Duration).
			Msg("Model trained")
	}
	return models, nil
}

func crossValidate(alg Algorithm, X [][]float64, y []int, folds [][]int) ([]float64, error) {
	scores := make([]float64, len(folds))
	for i, testIdx := range folds {
		trX, trY := take(X, y, complement(len(X), testIdx))
		teX, teY := take(X, y, testIdx)

		clf := alg.New()
		if err := clf.Fit(trX, trY); err != nil {
			return nil, fmt.Errorf("fold %d: %w", i, err)
		}
		scores[i] = Evaluate(clf, teX, teY).Accuracy
	}
	return scores, nil
}
