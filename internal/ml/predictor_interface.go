// Package ml trains and serves the heart disease classifiers.
//
// Three classical binary classifiers are fitted on the same data: a random
// forest, an L2 logistic regression and an RBF support vector machine with
// Platt-scaled probabilities. Only the forest scores live requests; the other
// two exist for the model comparison view.
//
// All training is seeded. Identical input yields identical models and metrics.
package ml

import (
	"errors"
	"fmt"
)

// ErrTrainingFailed is returned when a classifier cannot be fitted.
var ErrTrainingFailed = errors.New("training failed")

// Classifier is a binary classifier over dense feature vectors.
// Implementations are immutable once Fit returns.
type Classifier interface {
	// Fit trains on rows X with labels y in {0, 1}.
	Fit(X [][]float64, y []int) error

	// PredictProba returns (P(y=0), P(y=1)) for one vector.
	PredictProba(x []float64) [2]float64

	// Predict returns the class label for one vector.
	Predict(x []float64) int
}

// Importancer is implemented by classifiers that expose per-feature weights.
type Importancer interface {
	FeatureImportances() []float64
}

// Algorithm names a classifier and builds fresh, unfitted instances of it.
type Algorithm struct {
	Name string
	New  func() Classifier
}

func checkTrainingSet(X [][]float64, y []int) error {
	if len(X) == 0 {
		return fmt.Errorf("%w: empty training set", ErrTrainingFailed)
	}
	if len(X) != len(y) {
		return fmt.Errorf("%w: features and labels differ in length", ErrTrainingFailed)
	}
	var seen [2]bool
	for _, v := range y {
		if v != 0 && v != 1 {
			return fmt.Errorf("%w: labels must be 0 or 1", ErrTrainingFailed)
		}
		seen[v] = true
	}
	if !seen[0] || !seen[1] {
		return fmt.Errorf("%w: labels contain a single class", ErrTrainingFailed)
	}
	return nil
}

func argmax2(p [2]float64) int {
	if p[1] > p[0] {
		return 1
	}
	return 0
}
