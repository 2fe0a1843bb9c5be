// Package insights computes the data behind the model comparison, dataset
// exploration and age trend views. Everything here is read-only over the
// loaded dataset and the trained models.
package insights

import (
	"fmt"
	"math"
	"strconv"

	"heart-insights/internal/dataset"
	"heart-insights/internal/ml"
)

// Float is a float64 that encodes NaN and infinities as JSON null.
type Float float64

// MarshalJSON implements json.Marshaler.
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

// Valid reports whether f is a finite number.
func (f Float) Valid() bool {
	v := float64(f)
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ModelRow is one line of the model comparison table.
type ModelRow struct {
	Name         string  `json:"name"`
	TestAccuracy float64 `json:"test_accuracy"`
	CVAccuracy   float64 `json:"cv_accuracy"`
	Precision    float64 `json:"precision"`
	Recall       float64 `json:"recall"`
	F1           float64 `json:"f1"`
	TrainSeconds float64 `json:"train_seconds"`
}

// CompareModels lists every trained model ordered by name.
func CompareModels(models ml.Models) []ModelRow {
	rows := make([]ModelRow, 0, len(models))
	for _, e := range models.Sorted() {
		rows = append(rows, ModelRow{
			Name:         e.Name,
			TestAccuracy: e.Test.Accuracy,
			CVAccuracy:   e.CVAccuracy,
			Precision:    e.Test.Precision,
			Recall:       e.Test.Recall,
			F1:           e.Test.F1,
			TrainSeconds: e.Duration.Seconds(),
		})
	}
	return rows
}

func column(t *dataset.Table, name string) ([]float64, error) {
	v, ok := t.Column(name)
	if !ok {
		return nil, fmt.Errorf("unknown column %q", name)
	}
	return v, nil
}
