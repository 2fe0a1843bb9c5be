// Package whatif compares a stored prediction against modified scenarios.
package whatif

import (
	"errors"
	"fmt"
	"sort"

	"heart-insights/internal/ml"
	"heart-insights/internal/patient"

	"gonum.org/v1/gonum/floats"
)

// ErrNoBaseline is returned when there is no prediction to compare against.
var ErrNoBaseline = errors.New("no baseline prediction")

// DefaultSweepPoints is the grid size for numeric features.
const DefaultSweepPoints = 25

// Scorer predicts a single record under a metrics kind.
type Scorer interface {
	Predict(rec patient.Record, kind string) (ml.PredictionResult, error)
}

// Comparison is a scenario prediction next to its baseline.
type Comparison struct {
	Base     ml.PredictionResult `json:"base"`
	Scenario ml.PredictionResult `json:"scenario"`
	// Delta is P(disease) of the scenario minus that of the baseline.
	Delta float64 `json:"delta"`
}

// Compare scores scenario and reports the change in disease probability.
func Compare(s Scorer, base *ml.PredictionResult, scenario patient.Record) (Comparison, error) {
	if base == nil {
		return Comparison{}, ErrNoBaseline
	}
	res, err := s.Predict(scenario, ml.KindWhatIf)
	if err != nil {
		return Comparison{}, err
	}
	return Comparison{
		Base:     *base,
		Scenario: res,
		Delta:    res.Disease() - base.Disease(),
	}, nil
}

// Point is one sample of a sweep.
type Point struct {
	Value       float64 `json:"value"`
	Probability float64 `json:"probability"`
	Label       int     `json:"label"`
}

// Curve is P(disease) as one feature varies and all others stay fixed.
type Curve struct {
	Feature string  `json:"feature"`
	Current float64 `json:"current"`
	Points  []Point `json:"points"`
}

// Sweep scores the baseline record with feature set to each value in turn.
// When values is empty the feature's default grid is used.
func Sweep(s Scorer, base *ml.PredictionResult, feature string, values []float64) (Curve, error) {
	if base == nil {
		return Curve{}, ErrNoBaseline
	}
	current, ok := base.Input.Value(feature)
	if !ok {
		return Curve{}, fmt.Errorf("unknown feature %q", feature)
	}
	if len(values) == 0 {
		var err error
		if values, err = DefaultValues(feature); err != nil {
			return Curve{}, err
		}
	}

	curve := Curve{Feature: feature, Current: current, Points: make([]Point, 0, len(values))}
	for _, v := range values {
		rec, err := base.Input.With(feature, v)
		if err != nil {
			return Curve{}, err
		}
		res, err := s.Predict(rec, ml.KindWhatIf)
		if err != nil {
			return Curve{}, fmt.Errorf("%s=%g: %w", feature, v, err)
		}
		curve.Points = append(curve.Points, Point{Value: v, Probability: res.Disease(), Label: res.Label})
	}
	return curve, nil
}

// DefaultValues returns the sweep grid of a feature: every code of a
// categorical column, or evenly spaced points across a numeric column's form
// bounds.
func DefaultValues(feature string) ([]float64, error) {
	if choices := patient.Choices(feature); choices != nil {
		out := make([]float64, len(choices))
		for i, c := range choices {
			out[i] = float64(c.Code)
		}
		sort.Float64s(out)
		return out, nil
	}

	for _, h := range patient.FormHints() {
		if h.Column != feature || h.Bounds == nil {
			continue
		}
		return floats.Span(make([]float64, DefaultSweepPoints), h.Bounds.Min, h.Bounds.Max), nil
	}
	return nil, fmt.Errorf("unknown feature %q", feature)
}
