package ml

import (
	"fmt"
	"time"

	"heart-insights/internal/dataset"
	"heart-insights/internal/patient"

	"github.com/rs/zerolog/log"
)

// Prediction kinds reported to metrics.
const (
	KindSingle = "single"
	KindBatch  = "batch"
	KindWhatIf = "whatif"
)

// Prediction is a class label and the probability pair (no disease, disease).
type Prediction struct {
	Label         int        `json:"label"`
	Probabilities [2]float64 `json:"probabilities"`
}

// Disease returns P(disease).
func (p Prediction) Disease() float64 {
	return p.Probabilities[1]
}

// PredictionResult is a prediction together with the record it was made for.
type PredictionResult struct {
	Input patient.Record `json:"input"`
	Prediction
}

// Predictor scores records with one trained model.
type Predictor struct {
	entry       *Entry
	importances []FeatureScore
	metrics     MetricsInterface
	drift       *DriftDetector
}

// NewPredictor selects the model called name. metrics may be nil.
func NewPredictor(models Models, name string, metrics MetricsInterface) (*Predictor, error) {
	entry, ok := models[name]
	if !ok {
		return nil, fmt.Errorf("model %q is not trained (have %v)", name, models.Names())
	}

	p := &Predictor{entry: entry, metrics: metrics}
	if imp, ok := entry.Model.(Importancer); ok {
		p.importances = RankImportances(patient.FeatureColumns, imp.FeatureImportances())
	} else {
		p.importances = RankImportances(patient.FeatureColumns, entry.Importances)
	}

	log.Info().
		Str("model", name).
		Float64("test_accuracy", entry.Test.Accuracy).
		Msg("Predictor ready")
	return p, nil
}

// TrackDrift feeds every scored vector to dd. It must be called before the
// predictor is shared.
func (p *Predictor) TrackDrift(dd *DriftDetector) {
	p.drift = dd
}

// Drift returns the drift detector, or nil when drift is not tracked.
func (p *Predictor) Drift() *DriftDetector {
	return p.drift
}

// ModelName returns the name of the scoring model.
func (p *Predictor) ModelName() string {
	return p.entry.Name
}

// Entry returns the scoring model's training entry.
func (p *Predictor) Entry() *Entry {
	return p.entry
}

// PredictVector scores one feature vector in patient.FeatureColumns order.
// The label is the more probable class with ties going to 0.
func (p *Predictor) PredictVector(x []float64) Prediction {
	proba := p.entry.Model.PredictProba(x)
	// normalize rounding so the pair sums to exactly 1
	proba[0] = 1 - proba[1]
	return Prediction{Label: argmax2(proba), Probabilities: proba}
}

// PredictOne validates and scores a single record.
func (p *Predictor) PredictOne(rec patient.Record) (PredictionResult, error) {
	return p.Predict(rec, KindSingle)
}

// Predict scores rec and reports it under the given kind.
func (p *Predictor) Predict(rec patient.Record, kind string) (PredictionResult, error) {
	if err := rec.Validate(); err != nil {
		return PredictionResult{}, err
	}

	start := time.Now()
	x := rec.Vector()
	pred := p.PredictVector(x)
	p.observe(kind, start, pred)
	if p.drift != nil && kind != KindWhatIf {
		p.drift.Observe(x)
	}

	return PredictionResult{Input: rec, Prediction: pred}, nil
}

// PredictBatch scores every row of t. All of patient.FeatureColumns must be
// present; other columns are ignored. No rows are scored when any are missing.
func (p *Predictor) PredictBatch(t *dataset.Table) ([]Prediction, error) {
	if missing := MissingColumns(t.Columns); len(missing) > 0 {
		if p.metrics != nil {
			p.metrics.SchemaMismatchInc()
		}
		return nil, &SchemaMismatchError{Missing: missing}
	}

	sel, err := t.Select(patient.FeatureColumns)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out := make([]Prediction, sel.Len())
	for i, row := range sel.Rows {
		out[i] = p.PredictVector(row)
		if p.drift != nil {
			p.drift.Observe(row)
		}
		if p.metrics != nil {
			p.metrics.PredictionScoreObserve(out[i].Disease())
		}
	}
	if p.metrics != nil {
		p.metrics.PredictionsInc(KindBatch)
		p.metrics.PredictionLatencyObserve(time.Since(start).Seconds())
	}

	log.Debug().Int("rows", len(out)).Dur("elapsed", time.Since(start)).Msg("Batch scored")
	return out, nil
}

// FeatureImportance returns the scoring model's per-feature importance,
// ascending by score. It is empty for models without one.
func (p *Predictor) FeatureImportance() []FeatureScore {
	return append([]FeatureScore(nil), p.importances...)
}

func (p *Predictor) observe(kind string, start time.Time, pred Prediction) {
	if p.metrics == nil {
		return
	}
	p.metrics.PredictionsInc(kind)
	p.metrics.PredictionLatencyObserve(time.Since(start).Seconds())
	p.metrics.PredictionScoreObserve(pred.Disease())
}
