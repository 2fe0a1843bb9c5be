package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Interfaces for metrics to avoid circular imports
type MetricsCounter interface {
	Inc()
}

type MetricsGauge interface {
	Set(float64)
	Add(float64)
	Inc()
	Dec()
}

type MetricsHistogram interface {
	Observe(float64)
}

// MetricsWrapper adapts Metrics to the narrow interfaces used by the model
// and HTTP packages.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

// PredictionsInc counts one prediction call of the given kind.
func (w *MetricsWrapper) PredictionsInc(kind string) {
	w.m.PredictionsTotal.WithLabelValues(kind).Inc()
}

func (w *MetricsWrapper) PredictionLatencyObserve(seconds float64) {
	w.m.PredictionLatency.Observe(seconds)
}

func (w *MetricsWrapper) PredictionScoreObserve(probability float64) {
	w.m.PredictionScores.Observe(probability)
}

func (w *MetricsWrapper) SchemaMismatchInc() {
	w.m.SchemaMismatches.Inc()
}

func (w *MetricsWrapper) TrainingDurationObserve(model string, seconds float64) {
	w.m.TrainingDuration.WithLabelValues(model).Observe(seconds)
}

func (w *MetricsWrapper) ModelAccuracySet(model, split string, accuracy float64) {
	w.m.ModelAccuracy.WithLabelValues(model, split).Set(accuracy)
}

// RequestObserve records one finished HTTP request.
func (w *MetricsWrapper) RequestObserve(route string, code int, seconds float64) {
	w.m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	w.m.HTTPDuration.WithLabelValues(route).Observe(seconds)
}

func (w *MetricsWrapper) BatchFailures() MetricsCounter {
	return &CounterWrapper{w.m.BatchFailures}
}

func (w *MetricsWrapper) ErrorsTotal() MetricsCounter {
	return &CounterWrapper{w.m.ErrorsTotal}
}

func (w *MetricsWrapper) ActiveSessions() MetricsGauge {
	return &GaugeWrapper{w.m.ActiveSessions}
}

func (w *MetricsWrapper) WSConnections() MetricsGauge {
	return &GaugeWrapper{w.m.WSConnections}
}

type CounterWrapper struct {
	c prometheus.Counter
}

func (cw *CounterWrapper) Inc() {
	cw.c.Inc()
}

type GaugeWrapper struct {
	g prometheus.Gauge
}

func (gw *GaugeWrapper) Set(v float64) {
	gw.g.Set(v)
}

func (gw *GaugeWrapper) Add(v float64) {
	gw.g.Add(v)
}

func (gw *GaugeWrapper) Inc() {
	gw.g.Inc()
}

func (gw *GaugeWrapper) Dec() {
	gw.g.Dec()
}

type HistogramWrapper struct {
	h prometheus.Histogram
}

func (hw *HistogramWrapper) Observe(v float64) {
	hw.h.Observe(v)
}

// PredictionLatency exposes the latency histogram for ad hoc timing.
func (w *MetricsWrapper) PredictionLatency() MetricsHistogram {
	return &HistogramWrapper{w.m.PredictionLatency}
}
