// Package metrics provides Prometheus metrics collection for the heart
// insights service. It defines the prediction, training, HTTP and session
// metrics exposed on the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Prediction metrics
	PredictionsTotal  *prometheus.CounterVec // Predictions made, by kind (single, batch, whatif)
	PredictionLatency prometheus.Histogram   // Scoring latency in seconds
	PredictionScores  prometheus.Histogram   // Distribution of predicted disease probabilities
	SchemaMismatches  prometheus.Counter     // Batches rejected for missing columns
	BatchFailures     prometheus.Counter     // Batches that could not be parsed

	// Training metrics
	TrainingDuration *prometheus.HistogramVec // Fit plus cross-validation time per model
	ModelAccuracy    *prometheus.GaugeVec     // Accuracy per model and split (test, cv)

	// HTTP and session metrics
	HTTPRequests   *prometheus.CounterVec   // Requests by route and status code
	HTTPDuration   *prometheus.HistogramVec // Request duration by route
	ActiveSessions prometheus.Gauge         // Sessions held by the session store
	WSConnections  prometheus.Gauge         // Open what-if WebSocket connections
	ErrorsTotal    prometheus.Counter       // Internal errors encountered
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		PredictionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "heart_predictions_total",
			Help: "Total number of predictions made",
		}, []string{"kind"}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "heart_prediction_latency_seconds",
			Help:    "Prediction latency in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		PredictionScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "heart_prediction_disease_probability",
			Help:    "Distribution of predicted disease probabilities",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		SchemaMismatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "heart_batch_schema_mismatches_total",
			Help: "Total number of batches rejected for missing columns",
		}),
		BatchFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "heart_batch_failures_total",
			Help: "Total number of batches that could not be processed",
		}),
		TrainingDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "heart_training_duration_seconds",
			Help:    "Model training duration in seconds, cross-validation included",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
		}, []string{"model"}),
		ModelAccuracy: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "heart_model_accuracy",
			Help: "Model accuracy on the held-out split or cross-validation",
		}, []string{"model", "split"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "heart_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"route", "code"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "heart_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "heart_active_sessions",
			Help: "Number of sessions held by the session store",
		}),
		WSConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "heart_ws_connections",
			Help: "Number of open what-if WebSocket connections",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "heart_errors_total",
			Help: "Total number of internal errors encountered",
		}),
	}
}
