// Package dashboard serves the heart disease risk dashboard API.
// It exposes prediction, what-if, insight, batch scoring and informational
// endpoints as JSON (CSV for batch downloads), plus a WebSocket stream for
// interactive what-if analysis.
//
// Every /api and /ws request is bound to a session, identified by the
// X-Session-ID header or the heart_session cookie and created on first use.
package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"heart-insights/internal/dataset"
	"heart-insights/internal/metrics"
	"heart-insights/internal/ml"
	"heart-insights/internal/resources"
	"heart-insights/internal/session"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Deps are the process-wide components the handlers read from.
type Deps struct {
	Predictor *ml.Predictor
	Models    ml.Models
	Dataset   *dataset.Dataset
	Sessions  *session.Manager
	Resources *resources.Directory
	Metrics   *metrics.MetricsWrapper // optional
	Gatherer  prometheus.Gatherer     // optional, defaults to the global registry
}

// Options configure the HTTP server.
type Options struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
}

// RiskDashboard is the HTTP front end of the service.
type RiskDashboard struct {
	deps     Deps
	opts     Options
	router   *mux.Router
	server   *http.Server
	upgrader websocket.Upgrader

	clients   map[*websocket.Conn]bool // Connected what-if WebSocket clients
	clientsMu sync.Mutex

	insightsOnce sync.Once
	insights     *insightCache

	isRunning bool
	mu        sync.Mutex
}

// NewRiskDashboard wires the routes. The server is not started.
func NewRiskDashboard(deps Deps, opts Options) *RiskDashboard {
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	rd := &RiskDashboard{
		deps:     deps,
		opts:     opts,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:  make(map[*websocket.Conn]bool),
	}

	r := mux.NewRouter()
	r.Use(rd.instrument)
	r.HandleFunc("/health", rd.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(rd.withSession)
	api.HandleFunc("/session", rd.handleGetSession).Methods(http.MethodGet)
	api.HandleFunc("/session", rd.handleUpdateSession).Methods(http.MethodPut)
	api.HandleFunc("/session", rd.handleDeleteSession).Methods(http.MethodDelete)
	api.HandleFunc("/session/history", rd.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/form", rd.handleForm).Methods(http.MethodGet)
	api.HandleFunc("/predict", rd.handlePredict).Methods(http.MethodPost)
	api.HandleFunc("/recommendations", rd.handleRecommendations).Methods(http.MethodGet)
	api.HandleFunc("/whatif", rd.handleWhatIf).Methods(http.MethodPost)
	api.HandleFunc("/whatif/sweep", rd.handleSweep).Methods(http.MethodPost)
	api.HandleFunc("/models", rd.handleModels).Methods(http.MethodGet)
	api.HandleFunc("/importance", rd.handleImportance).Methods(http.MethodGet)
	api.HandleFunc("/insights/correlations", rd.handleCorrelations).Methods(http.MethodGet)
	api.HandleFunc("/insights/histogram", rd.handleHistogram).Methods(http.MethodGet)
	api.HandleFunc("/trends", rd.handleTrends).Methods(http.MethodGet)
	api.HandleFunc("/trends/scatter", rd.handleScatter).Methods(http.MethodGet)
	api.HandleFunc("/drift", rd.handleDrift).Methods(http.MethodGet)
	api.HandleFunc("/batch", rd.handleBatch).Methods(http.MethodPost)
	api.HandleFunc("/resources", rd.handleResources).Methods(http.MethodGet)
	api.HandleFunc("/resources/{city}", rd.handleCity).Methods(http.MethodGet)
	api.HandleFunc("/i18n", rd.handleCatalog).Methods(http.MethodGet)

	ws := r.PathPrefix("/ws").Subrouter()
	ws.Use(rd.withSession)
	ws.HandleFunc("/whatif", rd.handleWhatIfSocket).Methods(http.MethodGet)

	rd.router = r
	rd.server = &http.Server{
		Addr:         opts.ListenAddr,
		Handler:      r,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	return rd
}

// Handler returns the routed handler, for tests and embedding.
func (rd *RiskDashboard) Handler() http.Handler {
	return rd.router
}

// Start serves in the background. errc receives the listener error, if any.
func (rd *RiskDashboard) Start() (<-chan error, error) {
	rd.mu.Lock()
	defer rd.mu.Unlock()

	if rd.isRunning {
		return nil, fmt.Errorf("risk dashboard is already running")
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().
			Str("address", rd.server.Addr).
			Msg("Starting risk dashboard server")

		if err := rd.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Risk dashboard server failed")
			errc <- err
		}
		close(errc)
	}()

	rd.isRunning = true
	return errc, nil
}

// Stop closes WebSocket clients and drains in-flight requests.
func (rd *RiskDashboard) Stop() error {
	rd.mu.Lock()
	defer rd.mu.Unlock()

	if !rd.isRunning {
		return nil
	}

	rd.clientsMu.Lock()
	for client := range rd.clients {
		client.Close()
	}
	rd.clients = make(map[*websocket.Conn]bool)
	rd.clientsMu.Unlock()

	timeout := rd.opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := rd.server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown risk dashboard server")
		return err
	}

	rd.isRunning = false
	log.Info().Msg("Risk dashboard stopped")
	return nil
}

func (rd *RiskDashboard) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"model":  rd.deps.Predictor.ModelName(),
	})
}
