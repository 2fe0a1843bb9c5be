package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"heart-insights/internal/cfg"
	"heart-insights/internal/dashboard"
	"heart-insights/internal/dataset"
	"heart-insights/internal/metrics"
	"heart-insights/internal/ml"
	"heart-insights/internal/patient"
	"heart-insights/internal/resources"
	"heart-insights/internal/session"
	"heart-insights/internal/storage"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	setupLogging(c.LogLevel, c.LogFormat)

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	ds, err := dataset.NewLoader().Load(c.DatasetPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", c.DatasetPath).Msg("Failed to load dataset")
	}

	models, err := ml.NewTrainer(c.TrainConfig(), mw).Train(ds)
	if err != nil {
		log.Fatal().Err(err).Msg("Model training failed")
	}

	predictor, err := ml.NewPredictor(models, c.ActiveModel, mw)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to select active model")
	}
	predictor.TrackDrift(ml.NewDriftDetector(patient.FeatureColumns, ds.Features.Rows, c.DriftWindow))

	store := initializeStore(c)
	defer store.Close()

	dir, err := resources.Default()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load resource directory")
	}

	sessions := session.NewManager(store, c.DefaultLocale, mw.ActiveSessions())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sessions.RunExpiry(ctx, c.SessionTTL, 0)

	rd := dashboard.NewRiskDashboard(dashboard.Deps{
		Predictor: predictor,
		Models:    models,
		Dataset:   ds,
		Sessions:  sessions,
		Resources: dir,
		Metrics:   mw,
	}, dashboard.Options{
		ListenAddr:      c.ListenAddr,
		ReadTimeout:     c.ReadTimeout,
		WriteTimeout:    c.WriteTimeout,
		ShutdownTimeout: c.ShutdownTimeout,
		MaxUploadBytes:  c.MaxUploadBytes,
	})

	errc, err := rd.Start()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start risk dashboard")
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("Shutting down")
	case err := <-errc:
		if err != nil {
			log.Error().Err(err).Msg("Server stopped unexpectedly")
		}
	}

	cancel()
	if err := rd.Stop(); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

func setupLogging(level, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// initializeStore opens the bbolt session store, or falls back to memory when
// no data path is configured or the file cannot be opened.
func initializeStore(c cfg.Settings) session.Store {
	if c.DataPath == "" {
		log.Info().Msg("No data path configured, sessions are kept in memory")
		return session.NewMemoryStore(0)
	}
	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("storage initialization failed, continuing without persistence")
		return session.NewMemoryStore(0)
	}
	log.Info().Str("path", c.DataPath).Msg("Session store opened")
	return store
}
