package cfg

import (
	"time"

	"heart-insights/internal/common"
	"heart-insights/internal/ml"
)

// Settings is the resolved service configuration.
type Settings struct {
	DatasetPath string
	DataPath    string // bbolt file for sessions; empty keeps sessions in memory

	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
	SessionTTL      time.Duration // idle sessions are removed after this; 0 keeps them

	LogLevel  string
	LogFormat string

	DefaultLocale string
	ActiveModel   string

	RandomSeed   int64
	TestSize     float64
	CVFolds      int
	ForestTrees  int
	TrainWorkers int
	DriftWindow  int
}

// TrainConfig returns the model training parameters.
func (s *Settings) TrainConfig() ml.TrainConfig {
	return ml.TrainConfig{
		Seed:        s.RandomSeed,
		TestSize:    s.TestSize,
		CVFolds:     s.CVFolds,
		ForestTrees: s.ForestTrees,
		Workers:     s.TrainWorkers,
	}
}

// ConfigFile mirrors the YAML configuration layout.
type ConfigFile struct {
	Data struct {
		DatasetPath string `yaml:"datasetPath"`
		DataPath    string `yaml:"dataPath"`
	} `yaml:"data"`

	Server struct {
		ListenAddr      string `yaml:"listenAddr"`
		ReadTimeout     string `yaml:"readTimeout"`
		WriteTimeout    string `yaml:"writeTimeout"`
		ShutdownTimeout string `yaml:"shutdownTimeout"`
		MaxUploadBytes  int64  `yaml:"maxUploadBytes"`
		SessionTTL      string `yaml:"sessionTTL"`
	} `yaml:"server"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	UI struct {
		DefaultLocale string `yaml:"defaultLocale"`
	} `yaml:"ui"`

	ML struct {
		ActiveModel  string  `yaml:"activeModel"`
		RandomSeed   int64   `yaml:"randomSeed"`
		TestSize     float64 `yaml:"testSize"`
		CVFolds      int     `yaml:"cvFolds"`
		ForestTrees  int     `yaml:"forestTrees"`
		TrainWorkers int     `yaml:"trainWorkers"`
		DriftWindow  int     `yaml:"driftWindow"`
	} `yaml:"ml"`
}

func defaultSettings() Settings {
	return Settings{
		DatasetPath:     common.DefaultDatasetPath,
		ListenAddr:      common.DefaultListenAddr,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		MaxUploadBytes:  common.DefaultMaxUploadBytes,
		SessionTTL:      24 * time.Hour,
		LogLevel:        common.DefaultLogLevel,
		LogFormat:       common.DefaultLogFormat,
		DefaultLocale:   common.DefaultLocale,
		ActiveModel:     common.DefaultActiveModel,
		RandomSeed:      common.DefaultRandomSeed,
		TestSize:        common.DefaultTestSize,
		CVFolds:         common.DefaultCVFolds,
		ForestTrees:     common.DefaultForestTrees,
		DriftWindow:     ml.DefaultDriftWindow,
	}
}
