package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"heart-insights/internal/common"
	"heart-insights/internal/i18n"

	"gopkg.in/yaml.v3"
)

// Load resolves settings from the YAML file named by CONFIG_FILE, when set,
// then applies environment overrides and validates the result.
func Load() (Settings, error) {
	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	settings := defaultSettings()
	if err := applyFile(&settings, &config); err != nil {
		return Settings{}, err
	}
	applyEnv(&settings)

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := defaultSettings()
	applyEnv(&settings)

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

// applyFile copies every value set in the file over the defaults.
func applyFile(s *Settings, c *ConfigFile) error {
	setString(&s.DatasetPath, c.Data.DatasetPath)
	setString(&s.DataPath, c.Data.DataPath)
	setString(&s.ListenAddr, c.Server.ListenAddr)
	setString(&s.LogLevel, c.Logging.Level)
	setString(&s.LogFormat, c.Logging.Format)
	setString(&s.DefaultLocale, c.UI.DefaultLocale)
	setString(&s.ActiveModel, c.ML.ActiveModel)

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.readTimeout", c.Server.ReadTimeout, &s.ReadTimeout},
		{"server.writeTimeout", c.Server.WriteTimeout, &s.WriteTimeout},
		{"server.shutdownTimeout", c.Server.ShutdownTimeout, &s.ShutdownTimeout},
		{"server.sessionTTL", c.Server.SessionTTL, &s.SessionTTL},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", d.name, d.raw, err)
		}
		*d.dst = v
	}

	if c.Server.MaxUploadBytes != 0 {
		s.MaxUploadBytes = c.Server.MaxUploadBytes
	}
	if c.ML.RandomSeed != 0 {
		s.RandomSeed = c.ML.RandomSeed
	}
	if c.ML.TestSize != 0 {
		s.TestSize = c.ML.TestSize
	}
	if c.ML.CVFolds != 0 {
		s.CVFolds = c.ML.CVFolds
	}
	if c.ML.ForestTrees != 0 {
		s.ForestTrees = c.ML.ForestTrees
	}
	if c.ML.TrainWorkers != 0 {
		s.TrainWorkers = c.ML.TrainWorkers
	}
	if c.ML.DriftWindow != 0 {
		s.DriftWindow = c.ML.DriftWindow
	}
	return nil
}

// applyEnv overrides settings from the environment. Unparseable values are
// ignored and the previous value is kept.
func applyEnv(s *Settings) {
	s.DatasetPath = getEnvOrDefault(common.EnvDatasetPath, s.DatasetPath)
	s.DataPath = getEnvOrDefault(common.EnvDataPath, s.DataPath)
	s.ListenAddr = getEnvOrDefault(common.EnvListenAddr, s.ListenAddr)
	s.LogLevel = strings.ToLower(getEnvOrDefault(common.EnvLogLevel, s.LogLevel))
	s.LogFormat = strings.ToLower(getEnvOrDefault(common.EnvLogFormat, s.LogFormat))
	s.DefaultLocale = getEnvOrDefault(common.EnvDefaultLocale, s.DefaultLocale)
	s.ActiveModel = getEnvOrDefault(common.EnvActiveModel, s.ActiveModel)

	s.ReadTimeout = getDurationOrDefault(common.EnvReadTimeout, s.ReadTimeout)
	s.WriteTimeout = getDurationOrDefault(common.EnvWriteTimeout, s.WriteTimeout)
	s.ShutdownTimeout = getDurationOrDefault(common.EnvShutdownTimeout, s.ShutdownTimeout)
	s.MaxUploadBytes = int64(getIntOrDefault(common.EnvMaxUploadBytes, int(s.MaxUploadBytes)))
	s.SessionTTL = getDurationOrDefault(common.EnvSessionTTL, s.SessionTTL)

	s.RandomSeed = int64(getIntOrDefault(common.EnvRandomSeed, int(s.RandomSeed)))
	s.TestSize = getFloatOrDefault(common.EnvTestSize, s.TestSize)
	s.CVFolds = getIntOrDefault(common.EnvCVFolds, s.CVFolds)
	s.ForestTrees = getIntOrDefault(common.EnvForestTrees, s.ForestTrees)
	s.TrainWorkers = getIntOrDefault(common.EnvTrainWorkers, s.TrainWorkers)
	s.DriftWindow = getIntOrDefault(common.EnvDriftWindow, s.DriftWindow)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

var knownModels = map[string]bool{
	common.ModelRandomForest:       true,
	common.ModelLogisticRegression: true,
	common.ModelSVM:                true,
}

var logLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// validateSettings performs comprehensive validation of configuration values
func validateSettings(settings *Settings) error {
	if settings.DatasetPath == "" {
		return fmt.Errorf("dataset path cannot be empty")
	}
	if settings.ListenAddr == "" {
		return fmt.Errorf("listen address cannot be empty")
	}

	if !logLevels[settings.LogLevel] {
		return fmt.Errorf("log level must be one of trace, debug, info, warn, error, got %q", settings.LogLevel)
	}
	if settings.LogFormat != "console" && settings.LogFormat != "json" {
		return fmt.Errorf("log format must be console or json, got %q", settings.LogFormat)
	}

	if !i18n.IsSupported(settings.DefaultLocale) {
		return fmt.Errorf("default locale %q is not supported (have %v)", settings.DefaultLocale, i18n.Locales())
	}
	if !knownModels[settings.ActiveModel] {
		return fmt.Errorf("active model %q is not a known algorithm", settings.ActiveModel)
	}

	// Validate time durations
	if settings.ReadTimeout < time.Second || settings.ReadTimeout > 5*time.Minute {
		return fmt.Errorf("read timeout must be between 1s and 5m, got %v", settings.ReadTimeout)
	}
	if settings.WriteTimeout < time.Second || settings.WriteTimeout > 10*time.Minute {
		return fmt.Errorf("write timeout must be between 1s and 10m, got %v", settings.WriteTimeout)
	}
	if settings.ShutdownTimeout < time.Second || settings.ShutdownTimeout > 5*time.Minute {
		return fmt.Errorf("shutdown timeout must be between 1s and 5m, got %v", settings.ShutdownTimeout)
	}

	if settings.SessionTTL != 0 && (settings.SessionTTL < time.Minute || settings.SessionTTL > 720*time.Hour) {
		return fmt.Errorf("session ttl must be 0 or between 1m and 720h, got %v", settings.SessionTTL)
	}

	// Validate integer values
	if settings.MaxUploadBytes < 1024 || settings.MaxUploadBytes > 1<<30 {
		return fmt.Errorf("max upload size must be between 1KiB and 1GiB, got %d", settings.MaxUploadBytes)
	}
	if settings.CVFolds < 2 || settings.CVFolds > 20 {
		return fmt.Errorf("cv folds must be between 2 and 20, got %d", settings.CVFolds)
	}
	if settings.ForestTrees < 1 || settings.ForestTrees > 5000 {
		return fmt.Errorf("forest trees must be between 1 and 5000, got %d", settings.ForestTrees)
	}
	if settings.TrainWorkers < 0 || settings.TrainWorkers > 256 {
		return fmt.Errorf("train workers must be between 0 and 256, got %d", settings.TrainWorkers)
	}
	if settings.DriftWindow < 1 || settings.DriftWindow > 100000 {
		return fmt.Errorf("drift window must be between 1 and 100000, got %d", settings.DriftWindow)
	}

	// Validate float values
	if settings.TestSize <= 0 || settings.TestSize >= 0.5 {
		return fmt.Errorf("test size must be between 0 and 0.5, got %f", settings.TestSize)
	}

	return nil
}
