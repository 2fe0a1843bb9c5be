package common

// Environment variable keys
const (
	EnvConfigFile      = "CONFIG_FILE"
	EnvDatasetPath     = "DATASET_PATH"
	EnvDataPath        = "DATA_PATH"
	EnvListenAddr      = "LISTEN_ADDR"
	EnvLogLevel        = "LOG_LEVEL"
	EnvLogFormat       = "LOG_FORMAT"
	EnvDefaultLocale   = "DEFAULT_LOCALE"
	EnvActiveModel     = "ACTIVE_MODEL"
	EnvRandomSeed      = "RANDOM_SEED"
	EnvTestSize        = "TEST_SIZE"
	EnvCVFolds         = "CV_FOLDS"
	EnvForestTrees     = "FOREST_TREES"
	EnvTrainWorkers    = "TRAIN_WORKERS"
	EnvMaxUploadBytes  = "MAX_UPLOAD_BYTES"
	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
	EnvDriftWindow     = "DRIFT_WINDOW"
	EnvSessionTTL      = "SESSION_TTL"
	EnvServerURL       = "HEART_SERVER_URL"
)

// Configuration defaults
const (
	DefaultDatasetPath    = "heart_statlog_cleveland_hungary_final.csv"
	DefaultListenAddr     = ":8080"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "console"
	DefaultLocale         = "en"
	DefaultActiveModel    = ModelRandomForest
	DefaultRandomSeed     = 42
	DefaultTestSize       = 0.2
	DefaultCVFolds        = 5
	DefaultForestTrees    = 100
	DefaultMaxUploadBytes = 10 << 20
	DefaultServerURL      = "http://localhost:8080"
)

// Model names as shown in the comparison view
const (
	ModelRandomForest       = "Random Forest"
	ModelLogisticRegression = "Logistic Regression"
	ModelSVM                = "Support Vector Machine"
)

// Session transport
const (
	SessionHeader = "X-Session-ID"
	SessionCookie = "heart_session"
)

// Batch export
const (
	PredictionsFileName = "heart_disease_predictions.csv"
	ColumnPrediction    = "Prediction"
	ColumnProbNoDisease = "Probability (No Disease)"
	ColumnProbDisease   = "Probability (Disease)"
)
