package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

const (
	defaultListenAddr = ":8002"
	defaultDBPath     = "foundry.db"
	defaultTrainedDir = "training/outputs/trained"
	defaultOnnxDir    = "training/outputs/onnx"
	defaultLogsDir    = "training/outputs/logs"

	envListenAddr = "FOUNDRY_LISTEN_ADDR"
	envDBPath     = "FOUNDRY_DB_PATH"
	envLogLevel   = "FOUNDRY_LOG_LEVEL"
	envTrainedDir = "FOUNDRY_TRAINED_DIR"
	envOnnxDir    = "FOUNDRY_ONNX_DIR"
	envLogsDir    = "FOUNDRY_LOGS_DIR"
)

// Build orchestrator defaults and environment variables. These are shared
// with the deployment container images, so they carry no FOUNDRY_ prefix.
const (
	defaultModelsDir   = "/app/models"
	defaultEnginesDir  = "/app/engines"
	defaultCalibDir    = "/app/calibration"
	defaultWorkspaceMB = 2048

	envModelsDir   = "MODELS_DIR"
	envEnginesDir  = "ENGINES_DIR"
	envCalibDir    = "CALIB_DIR"
	envWorkspaceMB = "WORKSPACE_MB"
)

// Config holds API server configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	LogLevel   slog.Level

	// TrainedDir holds per-run training outputs (<name>/weights/best.pt),
	// OnnxDir holds exported models, CalibDir calibration caches and LogsDir
	// the redirected stdout of spawned processes.
	TrainedDir string
	OnnxDir    string
	CalibDir   string
	LogsDir    string
}

// BuildConfig holds engine build orchestrator configuration.
type BuildConfig struct {
	ModelsDir   string
	EnginesDir  string
	CalibDir    string
	WorkspaceMB int
}

// Load reads server configuration from environment variables with sensible defaults.
func Load() Config {
	cfg := Config{
		ListenAddr: defaultListenAddr,
		DBPath:     defaultDBPath,
		LogLevel:   slog.LevelInfo,
		TrainedDir: defaultTrainedDir,
		OnnxDir:    defaultOnnxDir,
		CalibDir:   defaultCalibDir,
		LogsDir:    defaultLogsDir,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envTrainedDir); v != "" {
		cfg.TrainedDir = v
	}
	if v := os.Getenv(envOnnxDir); v != "" {
		cfg.OnnxDir = v
	}
	if v := os.Getenv(envCalibDir); v != "" {
		cfg.CalibDir = v
	}
	if v := os.Getenv(envLogsDir); v != "" {
		cfg.LogsDir = v
	}

	return cfg
}

// LoadBuild reads build orchestrator configuration from environment variables.
func LoadBuild() BuildConfig {
	cfg := BuildConfig{
		ModelsDir:   defaultModelsDir,
		EnginesDir:  defaultEnginesDir,
		CalibDir:    defaultCalibDir,
		WorkspaceMB: defaultWorkspaceMB,
	}

	if v := os.Getenv(envModelsDir); v != "" {
		cfg.ModelsDir = v
	}
	if v := os.Getenv(envEnginesDir); v != "" {
		cfg.EnginesDir = v
	}
	if v := os.Getenv(envCalibDir); v != "" {
		cfg.CalibDir = v
	}
	if v := os.Getenv(envWorkspaceMB); v != "" {
		if mb, err := strconv.Atoi(v); err == nil && mb > 0 {
			cfg.WorkspaceMB = mb
		}
	}

	return cfg
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
