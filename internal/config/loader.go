package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger *slog.Logger
	// lookupEnv is swapped in tests
	lookupEnv func(string) (string, bool)
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger, lookupEnv: os.LookupEnv}
}

// Load builds the configuration with layered precedence:
// 1. Defaults
// 2. Config file (explicit path, else ~/.patchverify/config.yaml)
// 3. Environment variables (PATCHVERIFY_*, GITHUB_TOKEN)
// Command-line flags are applied by the caller afterwards.
func (l *Loader) Load(explicitPath string) (*Config, error) {
	home := l.homeDir()
	cfg := DefaultConfig(home)

	path := explicitPath
	if path == "" {
		path = filepath.Join(home, ConfigFileName)
	}
	if err := cfg.LoadFromFile(path); err == nil {
		l.logger.Debug("loaded config file", slog.String("path", path))
	} else if explicitPath != "" || !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	// A moved home directory drags the default database with it
	if cfg.HomeDir != home && cfg.HistoryDB == filepath.Join(home, HistoryFileName) {
		cfg.HistoryDB = filepath.Join(cfg.HomeDir, HistoryFileName)
	}

	l.applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) applyEnv(cfg *Config) {
	if v, ok := l.lookupEnv("PATCHVERIFY_HOME"); ok && v != "" {
		if cfg.HistoryDB == filepath.Join(cfg.HomeDir, HistoryFileName) {
			cfg.HistoryDB = filepath.Join(v, HistoryFileName)
		}
		cfg.HomeDir = v
	}
	cfg.HistoryDB = l.getEnv("PATCHVERIFY_HISTORY_DB", cfg.HistoryDB)

	// An explicit PATCHVERIFY_ token wins over the ambient gh CLI tokens
	for _, key := range []string{"GH_TOKEN", "GITHUB_TOKEN", "PATCHVERIFY_GITHUB_TOKEN"} {
		cfg.GitHubToken = l.getEnv(key, cfg.GitHubToken)
	}

	cfg.Workers = l.getEnvInt("PATCHVERIFY_WORKERS", cfg.Workers)
	cfg.RequestsPerSecond = l.getEnvFloat("PATCHVERIFY_REQUESTS_PER_SECOND", cfg.RequestsPerSecond)
	cfg.HTTPTimeout = l.getEnvDuration("PATCHVERIFY_HTTP_TIMEOUT", cfg.HTTPTimeout)
	cfg.ScanTimeout = l.getEnvDuration("PATCHVERIFY_SCAN_TIMEOUT", cfg.ScanTimeout)
	cfg.MetricsFile = l.getEnv("PATCHVERIFY_METRICS_FILE", cfg.MetricsFile)
	cfg.Probe.Enabled = l.getEnvBool("PATCHVERIFY_PROBE", cfg.Probe.Enabled)
	cfg.Probe.Python = l.getEnv("PATCHVERIFY_PYTHON", cfg.Probe.Python)
	cfg.Probe.Node = l.getEnv("PATCHVERIFY_NODE", cfg.Probe.Node)
	cfg.Probe.NPM = l.getEnv("PATCHVERIFY_NPM", cfg.Probe.NPM)
	cfg.Verify.Keyring = l.getEnv("PATCHVERIFY_KEYRING", cfg.Verify.Keyring)
}

func (l *Loader) homeDir() string {
	if v, ok := l.lookupEnv("PATCHVERIFY_HOME"); ok && v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return HomeDirName
	}
	return filepath.Join(home, HomeDirName)
}

func (l *Loader) getEnv(key, fallback string) string {
	if value, ok := l.lookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func (l *Loader) getEnvInt(key string, fallback int) int {
	if value, ok := l.lookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
		l.logger.Warn("ignoring malformed integer", slog.String("key", key), slog.String("value", value))
	}
	return fallback
}

func (l *Loader) getEnvFloat(key string, fallback float64) float64 {
	if value, ok := l.lookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		l.logger.Warn("ignoring malformed number", slog.String("key", key), slog.String("value", value))
	}
	return fallback
}

func (l *Loader) getEnvBool(key string, fallback bool) bool {
	if value, ok := l.lookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		l.logger.Warn("ignoring malformed boolean", slog.String("key", key), slog.String("value", value))
	}
	return fallback
}

func (l *Loader) getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := l.lookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		l.logger.Warn("ignoring malformed duration", slog.String("key", key), slog.String("value", value))
	}
	return fallback
}
