package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"reviewguard/internal"
	"reviewguard/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Data     DataConfig
	Runs     RunsConfig
	Training TrainingConfig
	Forest   ForestConfig
	Server   ServerConfig
	Paths    PathConfig
	LogLevel internal.LogLevel
}

// DataConfig selects where reviews come from
type DataConfig struct {
	ReviewsDBPath string // SQLite review database
	FeatureFile   string // optional xlsx/csv feature table; wins over ReviewsDBPath
}

// RunsConfig holds the run store location
type RunsConfig struct {
	URL string // sqlite://path or postgres://...
}

// TrainingConfig holds self-training settings
type TrainingConfig struct {
	Threshold     float64
	Iterations    int
	TestFraction  float64
	Seed          int64
	PositiveLabel string
	Algorithms    []string
	Workers       int
}

// ForestConfig holds random forest settings
type ForestConfig struct {
	Trees    int
	MaxDepth int
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// PathConfig holds file system paths
type PathConfig struct {
	ReportDir string
}

// Load reads configuration from environment variables and validates it.
// Callers load a .env file first if they want one.
func Load() (*Config, error) {
	level, ok := internal.ParseLogLevel(getEnvOrDefault("LOG_LEVEL", "INFO"))
	if !ok {
		return nil, errors.ConfigInvalid(fmt.Sprintf("unknown LOG_LEVEL %q", os.Getenv("LOG_LEVEL")))
	}

	config := &Config{
		Data:     *loadDataConfig(),
		Runs:     RunsConfig{URL: getEnvOrDefault("RUNS_DATABASE_URL", "sqlite://data/runs.db")},
		Training: *loadTrainingConfig(),
		Forest: ForestConfig{
			Trees:    getEnvIntOrDefault("RF_TREES", 500),
			MaxDepth: getEnvIntOrDefault("RF_MAX_DEPTH", 14),
		},
		Server: ServerConfig{
			Port:    getEnvOrDefault("PORT", "8080"),
			GinMode: getEnvOrDefault("GIN_MODE", "release"),
		},
		Paths:    PathConfig{ReportDir: getEnvOrDefault("REPORT_DIR", "reports")},
		LogLevel: level,
	}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadDataConfig() *DataConfig {
	return &DataConfig{
		ReviewsDBPath: getEnvOrDefault("REVIEWS_DB_PATH", "data/raw/yelpResData.db"),
		FeatureFile:   getEnvOrDefault("FEATURE_FILE", ""),
	}
}

func loadTrainingConfig() *TrainingConfig {
	return &TrainingConfig{
		Threshold:     getEnvFloatOrDefault("THRESHOLD", 0.7),
		Iterations:    getEnvIntOrDefault("ITERATIONS", 15),
		TestFraction:  getEnvFloatOrDefault("TEST_FRACTION", 0.25),
		Seed:          int64(getEnvIntOrDefault("SEED", 42)),
		PositiveLabel: getEnvOrDefault("POSITIVE_LABEL", "Y"),
		Algorithms:    splitList(getEnvOrDefault("ALGORITHMS", "random_forest,naive_bayes")),
		Workers:       getEnvIntOrDefault("WORKERS", runtime.NumCPU()),
	}
}

// Validate checks the settings that would otherwise fail deep inside a run.
// Threshold and test fraction ranges are left to the trainer so API overrides
// get the same errors.
func (c *Config) Validate() error {
	if c.Data.ReviewsDBPath == "" && c.Data.FeatureFile == "" {
		return errors.ConfigInvalid("one of REVIEWS_DB_PATH or FEATURE_FILE is required")
	}
	if _, _, err := ParseRunsURL(c.Runs.URL); err != nil {
		return err
	}
	if len(c.Training.Algorithms) == 0 {
		return errors.ConfigInvalid("ALGORITHMS must name at least one classifier")
	}
	if c.Training.Workers < 1 {
		return errors.ConfigInvalid("WORKERS must be at least 1")
	}
	if c.Forest.Trees < 1 || c.Forest.MaxDepth < 1 {
		return errors.ConfigInvalid("RF_TREES and RF_MAX_DEPTH must be positive")
	}
	if c.Server.Port == "" {
		return errors.ConfigInvalid("PORT is required")
	}
	return nil
}

// ParseRunsURL splits a runs store URL into a driver name and its DSN.
// sqlite:// URLs yield a file path; postgres URLs are passed through whole.
func ParseRunsURL(url string) (driver, dsn string, err error) {
	switch {
	case strings.HasPrefix(url, "sqlite://"):
		path := strings.TrimPrefix(url, "sqlite://")
		if path == "" {
			return "", "", errors.ConfigInvalid("RUNS_DATABASE_URL has an empty sqlite path")
		}
		return "sqlite3", path, nil
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return "postgres", url, nil
	case url == "":
		return "", "", errors.ConfigInvalid("RUNS_DATABASE_URL is required")
	default:
		return "", "", errors.ConfigInvalid(fmt.Sprintf("unsupported RUNS_DATABASE_URL scheme: %s", url))
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
