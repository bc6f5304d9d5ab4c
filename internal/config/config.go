package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the server settings
type Config struct {
	DatabasePath        string
	Port                string
	LogLevel            string
	UploadsDir          string
	FilestorePassphrase string
	MaxUploadSizeBytes  int64
	ReportCacheTTL      time.Duration
	RateLimitRPS        float64
	RateLimitBurst      int
	JobPollInterval     time.Duration
}

// Load reads an optional .env file, then the environment. Malformed values
// fall back to their defaults with a warning.
func Load(envFiles ...string) *Config {
	if err := godotenv.Load(envFiles...); err != nil {
		slog.Debug("env_file_not_loaded", "error", err.Error())
	}

	dbPath := getEnv("CASHLENS_DB_PATH", "./data/cashlens.db")
	return &Config{
		DatabasePath:        dbPath,
		Port:                getEnv("PORT", "8080"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		UploadsDir:          getEnv("CASHLENS_UPLOADS_DIR", filepath.Join(filepath.Dir(dbPath), "uploads")),
		FilestorePassphrase: getEnv("CASHLENS_FILESTORE_PASSPHRASE", ""),
		MaxUploadSizeBytes:  int64(getEnvAsInt("MAX_UPLOAD_SIZE_BYTES", 10<<20)),
		ReportCacheTTL:      getEnvAsDuration("REPORT_CACHE_TTL", 5*time.Minute),
		RateLimitRPS:        getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:      getEnvAsInt("RATE_LIMIT_BURST", 20),
		JobPollInterval:     getEnvAsDuration("JOB_POLL_INTERVAL", 2*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("config_invalid_int", "key", key, "value", raw, "default", fallback)
		return fallback
	}
	return v
}

func getEnvAsFloat(key string, fallback float64) float64 {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		slog.Warn("config_invalid_float", "key", key, "value", raw, "default", fallback)
		return fallback
	}
	return v
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		slog.Warn("config_invalid_duration", "key", key, "value", raw, "default", fallback.String())
		return fallback
	}
	return v
}
