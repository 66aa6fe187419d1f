package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Document store backends.
const (
	BackendSQLite    = "sqlite"
	BackendFirestore = "firestore"
)

// Config holds all configuration for the application. It is built once by
// Load and never modified afterwards.
type Config struct {
	APIPort   string
	LogLevel  slog.Level
	LogFormat string

	ProjectID      string
	Bucket         string
	AllowedOrigins []string
	JWKSURL        string

	DocstoreBackend string
	DBPath          string

	UploadURLTTL   time.Duration
	DownloadURLTTL time.Duration
	MaxUploadBytes int64
	MaxAvatarBytes int64

	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	LeaderboardCacheTTL time.Duration

	OTelEnabled     bool
	OTelEndpoint    string
	OTelInsecure    bool
	OTelSampleRatio float64
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or project root, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	// Walk up to find a project level .env
	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ { // Limit search depth
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break // Reached filesystem root
			}
			dir = parent
		}
	}

	projectID := getEnv("FIREBASE_PROJECT_ID", "moracollect-watlab")

	cfg := &Config{
		APIPort:         getEnv("API_PORT", "8000"),
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", "text")),
		ProjectID:       projectID,
		Bucket:          getEnv("GCS_BUCKET", ""),
		JWKSURL:         getEnv("AUTH_JWKS_URL", ""),
		DocstoreBackend: strings.ToLower(getEnv("DOCSTORE_BACKEND", BackendSQLite)),
		DBPath:          getEnv("DB_PATH", "./data/moracollect.db"),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		OTelEnabled:     getBool("OTEL_ENABLED"),
		OTelEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTelInsecure:    getBool("OTEL_EXPORTER_OTLP_INSECURE"),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL is invalid: %w", err)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	cfg.AllowedOrigins = splitList(getEnv("ALLOWED_ORIGINS", ""))
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{
			"http://localhost:5173",
			"https://" + projectID + ".web.app",
			"https://" + projectID + ".firebaseapp.com",
		}
	}

	if cfg.UploadURLTTL, err = getSeconds("UPLOAD_URL_TTL_SEC", 600, 1); err != nil {
		return nil, err
	}
	if cfg.DownloadURLTTL, err = getSeconds("DOWNLOAD_URL_TTL_SEC", 3600, 1); err != nil {
		return nil, err
	}
	if cfg.LeaderboardCacheTTL, err = getSeconds("LEADERBOARD_CACHE_TTL_SEC", 30, 0); err != nil {
		return nil, err
	}
	// cached leaderboards embed signed avatar URLs, which must outlive the entry
	if cfg.LeaderboardCacheTTL >= cfg.DownloadURLTTL {
		return nil, fmt.Errorf("LEADERBOARD_CACHE_TTL_SEC must be less than DOWNLOAD_URL_TTL_SEC")
	}
	if cfg.MaxUploadBytes, err = getInt("MAX_UPLOAD_BYTES", 20<<20, 1); err != nil {
		return nil, err
	}
	if cfg.MaxAvatarBytes, err = getInt("MAX_AVATAR_BYTES", 2<<20, 1); err != nil {
		return nil, err
	}
	redisDB, err := getInt("REDIS_DB", 0, 0)
	if err != nil {
		return nil, err
	}
	cfg.RedisDB = int(redisDB)

	cfg.OTelSampleRatio = 0.1
	if raw := getEnv("OTEL_SAMPLER_RATIO", ""); raw != "" {
		ratio, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || ratio < 0 || ratio > 1 {
			return nil, fmt.Errorf("OTEL_SAMPLER_RATIO must be a number between 0 and 1, got %q", raw)
		}
		cfg.OTelSampleRatio = ratio
	}

	// Validate required fields
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("GCS_BUCKET is required")
	}

	switch cfg.DocstoreBackend {
	case BackendFirestore:
	case BackendSQLite:
		// Create the data directory for the database file
		dataDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	default:
		return nil, fmt.Errorf("DOCSTORE_BACKEND must be %s or %s, got %q", BackendSQLite, BackendFirestore, cfg.DocstoreBackend)
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func getInt(key string, defaultValue, minValue int64) (int64, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	if n < minValue {
		return 0, fmt.Errorf("%s must be at least %d", key, minValue)
	}
	return n, nil
}

func getSeconds(key string, defaultValue, minValue int64) (time.Duration, error) {
	n, err := getInt(key, defaultValue, minValue)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
