package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

const (
	defaultParseQueueSize      = 16
	defaultNumParseWorkers     = 2
	defaultJobTTLMinutes       = 60
	defaultFallbackTimeoutSecs = 20
	defaultFallbackModel       = "gpt-4o-mini"
)

type Config struct {
	// database path
	DatabasePath string

	// HTTP server settings
	Port           string
	AllowedOrigins []string

	// worker settings
	ParseQueueSize  int
	NumParseWorkers int
	JobTTL          time.Duration

	// fallback resolver settings; FallbackEnabled is false when no API key or
	// base URL is configured
	FallbackEnabled     bool
	FallbackBaseURL     string
	FallbackAPIKey      string
	FallbackModel       string
	FallbackTimeout     time.Duration
	ConfidenceThreshold float64

	// bcrypt hash of the admin key; empty disables the admin surface
	AdminKeyHash string
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvFloatOrDefault(envVar string, defaultVal float64) float64 {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil || val < 0 || val > 1 {
		log.Printf("Warning: Invalid %s '%s'. Using default %g. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func LoadConfig() (Config, error) {
	dbPath := getEnvOrDefault("DATABASE_PATH", "descent.db")
	port := getEnvOrDefault("PORT", "8080")

	origins := []string{getEnvOrDefault("ALLOWED_ORIGIN", "http://localhost:5173")}

	queueSize := getEnvIntOrDefault("PARSE_QUEUE_SIZE", defaultParseQueueSize)
	numWorkers := getEnvIntOrDefault("NUM_PARSE_WORKERS", defaultNumParseWorkers)
	jobTTL := time.Duration(getEnvIntOrDefault("JOB_TTL_MINUTES", defaultJobTTLMinutes)) * time.Minute

	fallbackBaseURL := os.Getenv("FALLBACK_BASE_URL")
	fallbackAPIKey := os.Getenv("FALLBACK_API_KEY")
	fallbackModel := getEnvOrDefault("FALLBACK_MODEL", defaultFallbackModel)
	fallbackTimeout := time.Duration(getEnvIntOrDefault("FALLBACK_TIMEOUT_SECONDS", defaultFallbackTimeoutSecs)) * time.Second
	threshold := getEnvFloatOrDefault("CONFIDENCE_THRESHOLD", 0)

	cfg := Config{
		DatabasePath:        dbPath,
		Port:                port,
		AllowedOrigins:      origins,
		ParseQueueSize:      queueSize,
		NumParseWorkers:     numWorkers,
		JobTTL:              jobTTL,
		FallbackEnabled:     fallbackAPIKey != "" || fallbackBaseURL != "",
		FallbackBaseURL:     fallbackBaseURL,
		FallbackAPIKey:      fallbackAPIKey,
		FallbackModel:       fallbackModel,
		FallbackTimeout:     fallbackTimeout,
		ConfidenceThreshold: threshold,
		AdminKeyHash:        os.Getenv("ADMIN_KEY_HASH"),
	}

	return cfg, nil
}
