package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents worker configuration loaded from environment variables.
type Config struct {
	AppEnv          string
	Port            string
	DatabaseURL     string
	StoragePath     string
	WorkerCount     int
	JobPollInterval time.Duration
	ProviderTimeout time.Duration
	GeminiAPIKey    string
	GeminiBaseURL   string
	ArkAPIKey       string
	ArkBaseURL      string
	FalAPIKey       string
	FalBaseURL      string
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:          getEnv("APP_ENV", "development"),
		Port:            getEnv("PORT", "8081"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		StoragePath:     getEnv("STORAGE_PATH", "./storage"),
		WorkerCount:     getEnvInt("WORKER_COUNT", 4),
		JobPollInterval: time.Second * time.Duration(getEnvInt("JOB_POLL_INTERVAL_SECONDS", 2)),
		ProviderTimeout: time.Second * time.Duration(getEnvInt("PROVIDER_TIMEOUT_SECONDS", 60)),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiBaseURL:   getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		ArkAPIKey:       os.Getenv("ARK_API_KEY"),
		ArkBaseURL:      getEnv("ARK_BASE_URL", "https://ark-api.bytedance.com/api/v3"),
		FalAPIKey:       os.Getenv("FAL_API_KEY"),
		FalBaseURL:      getEnv("FAL_BASE_URL", "https://queue.fal.run"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
