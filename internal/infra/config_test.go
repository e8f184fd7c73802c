package infra

import (
	"testing"
	"time"
)

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("WORKER_COUNT", "")
	t.Setenv("PROVIDER_TIMEOUT_SECONDS", "")
	t.Setenv("FAL_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.WorkerCount != 4 {
		t.Fatalf("WorkerCount mismatch: got %d want 4", cfg.WorkerCount)
	}
	if cfg.ProviderTimeout != 60*time.Second {
		t.Fatalf("ProviderTimeout mismatch: got %s", cfg.ProviderTimeout)
	}
	if cfg.FalBaseURL != "https://queue.fal.run" {
		t.Fatalf("FalBaseURL mismatch: got %q", cfg.FalBaseURL)
	}
}

func TestLoadConfigClampsWorkerCount(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("WORKER_COUNT", "0")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.WorkerCount != 1 {
		t.Fatalf("WorkerCount mismatch: got %d want 1", cfg.WorkerCount)
	}
}
