package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "")
	t.Setenv("TOKEN_STORE", "")
	t.Setenv("REDIS_DB", "")
	t.Setenv("API_TIMEOUT_SECONDS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.BaseURL != "http://127.0.0.1:8080" {
		t.Fatalf("base url = %q", cfg.API.BaseURL)
	}
	if cfg.Storage.Driver != StoreFile {
		t.Fatalf("driver = %q", cfg.Storage.Driver)
	}
	if cfg.API.Timeout() != 0 {
		t.Fatalf("timeout should default to platform default, got %v", cfg.API.Timeout())
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate defaults: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://classroom.example.com/api")
	t.Setenv("API_TIMEOUT_SECONDS", "15")
	t.Setenv("TOKEN_STORE", "Redis")
	t.Setenv("API_EXPIRY_MARKER", "")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.API.Timeout() != 15*time.Second {
		t.Fatalf("timeout = %v", cfg.API.Timeout())
	}
	if cfg.Storage.Driver != StoreRedis {
		t.Fatalf("driver = %q", cfg.Storage.Driver)
	}
	if cfg.API.ExpiryMarker != "" {
		t.Fatalf("explicitly empty marker should stay empty, got %q", cfg.API.ExpiryMarker)
	}
	if cfg.Redis.DB != 3 {
		t.Fatalf("redis db = %d", cfg.Redis.DB)
	}
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	t.Setenv("REDIS_DB", "zero")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed REDIS_DB")
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		API:     APIConfig{BaseURL: "http://localhost:8080"},
		Storage: StorageConfig{Driver: StoreMemory, TokenKey: "k"},
	}

	bad := base
	bad.API.BaseURL = "not a url"
	if err := bad.Validate(); err == nil {
		t.Fatal("expected invalid base url error")
	}

	bad = base
	bad.Storage.Driver = "keychain"
	if err := bad.Validate(); err == nil {
		t.Fatal("expected unknown driver error")
	}

	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}
