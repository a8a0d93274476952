package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Token store drivers.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// Config aggregates runtime configuration for the client and the sandbox backend.
type Config struct {
	App     AppConfig
	API     APIConfig
	Storage StorageConfig
	Redis   RedisConfig
	Logger  LoggerConfig
	Sandbox SandboxConfig
}

// AppConfig identifies the running binary.
type AppConfig struct {
	Name    string
	Env     string
	Version string
}

// APIConfig controls how the session client talks to the backend.
type APIConfig struct {
	BaseURL        string
	TimeoutSeconds int
	ExpiryMarker   string
	ExpiryCode     string
	UserAgent      string
}

// StorageConfig selects where the session token and downloads live.
type StorageConfig struct {
	Driver      string
	TokenFile   string
	TokenKey    string
	SQLitePath  string
	DownloadDir string
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// SandboxConfig drives the in-memory development backend.
type SandboxConfig struct {
	Host            string
	Port            string
	JWTSecret       string
	TokenTTLMinutes int
	BcryptCost      int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	timeout, err := strconv.Atoi(getEnv("API_TIMEOUT_SECONDS", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid API_TIMEOUT_SECONDS: %w", err)
	}

	dataDir := defaultDataDir()

	cfg := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "classroom-client"),
			Env:     getEnv("APP_ENV", "development"),
			Version: getEnv("APP_VERSION", "dev"),
		},
		API: APIConfig{
			BaseURL:        getEnv("API_BASE_URL", "http://127.0.0.1:8080"),
			TimeoutSeconds: timeout,
			ExpiryMarker:   getEnvAllowEmpty("API_EXPIRY_MARKER", "token expirado"),
			ExpiryCode:     getEnvAllowEmpty("API_EXPIRY_CODE", "token_expired"),
			UserAgent:      getEnv("API_USER_AGENT", "classroom-client"),
		},
		Storage: StorageConfig{
			Driver:      strings.ToLower(getEnv("TOKEN_STORE", StoreFile)),
			TokenFile:   getEnv("TOKEN_FILE", filepath.Join(dataDir, "session_token")),
			TokenKey:    getEnv("TOKEN_KEY", "session_token"),
			SQLitePath:  getEnv("SQLITE_PATH", filepath.Join(dataDir, "classroom.db")),
			DownloadDir: getEnv("DOWNLOAD_DIR", filepath.Join(dataDir, "downloads")),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Sandbox: SandboxConfig{
			Host:            getEnv("SANDBOX_HOST", "127.0.0.1"),
			Port:            getEnv("SANDBOX_PORT", "8080"),
			JWTSecret:       getEnv("SANDBOX_JWT_SECRET", "dev-secret"),
			TokenTTLMinutes: getEnvAsInt("SANDBOX_TOKEN_TTL_MINUTES", 60),
			BcryptCost:      getEnvAsInt("SANDBOX_BCRYPT_COST", 10),
		},
	}

	return cfg, nil
}

// Validate rejects settings the client cannot run with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid API_BASE_URL %q", c.API.BaseURL)
	}
	switch c.Storage.Driver {
	case StoreMemory, StoreFile, StoreRedis, StoreSQLite:
	default:
		return fmt.Errorf("unknown TOKEN_STORE %q", c.Storage.Driver)
	}
	if c.Storage.TokenKey == "" {
		return fmt.Errorf("TOKEN_KEY must not be empty")
	}
	return nil
}

// Timeout returns the configured request timeout; zero keeps the platform default.
func (a APIConfig) Timeout() time.Duration {
	if a.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// Addr returns the sandbox bind address.
func (s SandboxConfig) Addr() string {
	return fmt.Sprintf("%s:%s", s.Host, s.Port)
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "classroom")
	}
	return ".classroom"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvAllowEmpty lets an explicitly empty variable switch a feature off.
func getEnvAllowEmpty(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}
