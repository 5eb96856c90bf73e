package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends accepted in STORE_BACKEND.
const (
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Config holds the runtime configuration for the chat client.
type Config struct {
	ServiceName string // e.g. "chat-client"
	Env         string // "dev", "uat", "prod"
	LogLevel    string

	BackendURL     string        // origin of the chat backend, no trailing slash
	HTTPTimeout    time.Duration // per-request timeout
	RefreshTimeout time.Duration // upper bound on one token exchange

	StoreBackend string // file | redis | memory
	StorePath    string // credentials file for the file backend
	SessionTTL   time.Duration

	RedisAddr   string
	RedisDB     int
	RedisPass   string
	RedisPrefix string

	NATSURL       string // empty disables auth event publishing
	EventsSubject string

	MetricsAddr string // empty disables the /metrics listener
	AWSRegion   string

	RateRPS   int
	RateBurst int
}

// Load loads configuration from environment variables and .env file if present.
func Load() *Config {
	// load .env silently (no error if missing)
	_ = godotenv.Load()

	return &Config{
		ServiceName:    GetEnv("SERVICE_NAME", "chat-client"),
		Env:            GetEnv("ENV", "dev"),
		LogLevel:       GetEnv("LOG_LEVEL", "warn"),
		BackendURL:     strings.TrimRight(GetEnv("BACKEND_URL", "http://localhost:8000"), "/"),
		HTTPTimeout:    GetEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		RefreshTimeout: GetEnvDuration("REFRESH_TIMEOUT", 10*time.Second),
		StoreBackend:   strings.ToLower(GetEnv("STORE_BACKEND", StoreFile)),
		StorePath:      GetEnv("STORE_PATH", defaultStorePath()),
		SessionTTL:     GetEnvDuration("SESSION_TTL", 12*time.Hour),
		RedisAddr:      GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:        GetEnvInt("REDIS_DB", 0),
		RedisPass:      GetEnv("REDIS_PASS", ""),
		RedisPrefix:    GetEnv("REDIS_PREFIX", "chat-client"),
		NATSURL:        GetEnv("NATS_URL", ""),
		EventsSubject:  GetEnv("EVENTS_SUBJECT", "evt.chat"),
		MetricsAddr:    GetEnv("METRICS_ADDR", ""),
		AWSRegion:      GetEnv("AWS_REGION", "us-east-2"),
		RateRPS:        GetEnvInt("RATE_RPS", 10),
		RateBurst:      GetEnvInt("RATE_BURST", 20),
	}
}

// defaultStorePath places the credentials file under the user config dir,
// falling back to the working directory when none is available.
func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return "chat-client-credentials.json"
	}
	return filepath.Join(dir, "chat-client", "credentials.json")
}
