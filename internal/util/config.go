package util

import (
	"log"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

//nolint:gochecknoglobals // here its ok
var once sync.Once

func init() {
	once.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Printf("Warning: could not load .env file: %v", err)
		}
	})
}

const (
	defaultBaseURL     = "http://localhost:8080/api"
	defaultHTTPTimeout = 15 * time.Second

	defaultRefreshThreshold   = 5 * time.Minute
	defaultExpiryInterval     = 60 * time.Second
	defaultInactivityTimeout  = 30 * time.Minute
	defaultInactivityInterval = 60 * time.Second
	defaultResendCooldown     = 60 * time.Second

	defaultLoginPath        = "/login"
	defaultLandingPath      = "/dashboard"
	defaultConfirmEmailPath = "/confirm-email"

	defaultStoreBackend = "memory"
	defaultSQLitePath   = "lms_session.db"
)

// SessionConfig carries the session lifecycle thresholds and the navigation
// entry points the session manager redirects to.
type SessionConfig struct {
	RefreshThreshold   time.Duration
	ExpiryInterval     time.Duration
	InactivityTimeout  time.Duration
	InactivityInterval time.Duration
	ResendCooldown     time.Duration

	LoginPath        string
	LandingPath      string
	ConfirmEmailPath string
}

func NewSessionConfig() *SessionConfig {
	return &SessionConfig{
		RefreshThreshold:   parseDurationOrDefault("REFRESH_THRESHOLD", defaultRefreshThreshold),
		ExpiryInterval:     parseDurationOrDefault("EXPIRY_CHECK_INTERVAL", defaultExpiryInterval),
		InactivityTimeout:  parseDurationOrDefault("INACTIVITY_TIMEOUT", defaultInactivityTimeout),
		InactivityInterval: parseDurationOrDefault("INACTIVITY_CHECK_INTERVAL", defaultInactivityInterval),
		ResendCooldown:     parseDurationOrDefault("RESEND_COOLDOWN", defaultResendCooldown),
		LoginPath:          getEnvOrDefault("LOGIN_PATH", defaultLoginPath),
		LandingPath:        getEnvOrDefault("LANDING_PATH", defaultLandingPath),
		ConfirmEmailPath:   getEnvOrDefault("CONFIRM_EMAIL_PATH", defaultConfirmEmailPath),
	}
}

type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

func NewClientConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL: getEnvOrDefault("AUTH_BASE_URL", defaultBaseURL),
		Timeout: parseDurationOrDefault("HTTP_TIMEOUT", defaultHTTPTimeout),
	}
}

// StoreConfig selects the credential store backend. "memory" keeps
// credentials for the process lifetime only; "sqlite" and "redis" persist
// them across restarts.
type StoreConfig struct {
	Backend    string
	SQLitePath string
	RedisAddr  string
}

func NewStoreConfig() *StoreConfig {
	return &StoreConfig{
		Backend:    getEnvOrDefault("STORE_BACKEND", defaultStoreBackend),
		SQLitePath: getEnvOrDefault("SQLITE_PATH", defaultSQLitePath),
		RedisAddr:  os.Getenv("REDIS_ADDR"),
	}
}

func getEnvOrDefault(varName, def string) string {
	if v := os.Getenv(varName); v != "" {
		return v
	}
	return def
}

func parseDurationOrDefault(varName string, def time.Duration) time.Duration {
	if v := os.Getenv(varName); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("Invalid duration in %s: %s, using default %s", varName, v, def)
	}
	return def
}
