package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the explicit configuration object assembled once at startup and
// passed into the handler composition. Handlers never read the environment.
type Config struct {
	HTTPAddr    string
	DatabaseDSN string

	// TokenSecret signs and verifies bearer tokens (HS256). Empty disables
	// token issuance; verification then rejects everything.
	TokenSecret string
	TokenIssuer string
	TokenTTL    time.Duration

	// ServiceToken is the service-level credential used by internal tooling.
	// Requests bearing it act with every permission; usage is audited.
	ServiceToken string

	// RBACAdminEnabled gates the role/permission administration endpoints.
	// When false those endpoints answer 404 regardless of authentication.
	RBACAdminEnabled bool

	// MatrixCacheTTL bounds staleness of cached permission-matrix rows after
	// an admin edit on another instance. Zero disables the cache.
	MatrixCacheTTL time.Duration

	RateLimitPerSecond int
	RateLimitBurst     int
	MaxBodyBytes       int64
}

// Load reads configuration from the environment with development defaults.
func Load() Config {
	return Config{
		HTTPAddr:           getenv("AULARED_HTTP_ADDR", ":8080"),
		DatabaseDSN:        getenv("AULARED_PG_DSN", ""),
		TokenSecret:        getenv("AULARED_AUTH_SECRET", ""),
		TokenIssuer:        getenv("AULARED_AUTH_ISSUER", "aulared"),
		TokenTTL:           getenvDuration("AULARED_AUTH_TTL", 15*time.Minute),
		ServiceToken:       getenv("AULARED_SERVICE_TOKEN", ""),
		RBACAdminEnabled:   getenvBool("AULARED_RBAC_ADMIN_ENABLED", true),
		MatrixCacheTTL:     getenvDuration("AULARED_MATRIX_CACHE_TTL", 30*time.Second),
		RateLimitPerSecond: getenvInt("AULARED_RATE_LIMIT_RPS", 20),
		RateLimitBurst:     getenvInt("AULARED_RATE_LIMIT_BURST", 40),
		MaxBodyBytes:       int64(getenvInt("AULARED_MAX_BODY_BYTES", 1<<20)),
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}
