package config

import (
	"log"
	"os"
	"time"

	"temida.org/internal/auth"
)

// Config is read once at startup; everything downstream receives plain
// values, never the environment.
type Config struct {
	Addr    string
	PGDSN   string
	BaseURL string

	AuthSecret string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ResetTTL   time.Duration

	// Edge throttle (per client IP).
	ThrottleBurst     int
	ThrottlePerSecond int
}

// FromEnv builds the config. Malformed lifetime strings fall back to the
// defaults and are logged so a deployment misconfiguration stays visible.
func FromEnv(logger *log.Logger) Config {
	cfg := Config{
		Addr:              envOr("TEMIDA_ADDR", ":8080"),
		PGDSN:             os.Getenv("TEMIDA_PG_DSN"),
		BaseURL:           envOr("TEMIDA_BASE_URL", "http://localhost:8080"),
		AuthSecret:        os.Getenv("AUTH_SECRET"),
		Issuer:            envOr("AUTH_ISSUER", "temida"),
		ThrottleBurst:     20,
		ThrottlePerSecond: 10,
	}

	cfg.AccessTTL = lifetime(logger, "AUTH_ACCESS_TTL", auth.DefaultAccessTTL)
	cfg.RefreshTTL = lifetime(logger, "AUTH_REFRESH_TTL", auth.DefaultRefreshTTL)
	cfg.ResetTTL = lifetime(logger, "AUTH_RESET_TTL", auth.DefaultResetTTL)
	return cfg
}

func lifetime(logger *log.Logger, key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, ok := auth.ParseLifetime(raw, fallback)
	if !ok && logger != nil {
		logger.Printf("%s=%q is not a valid lifetime, using default %s", key, raw, fallback)
	}
	return d
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
