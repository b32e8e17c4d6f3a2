// Package config loads application configuration from environment
// variables, optionally seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env       string // application environment (e.g. "dev", "prod")
	Port      string // HTTP port to listen on
	DBUser    string // database username
	DBPass    string // database password (optional)
	DBHost    string // database host address
	DBPort    string // database port number
	DBName    string // database name
	JWTSecret string // secret used to verify JWTs

	HoldTTL           time.Duration // how long a hold blocks its seats
	HoldSweepInterval time.Duration // expired-hold cleanup period; 0 disables it
	StrictPricing     bool          // reject holds on seat types without a price
	DBMigrate         bool          // apply embedded migrations at startup

	AMQPURL       string // RabbitMQ URL; empty disables booking events
	BookingLogDir string // directory the booking event consumer writes to
}

// IsProd reports whether the service runs in production.
func (c Config) IsProd() bool {
	return strings.EqualFold(c.Env, "prod") || strings.EqualFold(c.Env, "production")
}

// Load reads configuration values from the environment, after loading a
// .env file from the working directory when one exists.  Every required
// variable that is unset or empty is reported in the returned error.
func Load() (Config, error) {
	_ = godotenv.Load() // a missing .env file is fine; real env vars win

	r := &reader{}
	cfg := Config{
		Env:       r.must("APP_ENV"),    // environment (dev/test/prod)
		Port:      r.must("APP_PORT"),   // port to bind the HTTP server
		DBUser:    r.must("DB_USER"),    // database user
		DBPass:    os.Getenv("DB_PASS"), // database password (empty allowed)
		DBHost:    r.must("DB_HOST"),    // database host
		DBPort:    r.must("DB_PORT"),    // database port
		DBName:    r.must("DB_NAME"),    // database name
		JWTSecret: r.must("JWT_SECRET"), // secret used for verifying JWTs

		HoldTTL:           envDur("HOLD_TTL", 5*time.Minute),
		HoldSweepInterval: envDur("HOLD_SWEEP_INTERVAL", 0),
		StrictPricing:     envBool("STRICT_PRICING", true),
		DBMigrate:         envBool("DB_MIGRATE", true),

		AMQPURL:       amqpURL(),
		BookingLogDir: envStr("BOOKING_LOG_DIR", "logs"),
	}
	if len(r.missing) > 0 {
		return Config{}, fmt.Errorf("missing required env vars: %s", strings.Join(r.missing, ", "))
	}
	if cfg.HoldTTL <= 0 {
		return Config{}, fmt.Errorf("invalid HOLD_TTL: %s", cfg.HoldTTL)
	}
	return cfg, nil
}

// amqpURL returns the broker URL from RABBITMQ_URL, falling back to
// AMQP_URL.  Empty means no broker is configured.
func amqpURL() string {
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		return v
	}
	return os.Getenv("AMQP_URL")
}

// reader collects the names of required variables that are missing.
type reader struct {
	missing []string
}

// must retrieves the value of a required environment variable.  An unset or
// empty variable is recorded as missing.
func (r *reader) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		r.missing = append(r.missing, key)
	}
	return v
}
