// Package config defines service configuration and its loading.
package config

import (
	"context"
	"time"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DevJWTSecret is the built-in signing secret. Validate accepts it only in
// the development environment.
const DevJWTSecret = "foursigma-dev-secret-change-me"

// DefaultCORSOrigins are the local front-end dev servers.
var DefaultCORSOrigins = []string{"http://localhost:5173", "http://localhost:3000"}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`
	// Environment is reported by the health endpoint.
	Environment string `koanf:"environment"`

	DBDriver       string `koanf:"db_driver"`
	DBDSN          string `koanf:"db_dsn"`
	DBMaxOpenConns int    `koanf:"db_max_open_conns"`

	// JWTSecret signs access tokens; TokenTTL is their lifetime.
	JWTSecret string        `koanf:"jwt_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl"`

	CORSOrigins []string `koanf:"cors_origins"`

	// NATSURL enables event publishing when set.
	NATSURL           string `koanf:"nats_url"`
	NATSSubjectPrefix string `koanf:"nats_subject_prefix"`
	NATSToken         string `koanf:"nats_token"`

	// EventQueueSize bounds the in-memory event queue.
	EventQueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of event workers.
	WorkerCount int `koanf:"worker_count"`
	// DedupeSize bounds the idempotency key window.
	DedupeSize int `koanf:"dedupe_size"`

	QuestionPageSize   int `koanf:"question_page_size"`
	DailyQuestionCount int `koanf:"daily_question_count"`
	// MaxLeaderboardLimit caps GET /api/leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"leaderboard_max_limit"`
	RecentScoresLimit   int `koanf:"recent_scores_limit"`

	// MetricsInterval is how often system gauges are refreshed.
	MetricsInterval time.Duration `koanf:"metrics_interval"`
}

// New returns a Config populated with defaults.
func New(_ context.Context) *Config {
	origins := make([]string, len(DefaultCORSOrigins))
	copy(origins, DefaultCORSOrigins)

	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":8080",
		Environment:         "development",
		DBDriver:            DriverSQLite,
		DBDSN:               "file:foursigma.db?_pragma=foreign_keys(1)",
		DBMaxOpenConns:      10,
		JWTSecret:           DevJWTSecret,
		TokenTTL:            7 * 24 * time.Hour,
		CORSOrigins:         origins,
		NATSSubjectPrefix:   "foursigma",
		EventQueueSize:      1024,
		WorkerCount:         4,
		DedupeSize:          100_000,
		QuestionPageSize:    10,
		DailyQuestionCount:  3,
		MaxLeaderboardLimit: 100,
		RecentScoresLimit:   10,
		MetricsInterval:     10 * time.Second,
	}
}
