package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override, e.g. FOURSIGMA_ADDR.
	EnvPrefix = "FOURSIGMA_"
	// EnvConfigFile names a YAML file to load before the environment.
	EnvConfigFile = EnvPrefix + "CONFIG"
)

// Errors returned by Load and Validate.
var (
	ErrLoadConfig    = errors.New("load config failed")
	ErrInvalidConfig = errors.New("invalid config")
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. YAML file if FOURSIGMA_CONFIG is set
//  3. env (prefix FOURSIGMA_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrLoadConfig, path, err)
		}
	}

	// FOURSIGMA_QUEUE_SIZE -> queue_size; keys stay flat to match the koanf tags.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: environment: %w", ErrLoadConfig, err)
	}

	cfg := *base
	// Slices decode into existing backing arrays, so start from nil.
	cfg.CORSOrigins = nil
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrLoadConfig, err)
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = base.CORSOrigins
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DBDriver != DriverSQLite && c.DBDriver != DriverPostgres:
		return fmt.Errorf("%w: unknown db_driver %q", ErrInvalidConfig, c.DBDriver)
	case c.DBDSN == "":
		return fmt.Errorf("%w: db_dsn must not be empty", ErrInvalidConfig)
	case c.JWTSecret == "":
		return fmt.Errorf("%w: jwt_secret must not be empty", ErrInvalidConfig)
	case c.JWTSecret == DevJWTSecret && c.Environment != "development":
		return fmt.Errorf("%w: jwt_secret must be set outside development (environment %q)", ErrInvalidConfig, c.Environment)
	case c.TokenTTL <= 0:
		return fmt.Errorf("%w: token_ttl must be positive", ErrInvalidConfig)
	}

	positives := []struct {
		key string
		val int
	}{
		{"db_max_open_conns", c.DBMaxOpenConns},
		{"queue_size", c.EventQueueSize},
		{"worker_count", c.WorkerCount},
		{"dedupe_size", c.DedupeSize},
		{"question_page_size", c.QuestionPageSize},
		{"daily_question_count", c.DailyQuestionCount},
		{"leaderboard_max_limit", c.MaxLeaderboardLimit},
		{"recent_scores_limit", c.RecentScoresLimit},
	}
	for _, p := range positives {
		if p.val <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, p.key, p.val)
		}
	}
	if c.MetricsInterval <= 0 {
		return fmt.Errorf("%w: metrics_interval must be positive", ErrInvalidConfig)
	}
	return nil
}
