package config_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/foursigma/foursigma/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
				convey.So(cfg.CORSOrigins, convey.ShouldResemble, config.DefaultCORSOrigins)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("FOURSIGMA_ADDR", ":9090")
			_ = os.Setenv("FOURSIGMA_DB_DRIVER", "postgres")
			_ = os.Setenv("FOURSIGMA_DB_DSN", "postgres://fs:fs@localhost:5432/foursigma")
			_ = os.Setenv("FOURSIGMA_WORKER_COUNT", "16")
			_ = os.Setenv("FOURSIGMA_TOKEN_TTL", "2h")
			_ = os.Setenv("FOURSIGMA_CORS_ORIGINS", "https://foursigma.app")
			_ = os.Setenv("FOURSIGMA_NATS_URL", "nats://localhost:4222")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.DBDriver, convey.ShouldEqual, config.DriverPostgres)
				convey.So(cfg.DBDSN, convey.ShouldStartWith, "postgres://")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 16)
				convey.So(cfg.TokenTTL, convey.ShouldEqual, 2*time.Hour)
				convey.So(cfg.CORSOrigins, convey.ShouldResemble, []string{"https://foursigma.app"})
				convey.So(cfg.NATSURL, convey.ShouldEqual, "nats://localhost:4222")
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":7070"
log_format: json
queue_size: 64
daily_question_count: 5
cors_origins:
  - https://a.example
  - https://b.example
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("FOURSIGMA_CONFIG", tmpFile)

			convey.Convey("Then it should load from YAML file", func() {
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.EventQueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.DailyQuestionCount, convey.ShouldEqual, 5)
				convey.So(cfg.CORSOrigins, convey.ShouldResemble, []string{"https://a.example", "https://b.example"})
			})

			convey.Convey("And env vars take precedence over the file", func() {
				_ = os.Setenv("FOURSIGMA_ADDR", ":6060")
				cfg, err := config.Load(ctx)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":6060")
				convey.So(cfg.EventQueueSize, convey.ShouldEqual, 64)
			})
		})

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv("FOURSIGMA_CONFIG", "/nonexistent/foursigma.yaml")

			_, err := config.Load(ctx)

			convey.Convey("Then a load error is returned", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a setting is invalid", func() {
			cases := map[string]string{
				"FOURSIGMA_DB_DRIVER":    "mysql",
				"FOURSIGMA_WORKER_COUNT": "0",
				"FOURSIGMA_QUEUE_SIZE":   "-1",
				"FOURSIGMA_ENVIRONMENT":  "production",
			}
			for key, value := range cases {
				clearConfigEnvVars()
				_ = os.Setenv(key, value)

				_, err := config.Load(ctx)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			}
		})
	})
}

func TestConfigValidate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("When addr is empty", func() {
			cfg.Addr = ""
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the jwt secret is empty", func() {
			cfg.JWTSecret = ""
			convey.So(cfg.Validate().Error(), convey.ShouldContainSubstring, "jwt_secret")
		})

		convey.Convey("When the built-in jwt secret is used outside development", func() {
			cfg.Environment = "production"
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "jwt_secret")

			convey.Convey("Then a real secret is accepted", func() {
				cfg.JWTSecret = "a-deployment-secret"
				convey.So(cfg.Validate(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the built-in jwt secret is used in development", func() {
			convey.So(cfg.JWTSecret, convey.ShouldEqual, config.DevJWTSecret)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("When the token ttl is zero", func() {
			cfg.TokenTTL = 0
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
		})
	})
}

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, config.EnvPrefix) {
			_ = os.Unsetenv(key)
		}
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "foursigma-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
