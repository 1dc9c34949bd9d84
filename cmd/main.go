package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/foursigma/foursigma/internal/adapters/http/api"
	"github.com/foursigma/foursigma/internal/adapters/mq/publisher"
	"github.com/foursigma/foursigma/internal/adapters/storage/sqlstore"
	service "github.com/foursigma/foursigma/internal/app"
	"github.com/foursigma/foursigma/internal/auth"
	"github.com/foursigma/foursigma/internal/config"
	"github.com/foursigma/foursigma/pkg/logger"
	"github.com/foursigma/foursigma/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "exiting", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.LogFormat != logger.FormatText {
		if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
			return err
		}
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := sqlstore.Open(ctx, cfg.DBDriver, cfg.DBDSN, sqlstore.WithMaxOpenConns(cfg.DBMaxOpenConns))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(ctx, "close database", logger.Error(err))
		}
	}()

	pub, err := newPublisher(ctx, cfg)
	if err != nil {
		return err
	}
	defer pub.Close()

	svc := newService(cfg, store, pub)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	// Workers drain before the publisher closes.
	defer svc.Stop()

	go collectSystemMetrics(ctx, cfg.MetricsInterval)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewRouter(ctx, svc, api.WithCORSOrigins(cfg.CORSOrigins), api.WithLogger(log.Named("http"))),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("db_driver", store.Driver()),
			logger.String("environment", cfg.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// newPublisher connects to NATS when a URL is configured and discards
// events otherwise.
func newPublisher(ctx context.Context, cfg *config.Config) (publisher.Publisher, error) {
	if cfg.NATSURL == "" {
		return publisher.Nop{}, nil
	}
	opts := []publisher.NATSOption{publisher.WithSubjectPrefix(cfg.NATSSubjectPrefix)}
	if cfg.NATSToken != "" {
		opts = append(opts, publisher.WithToken(cfg.NATSToken))
	}
	pub, err := publisher.NewNATS(ctx, cfg.NATSURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return pub, nil
}

func newService(cfg *config.Config, store service.Store, pub publisher.Publisher) *service.Service {
	return service.New(store, auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL),
		service.WithLogger(logger.Get().Named("service")),
		service.WithEnvironment(cfg.Environment),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.EventQueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithQuestionPageSize(cfg.QuestionPageSize),
		service.WithDailyQuestionCount(cfg.DailyQuestionCount),
		service.WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit),
		service.WithRecentScoresLimit(cfg.RecentScoresLimit),
		service.WithPublisher(pub),
	)
}

// collectSystemMetrics refreshes the runtime gauges until ctx is done.
func collectSystemMetrics(ctx context.Context, interval time.Duration) {
	metrics.CollectSystem()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.CollectSystem()
		}
	}
}
