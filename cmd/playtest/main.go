package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/foursigma/foursigma/internal/playtest"
	"github.com/foursigma/foursigma/pkg/logger"
)

// Default configuration constants.
const (
	defaultPlayers  = 200
	defaultSessions = 2
	defaultTopN     = 50
	defaultWorkers  = 2 // multiplier for runtime.NumCPU()
	defaultTimeout  = 30 * time.Second
	defaultSettle   = 30 * time.Second
	defaultRunLimit = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:8080", "Base URL of the service")
		players    = flag.Int("players", defaultPlayers, "Number of players to sign up")
		sessions   = flag.Int("sessions", defaultSessions, "Sessions per player")
		topN       = flag.Int("top", defaultTopN, "Number of leaderboard entries to fetch")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent players")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		settle     = flag.Duration("settle", defaultSettle, "How long to wait for ranks to appear")
		seed       = flag.Uint64("seed", 1, "Seed for generated guesses")
		duplicates = flag.Bool("duplicates", true, "Resubmit one answer per session and expect 409")
		outputFile = flag.String("output", "", "Output file for played games (default: playtest_TIMESTAMP.json)")
		logFile    = flag.String("log", "", "Also write logs to this file")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		playtest.ShowHelp()
		return
	}

	closeLog, err := playtest.SetupLogging(*logFile, *verbose)
	if err != nil {
		os.Stderr.WriteString("failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, defaultRunLimit)

	cfg := &playtest.Config{
		BaseURL:           *baseURL,
		Players:           *players,
		SessionsPerPlayer: *sessions,
		TopN:              *topN,
		Workers:           max(*workers, 1),
		Timeout:           *timeout,
		SettleTimeout:     *settle,
		Seed:              *seed,
		ProbeDuplicates:   *duplicates,
		OutputFile:        *outputFile,
		Verbose:           *verbose,
	}

	_, err = playtest.Run(ctx, cfg)
	cancel()
	stop()
	if err != nil {
		logger.Get().Error(context.Background(), "playtest failed", logger.Error(err))
	}
	_ = closeLog()
	if err != nil {
		os.Exit(1)
	}
}
