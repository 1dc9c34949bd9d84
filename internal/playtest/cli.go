package playtest

import (
	"fmt"
	"io"
	"os"

	"github.com/foursigma/foursigma/pkg/logger"
)

const logFilePermission = 0o600

// SetupLogging initializes the global logger on stdout and, when logFile is
// set, on that file too. The returned func closes the file.
func SetupLogging(logFile string, verbose bool) (func() error, error) {
	var w io.Writer = os.Stdout
	closeFn := func() error { return nil }
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, f)
		closeFn = f.Close
	}
	if err := logger.Init(logger.WithWriter(w)); err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return closeFn, nil
}

// ShowHelp prints usage information for the playtest tool.
func ShowHelp() {
	os.Stdout.WriteString(`Four-Sigma Playtest
===================

Plays complete games against a running server and checks that ranks and
the leaderboard agree with the sessions that were played.

Usage:
  go run ./cmd/playtest [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:8080")
  -players int
        Number of players to sign up (default 200)
  -sessions int
        Sessions per player (default 2)
  -top int
        Number of leaderboard entries to fetch (default 50)
  -workers int
        Number of concurrent players (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -settle duration
        How long to wait for ranks to appear (default 30s)
  -seed uint
        Seed for generated guesses (default 1)
  -duplicates
        Resubmit one answer per session and expect 409 (default true)
  -output string
        Output file for played games (default: playtest_TIMESTAMP.json)
  -log string
        Also write logs to this file
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  go run ./cmd/playtest -players 1000 -workers 32
  go run ./cmd/playtest -url http://localhost:9090 -verbose
`)
}
