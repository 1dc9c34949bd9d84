package playtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/foursigma/foursigma/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

var errNoPlayers = errors.New("no player finished a game")

// Run executes a complete playtest against cfg.BaseURL.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()
	log.Info(ctx, "starting playtest",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("players", cfg.Players),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout),
		logger.Int("topN", cfg.TopN),
		logger.Bool("verbose", cfg.Verbose))

	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)

	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	players := playAll(ctx, cfg, client, stats)
	if stats.SessionsFinished == 0 {
		return stats, errNoPlayers
	}
	if stats.ScoreMismatches > 0 {
		return stats, fmt.Errorf("%d answers scored differently from the local scorer", stats.ScoreMismatches)
	}

	if err := verifyRanks(ctx, cfg, client, players, stats); err != nil {
		return stats, fmt.Errorf("rank verification failed: %w", err)
	}

	board, err := getLeaderboard(ctx, cfg, client, stats)
	if err != nil {
		return stats, fmt.Errorf("leaderboard retrieval failed: %w", err)
	}
	if err := verifyLeaderboard(players, board); err != nil {
		return stats, fmt.Errorf("leaderboard verification failed: %w", err)
	}

	if err := saveGames(ctx, cfg, players); err != nil {
		log.Warn(ctx, "failed to save games", logger.Error(err))
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

// checkServiceHealth verifies the service and its database are up.
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	var health struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
	if err := client.get(ctx, "/api/health", &health); err != nil {
		return err
	}
	logger.Get().Info(ctx, "service is healthy", logger.String("database", health.Database))
	return nil
}

// saveGames writes the played games as JSON. Without an output file a
// timestamped name is used.
func saveGames(ctx context.Context, cfg *Config, players []*Player) error {
	filename := cfg.OutputFile
	if filename == "" {
		filename = "playtest_" + time.Now().Format("20060102_150405") + ".json"
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(players, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal games: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("write %s: %w", filename, err)
	}
	logger.Get().Info(ctx, "games saved to file", logger.String("filename", filename))
	return nil
}

func displayFinalStats(ctx context.Context, stats *Stats) {
	var answersPerSecond float64
	if stats.Duration > 0 {
		answersPerSecond = float64(stats.AnswersAccepted) / stats.Duration.Seconds()
	}
	logger.Get().Info(ctx, "final statistics",
		logger.Int("playersSignedUp", stats.PlayersSignedUp),
		logger.Int("sessionsStarted", stats.SessionsStarted),
		logger.Int("sessionsFinished", stats.SessionsFinished),
		logger.Int("answersAccepted", stats.AnswersAccepted),
		logger.Int("duplicates", stats.Duplicates),
		logger.Int("backpressured", stats.Backpressured),
		logger.Int("failed", stats.Failed),
		logger.Int("ranksVerified", stats.RanksVerified),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.Duration("duration", stats.Duration),
		logger.Float64("answersPerSecond", answersPerSecond))
}
