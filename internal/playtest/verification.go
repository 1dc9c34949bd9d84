package playtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/foursigma/foursigma/pkg/logger"
)

// rankTolerance covers the leaderboard's six-decimal fixed point.
const rankTolerance = 1e-6

var (
	errRankMismatch     = errors.New("rank does not match played games")
	errLeaderboardOrder = errors.New("leaderboard out of order")
	errLeaderboardTop   = errors.New("leaderboard top does not match best game")
)

// verifyRanks waits for every player with a finished game to be ranked and
// checks each ranked score against the player's best total.
func verifyRanks(ctx context.Context, cfg *Config, client *HTTPClient, players []*Player, stats *Stats) error {
	log := logger.Get()
	pending := make(map[string]float64, len(players))
	for _, p := range players {
		if best, ok := p.Best(); ok {
			pending[p.UserID] = best
		}
	}
	log.Info(ctx, "waiting for ranks", logger.Int("players", len(pending)))

	deadline := time.Now().Add(cfg.SettleTimeout)
	for len(pending) > 0 {
		for id, best := range pending {
			var entry Entry
			err := client.get(ctx, "/api/leaderboard/rank/"+id, &entry)
			switch {
			case statusOf(err) == http.StatusNotFound:
				continue
			case err != nil:
				return err
			case math.Abs(entry.Score-best) > rankTolerance:
				// The worker may not have applied the best game yet.
				if entry.Score > best+rankTolerance {
					return fmt.Errorf("%w: %s ranked %.6f, best game %.6f", errRankMismatch, id, entry.Score, best)
				}
				continue
			}
			delete(pending, id)
			stats.RanksVerified++
		}
		if len(pending) == 0 {
			break
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %d players still unranked after %s", errRankMismatch, len(pending), cfg.SettleTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBackoff):
		}
	}
	log.Info(ctx, "ranks verified", logger.Int("count", stats.RanksVerified))
	return nil
}

// getLeaderboard retrieves the top N leaderboard entries.
func getLeaderboard(ctx context.Context, cfg *Config, client *HTTPClient, stats *Stats) ([]Entry, error) {
	var board []Entry
	if err := client.get(ctx, fmt.Sprintf("/api/leaderboard?limit=%d", cfg.TopN), &board); err != nil {
		return nil, err
	}
	stats.LeaderboardEntries = len(board)
	return board, nil
}

// verifyLeaderboard checks ordering and competition ranks, and that the top
// score is the best game any player in this run could have reached. Other
// players may share the server, so only an upper position is checked.
func verifyLeaderboard(players []*Player, board []Entry) error {
	if len(board) > 0 && board[0].Rank != 1 {
		return fmt.Errorf("%w: first entry ranked %d", errLeaderboardOrder, board[0].Rank)
	}
	for i := 1; i < len(board); i++ {
		prev, cur := board[i-1], board[i]
		switch {
		case cur.Score > prev.Score:
			return fmt.Errorf("%w: entry %d scores above entry %d", errLeaderboardOrder, i, i-1)
		case cur.Score == prev.Score && cur.Rank != prev.Rank:
			return fmt.Errorf("%w: tied entries %d and %d ranked %d and %d", errLeaderboardOrder, i-1, i, prev.Rank, cur.Rank)
		case cur.Score < prev.Score && cur.Rank != i+1:
			return fmt.Errorf("%w: entry %d ranked %d", errLeaderboardOrder, i, cur.Rank)
		}
	}

	bests := make([]float64, 0, len(players))
	for _, p := range players {
		if best, ok := p.Best(); ok {
			bests = append(bests, best)
		}
	}
	if len(bests) == 0 {
		return nil
	}
	if len(board) == 0 {
		return fmt.Errorf("%w: empty leaderboard", errLeaderboardTop)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(bests)))
	if board[0].Score+rankTolerance < bests[0] {
		return fmt.Errorf("%w: top %.6f below best game %.6f", errLeaderboardTop, board[0].Score, bests[0])
	}
	return nil
}
