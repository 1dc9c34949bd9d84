// Package repository holds the in-memory leaderboard of best session totals.
package repository

import (
	"context"

	"github.com/foursigma/foursigma/internal/domain/types"
)

// Store provides read/write access to the ranking state.
type Store interface {
	// UpdateBest records score for userID if it beats their current best.
	// It reports whether the leaderboard changed.
	UpdateBest(ctx context.Context, userID string, score float64, sessionID int64) (bool, error)

	// Rank returns the user's rank, best score and the session that set it.
	// Returns ErrNotFound if the user has no finished session.
	Rank(ctx context.Context, userID string) (types.Entry, error)

	// TopN returns the top-N entries ordered by score desc.
	TopN(ctx context.Context, n int) ([]types.Entry, error)

	// Count returns the number of ranked users.
	Count(ctx context.Context) int
}
