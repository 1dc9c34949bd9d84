package service

import (
	"context"

	"github.com/foursigma/foursigma/internal/domain/model"
	"github.com/foursigma/foursigma/internal/domain/scoring"
	"github.com/foursigma/foursigma/internal/domain/types"
)

const defaultLeaderboardLimit = 10

// UserStats aggregates a player's answers.
type UserStats struct {
	scoring.Summary
	RecentScores []model.RecentScore `json:"recentScores"`
}

// Calculate scores an interval without recording anything. Out of order
// bounds are a poor estimate, not bad input, and score MinScore.
func (s *Service) Calculate(in scoring.Input) (scoring.Result, error) {
	if !finite(in.LowerBound) || !finite(in.UpperBound) || !finite(in.CorrectAnswer) {
		return scoring.Result{}, invalid("lowerBound, upperBound and correctAnswer must be finite numbers")
	}
	return scoring.Evaluate(in), nil
}

// UserStats summarizes every answer userID has submitted.
func (s *Service) UserStats(ctx context.Context, userID string) (UserStats, error) {
	if _, err := s.store.UserByID(ctx, userID); err != nil {
		return UserStats{}, translate("user stats", err)
	}
	scores, err := s.store.UserScores(ctx, userID)
	if err != nil {
		return UserStats{}, translate("user stats", err)
	}
	recent, err := s.store.RecentSubmissions(ctx, userID, s.recentScoreLimit)
	if err != nil {
		return UserStats{}, translate("recent scores", err)
	}
	if recent == nil {
		recent = []model.RecentScore{}
	}
	return UserStats{Summary: scoring.Summarize(scores), RecentScores: recent}, nil
}

// Leaderboard returns the best session totals. A zero limit uses the
// default and limits above the configured maximum are capped.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]types.Entry, error) {
	switch {
	case limit < 0:
		return nil, invalid("limit must be positive")
	case limit == 0:
		limit = defaultLeaderboardLimit
	case limit > s.maxLeaderboard:
		limit = s.maxLeaderboard
	}
	entries, err := s.leaderboard.TopN(ctx, limit)
	if err != nil {
		return nil, translate("leaderboard", err)
	}
	return entries, nil
}

// Rank returns a player's position. Players without a finished session are
// not ranked and yield ErrNotFound.
func (s *Service) Rank(ctx context.Context, userID string) (types.Entry, error) {
	entry, err := s.leaderboard.Rank(ctx, userID)
	if err != nil {
		return types.Entry{}, translate("rank", err)
	}
	return entry, nil
}
