// Package types contains common types used across the application
package types

// Entry represents a leaderboard entry: a user's best finished-session total.
type Entry struct {
	Rank      int     `json:"rank"`
	UserID    string  `json:"user_id"`
	Score     float64 `json:"score"`
	SessionID int64   `json:"session_id,omitempty"`
}
