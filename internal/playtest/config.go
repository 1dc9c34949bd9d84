// Package playtest drives a running server through whole games: sign-up,
// sessions, answers and finishes from many concurrent players, followed by
// a check that ranks and the leaderboard agree with what was played.
package playtest

import "time"

// Config holds configuration for a playtest run.
type Config struct {
	BaseURL           string        // Base URL of the service
	Players           int           // Number of players to sign up
	SessionsPerPlayer int           // Sessions each player plays
	TopN              int           // Leaderboard entries to fetch
	Workers           int           // Concurrent players in flight
	Timeout           time.Duration // HTTP request timeout
	SettleTimeout     time.Duration // How long to wait for ranks to appear
	Seed              uint64        // Seed for generated guesses
	ProbeDuplicates   bool          // Resubmit one answer per session and expect a conflict
	OutputFile        string        // Output file for the played games
	Verbose           bool          // Enable verbose logging
}

// Question is the part of a session question a player needs.
type Question struct {
	ID     int64   `json:"id"`
	Text   string  `json:"text"`
	Answer float64 `json:"answer"`
	Unit   string  `json:"unit"`
}

// Answer is one submitted interval and how the server scored it.
type Answer struct {
	QuestionID int64   `json:"question_id"`
	LowerBound float64 `json:"lower_bound"`
	UpperBound float64 `json:"upper_bound"`
	Correct    float64 `json:"correct_answer"`
	Score      float64 `json:"score"`
	Captured   bool    `json:"captured"`
	Strategy   string  `json:"strategy"`
}

// Game is one finished session.
type Game struct {
	SessionID int64    `json:"session_id"`
	Total     float64  `json:"total"`
	Answers   []Answer `json:"answers"`
}

// Player is a signed-up account and the games it played.
type Player struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	token    string
	Games    []Game `json:"games"`
}

// Best is the highest finished session total, the figure the leaderboard
// ranks by.
func (p *Player) Best() (float64, bool) {
	if len(p.Games) == 0 {
		return 0, false
	}
	best := p.Games[0].Total
	for _, g := range p.Games[1:] {
		best = max(best, g.Total)
	}
	return best, true
}

// Entry represents a leaderboard entry.
type Entry struct {
	Rank      int     `json:"rank"`
	UserID    string  `json:"user_id"`
	Score     float64 `json:"score"`
	SessionID int64   `json:"session_id"`
}

// Stats holds run statistics.
type Stats struct {
	PlayersSignedUp    int
	SessionsStarted    int
	SessionsFinished   int
	AnswersAccepted    int
	Duplicates         int
	Backpressured      int
	Failed             int
	ScoreMismatches    int
	RanksVerified      int
	LeaderboardEntries int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
