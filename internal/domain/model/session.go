package model

import (
	"fmt"
	"time"
)

// Mode is how a session was started.
type Mode string

const (
	ModeDaily    Mode = "daily"
	ModeCustom   Mode = "custom"
	ModePractice Mode = "practice"
)

// ParseMode validates s; an empty string selects practice.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModePractice, nil
	case ModeDaily, ModeCustom, ModePractice:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown session mode %q", s)
	}
}

// Session is one play-through of an ordered list of questions.
type Session struct {
	ID          int64          `json:"id"`
	UserID      string         `json:"user_id"`
	Mode        Mode           `json:"mode"`
	StartedAt   time.Time      `json:"started_at"`
	QuestionIDs []int64        `json:"-"`
	Questions   []Question     `json:"questions,omitempty"`
	Result      *SessionResult `json:"session_results,omitempty"`
}

// HasQuestion reports whether questionID belongs to the session.
func (s Session) HasQuestion(questionID int64) bool {
	for _, id := range s.QuestionIDs {
		if id == questionID {
			return true
		}
	}
	return false
}

// Submission is a scored answer to one question in a session.
type Submission struct {
	ID         int64     `json:"id"`
	SessionID  int64     `json:"session_id"`
	QuestionID int64     `json:"question_id"`
	UserID     string    `json:"user_id"`
	LowerBound float64   `json:"lower_bound"`
	UpperBound float64   `json:"upper_bound"`
	ElapsedMS  *int64    `json:"elapsed_ms,omitempty"`
	Score      float64   `json:"score"`
	Captured   bool      `json:"captured"`
	CreatedAt  time.Time `json:"created_at"`
}

// SessionResult is written once when a session finishes.
type SessionResult struct {
	SessionID         int64     `json:"session_id"`
	TotalScore        float64   `json:"total_score"`
	QuestionsAnswered int       `json:"questions_answered"`
	FinishedAt        time.Time `json:"finished_at"`
	DurationMS        *int64    `json:"duration_ms,omitempty"`
}

// RecentScore is a submission joined with its question for stats views.
type RecentScore struct {
	Score         float64   `json:"score"`
	Date          time.Time `json:"date"`
	Question      string    `json:"question"`
	LowerBound    float64   `json:"lowerBound"`
	UpperBound    float64   `json:"upperBound"`
	CorrectAnswer float64   `json:"correctAnswer"`
}

// BestTotal is a user's highest finished-session total.
type BestTotal struct {
	UserID    string
	SessionID int64
	Total     float64
}
