package model

import "time"

// EventKind names a game event.
type EventKind string

const (
	EventAnswerScored    EventKind = "answer.scored"
	EventSessionFinished EventKind = "session.finished"
)

// Event is emitted after an answer is scored or a session finishes. It is
// queued for asynchronous side effects such as leaderboard updates.
type Event struct {
	ID         string    `json:"id"`
	Kind       EventKind `json:"kind"`
	UserID     string    `json:"user_id"`
	SessionID  int64     `json:"session_id"`
	QuestionID int64     `json:"question_id,omitempty"`
	Mode       Mode      `json:"mode,omitempty"`
	Score      float64   `json:"score"`
	Answered   int       `json:"questions_answered,omitempty"`
	TS         time.Time `json:"ts"`
}
