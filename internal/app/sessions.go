package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/foursigma/foursigma/internal/domain/model"
	"github.com/foursigma/foursigma/internal/domain/scoring"
	"github.com/foursigma/foursigma/pkg/logger"
	"github.com/foursigma/foursigma/pkg/metrics"
)

// CreateSessionInput starts a session. Without QuestionIDs, daily mode plays
// the daily set and the other modes play the first page of questions.
type CreateSessionInput struct {
	Mode        string  `json:"mode"`
	QuestionIDs []int64 `json:"questionIds"`
}

// SubmitInput is one interval answer.
type SubmitInput struct {
	QuestionID int64   `json:"questionId"`
	LowerBound float64 `json:"lowerBound"`
	UpperBound float64 `json:"upperBound"`
	ElapsedMS  *int64  `json:"elapsedMs,omitempty"`
}

// SubmitResult is a scored answer revealed to the player.
type SubmitResult struct {
	Submission    model.Submission `json:"submission"`
	Score         float64          `json:"score"`
	Correct       bool             `json:"correct"`
	CorrectAnswer float64          `json:"correctAnswer"`
	Unit          string           `json:"unit,omitempty"`
}

// CreateSession starts a session for userID.
func (s *Service) CreateSession(ctx context.Context, userID string, in CreateSessionInput) (model.Session, error) {
	mode, err := model.ParseMode(in.Mode)
	if err != nil {
		return model.Session{}, invalid("%v", err)
	}

	var questions []model.Question
	switch {
	case len(in.QuestionIDs) > 0:
		if err := uniqueIDs(in.QuestionIDs); err != nil {
			return model.Session{}, err
		}
		questions, err = s.store.QuestionsByIDs(ctx, in.QuestionIDs)
	case mode == model.ModeDaily:
		questions, err = s.store.QuestionsForDay(ctx, s.now(), s.dailyCount)
	default:
		questions, err = s.store.ListQuestions(ctx, model.QuestionFilter{Limit: s.pageSize})
	}
	if err != nil {
		return model.Session{}, translate("create session", err)
	}
	if len(questions) == 0 {
		return model.Session{}, invalid("no questions available")
	}

	ids := make([]int64, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}
	sess, err := s.store.CreateSession(ctx, userID, mode, ids)
	if err != nil {
		return model.Session{}, translate("create session", err)
	}
	sess.Questions = questions

	metrics.RecordSessionStarted(string(mode))
	s.logger.Debug(ctx, "session started",
		logger.Int64("session_id", sess.ID),
		logger.String("user_id", userID),
		logger.String("mode", string(mode)),
		logger.Int("questions", len(ids)),
	)
	return sess, nil
}

func uniqueIDs(ids []int64) error {
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return invalid("question %d listed twice", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// Session loads a session with its questions and result.
func (s *Service) Session(ctx context.Context, id int64) (model.Session, error) {
	sess, err := s.store.SessionByID(ctx, id)
	if err != nil {
		return model.Session{}, translate("session", err)
	}
	sess.Questions, err = s.store.QuestionsByIDs(ctx, sess.QuestionIDs)
	if err != nil {
		return model.Session{}, translate("session questions", err)
	}
	return sess, nil
}

// UserSessions lists a user's sessions, newest first.
func (s *Service) UserSessions(ctx context.Context, userID string) ([]model.Session, error) {
	sessions, err := s.store.SessionsByUser(ctx, userID)
	if err != nil {
		return nil, translate("user sessions", err)
	}
	return sessions, nil
}

// ownedOpenSession loads a session the caller may still play.
func (s *Service) ownedOpenSession(ctx context.Context, userID string, sessionID int64) (model.Session, error) {
	sess, err := s.store.SessionByID(ctx, sessionID)
	if err != nil {
		return model.Session{}, translate("session", err)
	}
	if sess.UserID != userID {
		return model.Session{}, errors.Join(ErrForbidden, errors.New("session belongs to another user"))
	}
	if sess.Result != nil {
		return model.Session{}, errors.Join(ErrConflict, errors.New("session already finished"))
	}
	return sess, nil
}

// SubmitAnswer scores an interval for one question of an open session. Each
// question takes one answer; a repeat yields ErrConflict.
func (s *Service) SubmitAnswer(ctx context.Context, userID string, sessionID int64, in SubmitInput) (SubmitResult, error) {
	if !finite(in.LowerBound) || !finite(in.UpperBound) {
		return SubmitResult{}, invalid("lowerBound and upperBound must be finite numbers")
	}
	if in.ElapsedMS != nil && *in.ElapsedMS < 0 {
		return SubmitResult{}, invalid("elapsedMs cannot be negative")
	}

	sess, err := s.ownedOpenSession(ctx, userID, sessionID)
	if err != nil {
		return SubmitResult{}, err
	}
	if !sess.HasQuestion(in.QuestionID) {
		return SubmitResult{}, invalid("question %d is not part of session %d", in.QuestionID, sessionID)
	}
	if err := s.admit(ctx); err != nil {
		return SubmitResult{}, err
	}

	key := "submit:" + strconv.FormatInt(sessionID, 10) + ":" + strconv.FormatInt(in.QuestionID, 10)
	if !s.deduper.Claim(ctx, key) {
		metrics.RecordSubmissionDuplicate()
		return SubmitResult{}, errors.Join(ErrConflict, errors.New("question already answered"))
	}
	res, err := s.submit(ctx, userID, sessionID, in)
	if err != nil {
		s.deduper.Release(ctx, key)
		if errors.Is(err, ErrConflict) {
			metrics.RecordSubmissionDuplicate()
		}
		return SubmitResult{}, err
	}
	return res, nil
}

func (s *Service) submit(ctx context.Context, userID string, sessionID int64, in SubmitInput) (SubmitResult, error) {
	q, err := s.store.QuestionByID(ctx, in.QuestionID)
	if err != nil {
		return SubmitResult{}, translate("submit", err)
	}

	start := time.Now()
	result := scoring.Evaluate(scoring.Input{
		LowerBound:    in.LowerBound,
		UpperBound:    in.UpperBound,
		CorrectAnswer: q.CorrectAnswer,
	})
	metrics.RecordAnswerScored(result.Score, result.Captured, float64(time.Since(start).Microseconds())/1000)

	sub, err := s.store.InsertSubmission(ctx, model.Submission{
		SessionID:  sessionID,
		QuestionID: q.ID,
		UserID:     userID,
		LowerBound: in.LowerBound,
		UpperBound: in.UpperBound,
		ElapsedMS:  in.ElapsedMS,
		Score:      result.Score,
		Captured:   result.Captured,
	})
	if err != nil {
		return SubmitResult{}, translate("submit", err)
	}

	s.emit(ctx, model.Event{
		Kind:       model.EventAnswerScored,
		UserID:     userID,
		SessionID:  sessionID,
		QuestionID: q.ID,
		Score:      result.Score,
	})
	return SubmitResult{
		Submission:    sub,
		Score:         result.Score,
		Correct:       result.Captured,
		CorrectAnswer: q.CorrectAnswer,
		Unit:          q.Unit,
	}, nil
}

// FinishSession totals the session's scores and records the result. The
// leaderboard is updated by the workers.
func (s *Service) FinishSession(ctx context.Context, userID string, sessionID int64) (model.SessionResult, error) {
	sess, err := s.ownedOpenSession(ctx, userID, sessionID)
	if err != nil {
		return model.SessionResult{}, err
	}
	if err := s.admit(ctx); err != nil {
		return model.SessionResult{}, err
	}

	key := "finish:" + strconv.FormatInt(sessionID, 10)
	if !s.deduper.Claim(ctx, key) {
		return model.SessionResult{}, errors.Join(ErrConflict, errors.New("session already finished"))
	}
	res, err := s.finish(ctx, sess)
	if err != nil {
		s.deduper.Release(ctx, key)
		return model.SessionResult{}, err
	}
	return res, nil
}

func (s *Service) finish(ctx context.Context, sess model.Session) (model.SessionResult, error) { //nolint:gocritic // hugeParam
	finished := s.now()
	duration := max(finished.Sub(sess.StartedAt).Milliseconds(), 0)
	res, err := s.store.FinishSession(ctx, model.SessionResult{
		SessionID:  sess.ID,
		FinishedAt: finished,
		DurationMS: &duration,
	})
	if err != nil {
		return model.SessionResult{}, translate("finish", err)
	}

	metrics.RecordSessionFinished(string(sess.Mode))
	s.logger.Info(ctx, "session finished",
		logger.Int64("session_id", sess.ID),
		logger.String("user_id", sess.UserID),
		logger.Float64("total", res.TotalScore),
		logger.Int("answered", res.QuestionsAnswered),
	)

	event := model.Event{
		Kind:      model.EventSessionFinished,
		UserID:    sess.UserID,
		SessionID: sess.ID,
		Mode:      sess.Mode,
		Score:     res.TotalScore,
		Answered:  res.QuestionsAnswered,
	}
	if !s.emit(ctx, event) {
		// The result is stored; rank it now rather than wait for a restart.
		if _, err := s.leaderboard.UpdateBest(ctx, sess.UserID, res.TotalScore, sess.ID); err != nil {
			s.logger.Error(ctx, "direct leaderboard update failed", logger.Error(err))
		}
	}
	return res, nil
}

// emit enqueues e for the workers and reports whether it was accepted.
func (s *Service) emit(ctx context.Context, e model.Event) bool { //nolint:gocritic // hugeParam
	e.ID = uuid.NewString()
	e.TS = s.now().UTC()
	if err := s.eventQueue.Enqueue(ctx, e); err != nil {
		s.logger.Warn(ctx, "event not queued",
			logger.String("kind", string(e.Kind)),
			logger.Int64("session_id", e.SessionID),
			logger.Error(fmt.Errorf("enqueue: %w", err)),
		)
		return false
	}
	return true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
