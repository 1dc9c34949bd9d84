package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/foursigma/foursigma/internal/domain/model"
)

// CreateSession starts a session over the ordered questionIDs.
func (s *Store) CreateSession(ctx context.Context, userID string, mode model.Mode, questionIDs []int64) (_ model.Session, err error) {
	defer s.track("create_session", time.Now(), &err)

	started := s.now()
	sess := model.Session{UserID: userID, Mode: mode, StartedAt: fromMillis(toMillis(started)), QuestionIDs: questionIDs}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO game_sessions (user_id, mode, started_at) VALUES ($1, $2, $3) RETURNING id`,
			userID, string(mode), toMillis(started)).Scan(&sess.ID); err != nil {
			return fmt.Errorf("insert session: %w", classify(err))
		}
		for i, qid := range questionIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO session_questions (session_id, question_id, order_idx) VALUES ($1, $2, $3)`,
				sess.ID, qid, i); err != nil {
				return fmt.Errorf("add question %d: %w", qid, classify(err))
			}
		}
		return nil
	})
	if err != nil {
		return model.Session{}, err
	}
	return sess, nil
}

const sessionSelect = `
SELECT s.id, s.user_id, s.mode, s.started_at,
       r.total_score, r.questions_answered, r.finished_at, r.duration_ms
FROM game_sessions s
LEFT JOIN session_results r ON r.session_id = s.id`

func scanSession(row rowScanner) (model.Session, error) {
	var (
		sess     model.Session
		mode     string
		started  int64
		total    sql.NullFloat64
		answered sql.NullInt64
		finished sql.NullInt64
		duration sql.NullInt64
	)
	if err := row.Scan(&sess.ID, &sess.UserID, &mode, &started, &total, &answered, &finished, &duration); err != nil {
		return model.Session{}, err
	}
	sess.Mode = model.Mode(mode)
	sess.StartedAt = fromMillis(started)
	if finished.Valid {
		sess.Result = &model.SessionResult{
			SessionID:         sess.ID,
			TotalScore:        total.Float64,
			QuestionsAnswered: int(answered.Int64),
			FinishedAt:        fromMillis(finished.Int64),
			DurationMS:        nullInt(duration),
		}
	}
	return sess, nil
}

// SessionByID loads a session, its ordered question ids and its result.
func (s *Store) SessionByID(ctx context.Context, id int64) (_ model.Session, err error) {
	defer s.track("session_by_id", time.Now(), &err)

	sess, err := scanSession(s.db.QueryRowContext(ctx, sessionSelect+` WHERE s.id = $1`, id))
	if err != nil {
		return model.Session{}, fmt.Errorf("session %d: %w", id, classify(err))
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT question_id FROM session_questions WHERE session_id = $1 ORDER BY order_idx`, id)
	if err != nil {
		return model.Session{}, fmt.Errorf("session questions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var qid int64
		if err := rows.Scan(&qid); err != nil {
			return model.Session{}, fmt.Errorf("scan session question: %w", err)
		}
		sess.QuestionIDs = append(sess.QuestionIDs, qid)
	}
	return sess, rows.Err()
}

// SessionsByUser lists a user's sessions, newest first, with results.
func (s *Store) SessionsByUser(ctx context.Context, userID string) (_ []model.Session, err error) {
	defer s.track("sessions_by_user", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx,
		sessionSelect+` WHERE s.user_id = $1 ORDER BY s.started_at DESC, s.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("sessions by user: %w", err)
	}
	defer rows.Close()

	out := []model.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// InsertSubmission stores a scored answer. A second answer to the same
// question in the same session yields ErrDuplicate; an answer to a finished
// session yields ErrSessionClosed.
func (s *Store) InsertSubmission(ctx context.Context, sub model.Submission) (_ model.Submission, err error) { //nolint:gocritic // hugeParam
	defer s.track("insert_submission", time.Now(), &err)

	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = s.now()
	}
	sub.CreatedAt = fromMillis(toMillis(sub.CreatedAt))

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.lockSession(ctx, tx, sub.SessionID); err != nil {
			return err
		}
		var finished bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM session_results WHERE session_id = $1)`, sub.SessionID).Scan(&finished); err != nil {
			return fmt.Errorf("session result: %w", err)
		}
		if finished {
			return fmt.Errorf("session %d: %w", sub.SessionID, ErrSessionClosed)
		}
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO submissions (session_id, question_id, user_id, lower_bound, upper_bound, elapsed_ms, score, captured, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
			sub.SessionID, sub.QuestionID, sub.UserID, sub.LowerBound, sub.UpperBound,
			optionalInt(sub.ElapsedMS), sub.Score, sub.Captured, toMillis(sub.CreatedAt)).Scan(&sub.ID); err != nil {
			return fmt.Errorf("insert submission: %w", classify(err))
		}
		return nil
	})
	if err != nil {
		return model.Submission{}, err
	}
	return sub, nil
}

// lockSession holds the session row for the rest of tx. Postgres takes a row
// lock; SQLite runs on a single connection, so the transaction already
// excludes other writers.
func (s *Store) lockSession(ctx context.Context, tx *sql.Tx, sessionID int64) error {
	q := `SELECT id FROM game_sessions WHERE id = $1`
	if s.driver == DriverPostgres {
		q += ` FOR UPDATE`
	}
	var id int64
	if err := tx.QueryRowContext(ctx, q, sessionID).Scan(&id); err != nil {
		return fmt.Errorf("session %d: %w", sessionID, classify(err))
	}
	return nil
}

// SessionSubmissions lists a session's submissions in answer order.
func (s *Store) SessionSubmissions(ctx context.Context, sessionID int64) (_ []model.Submission, err error) {
	defer s.track("session_submissions", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, question_id, user_id, lower_bound, upper_bound, elapsed_ms, score, captured, created_at
		 FROM submissions WHERE session_id = $1 ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session submissions: %w", err)
	}
	defer rows.Close()

	out := []model.Submission{}
	for rows.Next() {
		var (
			sub     model.Submission
			elapsed sql.NullInt64
			created int64
		)
		if err := rows.Scan(&sub.ID, &sub.SessionID, &sub.QuestionID, &sub.UserID, &sub.LowerBound,
			&sub.UpperBound, &elapsed, &sub.Score, &sub.Captured, &created); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		sub.ElapsedMS = nullInt(elapsed)
		sub.CreatedAt = fromMillis(created)
		out = append(out, sub)
	}
	return out, rows.Err()
}

// FinishSession totals the session's stored submissions and records the
// result in one transaction, so no answer can land between the sum and the
// insert. TotalScore and QuestionsAnswered on res are ignored. Finishing
// twice yields ErrDuplicate.
func (s *Store) FinishSession(ctx context.Context, res model.SessionResult) (_ model.SessionResult, err error) { //nolint:gocritic // hugeParam
	defer s.track("finish_session", time.Now(), &err)

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.lockSession(ctx, tx, res.SessionID); err != nil {
			return err
		}
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(score), 0), COUNT(*) FROM submissions WHERE session_id = $1`,
			res.SessionID).Scan(&res.TotalScore, &res.QuestionsAnswered); err != nil {
			return fmt.Errorf("sum submissions: %w", err)
		}
		var ierr error
		res, ierr = s.insertSessionResult(ctx, tx, res)
		return ierr
	})
	if err != nil {
		return model.SessionResult{}, err
	}
	return res, nil
}

// InsertSessionResult records a finished session with the totals given.
// Finishing twice yields ErrDuplicate.
func (s *Store) InsertSessionResult(ctx context.Context, res model.SessionResult) (_ model.SessionResult, err error) { //nolint:gocritic // hugeParam
	defer s.track("insert_session_result", time.Now(), &err)

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.lockSession(ctx, tx, res.SessionID); err != nil {
			return err
		}
		var ierr error
		res, ierr = s.insertSessionResult(ctx, tx, res)
		return ierr
	})
	if err != nil {
		return model.SessionResult{}, err
	}
	return res, nil
}

func (s *Store) insertSessionResult(ctx context.Context, tx *sql.Tx, res model.SessionResult) (model.SessionResult, error) { //nolint:gocritic // hugeParam
	if res.FinishedAt.IsZero() {
		res.FinishedAt = s.now()
	}
	res.FinishedAt = fromMillis(toMillis(res.FinishedAt))

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO session_results (session_id, total_score, questions_answered, finished_at, duration_ms)
		 VALUES ($1, $2, $3, $4, $5)`,
		res.SessionID, res.TotalScore, res.QuestionsAnswered, toMillis(res.FinishedAt), optionalInt(res.DurationMS)); err != nil {
		return model.SessionResult{}, fmt.Errorf("insert session result: %w", classify(err))
	}
	return res, nil
}

// BestSessionTotals returns each user's highest finished-session total.
// Ties keep the earliest session.
func (s *Store) BestSessionTotals(ctx context.Context) (_ []model.BestTotal, err error) {
	defer s.track("best_session_totals", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx,
		`SELECT s.user_id, r.session_id, r.total_score
		 FROM session_results r JOIN game_sessions s ON s.id = r.session_id
		 ORDER BY s.user_id, r.total_score DESC, r.session_id`)
	if err != nil {
		return nil, fmt.Errorf("best session totals: %w", err)
	}
	defer rows.Close()

	var out []model.BestTotal
	for rows.Next() {
		var b model.BestTotal
		if err := rows.Scan(&b.UserID, &b.SessionID, &b.Total); err != nil {
			return nil, fmt.Errorf("scan best total: %w", err)
		}
		if n := len(out); n > 0 && out[n-1].UserID == b.UserID {
			continue
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
