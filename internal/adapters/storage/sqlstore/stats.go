package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/foursigma/foursigma/internal/domain/model"
)

// UserScores returns every submission score a user has recorded.
func (s *Store) UserScores(ctx context.Context, userID string) (_ []float64, err error) {
	defer s.track("user_scores", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx, `SELECT score FROM submissions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("user scores: %w", err)
	}
	defer rows.Close()

	var scores []float64
	for rows.Next() {
		var score float64
		if err := rows.Scan(&score); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		scores = append(scores, score)
	}
	return scores, rows.Err()
}

// RecentSubmissions returns a user's latest n answers with their questions.
func (s *Store) RecentSubmissions(ctx context.Context, userID string, n int) (_ []model.RecentScore, err error) {
	defer s.track("recent_submissions", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx,
		`SELECT sub.score, sub.created_at, q.prompt, sub.lower_bound, sub.upper_bound, q.correct_answer
		 FROM submissions sub JOIN questions q ON q.id = sub.question_id
		 WHERE sub.user_id = $1
		 ORDER BY sub.created_at DESC, sub.id DESC
		 LIMIT $2`, userID, n)
	if err != nil {
		return nil, fmt.Errorf("recent submissions: %w", err)
	}
	defer rows.Close()

	out := []model.RecentScore{}
	for rows.Next() {
		var (
			r       model.RecentScore
			created int64
		)
		if err := rows.Scan(&r.Score, &created, &r.Question, &r.LowerBound, &r.UpperBound, &r.CorrectAnswer); err != nil {
			return nil, fmt.Errorf("scan recent score: %w", err)
		}
		r.Date = fromMillis(created)
		out = append(out, r)
	}
	return out, rows.Err()
}
