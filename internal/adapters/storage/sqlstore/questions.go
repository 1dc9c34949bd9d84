package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/foursigma/foursigma/internal/domain/model"
)

const questionSelect = `
SELECT q.id, q.prompt, q.correct_answer, q.unit, q.version,
       COALESCE(q.created_by, ''), COALESCE(q.last_edited_by, ''), q.created_at, q.updated_at,
       COALESCE(cu.display_name, ''), COALESCE(cu.avatar_url, ''),
       COALESCE(eu.display_name, ''), COALESCE(eu.avatar_url, '')
FROM questions q
LEFT JOIN users cu ON cu.id = q.created_by
LEFT JOIN users eu ON eu.id = q.last_edited_by`

func scanQuestion(row rowScanner) (model.Question, error) {
	var (
		q                          model.Question
		createdAt, updatedAt       int64
		creatorName, creatorAvatar string
		editorName, editorAvatar   string
	)
	if err := row.Scan(&q.ID, &q.Prompt, &q.CorrectAnswer, &q.Unit, &q.Version,
		&q.CreatedBy, &q.LastEditedBy, &createdAt, &updatedAt,
		&creatorName, &creatorAvatar, &editorName, &editorAvatar); err != nil {
		return model.Question{}, err
	}
	q.CreatedAt = fromMillis(createdAt)
	q.UpdatedAt = fromMillis(updatedAt)
	if q.CreatedBy != "" {
		q.Creator = &model.Profile{ID: q.CreatedBy, DisplayName: creatorName, AvatarURL: creatorAvatar}
	}
	if q.LastEditedBy != "" {
		q.LastEditor = &model.Profile{ID: q.LastEditedBy, DisplayName: editorName, AvatarURL: editorAvatar}
	}
	return q, nil
}

// Categories lists every category by label.
func (s *Store) Categories(ctx context.Context) (_ []model.Category, err error) {
	defer s.track("categories", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx, `SELECT id, slug, label FROM categories ORDER BY label`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := []model.Category{}
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Slug, &c.Label); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListQuestions returns up to f.Limit questions ordered by id, optionally
// restricted to one category slug. Creator summaries are kept only when
// f.IncludeCreator is set.
func (s *Store) ListQuestions(ctx context.Context, f model.QuestionFilter) (_ []model.Question, err error) {
	defer s.track("list_questions", time.Now(), &err)

	query := questionSelect
	var args []any
	if f.CategorySlug != "" {
		query += `
JOIN question_categories qc ON qc.question_id = q.id
JOIN categories c ON c.id = qc.category_id AND c.slug = $1`
		args = append(args, f.CategorySlug)
	}
	query += ` ORDER BY q.id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	questions, err := s.queryQuestions(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if !f.IncludeCreator {
		for i := range questions {
			questions[i].Creator, questions[i].LastEditor = nil, nil
		}
	}
	return questions, nil
}

// QuestionByID loads one question with its categories.
func (s *Store) QuestionByID(ctx context.Context, id int64) (_ model.Question, err error) {
	defer s.track("question_by_id", time.Now(), &err)

	questions, err := s.queryQuestions(ctx, questionSelect+` WHERE q.id = $1`, id)
	if err != nil {
		return model.Question{}, fmt.Errorf("question %d: %w", id, err)
	}
	if len(questions) == 0 {
		return model.Question{}, fmt.Errorf("question %d: %w", id, ErrNotFound)
	}
	return questions[0], nil
}

// QuestionsByIDs loads the given questions in the order of ids. Missing ids
// yield ErrNotFound.
func (s *Store) QuestionsByIDs(ctx context.Context, ids []int64) (_ []model.Question, err error) {
	defer s.track("questions_by_ids", time.Now(), &err)

	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	found, err := s.queryQuestions(ctx, questionSelect+` WHERE q.id IN (`+placeholders(1, len(ids))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("questions by id: %w", err)
	}

	byID := make(map[int64]model.Question, len(found))
	for _, q := range found {
		byID[q.ID] = q
	}
	out := make([]model.Question, 0, len(ids))
	for _, id := range ids {
		q, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("question %d: %w", id, ErrNotFound)
		}
		out = append(out, q)
	}
	return out, nil
}

// QuestionsForDay picks n questions for the given day by rotating through
// the question ids, so every caller gets the same set on the same UTC date.
func (s *Store) QuestionsForDay(ctx context.Context, day time.Time, n int) (_ []model.Question, err error) {
	defer s.track("questions_for_day", time.Now(), &err)

	ids, err := s.questionIDs(ctx)
	if err != nil {
		return nil, err
	}
	picked := rotate(ids, dayNumber(day), n)
	return s.QuestionsByIDs(ctx, picked)
}

// dayNumber counts UTC days since the Unix epoch.
func dayNumber(day time.Time) int64 {
	return day.UTC().Unix() / int64(24*time.Hour/time.Second)
}

// rotate takes n consecutive ids starting at (day*n) mod len(ids), wrapping.
func rotate(ids []int64, day int64, n int) []int64 {
	if len(ids) == 0 || n <= 0 {
		return nil
	}
	if n > len(ids) {
		n = len(ids)
	}
	start := int((day * int64(n)) % int64(len(ids)))
	if start < 0 {
		start += len(ids)
	}
	out := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, ids[(start+i)%len(ids)])
	}
	return out
}

func (s *Store) questionIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM questions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("question ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan question id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// QuestionsByCreator lists the questions a user wrote, newest first.
func (s *Store) QuestionsByCreator(ctx context.Context, userID string) (_ []model.Question, err error) {
	defer s.track("questions_by_creator", time.Now(), &err)

	questions, err := s.queryQuestions(ctx,
		questionSelect+` WHERE q.created_by = $1 ORDER BY q.created_at DESC, q.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("questions by creator: %w", err)
	}
	return questions, nil
}

// CreateQuestion inserts a question at version 1 and links its categories.
func (s *Store) CreateQuestion(ctx context.Context, q model.Question, categoryIDs []int64) (_ model.Question, err error) { //nolint:gocritic // hugeParam
	defer s.track("create_question", time.Now(), &err)

	now := toMillis(s.now())
	var id int64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO questions (prompt, correct_answer, unit, version, created_by, created_at, updated_at)
			 VALUES ($1, $2, $3, 1, $4, $5, $5) RETURNING id`,
			q.Prompt, q.CorrectAnswer, q.Unit, nullString(q.CreatedBy), now).Scan(&id); err != nil {
			return fmt.Errorf("insert question: %w", classify(err))
		}
		return linkCategories(ctx, tx, id, categoryIDs)
	})
	if err != nil {
		return model.Question{}, err
	}
	return s.QuestionByID(ctx, id)
}

// UpdateQuestion applies the non-nil draft fields, bumps the version and
// records the editor. A non-nil CategoryIDs replaces the category links.
func (s *Store) UpdateQuestion(ctx context.Context, id int64, draft model.QuestionDraft, editorID string) (_ model.Question, err error) {
	defer s.track("update_question", time.Now(), &err)

	sets := []string{"version = version + 1", "updated_at = $1", "last_edited_by = $2"}
	args := []any{toMillis(s.now()), nullString(editorID)}
	if draft.Prompt != nil {
		args = append(args, *draft.Prompt)
		sets = append(sets, fmt.Sprintf("prompt = $%d", len(args)))
	}
	if draft.CorrectAnswer != nil {
		args = append(args, *draft.CorrectAnswer)
		sets = append(sets, fmt.Sprintf("correct_answer = $%d", len(args)))
	}
	if draft.Unit != nil {
		args = append(args, *draft.Unit)
		sets = append(sets, fmt.Sprintf("unit = $%d", len(args)))
	}
	args = append(args, id)

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE questions SET `+strings.Join(sets, ", ")+fmt.Sprintf(` WHERE id = $%d`, len(args)), args...)
		if err != nil {
			return fmt.Errorf("update question %d: %w", id, classify(err))
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("question %d: %w", id, ErrNotFound)
		}
		if draft.CategoryIDs == nil {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM question_categories WHERE question_id = $1`, id); err != nil {
			return fmt.Errorf("clear categories: %w", err)
		}
		return linkCategories(ctx, tx, id, draft.CategoryIDs)
	})
	if err != nil {
		return model.Question{}, err
	}
	return s.QuestionByID(ctx, id)
}

func linkCategories(ctx context.Context, tx *sql.Tx, questionID int64, categoryIDs []int64) error {
	seen := make(map[int64]bool, len(categoryIDs))
	for _, cid := range categoryIDs {
		if seen[cid] {
			continue
		}
		seen[cid] = true
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO question_categories (question_id, category_id) VALUES ($1, $2)`, questionID, cid); err != nil {
			return fmt.Errorf("link category %d: %w", cid, classify(err))
		}
	}
	return nil
}

// queryQuestions runs a questionSelect-based query and attaches categories.
func (s *Store) queryQuestions(ctx context.Context, query string, args ...any) ([]model.Question, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	questions := []model.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.attachCategories(ctx, questions); err != nil {
		return nil, err
	}
	return questions, nil
}

func (s *Store) attachCategories(ctx context.Context, questions []model.Question) error {
	if len(questions) == 0 {
		return nil
	}
	args := make([]any, len(questions))
	index := make(map[int64]int, len(questions))
	for i := range questions {
		args[i] = questions[i].ID
		index[questions[i].ID] = i
		questions[i].Categories = []model.Category{}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT qc.question_id, c.id, c.slug, c.label
		 FROM question_categories qc JOIN categories c ON c.id = qc.category_id
		 WHERE qc.question_id IN (`+placeholders(1, len(args))+`)
		 ORDER BY qc.question_id, c.id`, args...)
	if err != nil {
		return fmt.Errorf("question categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			qid int64
			c   model.Category
		)
		if err := rows.Scan(&qid, &c.ID, &c.Slug, &c.Label); err != nil {
			return fmt.Errorf("scan question category: %w", err)
		}
		if i, ok := index[qid]; ok {
			questions[i].Categories = append(questions[i].Categories, c)
		}
	}
	return rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
