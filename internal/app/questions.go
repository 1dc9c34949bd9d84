package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/foursigma/foursigma/internal/adapters/storage/sqlstore"
	"github.com/foursigma/foursigma/internal/domain/model"
	"github.com/foursigma/foursigma/pkg/logger"
)

// Categories lists every question category.
func (s *Service) Categories(ctx context.Context) ([]model.Category, error) {
	cats, err := s.store.Categories(ctx)
	if err != nil {
		return nil, translate("categories", err)
	}
	return cats, nil
}

// ListQuestions returns one page of questions, optionally by category slug.
func (s *Service) ListQuestions(ctx context.Context, category string, includeCreator bool) ([]model.Question, error) {
	questions, err := s.store.ListQuestions(ctx, model.QuestionFilter{
		CategorySlug:   strings.ToLower(strings.TrimSpace(category)),
		IncludeCreator: includeCreator,
		Limit:          s.pageSize,
	})
	if err != nil {
		return nil, translate("list questions", err)
	}
	return questions, nil
}

// DailyQuestions returns today's set. Everyone gets the same set on the same
// UTC date.
func (s *Service) DailyQuestions(ctx context.Context) ([]model.Question, error) {
	questions, err := s.store.QuestionsForDay(ctx, s.now(), s.dailyCount)
	if err != nil {
		return nil, translate("daily questions", err)
	}
	return questions, nil
}

// QuestionsByCreator lists the questions a user wrote, newest first.
func (s *Service) QuestionsByCreator(ctx context.Context, userID string) ([]model.Question, error) {
	questions, err := s.store.QuestionsByCreator(ctx, userID)
	if err != nil {
		return nil, translate("questions by creator", err)
	}
	return questions, nil
}

// CreateQuestion stores a question written by callerID.
func (s *Service) CreateQuestion(ctx context.Context, callerID string, draft model.QuestionDraft) (model.Question, error) {
	if draft.Prompt == nil || draft.CorrectAnswer == nil {
		return model.Question{}, invalid("prompt and correct_answer are required")
	}
	if err := validateDraft(&draft); err != nil {
		return model.Question{}, err
	}

	q := model.Question{Prompt: *draft.Prompt, CorrectAnswer: *draft.CorrectAnswer, CreatedBy: callerID}
	if draft.Unit != nil {
		q.Unit = *draft.Unit
	}
	created, err := s.store.CreateQuestion(ctx, q, draft.CategoryIDs)
	if err != nil {
		return model.Question{}, categoryError("create question", err)
	}

	s.logger.Info(ctx, "question created",
		logger.Int64("question_id", created.ID),
		logger.String("user_id", callerID),
	)
	return created, nil
}

// UpdateQuestion edits a question and records callerID as the last editor.
func (s *Service) UpdateQuestion(ctx context.Context, callerID string, id int64, draft model.QuestionDraft) (model.Question, error) {
	if draft.Prompt == nil && draft.CorrectAnswer == nil && draft.Unit == nil && draft.CategoryIDs == nil {
		return model.Question{}, invalid("nothing to update")
	}
	if err := validateDraft(&draft); err != nil {
		return model.Question{}, err
	}
	if _, err := s.store.QuestionByID(ctx, id); err != nil {
		return model.Question{}, translate("update question", err)
	}

	updated, err := s.store.UpdateQuestion(ctx, id, draft, callerID)
	if err != nil {
		return model.Question{}, categoryError("update question", err)
	}
	return updated, nil
}

// validateDraft trims text fields in place and checks the answer.
func validateDraft(d *model.QuestionDraft) error {
	if d.Prompt != nil {
		prompt := strings.TrimSpace(*d.Prompt)
		if prompt == "" {
			return invalid("prompt cannot be empty")
		}
		d.Prompt = &prompt
	}
	if d.CorrectAnswer != nil {
		a := *d.CorrectAnswer
		if math.IsNaN(a) || math.IsInf(a, 0) || a <= 0 {
			return invalid("correct_answer must be a positive finite number")
		}
	}
	if d.Unit != nil {
		unit := strings.TrimSpace(*d.Unit)
		d.Unit = &unit
	}
	return nil
}

// categoryError reports a dangling category link as bad input. The question
// itself is known to exist by the time this runs.
func categoryError(op string, err error) error {
	if errors.Is(err, sqlstore.ErrNotFound) {
		return invalid("unknown category id")
	}
	return translate(op, err)
}
