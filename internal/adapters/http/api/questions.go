package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/foursigma/foursigma/internal/domain/model"
)

// handleListQuestions handles GET /api/questions?category=&includeCreator=.
func (s *Server) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_questions"

	q := r.URL.Query()
	includeCreator := false
	if raw := q.Get("includeCreator"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			s.badRequest(w, r, op, err)
			return
		}
		includeCreator = v
	}

	questions, err := s.deps.ListQuestions(r.Context(), q.Get("category"), includeCreator)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (s *Server) handleDailyQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := s.deps.DailyQuestions(r.Context())
	if err != nil {
		s.fail(w, r, Wrap("api.daily_questions", err))
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.deps.Categories(r.Context())
	if err != nil {
		s.fail(w, r, Wrap("api.categories", err))
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) handleQuestionsByCreator(w http.ResponseWriter, r *http.Request) {
	questions, err := s.deps.QuestionsByCreator(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		s.fail(w, r, Wrap("api.questions_by_creator", err))
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (s *Server) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_question"

	var draft model.QuestionDraft
	if err := decodeJSON(w, r, &draft); err != nil {
		s.badRequest(w, r, op, err)
		return
	}
	q, err := s.deps.CreateQuestion(r.Context(), callerID(r), draft)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (s *Server) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_question"

	id, err := pathID(r, "questionId")
	if err != nil {
		s.badRequest(w, r, op, err)
		return
	}
	var draft model.QuestionDraft
	if err := decodeJSON(w, r, &draft); err != nil {
		s.badRequest(w, r, op, err)
		return
	}
	q, err := s.deps.UpdateQuestion(r.Context(), callerID(r), id, draft)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, q)
}
