package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	service "github.com/foursigma/foursigma/internal/app"
)

// handleCreateSession handles POST /api/sessions. An empty body starts a
// practice session.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_session"

	var in service.CreateSessionInput
	if err := decodeJSON(w, r, &in); err != nil && !errors.Is(err, errEmptyBody) {
		s.badRequest(w, r, op, err)
		return
	}
	sess, err := s.deps.CreateSession(r.Context(), callerID(r), in)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_session"

	id, err := pathID(r, "sessionId")
	if err != nil {
		s.badRequest(w, r, op, err)
		return
	}
	sess, err := s.deps.Session(r.Context(), id)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleUserSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.deps.UserSessions(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		s.fail(w, r, Wrap("api.user_sessions", err))
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_answer"

	id, err := pathID(r, "sessionId")
	if err != nil {
		s.badRequest(w, r, op, err)
		return
	}
	var in service.SubmitInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.badRequest(w, r, op, err)
		return
	}
	res, err := s.deps.SubmitAnswer(r.Context(), callerID(r), id, in)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	const op = "api.finish_session"

	id, err := pathID(r, "sessionId")
	if err != nil {
		s.badRequest(w, r, op, err)
		return
	}
	res, err := s.deps.FinishSession(r.Context(), callerID(r), id)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}
