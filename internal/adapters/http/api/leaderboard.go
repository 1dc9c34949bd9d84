package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// handleLeaderboard handles GET /api/leaderboard?limit=N. Without limit the
// service default applies.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.fail(w, r, NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}

	entries, err := s.deps.Leaderboard(r.Context(), limit)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleRank handles GET /api/leaderboard/rank/{userId}.
func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rank"

	entry, err := s.deps.Rank(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
