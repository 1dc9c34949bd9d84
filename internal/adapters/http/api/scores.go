package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/foursigma/foursigma/internal/domain/scoring"
)

// handleCalculate handles POST /api/scores/calculate: practice scoring
// with the penalty breakdown, nothing recorded.
func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	const op = "api.calculate"

	var in scoring.Input
	if err := decodeJSON(w, r, &in); err != nil {
		s.badRequest(w, r, op, err)
		return
	}
	res, err := s.deps.Calculate(in)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.UserStats(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		s.fail(w, r, Wrap("api.user_stats", err))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
