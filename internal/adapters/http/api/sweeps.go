package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/elbow/internal/domain/types"
)

// handleSubmitSweep handles POST /sweeps.
func (s *Server) handleSubmitSweep(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_sweep"
	var req types.SweepRequest
	if err := s.decode(w, r, op, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	ack, err := s.deps.Submit(r.Context(), req)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, ack)
}

// handleGetSweep handles GET /sweeps/{id}.
func (s *Server) handleGetSweep(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_sweep"
	st, err := s.deps.Sweep(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, st)
}
