package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleListModels handles GET /models.
func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_models"
	models, err := s.deps.Models(r.Context())
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, models)
}

// handleGetModel handles GET /models/{id}.
func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_model"
	m, err := s.deps.Model(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, m)
}
