package api

import (
	"net/http"

	"github.com/okian/elbow/internal/domain/types"
)

// handleElbow handles POST /elbow.
func (s *Server) handleElbow(w http.ResponseWriter, r *http.Request) {
	const op = "api.select_elbow"
	var req types.ElbowRequest
	if err := s.decode(w, r, op, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	resp, err := s.deps.Select(req.Params, req.Errors)
	if err != nil {
		s.fail(w, r, WrapKind(op, ErrUnprocessable, err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
