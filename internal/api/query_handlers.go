package api

import (
	"encoding/json/v2"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mirrorapp/mirror-server/internal/http/response"
	"github.com/mirrorapp/mirror-server/internal/store"
)

// handleQuery runs a declarative query against one entity type.
// POST /api/v1/query/{entityType}
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var spec store.QuerySpec
	if err := json.UnmarshalRead(r.Body, &spec); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}

	// Identity comes from the headers, never the body.
	spec.UserID = getUserID(r.Context())
	spec.Role = getRole(r.Context())

	result, err := s.queryService.Execute(r.Context(), chi.URLParam(r, "entityType"), &spec)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, result, s.logger)
}

// handleGetEntity fetches one entity through the full query pipeline, so
// exclusions and soft deletes apply.
// GET /api/v1/entities/{entityType}/{id}
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	result, err := s.queryService.GetByID(r.Context(),
		chi.URLParam(r, "entityType"), chi.URLParam(r, "id"),
		getUserID(r.Context()), getRole(r.Context()))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, result, s.logger)
}
