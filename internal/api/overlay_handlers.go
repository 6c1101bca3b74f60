package api

import (
	"encoding/json/v2"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mirrorapp/mirror-server/internal/domain"
	"github.com/mirrorapp/mirror-server/internal/http/response"
)

// entityRef pulls the entity type and ID out of the URL.
func entityRef(r *http.Request) (domain.EntityType, string, error) {
	t, err := domain.ParseEntityType(chi.URLParam(r, "entityType"))
	if err != nil {
		return "", "", err
	}
	return t, chi.URLParam(r, "id"), nil
}

// handleSetRating stores the caller's rating for an entity.
// PUT /api/v1/users/rating/{entityType}/{id}
func (s *Server) handleSetRating(w http.ResponseWriter, r *http.Request) {
	entityType, entityID, err := entityRef(r)
	if err != nil {
		response.BadRequest(w, err.Error(), s.logger)
		return
	}

	var req struct {
		Rating int `json:"rating"`
	}
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}

	if err := s.overlayService.SetRating(r.Context(), getUserID(r.Context()), entityType, entityID, req.Rating); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, map[string]int{"rating": req.Rating}, s.logger)
}

// handleDeleteRating removes the caller's rating.
// DELETE /api/v1/users/rating/{entityType}/{id}
func (s *Server) handleDeleteRating(w http.ResponseWriter, r *http.Request) {
	entityType, entityID, err := entityRef(r)
	if err != nil {
		response.BadRequest(w, err.Error(), s.logger)
		return
	}
	if err := s.overlayService.DeleteRating(r.Context(), getUserID(r.Context()), entityType, entityID); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

// handleSetFavorite marks an entity as a favorite. Idempotent.
// PUT /api/v1/users/favorite/{entityType}/{id}
func (s *Server) handleSetFavorite(w http.ResponseWriter, r *http.Request) {
	entityType, entityID, err := entityRef(r)
	if err != nil {
		response.BadRequest(w, err.Error(), s.logger)
		return
	}
	if err := s.overlayService.SetFavorite(r.Context(), getUserID(r.Context()), entityType, entityID); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, map[string]bool{"favorite": true}, s.logger)
}

// handleUnfavorite removes a favorite mark.
// DELETE /api/v1/users/favorite/{entityType}/{id}
func (s *Server) handleUnfavorite(w http.ResponseWriter, r *http.Request) {
	entityType, entityID, err := entityRef(r)
	if err != nil {
		response.BadRequest(w, err.Error(), s.logger)
		return
	}
	if err := s.overlayService.Unfavorite(r.Context(), getUserID(r.Context()), entityType, entityID); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

// handleAddView appends a view event and returns the caller's new count.
// POST /api/v1/users/view/{entityType}/{id}
func (s *Server) handleAddView(w http.ResponseWriter, r *http.Request) {
	entityType, entityID, err := entityRef(r)
	if err != nil {
		response.BadRequest(w, err.Error(), s.logger)
		return
	}
	count, err := s.overlayService.AddView(r.Context(), getUserID(r.Context()), entityType, entityID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, map[string]int{"view_count": count}, s.logger)
}

// handleAddO appends an O event and returns the caller's new count.
// POST /api/v1/users/o/{entityType}/{id}
func (s *Server) handleAddO(w http.ResponseWriter, r *http.Request) {
	entityType, entityID, err := entityRef(r)
	if err != nil {
		response.BadRequest(w, err.Error(), s.logger)
		return
	}
	count, err := s.overlayService.AddO(r.Context(), getUserID(r.Context()), entityType, entityID)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, map[string]int{"o_count": count}, s.logger)
}

// handleExclude hides an entity from the caller's queries. Idempotent.
// PUT /api/v1/users/exclusion/{entityType}/{id}
func (s *Server) handleExclude(w http.ResponseWriter, r *http.Request) {
	entityType, entityID, err := entityRef(r)
	if err != nil {
		response.BadRequest(w, err.Error(), s.logger)
		return
	}
	if err := s.overlayService.Exclude(r.Context(), getUserID(r.Context()), entityType, entityID); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, map[string]bool{"excluded": true}, s.logger)
}

// handleUnexclude lifts an exclusion.
// DELETE /api/v1/users/exclusion/{entityType}/{id}
func (s *Server) handleUnexclude(w http.ResponseWriter, r *http.Request) {
	entityType, entityID, err := entityRef(r)
	if err != nil {
		response.BadRequest(w, err.Error(), s.logger)
		return
	}
	if err := s.overlayService.Unexclude(r.Context(), getUserID(r.Context()), entityType, entityID); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.NoContent(w)
}

// handleListExclusions lists the caller's exclusions for one entity type.
// GET /api/v1/users/exclusions/{entityType}
func (s *Server) handleListExclusions(w http.ResponseWriter, r *http.Request) {
	entityType, err := domain.ParseEntityType(chi.URLParam(r, "entityType"))
	if err != nil {
		response.BadRequest(w, err.Error(), s.logger)
		return
	}
	list, err := s.overlayService.Exclusions(r.Context(), getUserID(r.Context()), entityType)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Success(w, list, s.logger)
}
