package api

import (
	"net/http"

	"github.com/mirrorapp/mirror-server/internal/http/response"
)

// handleTriggerFullSync starts a full sync in the background.
// POST /api/v1/sync/full
func (s *Server) handleTriggerFullSync(w http.ResponseWriter, r *http.Request) {
	if err := s.syncService.TriggerFullSync(); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Accepted(w, map[string]string{"status": "started", "kind": "full"}, s.logger)
}

// handleTriggerIncrementalSync starts an incremental sync in the background.
// POST /api/v1/sync/incremental
func (s *Server) handleTriggerIncrementalSync(w http.ResponseWriter, r *http.Request) {
	if err := s.syncService.TriggerIncrementalSync(); err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	response.Accepted(w, map[string]string{"status": "started", "kind": "incremental"}, s.logger)
}

// handleSyncStatus reports the engine state, the last run's report, and
// per-type bookkeeping.
// GET /api/v1/sync/status
func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.syncService.Status(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	states, err := s.syncService.States(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, map[string]any{
		"status": status,
		"states": states,
	}, s.logger)
}
