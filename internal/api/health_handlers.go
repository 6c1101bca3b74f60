package api

import (
	"net/http"

	"github.com/mirrorapp/mirror-server/internal/http/response"
)

// HealthResponse contains health check data.
type HealthResponse struct {
	Status     string `json:"status"` // healthy, degraded, or unhealthy
	InstanceID string `json:"instance_id,omitempty"`
	CacheReady bool   `json:"cache_ready"`
}

// handleHealthCheck reports database reachability and whether the cache
// has completed an initial full sync. An unsynced cache is degraded, not
// unhealthy: the process is fine, queries just cannot be answered yet.
// GET /health
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{Status: "healthy"}

	instanceID, err := s.store.InstanceID(r.Context())
	if err != nil {
		health.Status = "unhealthy"
		response.JSON(w, http.StatusServiceUnavailable, health, s.logger)
		return
	}
	health.InstanceID = instanceID

	ready, err := s.store.CacheReady(r.Context())
	if err != nil {
		health.Status = "unhealthy"
		response.JSON(w, http.StatusServiceUnavailable, health, s.logger)
		return
	}
	health.CacheReady = ready
	if !ready {
		health.Status = "degraded"
	}

	response.Success(w, health, s.logger)
}
