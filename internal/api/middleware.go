package api

import (
	"context"
	"net/http"

	"github.com/mirrorapp/mirror-server/internal/domain"
	"github.com/mirrorapp/mirror-server/internal/http/response"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	contextKeyUserID contextKey = "user_id"
	contextKeyRole   contextKey = "role"
)

// identity reads the user identity asserted by the fronting system from
// X-User-ID and X-User-Role. Requests without identity proceed as
// anonymous non-admin users; handlers that need a user reject those.
func (s *Server) identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := domain.RoleUser
		if r.Header.Get("X-User-Role") == string(domain.RoleAdmin) {
			role = domain.RoleAdmin
		}

		ctx := context.WithValue(r.Context(), contextKeyUserID, r.Header.Get("X-User-ID"))
		ctx = context.WithValue(ctx, contextKeyRole, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireUser rejects requests without an asserted user ID. Used on the
// overlay write endpoints, which make no sense anonymously.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if getUserID(r.Context()) == "" {
			response.Unauthorized(w, "Missing X-User-ID header", s.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin gates the sync control endpoints.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !getRole(r.Context()).IsAdmin() {
			response.Forbidden(w, "Admin access required", s.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// getUserID extracts the asserted user ID from request context.
func getUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(contextKeyUserID).(string); ok {
		return userID
	}
	return ""
}

// getRole extracts the asserted role from request context.
func getRole(ctx context.Context) domain.Role {
	if role, ok := ctx.Value(contextKeyRole).(domain.Role); ok {
		return role
	}
	return domain.RoleUser
}
