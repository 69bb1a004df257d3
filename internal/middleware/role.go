package middleware

import (
	"fmt"
	"net/http"

	"github.com/commandgrid/pmt/internal/auth"
	"github.com/commandgrid/pmt/internal/model"
)

// RequireRole returns middleware that admits principals carrying any of roles.
// Must be applied after Auth middleware. Admins pass every check.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := auth.AuthFromContext(r.Context())
			if authCtx == nil {
				writeRoleError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}

			if authCtx.HasRole(roles...) {
				next.ServeHTTP(w, r)
				return
			}

			writeRoleError(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
		})
	}
}

// RequireAdmin admits company administrators only.
func RequireAdmin() func(http.Handler) http.Handler {
	return RequireRole(model.RoleAdmin)
}

// writeRoleError writes a role-related error response.
func writeRoleError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `{"error":{"code":%q,"message":%q}}`, code, message)
}
