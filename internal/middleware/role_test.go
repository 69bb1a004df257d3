package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/commandgrid/pmt/internal/auth"
	"github.com/commandgrid/pmt/internal/model"
)

func TestRequireRole(t *testing.T) {
	testCases := []struct {
		name       string
		authCtx    *model.AuthContext
		roles      []string
		wantStatus int
	}{
		{
			name:       "no auth context",
			roles:      []string{model.RoleAdmin},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "member denied admin route",
			authCtx:    &model.AuthContext{UserID: "u1", Role: model.RoleMember},
			roles:      []string{model.RoleAdmin},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "admin role allowed",
			authCtx:    &model.AuthContext{UserID: "u1", Role: model.RoleAdmin},
			roles:      []string{model.RoleAdmin},
			wantStatus: http.StatusOK,
		},
		{
			name:       "is_admin flag allowed",
			authCtx:    &model.AuthContext{UserID: "u1", Role: model.RoleMember, IsAdmin: true},
			roles:      []string{model.RoleAdmin},
			wantStatus: http.StatusOK,
		},
		{
			name:       "any listed role is sufficient",
			authCtx:    &model.AuthContext{UserID: "u1", Role: model.RoleProjectManager},
			roles:      []string{model.RoleManager, model.RoleProjectManager},
			wantStatus: http.StatusOK,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
			if tc.authCtx != nil {
				req = req.WithContext(auth.ContextWithAuth(req.Context(), tc.authCtx))
			}
			rec := httptest.NewRecorder()

			RequireRole(tc.roles...)(next).ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("Expected status %d, got %d", tc.wantStatus, rec.Code)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	req = req.WithContext(auth.ContextWithAuth(req.Context(), &model.AuthContext{UserID: "u1", Role: model.RoleManager}))
	rec := httptest.NewRecorder()

	RequireAdmin()(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", rec.Code)
	}
}
