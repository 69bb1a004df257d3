// Package auth provides tokens, password hashing and request principals.
package auth

import (
	"context"

	"github.com/commandgrid/pmt/internal/model"
)

type principalKey struct{}

// ContextWithAuth stores the authenticated principal on ctx.
func ContextWithAuth(ctx context.Context, principal *model.AuthContext) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

// AuthFromContext returns the principal stored by ContextWithAuth, or nil.
func AuthFromContext(ctx context.Context) *model.AuthContext {
	principal, _ := ctx.Value(principalKey{}).(*model.AuthContext)
	return principal
}

// UserIDFromContext returns the principal's user id, or "" when unauthenticated.
func UserIDFromContext(ctx context.Context) string {
	if principal := AuthFromContext(ctx); principal != nil {
		return principal.UserID
	}
	return ""
}
