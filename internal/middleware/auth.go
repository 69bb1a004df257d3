package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/commandgrid/pmt/internal/auth"
)

// AccessTokenParser validates access tokens.
type AccessTokenParser interface {
	ParseAccess(token string) (*auth.Claims, error)
}

// RevocationChecker reports whether a token id was revoked by logout.
type RevocationChecker interface {
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger  *slog.Logger
	Tokens  AccessTokenParser
	Revoked RevocationChecker
}

// Auth returns a middleware that authenticates requests with a bearer JWT
// and injects the auth context into the request.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				logAuthFailure(cfg.Logger, r, "missing_token")
				writeAuthError(w, "Authentication required")
				return
			}

			claims, err := cfg.Tokens.ParseAccess(token)
			if err != nil {
				reason := "invalid_token"
				switch {
				case errors.Is(err, auth.ErrExpiredToken):
					reason = "expired_token"
				case errors.Is(err, auth.ErrWrongTokenType):
					reason = "wrong_token_type"
				}
				logAuthFailure(cfg.Logger, r, reason)
				writeAuthError(w, "Invalid or expired token")
				return
			}

			if cfg.Revoked != nil && claims.ID != "" {
				revoked, err := cfg.Revoked.IsTokenRevoked(r.Context(), claims.ID)
				if err != nil {
					// Fail open: Redis being down must not lock every user out.
					cfg.Logger.Error("revocation check failed",
						slog.String("error", err.Error()),
						slog.String("user_id", claims.UserID),
						slog.String("request_id", GetRequestID(r.Context())),
					)
				} else if revoked {
					logAuthFailure(cfg.Logger, r, "revoked_token")
					writeAuthError(w, "Token has been revoked")
					return
				}
			}

			ac := claims.AuthContext()
			notePrincipal(r.Context(), ac.UserID, ac.CompanyID)
			cfg.Logger.Debug("authenticated",
				slog.String("user_id", ac.UserID),
				slog.String("company_id", ac.CompanyID),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			ctx := auth.ContextWithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func logAuthFailure(logger *slog.Logger, r *http.Request, reason string) {
	logger.Warn("authentication failed",
		slog.String("reason", reason),
		slog.String("ip", r.RemoteAddr),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.String("request_id", GetRequestID(r.Context())),
	)
}

// extractBearerToken reads the token from "Authorization: Bearer <token>".
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// writeAuthError writes a 401 Unauthorized response.
func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="pmt"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = fmt.Fprintf(w, `{"error":{"code":"UNAUTHORIZED","message":%q}}`, message)
}
