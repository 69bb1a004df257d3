package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/commandgrid/pmt/internal/auth"
)

type fakeParser struct {
	claims *auth.Claims
	err    error
}

func (f fakeParser) ParseAccess(string) (*auth.Claims, error) {
	return f.claims, f.err
}

type fakeRevocations struct {
	revoked map[string]bool
	err     error
}

func (f fakeRevocations) IsTokenRevoked(_ context.Context, id string) (bool, error) {
	return f.revoked[id], f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAuth(t *testing.T) {
	valid := &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		Type:      "access",
		UserID:    "user-1",
		CompanyID: "company-1",
		Role:      "Member",
	}

	tests := []struct {
		name       string
		header     string
		parser     fakeParser
		revoked    fakeRevocations
		wantStatus int
	}{
		{
			name:       "missing header",
			parser:     fakeParser{claims: valid},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong scheme",
			header:     "Basic abc",
			parser:     fakeParser{claims: valid},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "expired token",
			header:     "Bearer abc",
			parser:     fakeParser{err: auth.ErrExpiredToken},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "refresh token used as access",
			header:     "Bearer abc",
			parser:     fakeParser{err: auth.ErrWrongTokenType},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "revoked token",
			header:     "Bearer abc",
			parser:     fakeParser{claims: valid},
			revoked:    fakeRevocations{revoked: map[string]bool{"jti-1": true}},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "revocation store down fails open",
			header:     "Bearer abc",
			parser:     fakeParser{claims: valid},
			revoked:    fakeRevocations{err: errors.New("connection refused")},
			wantStatus: http.StatusOK,
		},
		{
			name:       "valid token",
			header:     "bearer abc",
			parser:     fakeParser{claims: valid},
			wantStatus: http.StatusOK,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var gotUser string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser = auth.UserIDFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			mw := Auth(AuthConfig{Logger: discardLogger(), Tokens: tc.parser, Revoked: tc.revoked})

			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			mw(next).ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if tc.wantStatus == http.StatusOK && gotUser != "user-1" {
				t.Errorf("user id in context = %q, want user-1", gotUser)
			}
			if tc.wantStatus == http.StatusUnauthorized {
				if !strings.Contains(rec.Body.String(), `"code":"UNAUTHORIZED"`) {
					t.Errorf("body = %s, want UNAUTHORIZED code", rec.Body.String())
				}
				if rec.Header().Get("Content-Type") != "application/json" {
					t.Errorf("Expected JSON content type")
				}
			}
		})
	}
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc.def.ghi", "abc.def.ghi"},
		{"bearer  abc ", "abc"},
		{"Token abc", ""},
		{"Bearer", ""},
	}

	for _, tc := range tests {
		t.Run(tc.header, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if got := extractBearerToken(req); got != tc.want {
				t.Errorf("extractBearerToken(%q) = %q, want %q", tc.header, got, tc.want)
			}
		})
	}
}
