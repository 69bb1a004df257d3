// Package middleware provides HTTP middleware for the PMT API.
package middleware

import (
	"net/http"
	"strconv"
	"time"
)

// SecurityConfig controls the response hardening headers.
type SecurityConfig struct {
	// IsDevelopment disables HSTS so local http:// frontends keep working.
	IsDevelopment bool
	// HSTSMaxAge defaults to one year.
	HSTSMaxAge time.Duration
	// MaxRequestBodySize is passed to MaxBodySize by the router.
	MaxRequestBodySize int64
}

// apiHeaders are set on every response. The API never serves HTML, so the
// content policy denies everything and framing is refused.
var apiHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"X-XSS-Protection", "0"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=(), usb=()"},
	{"Cross-Origin-Opener-Policy", "same-origin"},
	{"Cross-Origin-Resource-Policy", "same-origin"},
	{"Cache-Control", "no-store"},
}

// Security applies apiHeaders, plus HSTS outside development.
func Security(cfg SecurityConfig) func(http.Handler) http.Handler {
	maxAge := cfg.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = 365 * 24 * time.Hour
	}
	hsts := "max-age=" + strconv.FormatInt(int64(maxAge.Seconds()), 10) + "; includeSubDomains; preload"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, kv := range apiHeaders {
				h.Set(kv[0], kv[1])
			}
			if !cfg.IsDevelopment {
				h.Set("Strict-Transport-Security", hsts)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MaxBodySize rejects requests whose declared length exceeds maxBytes and caps
// the rest with http.MaxBytesReader. A non-positive limit disables the check.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxBytes <= 0 || r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > maxBytes {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				_, _ = w.Write([]byte(`{"error":"Request body too large","code":"BODY_TOO_LARGE"}`))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
