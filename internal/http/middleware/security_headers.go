package middleware

import (
	"fmt"
	"net/http"

	"github.com/tendant/hr-tenancy/internal/config"
)

type header struct {
	name, value string
}

// SecurityHeaders sets the configured response headers on every reply,
// including error replies written by later handlers. Empty values are skipped.
func SecurityHeaders(cfg config.SecurityHeadersConfig) func(http.Handler) http.Handler {
	headers := securityHeaders(cfg)
	if !cfg.Enabled || len(headers) == 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, hdr := range headers {
				h.Set(hdr.name, hdr.value)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func securityHeaders(cfg config.SecurityHeadersConfig) []header {
	var headers []header
	add := func(name, value string) {
		if value != "" {
			headers = append(headers, header{name, value})
		}
	}

	add("Content-Security-Policy", cfg.CSP)
	// HSTS only makes sense behind TLS termination, so it is opt-in.
	if cfg.HSTSMaxAge > 0 {
		add("Strict-Transport-Security", fmt.Sprintf("max-age=%d; includeSubDomains", cfg.HSTSMaxAge))
	}
	add("X-Frame-Options", cfg.FrameOptions)
	add("X-Content-Type-Options", cfg.ContentTypeOptions)
	add("X-XSS-Protection", cfg.XSSProtection)
	add("Referrer-Policy", cfg.ReferrerPolicy)
	add("Permissions-Policy", cfg.PermissionsPolicy)
	// Bodies carry access tokens and temporary passwords.
	add("Cache-Control", cfg.CacheControl)
	return headers
}
