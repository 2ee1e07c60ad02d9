package httputil

import (
	"net/http"
	"time"
)

// RefreshCookieName is the cookie that carries the refresh token.
const RefreshCookieName = "refresh_token"

// CookieConfig holds cookie configuration.
type CookieConfig struct {
	Domain   string
	Path     string
	Secure   bool // Set to true in production (HTTPS)
	SameSite http.SameSite
}

// DefaultCookieConfig scopes the refresh cookie to the auth routes.
func DefaultCookieConfig(secure bool, domain string) CookieConfig {
	sameSite := http.SameSiteLaxMode
	if secure {
		sameSite = http.SameSiteStrictMode
	}
	return CookieConfig{
		Domain:   domain,
		Path:     "/auth",
		Secure:   secure,
		SameSite: sameSite,
	}
}

// SetRefreshCookie stores the refresh token in an HttpOnly cookie.
func SetRefreshCookie(w http.ResponseWriter, token string, ttl time.Duration, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	})
}

// ClearRefreshCookie expires the refresh cookie.
func ClearRefreshCookie(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: cfg.SameSite,
	})
}

// GetRefreshTokenFromCookie extracts the refresh token from its cookie.
func GetRefreshTokenFromCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}
