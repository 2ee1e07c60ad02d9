package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/hr-tenancy/internal/httputil"
	"github.com/tendant/hr-tenancy/pkg/auth"
)

type contextKey string

const (
	// AccountIDKey is the context key for the authenticated account ID.
	AccountIDKey contextKey = "account_id"
	// ClaimsKey is the context key for the token claims.
	ClaimsKey contextKey = "claims"
)

// Auth creates middleware that validates bearer access tokens. Access tokens
// are checked by signature and expiry only; revocation applies at refresh.
func Auth(tokens *auth.TokenIssuer, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var tokenString string

			authHeader := r.Header.Get("Authorization")
			if authHeader != "" {
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
					tokenString = strings.TrimSpace(parts[1])
				}
			}

			if tokenString == "" {
				httputil.Error(w, http.StatusUnauthorized, "missing authorization")
				return
			}

			claims, err := tokens.VerifyAccess(tokenString)
			if err != nil {
				if logger != nil {
					logger.Debug("access token rejected", "error", err, "path", r.URL.Path)
				}
				httputil.Error(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			accountID, err := uuid.Parse(claims.Subject)
			if err != nil {
				httputil.Error(w, http.StatusUnauthorized, "invalid token subject")
				return
			}

			ctx := context.WithValue(r.Context(), AccountIDKey, accountID)
			ctx = context.WithValue(ctx, ClaimsKey, claims)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAccountID extracts the account ID from the request context.
func GetAccountID(ctx context.Context) (uuid.UUID, bool) {
	accountID, ok := ctx.Value(AccountIDKey).(uuid.UUID)
	return accountID, ok
}

// GetClaims extracts the token claims from the request context.
func GetClaims(ctx context.Context) (*auth.AccessTokenClaims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*auth.AccessTokenClaims)
	return claims, ok
}
