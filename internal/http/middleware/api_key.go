package middleware

import (
	"log/slog"
	"net/http"

	"github.com/tendant/hr-tenancy/internal/httputil"
	"github.com/tendant/hr-tenancy/internal/metrics"
)

// APIKeyHeader is the header the control plane uses for the shared secret.
const APIKeyHeader = "x-api-key"

// KeyValidator checks a presented shared secret.
type KeyValidator interface {
	Validate(presented string) error
}

// APIKey creates middleware that admits only requests carrying the shared secret.
func APIKey(gate KeyValidator, m *metrics.Metrics, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := gate.Validate(r.Header.Get(APIKeyHeader)); err != nil {
				m.RejectInternal()
				if logger != nil {
					logger.Warn("internal request rejected",
						"ip", r.RemoteAddr,
						"path", r.URL.Path,
					)
				}
				httputil.Error(w, http.StatusUnauthorized, "invalid api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
