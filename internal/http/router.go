package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/hr-tenancy/internal/config"
	"github.com/tendant/hr-tenancy/internal/http/features/clients"
	"github.com/tendant/hr-tenancy/internal/http/features/internalapi"
	"github.com/tendant/hr-tenancy/internal/http/features/session"
	"github.com/tendant/hr-tenancy/internal/http/middleware"
	"github.com/tendant/hr-tenancy/internal/httputil"
	"github.com/tendant/hr-tenancy/internal/metrics"
	"github.com/tendant/hr-tenancy/internal/tenancy"
	"github.com/tendant/hr-tenancy/internal/tenantsync"
	"github.com/tendant/hr-tenancy/pkg/auth"
	"github.com/tendant/hr-tenancy/pkg/domain"
)

// RouterConfig holds what both planes share.
type RouterConfig struct {
	Logger             *slog.Logger
	Metrics            *metrics.Metrics
	SessionService     *auth.SessionService
	RateLimitConfig    config.RateLimitConfig
	SecurityHeaders    config.SecurityHeadersConfig
	MaxRequestBodySize int64
	Cookie             httputil.CookieConfig
	AllowRegistration  bool
}

// ControlPlaneConfig holds configuration for the control plane router.
type ControlPlaneConfig struct {
	RouterConfig
	Registry *tenancy.Registry
}

// TenantConfig holds configuration for the tenant plane router.
type TenantConfig struct {
	RouterConfig
	Gate *tenantsync.Gate
	Sync *tenantsync.Service
}

// NewControlPlaneRouter creates the superadmin service router.
func NewControlPlaneRouter(cfg ControlPlaneConfig) http.Handler {
	clientsHandler := clients.NewHandler(cfg.Logger, cfg.Registry)

	r, _ := newBaseRouter(cfg.RouterConfig, func(r chi.Router, rateLimiters map[string]func(http.Handler) http.Handler) {
		r.With(rateLimiters["auth"]).Post("/change-password", clientsHandler.ChangeAdminPassword)
	})
	requireAuth := middleware.Auth(cfg.SessionService.Tokens(), cfg.Logger)

	r.Route("/clients", func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(middleware.RequireRole(domain.RoleSuperadmin))

		r.Post("/onboard", clientsHandler.Onboard)
		r.Get("/", clientsHandler.List)
		r.Get("/stats", clientsHandler.Stats)
		r.Patch("/{id}/modules", clientsHandler.UpdateModules)
		r.Patch("/{id}/status", clientsHandler.UpdateStatus)
		r.Post("/{id}/provision", clientsHandler.RetryProvisioning)
		r.Delete("/{id}", clientsHandler.ChangeLifecycle)
	})

	return r
}

// NewTenantRouter creates the tenant instance router.
func NewTenantRouter(cfg TenantConfig) http.Handler {
	r, rateLimiters := newBaseRouter(cfg.RouterConfig, nil)

	internalHandler := internalapi.NewHandler(cfg.Logger, cfg.Sync)
	r.Route("/internal", func(r chi.Router) {
		r.Get("/modules", internalHandler.Modules)

		r.Group(func(r chi.Router) {
			r.Use(rateLimiters["internal"])
			r.Use(middleware.APIKey(cfg.Gate, cfg.Metrics, cfg.Logger))
			r.Post("/onboard-admin", internalHandler.OnboardAdmin)
			r.Post("/update-modules", internalHandler.UpdateModules)
		})
	})

	return r
}

// newBaseRouter applies global middleware and registers health, metrics and
// session routes. extraAuth, if set, adds plane-specific routes under /auth.
func newBaseRouter(cfg RouterConfig, extraAuth func(r chi.Router, rateLimiters map[string]func(http.Handler) http.Handler)) (chi.Router, map[string]func(http.Handler) http.Handler) {
	r := chi.NewRouter()

	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger, cfg.Metrics))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.MaxRequestBodySize))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimitConfig, cfg.Logger)
	requireAuth := middleware.Auth(cfg.SessionService.Tokens(), cfg.Logger)

	sessionHandler := session.NewHandler(session.Config{
		Logger:            cfg.Logger,
		Sessions:          cfg.SessionService,
		Metrics:           cfg.Metrics,
		Cookie:            cfg.Cookie,
		AllowRegistration: cfg.AllowRegistration,
	})

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(rateLimiters["auth"])
			r.Post("/login", sessionHandler.Login)
			r.Post("/register", sessionHandler.Register)
		})
		r.With(rateLimiters["refresh"]).Post("/refresh", sessionHandler.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/logout", sessionHandler.Logout)
			r.Get("/me", sessionHandler.Me)
		})

		if extraAuth != nil {
			extraAuth(r, rateLimiters)
		}
	})

	return r, rateLimiters
}
