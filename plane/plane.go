// Package plane assembles a runnable control plane or tenant instance from a
// database handle and loaded configuration.
//
// Setup:
//
//  1. Run the migrations for the plane (migrations/control_plane or migrations/tenant)
//  2. Build the plane and serve its handler
//
// Basic usage:
//
//	db, _ := repository.NewDB(repository.Config{...})
//	cfg, _ := config.Load(config.PlaneTenant)
//
//	p, err := plane.NewTenant(plane.Options{DB: db, Config: cfg})
//	if err != nil {
//	    log.Fatal(err) // fails if migrations haven't been run
//	}
//	http.ListenAndServe(cfg.Addr(), p.Handler())
package plane

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/tendant/hr-tenancy/internal/config"
	httpserver "github.com/tendant/hr-tenancy/internal/http"
	"github.com/tendant/hr-tenancy/internal/httputil"
	"github.com/tendant/hr-tenancy/internal/metrics"
	"github.com/tendant/hr-tenancy/internal/provisioning"
	"github.com/tendant/hr-tenancy/internal/tenancy"
	"github.com/tendant/hr-tenancy/internal/tenantsync"
	"github.com/tendant/hr-tenancy/pkg/auth"
	"github.com/tendant/hr-tenancy/pkg/repository"
)

var (
	controlPlaneTables = []string{"accounts", "tenants"}
	tenantTables       = []string{"accounts", "module_config"}
)

// Options holds what every plane needs.
type Options struct {
	// DB is the database connection (required).
	DB *sql.DB

	// Config is the loaded configuration (required). Its Plane must match the constructor.
	Config *config.Config

	// Logger is the structured logger (default: JSON to stdout).
	Logger *slog.Logger

	// Metrics is the collector set (default: a fresh registry named after the plane).
	Metrics *metrics.Metrics
}

// Plane is a wired service: stores, session authority and HTTP handler.
type Plane struct {
	config   *config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	accounts *repository.AccountsRepository
	sessions *auth.SessionService
	registry *tenancy.Registry
	handler  http.Handler
}

// NewControlPlane wires the superadmin service. It fails if the control plane
// tables are missing.
func NewControlPlane(opts Options) (*Plane, error) {
	p, err := newPlane(opts, config.PlaneControl, controlPlaneTables)
	if err != nil {
		return nil, err
	}

	tenants := repository.NewTenantsRepository(opts.DB)
	bridge := provisioning.NewBridge(p.config.Provisioning, p.logger, p.metrics)
	p.registry = tenancy.NewRegistry(tenancy.Config{
		DefaultAPIKey: p.config.Provisioning.DefaultAPIKey,
		Policy:        auth.DefaultPasswordPolicy(),
		Logger:        p.logger,
	}, tenants, bridge)

	p.handler = httpserver.NewControlPlaneRouter(httpserver.ControlPlaneConfig{
		RouterConfig: p.routerConfig(),
		Registry:     p.registry,
	})
	return p, nil
}

// NewTenant wires a tenant instance. It fails if the tenant tables are missing.
func NewTenant(opts Options) (*Plane, error) {
	p, err := newPlane(opts, config.PlaneTenant, tenantTables)
	if err != nil {
		return nil, err
	}

	modules := repository.NewModuleConfigRepository(opts.DB)
	p.handler = httpserver.NewTenantRouter(httpserver.TenantConfig{
		RouterConfig: p.routerConfig(),
		Gate:         tenantsync.NewGate(p.config.SuperadminAPIKey),
		Sync:         tenantsync.NewService(p.accounts, modules, p.config.DefaultRole, p.logger),
	})
	return p, nil
}

func newPlane(opts Options, plane config.Plane, tables []string) (*Plane, error) {
	if err := validateOptions(&opts, plane); err != nil {
		return nil, err
	}
	applyDefaults(&opts)

	if err := validateSchema(context.Background(), opts.DB, tables); err != nil {
		return nil, err
	}

	cfg := opts.Config
	accounts := repository.NewAccountsRepository(opts.DB)
	tokens := auth.NewTokenIssuer(auth.TokenConfig{
		AccessSecret:    []byte(cfg.JWTAccessSecret),
		RefreshSecret:   []byte(cfg.JWTRefreshSecret),
		Issuer:          cfg.JWTIssuer,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
	})
	sessions := auth.NewSessionService(auth.SessionConfig{
		DefaultRole: cfg.DefaultRole,
		Policy:      auth.DefaultPasswordPolicy(),
	}, accounts, tokens)

	return &Plane{
		config:   cfg,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		accounts: accounts,
		sessions: sessions,
	}, nil
}

func (p *Plane) routerConfig() httpserver.RouterConfig {
	return httpserver.RouterConfig{
		Logger:             p.logger,
		Metrics:            p.metrics,
		SessionService:     p.sessions,
		RateLimitConfig:    p.config.RateLimit,
		SecurityHeaders:    p.config.SecurityHeaders,
		MaxRequestBodySize: p.config.MaxRequestBodySize,
		Cookie:             httputil.DefaultCookieConfig(p.config.CookieSecure, p.config.CookieDomain),
		AllowRegistration:  p.config.AllowRegistration,
	}
}

// Handler returns the plane's HTTP handler.
func (p *Plane) Handler() http.Handler {
	return p.handler
}

// Sessions returns the session authority.
func (p *Plane) Sessions() *auth.SessionService {
	return p.sessions
}

// Accounts returns the account store.
func (p *Plane) Accounts() *repository.AccountsRepository {
	return p.accounts
}

// Registry returns the tenant registry. It is nil on a tenant instance.
func (p *Plane) Registry() *tenancy.Registry {
	return p.registry
}

func validateOptions(opts *Options, plane config.Plane) error {
	if opts.DB == nil {
		return errors.New("plane: DB is required")
	}
	if opts.Config == nil {
		return errors.New("plane: Config is required")
	}
	if opts.Config.Plane != plane {
		return fmt.Errorf("plane: config was loaded for %q, not %q", opts.Config.Plane, plane)
	}
	return nil
}

func applyDefaults(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(metricsNamespace(opts.Config.Plane))
	}
}

func metricsNamespace(plane config.Plane) string {
	if plane == config.PlaneControl {
		return "hr_control_plane"
	}
	return "hr_tenant"
}

// validateSchema checks that required database tables exist.
func validateSchema(ctx context.Context, db *sql.DB, tables []string) error {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1
	`

	for _, table := range tables {
		var name string
		err := db.QueryRowContext(ctx, query, table).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("plane: missing table '%s' - run migrations first (see migrations/ folder)", table)
		}
		if err != nil {
			return fmt.Errorf("plane: failed to check schema: %w", err)
		}
	}

	return nil
}
