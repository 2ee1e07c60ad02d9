package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Plane selects which deployable service a Config is loaded for.
type Plane string

const (
	PlaneControl Plane = "control-plane"
	PlaneTenant  Plane = "tenant"
)

// RateLimitConfig holds per-endpoint-group request budgets.
type RateLimitConfig struct {
	Enabled                bool
	AuthRequestsPerMinute  int
	RefreshRequestsPerMin  int
	InternalRequestsPerMin int
}

// SecurityHeadersConfig holds the response security headers. Empty values are not sent.
type SecurityHeadersConfig struct {
	Enabled            bool
	CSP                string
	HSTSMaxAge         int
	FrameOptions       string
	ContentTypeOptions string
	XSSProtection      string
	ReferrerPolicy     string
	PermissionsPolicy  string
	CacheControl       string
}

// DefaultSecurityHeaders returns the headers both planes send unless overridden.
// Neither plane serves HTML, so the CSP forbids everything.
func DefaultSecurityHeaders() SecurityHeadersConfig {
	return SecurityHeadersConfig{
		Enabled:            true,
		CSP:                "default-src 'none'; frame-ancestors 'none'",
		FrameOptions:       "DENY",
		ContentTypeOptions: "nosniff",
		XSSProtection:      "0",
		ReferrerPolicy:     "no-referrer",
		CacheControl:       "no-store",
	}
}

// ProvisioningConfig controls outbound calls from the control plane to tenant instances.
type ProvisioningConfig struct {
	// DefaultAPIKey is presented to tenants onboarded without their own key.
	DefaultAPIKey string
	Scheme        string
	Timeout       time.Duration
	Retries       int
}

// Config holds application configuration. It is built once at startup and
// injected; business code never reads the environment.
type Config struct {
	Plane Plane

	// Server
	ServerAddr string
	ServerPort int

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT
	JWTAccessSecret  string
	JWTRefreshSecret string
	JWTIssuer        string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration

	// Cookies
	CookieSecure bool
	CookieDomain string

	// HTTP hardening
	RateLimit          RateLimitConfig
	SecurityHeaders    SecurityHeadersConfig
	MaxRequestBodySize int64

	// Accounts
	AllowRegistration bool
	DefaultRole       string

	// Control plane only
	Provisioning ProvisioningConfig

	// Tenant plane only: the key the control plane must present on /internal calls.
	SuperadminAPIKey string
}

// Load loads configuration for the given plane from environment variables.
func Load(plane Plane) (*Config, error) {
	defaultRole := "client-admin"
	defaultDB := "hr_tenant"
	defaultPort := 3002
	allowRegistration := true
	if plane == PlaneControl {
		defaultRole = "superadmin"
		defaultDB = "hr_control_plane"
		defaultPort = 3001
		allowRegistration = false
	}

	headers := DefaultSecurityHeaders()
	cfg := &Config{
		Plane: plane,

		// Server defaults
		ServerAddr: getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort: getEnvInt("SERVER_PORT", defaultPort),

		// Database defaults
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", defaultDB),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// JWT defaults
		JWTAccessSecret:  getEnv("JWT_ACCESS_SECRET", ""),
		JWTRefreshSecret: getEnv("JWT_REFRESH_SECRET", ""),
		JWTIssuer:        getEnv("JWT_ISSUER", "hr-"+string(plane)),
		AccessTokenTTL:   getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute),
		RefreshTokenTTL:  getEnvDuration("JWT_REFRESH_TTL", 7*24*time.Hour),

		CookieSecure: getEnvBool("COOKIE_SECURE", false),
		CookieDomain: getEnv("COOKIE_DOMAIN", ""),

		RateLimit: RateLimitConfig{
			Enabled:                getEnvBool("RATE_LIMIT_ENABLED", true),
			AuthRequestsPerMinute:  getEnvInt("RATE_LIMIT_AUTH_PER_MINUTE", 10),
			RefreshRequestsPerMin:  getEnvInt("RATE_LIMIT_REFRESH_PER_MINUTE", 30),
			InternalRequestsPerMin: getEnvInt("RATE_LIMIT_INTERNAL_PER_MINUTE", 60),
		},
		SecurityHeaders: SecurityHeadersConfig{
			Enabled:            getEnvBool("SECURITY_HEADERS_ENABLED", headers.Enabled),
			CSP:                getEnv("SECURITY_CSP", headers.CSP),
			HSTSMaxAge:         getEnvInt("SECURITY_HSTS_MAX_AGE", headers.HSTSMaxAge),
			FrameOptions:       getEnv("SECURITY_FRAME_OPTIONS", headers.FrameOptions),
			ContentTypeOptions: getEnv("SECURITY_CONTENT_TYPE_OPTIONS", headers.ContentTypeOptions),
			XSSProtection:      getEnv("SECURITY_XSS_PROTECTION", headers.XSSProtection),
			ReferrerPolicy:     getEnv("SECURITY_REFERRER_POLICY", headers.ReferrerPolicy),
			PermissionsPolicy:  getEnv("SECURITY_PERMISSIONS_POLICY", headers.PermissionsPolicy),
			CacheControl:       getEnv("SECURITY_CACHE_CONTROL", headers.CacheControl),
		},
		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 1<<20)),

		AllowRegistration: getEnvBool("ALLOW_REGISTRATION", allowRegistration),
		DefaultRole:       getEnv("DEFAULT_ROLE", defaultRole),

		Provisioning: ProvisioningConfig{
			DefaultAPIKey: getEnv("TENANT_API_KEY", ""),
			Scheme:        getEnv("PROVISIONING_SCHEME", "https"),
			Timeout:       getEnvDuration("PROVISIONING_TIMEOUT", 8*time.Second),
			Retries:       getEnvInt("PROVISIONING_RETRIES", 1),
		},

		SuperadminAPIKey: getEnv("SUPERADMIN_API_KEY", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Plane != PlaneControl && c.Plane != PlaneTenant {
		return fmt.Errorf("unknown plane %q", c.Plane)
	}
	if c.JWTAccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if c.JWTRefreshSecret == "" {
		return fmt.Errorf("JWT_REFRESH_SECRET is required")
	}
	if c.JWTAccessSecret == c.JWTRefreshSecret {
		return fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if c.Plane == PlaneTenant && c.SuperadminAPIKey == "" {
		return fmt.Errorf("SUPERADMIN_API_KEY is required")
	}
	if c.Plane == PlaneControl {
		switch c.Provisioning.Scheme {
		case "http", "https":
		default:
			return fmt.Errorf("PROVISIONING_SCHEME must be http or https")
		}
		if c.Provisioning.Timeout <= 0 {
			return fmt.Errorf("PROVISIONING_TIMEOUT must be positive")
		}
		if c.Provisioning.Retries < 0 {
			return fmt.Errorf("PROVISIONING_RETRIES must not be negative")
		}
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.ServerAddr, c.ServerPort)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
