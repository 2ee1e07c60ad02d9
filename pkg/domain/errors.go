package domain

import "errors"

// Authentication errors
var (
	ErrAccountNotFound       = errors.New("account not found")
	ErrDuplicateEmail        = errors.New("email already in use")
	ErrDuplicateAccountID    = errors.New("account id already in use")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrAccountDisabled       = errors.New("account is disabled")
	ErrInvalidSession        = errors.New("session no longer valid")
	ErrTokenRevoked          = errors.New("token has been invalidated")
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenInvalidSignature = errors.New("token signature invalid")
)

// Tenant registry errors
var (
	ErrTenantNotFound       = errors.New("tenant not found")
	ErrDuplicateDomain      = errors.New("domain already registered")
	ErrDuplicateAdminEmail  = errors.New("admin email already registered")
	ErrInvalidLifecycleMode = errors.New("invalid lifecycle mode")
	ErrInvalidStatus        = errors.New("invalid tenant status")
)

// Cross-plane errors
var (
	ErrInvalidAPIKey     = errors.New("invalid API key")
	ErrTenantUnreachable = errors.New("failed communicating with tenant instance")
)

// Validation errors
var (
	ErrInvalidEmail = errors.New("invalid email address")
	ErrWeakPassword = errors.New("password does not meet requirements")
)
