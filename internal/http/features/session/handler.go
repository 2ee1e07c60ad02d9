package session

import (
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/tendant/hr-tenancy/internal/http/middleware"
	"github.com/tendant/hr-tenancy/internal/httputil"
	"github.com/tendant/hr-tenancy/internal/metrics"
	"github.com/tendant/hr-tenancy/pkg/auth"
	"github.com/tendant/hr-tenancy/pkg/domain"
)

// Handler handles session endpoints for either plane.
type Handler struct {
	logger            *slog.Logger
	sessions          *auth.SessionService
	metrics           *metrics.Metrics
	cookieConfig      httputil.CookieConfig
	allowRegistration bool
}

// Config holds handler configuration.
type Config struct {
	Logger            *slog.Logger
	Sessions          *auth.SessionService
	Metrics           *metrics.Metrics
	Cookie            httputil.CookieConfig
	AllowRegistration bool
}

// NewHandler creates a new session handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:            logger,
		sessions:          cfg.Sessions,
		metrics:           cfg.Metrics,
		cookieConfig:      cfg.Cookie,
		allowRegistration: cfg.AllowRegistration,
	}
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks required fields. Format is not checked so a malformed
// email fails like any unknown one.
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(1, 254)),
		validation.Field(&r.Password, validation.Required, validation.Length(1, 256)),
	)
}

// RegisterRequest represents a registration request.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the registration payload.
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Length(0, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(1, 256)),
	)
}

// SessionResponse is returned by login, register and refresh. The refresh
// token travels only in its cookie.
type SessionResponse struct {
	User        *domain.PublicAccount `json:"user"`
	AccessToken string                `json:"accessToken"`
	TokenType   string                `json:"tokenType"`
	ExpiresIn   int                   `json:"expiresIn"`
}

// Login authenticates with email and password.
// POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	sess, err := h.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.authFailure(w, r, "login", err)
		return
	}

	h.metrics.AuthEvent("login", "ok")
	h.writeSession(w, sess, http.StatusOK)
}

// Register creates an account with the plane's default role and signs it in.
// POST /auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if !h.allowRegistration {
		httputil.Error(w, http.StatusForbidden, "registration is disabled")
		return
	}

	var req RegisterRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	sess, err := h.sessions.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.metrics.AuthEvent("register", outcome(err))
		switch {
		case errors.Is(err, domain.ErrDuplicateEmail):
			httputil.Error(w, http.StatusConflict, "email already in use")
		case errors.Is(err, domain.ErrInvalidEmail), errors.Is(err, domain.ErrWeakPassword):
			httputil.Error(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("registration failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "registration failed")
		}
		return
	}

	h.metrics.AuthEvent("register", "ok")
	h.logger.Info("account registered", "account_id", sess.Account.ID)
	h.writeSession(w, sess, http.StatusCreated)
}

// Refresh exchanges the refresh cookie for a new token pair.
// POST /auth/refresh
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken, ok := httputil.GetRefreshTokenFromCookie(r)
	if !ok {
		h.metrics.AuthEvent("refresh", "missing_token")
		httputil.Error(w, http.StatusUnauthorized, "refresh token not found")
		return
	}

	sess, err := h.sessions.Refresh(r.Context(), refreshToken)
	if err != nil {
		httputil.ClearRefreshCookie(w, h.cookieConfig)
		h.authFailure(w, r, "refresh", err)
		return
	}

	h.metrics.AuthEvent("refresh", "ok")
	h.writeSession(w, sess, http.StatusOK)
}

// Logout revokes every refresh token of the caller.
// POST /auth/logout
// Requires authentication
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.sessions.Logout(r.Context(), accountID); err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			httputil.ClearRefreshCookie(w, h.cookieConfig)
			httputil.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		h.logger.Error("logout failed", "error", err, "account_id", accountID)
		httputil.Error(w, http.StatusInternalServerError, "logout failed")
		return
	}

	h.metrics.AuthEvent("logout", "ok")
	httputil.ClearRefreshCookie(w, h.cookieConfig)
	httputil.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Me returns the caller's account.
// GET /auth/me
// Requires authentication
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.GetAccountID(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	account, err := h.sessions.Me(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			httputil.Error(w, http.StatusNotFound, "account not found")
			return
		}
		httputil.Error(w, http.StatusInternalServerError, "failed to get account")
		return
	}

	httputil.JSON(w, http.StatusOK, account)
}

func (h *Handler) writeSession(w http.ResponseWriter, sess *domain.Session, status int) {
	httputil.SetRefreshCookie(w, sess.Tokens.RefreshToken, h.sessions.Tokens().RefreshTokenTTL(), h.cookieConfig)
	httputil.JSON(w, status, SessionResponse{
		User:        sess.Account,
		AccessToken: sess.Tokens.AccessToken,
		TokenType:   sess.Tokens.TokenType,
		ExpiresIn:   sess.Tokens.ExpiresIn,
	})
}

// authFailure answers every authentication failure with the same 401 body.
// The precise reason only reaches the log.
func (h *Handler) authFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	kind := outcome(err)
	h.metrics.AuthEvent(op, kind)

	if kind == "error" {
		h.logger.Error(op+" failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, op+" failed")
		return
	}

	h.logger.Info(op+" rejected", "reason", kind, "ip", r.RemoteAddr)
	httputil.Error(w, http.StatusUnauthorized, "invalid credentials")
}

func outcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrAccountDisabled):
		return "account_disabled"
	case errors.Is(err, domain.ErrTokenRevoked):
		return "token_revoked"
	case errors.Is(err, domain.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, domain.ErrTokenMalformed):
		return "token_malformed"
	case errors.Is(err, domain.ErrTokenInvalidSignature):
		return "token_invalid_signature"
	case errors.Is(err, domain.ErrInvalidSession):
		return "invalid_session"
	case errors.Is(err, domain.ErrDuplicateEmail):
		return "duplicate_email"
	case errors.Is(err, domain.ErrInvalidEmail):
		return "invalid_email"
	case errors.Is(err, domain.ErrWeakPassword):
		return "weak_password"
	}
	return "error"
}
