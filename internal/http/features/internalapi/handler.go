// Package internalapi serves the endpoints the control plane calls on a tenant instance.
package internalapi

import (
	"errors"
	"log/slog"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	"github.com/tendant/hr-tenancy/internal/httputil"
	"github.com/tendant/hr-tenancy/internal/tenantsync"
	"github.com/tendant/hr-tenancy/pkg/domain"
)

// Handler handles /internal endpoints. Authentication is done by the APIKey middleware.
type Handler struct {
	logger *slog.Logger
	sync   *tenantsync.Service
}

// NewHandler creates a new internal API handler.
func NewHandler(logger *slog.Logger, sync *tenantsync.Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, sync: sync}
}

// OnboardAdminRequest is sent by the control plane when a tenant is onboarded.
type OnboardAdminRequest struct {
	AdminID      uuid.UUID `json:"adminId"`
	AdminEmail   string    `json:"adminEmail"`
	TempPassword string    `json:"tempPassword"`
	Modules      []string  `json:"modules"`
	AdminName    string    `json:"adminName"`
}

// Validate checks the onboard-admin payload.
func (r OnboardAdminRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.AdminEmail, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.TempPassword, validation.Required, validation.Length(1, 256)),
		validation.Field(&r.AdminName, validation.Length(0, 200)),
	)
}

// UpdateModulesRequest carries the full module list.
type UpdateModulesRequest struct {
	Modules []string `json:"modules"`
}

// OnboardAdmin creates the tenant admin if absent and stores the module list.
// POST /internal/onboard-admin
func (h *Handler) OnboardAdmin(w http.ResponseWriter, r *http.Request) {
	var req OnboardAdminRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	result, err := h.sync.OnboardAdmin(r.Context(), tenantsync.OnboardAdminInput{
		AdminID:      req.AdminID,
		AdminEmail:   req.AdminEmail,
		TempPassword: req.TempPassword,
		Modules:      req.Modules,
		AdminName:    req.AdminName,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidEmail) || errors.Is(err, domain.ErrWeakPassword) {
			httputil.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		if errors.Is(err, domain.ErrDuplicateAccountID) {
			h.logger.Warn("onboard admin id already belongs to another account", "admin_id", req.AdminID)
			httputil.Error(w, http.StatusConflict, "admin id already in use")
			return
		}
		h.logger.Error("onboard admin failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "onboard admin failed")
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	httputil.JSON(w, status, result)
}

// UpdateModules replaces the enabled module list. A missing list clears it.
// POST /internal/update-modules
func (h *Handler) UpdateModules(w http.ResponseWriter, r *http.Request) {
	var req UpdateModulesRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	result, err := h.sync.UpdateModules(r.Context(), req.Modules)
	if err != nil {
		h.logger.Error("update modules failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "update modules failed")
		return
	}
	httputil.JSON(w, http.StatusOK, result)
}

// Modules returns the enabled module list, [] when never configured.
// GET /internal/modules
func (h *Handler) Modules(w http.ResponseWriter, r *http.Request) {
	modules, err := h.sync.ReadModules(r.Context())
	if err != nil {
		h.logger.Error("read modules failed", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "read modules failed")
		return
	}
	httputil.JSON(w, http.StatusOK, modules)
}
