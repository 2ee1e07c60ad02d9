package clients

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	"github.com/tendant/hr-tenancy/internal/httputil"
	"github.com/tendant/hr-tenancy/internal/tenancy"
	"github.com/tendant/hr-tenancy/pkg/domain"
)

// domainPattern accepts a host name or address with an optional port.
var domainPattern = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9.-]*[A-Za-z0-9])?(:[0-9]{1,5})?$`)

// Handler handles tenant administration on the control plane.
type Handler struct {
	logger   *slog.Logger
	registry *tenancy.Registry
}

// NewHandler creates a new clients handler.
func NewHandler(logger *slog.Logger, registry *tenancy.Registry) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, registry: registry}
}

// OnboardRequest represents a tenant onboarding request.
type OnboardRequest struct {
	ClientName string   `json:"clientName"`
	Domain     string   `json:"domain"`
	Employees  int      `json:"employees"`
	Plan       string   `json:"plan"`
	Status     string   `json:"status"`
	ModuleName []string `json:"moduleName"`
	AdminEmail string   `json:"adminEmail"`
	AdminName  string   `json:"adminName"`
	APIKey     string   `json:"apiKey"`
}

// Validate checks the onboarding payload.
func (r OnboardRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ClientName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Domain, validation.Required, validation.Length(1, 253), validation.Match(domainPattern)),
		validation.Field(&r.Employees, validation.Min(0)),
		validation.Field(&r.Plan, validation.Length(0, 100)),
		validation.Field(&r.Status, validation.In(
			string(domain.TenantStatusActive),
			string(domain.TenantStatusSuspended),
			string(domain.TenantStatusOffloaded),
		)),
		validation.Field(&r.ModuleName, validation.Required),
		validation.Field(&r.AdminEmail, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.AdminName, validation.Length(0, 200)),
		validation.Field(&r.APIKey, validation.Length(0, 256)),
	)
}

// UpdateModulesRequest replaces a tenant's module list.
type UpdateModulesRequest struct {
	Modules []string `json:"modules"`
}

// Validate requires the field to be present; an empty list is allowed.
func (r UpdateModulesRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Modules, validation.NotNil),
	)
}

// UpdateStatusRequest sets a tenant's status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// Validate checks the status value.
func (r UpdateStatusRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Status, validation.Required, validation.In(
			string(domain.TenantStatusActive),
			string(domain.TenantStatusSuspended),
			string(domain.TenantStatusOffloaded),
		)),
	)
}

// ChangePasswordRequest changes a tenant admin's stored password.
type ChangePasswordRequest struct {
	AdminEmail  string `json:"adminEmail"`
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// Validate checks the change-password payload.
func (r ChangePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.AdminEmail, validation.Required, is.Email),
		validation.Field(&r.OldPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(8, 256)),
	)
}

// ClientResponse is a tenant record with the one-time password and, when the
// tenant instance could not be provisioned, the error and the retry path.
type ClientResponse struct {
	*domain.Tenant
	TempPassword string `json:"tempPassword,omitempty"`
	Error        string `json:"error,omitempty"`
	RetryPath    string `json:"retryPath,omitempty"`
}

// ResultResponse reports the outcome of an operator action.
type ResultResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Modules []string `json:"modules,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Onboard creates a tenant and provisions its admin.
// POST /clients/onboard
func (h *Handler) Onboard(w http.ResponseWriter, r *http.Request) {
	var req OnboardRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	result, err := h.registry.Onboard(r.Context(), tenancy.OnboardInput{
		Name:       req.ClientName,
		Domain:     req.Domain,
		Plan:       req.Plan,
		Employees:  req.Employees,
		Status:     domain.TenantStatus(req.Status),
		Modules:    req.ModuleName,
		AdminEmail: req.AdminEmail,
		AdminName:  req.AdminName,
		APIKey:     req.APIKey,
	})
	if err != nil && result == nil {
		switch {
		case errors.Is(err, domain.ErrDuplicateDomain):
			httputil.Error(w, http.StatusConflict, "domain already onboarded")
		case errors.Is(err, domain.ErrDuplicateAdminEmail):
			httputil.Error(w, http.StatusConflict, "admin email already in use")
		case errors.Is(err, domain.ErrInvalidStatus), errors.Is(err, domain.ErrInvalidEmail):
			httputil.Error(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("onboarding failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "onboarding failed")
		}
		return
	}

	h.writeProvisioned(w, result, err, http.StatusCreated)
}

// RetryProvisioning re-sends the admin and module list to the tenant instance.
// POST /clients/{id}/provision
func (h *Handler) RetryProvisioning(w http.ResponseWriter, r *http.Request) {
	id, ok := clientID(w, r)
	if !ok {
		return
	}

	result, err := h.registry.RetryProvisioning(r.Context(), id)
	if err != nil && result == nil {
		if errors.Is(err, domain.ErrTenantNotFound) {
			notFound(w)
			return
		}
		h.logger.Error("provisioning retry failed", "error", err, "tenant_id", id)
		httputil.Error(w, http.StatusInternalServerError, "provisioning retry failed")
		return
	}

	h.writeProvisioned(w, result, err, http.StatusOK)
}

func (h *Handler) writeProvisioned(w http.ResponseWriter, result *tenancy.OnboardResult, err error, okStatus int) {
	resp := ClientResponse{Tenant: result.Tenant, TempPassword: result.TempPassword}
	if err != nil {
		resp.Error = err.Error()
		resp.RetryPath = fmt.Sprintf("/clients/%s/provision", result.Tenant.ID)
		httputil.JSON(w, http.StatusBadGateway, resp)
		return
	}
	httputil.JSON(w, okStatus, resp)
}

// List returns every tenant.
// GET /clients
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.registry.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list tenants", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to list clients")
		return
	}
	httputil.JSON(w, http.StatusOK, tenants)
}

// Stats returns active tenant and employee counts.
// GET /clients/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.registry.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to compute stats", "error", err)
		httputil.Error(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	httputil.JSON(w, http.StatusOK, stats)
}

// UpdateModules replaces a tenant's modules and pushes them to the instance.
// PATCH /clients/{id}/modules
func (h *Handler) UpdateModules(w http.ResponseWriter, r *http.Request) {
	id, ok := clientID(w, r)
	if !ok {
		return
	}

	var req UpdateModulesRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	modules, err := h.registry.UpdateModules(r.Context(), id, req.Modules)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTenantNotFound):
			notFound(w)
		case modules != nil:
			httputil.JSON(w, http.StatusBadGateway, ResultResponse{
				Success: false,
				Message: "Modules saved but the client instance was not updated",
				Modules: modules,
				Error:   err.Error(),
			})
		default:
			h.logger.Error("failed to update modules", "error", err, "tenant_id", id)
			httputil.Error(w, http.StatusInternalServerError, "failed to update modules")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, ResultResponse{Success: true, Message: "Modules updated", Modules: modules})
}

// UpdateStatus sets a tenant's status.
// PATCH /clients/{id}/status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := clientID(w, r)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	if err := h.registry.UpdateStatus(r.Context(), id, domain.TenantStatus(req.Status)); err != nil {
		switch {
		case errors.Is(err, domain.ErrTenantNotFound):
			notFound(w)
		case errors.Is(err, domain.ErrInvalidStatus):
			httputil.Error(w, http.StatusBadRequest, "invalid status")
		default:
			h.logger.Error("failed to update status", "error", err, "tenant_id", id)
			httputil.Error(w, http.StatusInternalServerError, "failed to update status")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, ResultResponse{
		Success: true,
		Message: "Client status updated to " + req.Status,
	})
}

var lifecycleMessages = map[domain.LifecycleMode]string{
	domain.LifecycleSuspend: "Client suspended",
	domain.LifecycleOffload: "Client offloaded successfully",
	domain.LifecycleDelete:  "Client deleted permanently",
}

// ChangeLifecycle suspends, offloads or deletes a tenant.
// DELETE /clients/{id}?mode=suspend|offload|delete
func (h *Handler) ChangeLifecycle(w http.ResponseWriter, r *http.Request) {
	id, ok := clientID(w, r)
	if !ok {
		return
	}

	mode := domain.LifecycleMode(r.URL.Query().Get("mode"))
	if err := h.registry.ChangeLifecycle(r.Context(), id, mode); err != nil {
		switch {
		case errors.Is(err, domain.ErrTenantNotFound):
			notFound(w)
		case errors.Is(err, domain.ErrInvalidLifecycleMode):
			httputil.JSON(w, http.StatusBadRequest, ResultResponse{Success: false, Message: "Invalid mode"})
		default:
			h.logger.Error("lifecycle change failed", "error", err, "tenant_id", id, "mode", mode)
			httputil.Error(w, http.StatusInternalServerError, "lifecycle change failed")
		}
		return
	}

	if mode == "" {
		mode = domain.LifecycleSuspend
	}
	httputil.JSON(w, http.StatusOK, ResultResponse{Success: true, Message: lifecycleMessages[mode]})
}

// ChangeAdminPassword replaces a tenant admin's stored password.
// POST /auth/change-password
func (h *Handler) ChangeAdminPassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	err := h.registry.ChangeAdminPassword(r.Context(), req.AdminEmail, req.OldPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTenantNotFound):
			httputil.Error(w, http.StatusNotFound, "client not found")
		case errors.Is(err, domain.ErrInvalidCredentials):
			httputil.Error(w, http.StatusUnauthorized, "old password incorrect")
		case errors.Is(err, domain.ErrWeakPassword):
			httputil.Error(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("password change failed", "error", err)
			httputil.Error(w, http.StatusInternalServerError, "password change failed")
		}
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}

func clientID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid client id")
		return uuid.Nil, false
	}
	return id, true
}

func notFound(w http.ResponseWriter) {
	httputil.JSON(w, http.StatusNotFound, ResultResponse{Success: false, Message: "Client not found"})
}
