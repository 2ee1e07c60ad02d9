// Package tenancy is the control plane's registry of tenant instances and
// the provisioning saga that keeps each instance in step with its record.
package tenancy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/hr-tenancy/internal/provisioning"
	"github.com/tendant/hr-tenancy/pkg/auth"
	"github.com/tendant/hr-tenancy/pkg/domain"
)

// TenantStore persists tenant records. Missing rows are domain.ErrTenantNotFound.
type TenantStore interface {
	Create(ctx context.Context, tenant *domain.Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error)
	GetByAdminEmail(ctx context.Context, email string) (*domain.Tenant, error)
	List(ctx context.Context) ([]*domain.Tenant, error)
	Stats(ctx context.Context) (*domain.TenantStats, error)
	UpdateModules(ctx context.Context, id uuid.UUID, modules []string) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TenantStatus) error
	UpdateProvisioning(ctx context.Context, id uuid.UUID, state domain.ProvisioningState, errText *string) error
	UpdateAdminPassword(ctx context.Context, id uuid.UUID, hash string, forceChange bool) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Provisioner delivers admin accounts and module lists to tenant instances.
type Provisioner interface {
	OnboardAdmin(ctx context.Context, target provisioning.Target, req provisioning.OnboardAdminRequest) (*provisioning.OnboardAdminResult, error)
	UpdateModules(ctx context.Context, target provisioning.Target, modules []string) error
}

// Config holds registry configuration.
type Config struct {
	// DefaultAPIKey is stored as the shared secret of tenants onboarded without one.
	DefaultAPIKey string
	Policy        *auth.PasswordPolicy
	Logger        *slog.Logger
}

// Registry manages tenant records on the control plane.
type Registry struct {
	config      Config
	tenants     TenantStore
	provisioner Provisioner
	logger      *slog.Logger
}

// NewRegistry creates a tenant registry.
func NewRegistry(config Config, tenants TenantStore, provisioner Provisioner) *Registry {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		config:      config,
		tenants:     tenants,
		provisioner: provisioner,
		logger:      logger,
	}
}

// OnboardInput describes a new tenant.
type OnboardInput struct {
	Name       string
	Domain     string
	Plan       string
	Employees  int
	Status     domain.TenantStatus
	Modules    []string
	AdminEmail string
	AdminName  string
	APIKey     string
}

// OnboardResult is a tenant record plus the one-time admin password.
type OnboardResult struct {
	Tenant       *domain.Tenant
	TempPassword string
}

// Onboard persists a new tenant and provisions its first admin on the tenant
// instance. The record is kept even when the instance cannot be reached: the
// result is returned together with an error wrapping domain.ErrTenantUnreachable
// and the record's provisioning state is failed.
func (r *Registry) Onboard(ctx context.Context, in OnboardInput) (*OnboardResult, error) {
	status := in.Status
	if status == "" {
		status = domain.TenantStatusActive
	}
	if !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	if err := auth.ValidateEmail(in.AdminEmail); err != nil {
		return nil, err
	}

	secret := in.APIKey
	if secret == "" {
		secret = r.config.DefaultAPIKey
	}

	tempPassword, err := auth.GenerateTempPassword()
	if err != nil {
		return nil, fmt.Errorf("generate temp password: %w", err)
	}
	hash, err := auth.HashPassword(tempPassword)
	if err != nil {
		return nil, fmt.Errorf("hash temp password: %w", err)
	}

	now := time.Now()
	tenant := &domain.Tenant{
		ID:                  uuid.New(),
		Name:                strings.TrimSpace(in.Name),
		Domain:              strings.ToLower(strings.TrimSpace(in.Domain)),
		SharedSecret:        secret,
		Employees:           in.Employees,
		Plan:                strings.TrimSpace(in.Plan),
		Status:              status,
		Modules:             domain.NormalizeModules(in.Modules),
		AdminID:             uuid.New(),
		AdminEmail:          auth.NormalizeEmail(in.AdminEmail),
		AdminPasswordHash:   hash,
		ForcePasswordChange: true,
		ProvisioningState:   domain.ProvisioningPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := r.tenants.Create(ctx, tenant); err != nil {
		return nil, err
	}

	r.logger.Info("tenant onboarded",
		"tenant_id", tenant.ID,
		"domain", tenant.Domain,
		"status", tenant.Status,
	)

	_, err = r.provision(ctx, tenant, tempPassword, in.AdminName)
	return &OnboardResult{Tenant: tenant, TempPassword: tempPassword}, err
}

// RetryProvisioning re-sends onboard-admin for an existing tenant. The
// tenant side is idempotent by admin email. TempPassword is set only when the
// tenant reports it created the admin; the stored admin hash changes only then.
// Once the tenant has created the admin, the result carries TempPassword even
// if storing the new hash fails, since the tenant will not issue another.
func (r *Registry) RetryProvisioning(ctx context.Context, id uuid.UUID) (*OnboardResult, error) {
	tenant, err := r.tenants.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	tempPassword, err := auth.GenerateTempPassword()
	if err != nil {
		return nil, fmt.Errorf("generate temp password: %w", err)
	}
	hash, err := auth.HashPassword(tempPassword)
	if err != nil {
		return nil, fmt.Errorf("hash temp password: %w", err)
	}

	out := &OnboardResult{Tenant: tenant}
	result, err := r.provision(ctx, tenant, tempPassword, "")
	if result == nil || !result.Created {
		return out, err
	}
	out.TempPassword = tempPassword
	if err != nil {
		return out, err
	}

	if err := r.tenants.UpdateAdminPassword(context.WithoutCancel(ctx), tenant.ID, hash, true); err != nil {
		r.logger.Error("failed to store admin password after provisioning",
			"tenant_id", tenant.ID,
			"error", err,
		)
		return out, fmt.Errorf("store admin password: %w", err)
	}
	tenant.AdminPasswordHash = hash
	tenant.ForcePasswordChange = true

	return out, nil
}

// provision runs the remote step of the saga and records its outcome on the
// tenant. The tenant's reply is returned whenever the remote call succeeded,
// including when recording the outcome fails.
func (r *Registry) provision(ctx context.Context, tenant *domain.Tenant, tempPassword, adminName string) (*provisioning.OnboardAdminResult, error) {
	result, callErr := r.provisioner.OnboardAdmin(ctx, target(tenant), provisioning.OnboardAdminRequest{
		AdminID:      tenant.AdminID,
		AdminEmail:   tenant.AdminEmail,
		TempPassword: tempPassword,
		Modules:      tenant.Modules,
		AdminName:    adminName,
	})

	state := domain.ProvisioningProvisioned
	var errText *string
	if callErr != nil {
		state = domain.ProvisioningFailed
		msg := callErr.Error()
		errText = &msg
	}

	// The outcome is recorded even if the caller has gone away.
	recordCtx := context.WithoutCancel(ctx)
	if err := r.tenants.UpdateProvisioning(recordCtx, tenant.ID, state, errText); err != nil {
		r.logger.Error("failed to record provisioning state",
			"tenant_id", tenant.ID,
			"state", state,
			"error", err,
		)
		if callErr == nil {
			return result, fmt.Errorf("record provisioning state: %w", err)
		}
	}

	tenant.ProvisioningState = state
	tenant.ProvisioningError = errText
	if callErr == nil {
		now := time.Now()
		tenant.LastProvisionedAt = &now
	}

	if callErr != nil {
		r.logger.Warn("tenant provisioning failed",
			"tenant_id", tenant.ID,
			"domain", tenant.Domain,
			"error", callErr,
		)
		return nil, callErr
	}

	r.logger.Info("tenant provisioned",
		"tenant_id", tenant.ID,
		"domain", tenant.Domain,
		"created", result.Created,
	)
	return result, nil
}

// UpdateModules overwrites the tenant's module list and pushes it to the
// instance. The stored list is returned even if the push fails; the push
// error is returned alongside it.
func (r *Registry) UpdateModules(ctx context.Context, id uuid.UUID, modules []string) ([]string, error) {
	tenant, err := r.tenants.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	modules = domain.NormalizeModules(modules)
	if err := r.tenants.UpdateModules(ctx, id, modules); err != nil {
		return nil, err
	}

	if err := r.provisioner.UpdateModules(ctx, target(tenant), modules); err != nil {
		r.logger.Warn("module push failed",
			"tenant_id", id,
			"domain", tenant.Domain,
			"error", err,
		)
		return modules, err
	}
	return modules, nil
}

// ChangeLifecycle applies an operator lifecycle action. An empty mode means suspend.
// Repeating an action succeeds; deleting a tenant that no longer exists is
// domain.ErrTenantNotFound.
func (r *Registry) ChangeLifecycle(ctx context.Context, id uuid.UUID, mode domain.LifecycleMode) error {
	var err error
	switch mode {
	case domain.LifecycleSuspend, "":
		err = r.tenants.UpdateStatus(ctx, id, domain.TenantStatusSuspended)
	case domain.LifecycleOffload:
		err = r.tenants.UpdateStatus(ctx, id, domain.TenantStatusOffloaded)
	case domain.LifecycleDelete:
		err = r.tenants.Delete(ctx, id)
	default:
		return domain.ErrInvalidLifecycleMode
	}
	if err != nil {
		return err
	}

	r.logger.Info("tenant lifecycle changed", "tenant_id", id, "mode", mode)
	return nil
}

// UpdateStatus sets the tenant's status to one of the persisted values.
func (r *Registry) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TenantStatus) error {
	if !status.Valid() {
		return domain.ErrInvalidStatus
	}
	return r.tenants.UpdateStatus(ctx, id, status)
}

// List returns every tenant record, newest first.
func (r *Registry) List(ctx context.Context) ([]*domain.Tenant, error) {
	return r.tenants.List(ctx)
}

// Stats counts active tenants and their employees.
func (r *Registry) Stats(ctx context.Context) (*domain.TenantStats, error) {
	return r.tenants.Stats(ctx)
}

// ChangeAdminPassword replaces the admin password stored for a tenant and
// clears the force-change flag.
func (r *Registry) ChangeAdminPassword(ctx context.Context, adminEmail, oldPassword, newPassword string) error {
	tenant, err := r.tenants.GetByAdminEmail(ctx, auth.NormalizeEmail(adminEmail))
	if err != nil {
		return err
	}

	if !auth.VerifyPassword(oldPassword, tenant.AdminPasswordHash) {
		return domain.ErrInvalidCredentials
	}

	if err := r.config.Policy.ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := r.tenants.UpdateAdminPassword(ctx, tenant.ID, hash, false); err != nil {
		return err
	}

	r.logger.Info("tenant admin password changed", "tenant_id", tenant.ID)
	return nil
}

// IsProvisioningFailure reports whether err came from the remote step of the saga.
func IsProvisioningFailure(err error) bool {
	return errors.Is(err, domain.ErrTenantUnreachable)
}

func target(t *domain.Tenant) provisioning.Target {
	return provisioning.Target{Domain: t.Domain, APIKey: t.SharedSecret}
}
