package domain

import (
	"time"

	"github.com/google/uuid"
)

// TenantStatus is the operator-controlled lifecycle status of a tenant.
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
	TenantStatusOffloaded TenantStatus = "offloaded"
)

// Valid reports whether s is a known persisted status.
func (s TenantStatus) Valid() bool {
	switch s {
	case TenantStatusActive, TenantStatusSuspended, TenantStatusOffloaded:
		return true
	}
	return false
}

// LifecycleMode is the operator action applied by ChangeLifecycle.
type LifecycleMode string

const (
	LifecycleSuspend LifecycleMode = "suspend"
	LifecycleOffload LifecycleMode = "offload"
	LifecycleDelete  LifecycleMode = "delete"
)

// ProvisioningState tracks whether the tenant instance has accepted the
// admin account and module list pushed by the control plane.
type ProvisioningState string

const (
	ProvisioningPending     ProvisioningState = "pending"
	ProvisioningProvisioned ProvisioningState = "provisioned"
	ProvisioningFailed      ProvisioningState = "failed"
)

// Tenant is the control-plane record of an onboarded client organization.
type Tenant struct {
	ID                  uuid.UUID         `json:"clientID"`
	Name                string            `json:"clientName"`
	Domain              string            `json:"domain"`
	SharedSecret        string            `json:"-"`
	Employees           int               `json:"employees"`
	Plan                string            `json:"plan"`
	Status              TenantStatus      `json:"status"`
	Modules             []string          `json:"moduleName"`
	AdminID             uuid.UUID         `json:"adminID"`
	AdminEmail          string            `json:"adminEmail"`
	AdminPasswordHash   string            `json:"-"`
	ForcePasswordChange bool              `json:"forcePasswordChange"`
	ProvisioningState   ProvisioningState `json:"provisioningState"`
	ProvisioningError   *string           `json:"provisioningError,omitempty"`
	LastProvisionedAt   *time.Time        `json:"lastProvisionedAt,omitempty"`
	CreatedAt           time.Time         `json:"createdAt"`
	UpdatedAt           time.Time         `json:"updatedAt"`
}

// TenantStats summarizes the registry.
type TenantStats struct {
	ActiveCompanies int `json:"activeCompanies"`
	ActiveUsers     int `json:"activeUsers"`
}
