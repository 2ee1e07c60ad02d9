// Package memstore provides mutex-guarded in-memory stores with the same
// error contract as the postgres repositories.
package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/hr-tenancy/pkg/domain"
)

// Accounts is an in-memory account store.
type Accounts struct {
	mu   sync.Mutex
	byID map[uuid.UUID]domain.Account
}

// NewAccounts creates an empty account store.
func NewAccounts() *Accounts {
	return &Accounts{byID: make(map[uuid.UUID]domain.Account)}
}

// Create stores a new account. Email is checked before ID.
func (s *Accounts) Create(ctx context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.byID {
		if a.Email == account.Email {
			return domain.ErrDuplicateEmail
		}
	}
	if _, ok := s.byID[account.ID]; ok {
		return domain.ErrDuplicateAccountID
	}
	s.byID[account.ID] = *account
	return nil
}

// GetByID returns a copy of the account.
func (s *Accounts) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &a, nil
}

// GetByEmail looks up an account by normalized email.
func (s *Accounts) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.byID {
		if a.Email == email {
			return &a, nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

// IncrementTokenVersion bumps the token version and returns the new value.
func (s *Accounts) IncrementTokenVersion(ctx context.Context, id uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return 0, domain.ErrAccountNotFound
	}
	a.TokenVersion++
	a.UpdatedAt = time.Now()
	s.byID[id] = a
	return a.TokenVersion, nil
}

// SetActive enables or disables the account.
func (s *Accounts) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.IsActive = active
	a.UpdatedAt = time.Now()
	s.byID[id] = a
	return nil
}

// Tenants is an in-memory tenant registry store.
type Tenants struct {
	mu   sync.Mutex
	byID map[uuid.UUID]domain.Tenant
}

// NewTenants creates an empty tenant store.
func NewTenants() *Tenants {
	return &Tenants{byID: make(map[uuid.UUID]domain.Tenant)}
}

// Create stores a new tenant, enforcing unique domain and admin email.
func (s *Tenants) Create(ctx context.Context, tenant *domain.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.byID {
		if t.Domain == tenant.Domain {
			return domain.ErrDuplicateDomain
		}
		if t.AdminEmail == tenant.AdminEmail {
			return domain.ErrDuplicateAdminEmail
		}
	}
	s.byID[tenant.ID] = cloneTenant(*tenant)
	return nil
}

// GetByID returns a copy of the tenant.
func (s *Tenants) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrTenantNotFound
	}
	t = cloneTenant(t)
	return &t, nil
}

// GetByAdminEmail looks up the tenant owning an admin email.
func (s *Tenants) GetByAdminEmail(ctx context.Context, email string) (*domain.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.byID {
		if t.AdminEmail == email {
			t = cloneTenant(t)
			return &t, nil
		}
	}
	return nil, domain.ErrTenantNotFound
}

// List returns all tenants, newest first.
func (s *Tenants) List(ctx context.Context) ([]*domain.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.Tenant, 0, len(s.byID))
	for _, t := range s.byID {
		t = cloneTenant(t)
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Stats counts active tenants and their employees.
func (s *Tenants) Stats(ctx context.Context) (*domain.TenantStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &domain.TenantStats{}
	for _, t := range s.byID {
		if t.Status != domain.TenantStatusActive {
			continue
		}
		stats.ActiveCompanies++
		stats.ActiveUsers += t.Employees
	}
	return stats, nil
}

// UpdateModules replaces the module list.
func (s *Tenants) UpdateModules(ctx context.Context, id uuid.UUID, modules []string) error {
	return s.update(id, func(t *domain.Tenant) {
		t.Modules = slices.Clone(modules)
	})
}

// UpdateStatus sets the lifecycle status.
func (s *Tenants) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TenantStatus) error {
	return s.update(id, func(t *domain.Tenant) {
		t.Status = status
	})
}

// UpdateProvisioning records a provisioning outcome.
func (s *Tenants) UpdateProvisioning(ctx context.Context, id uuid.UUID, state domain.ProvisioningState, errText *string) error {
	return s.update(id, func(t *domain.Tenant) {
		t.ProvisioningState = state
		t.ProvisioningError = errText
		if state == domain.ProvisioningProvisioned {
			now := time.Now()
			t.LastProvisionedAt = &now
		}
	})
}

// UpdateAdminPassword replaces the stored admin hash.
func (s *Tenants) UpdateAdminPassword(ctx context.Context, id uuid.UUID, hash string, forceChange bool) error {
	return s.update(id, func(t *domain.Tenant) {
		t.AdminPasswordHash = hash
		t.ForcePasswordChange = forceChange
	})
}

// Delete removes the tenant.
func (s *Tenants) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return domain.ErrTenantNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *Tenants) update(id uuid.UUID, fn func(t *domain.Tenant)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok {
		return domain.ErrTenantNotFound
	}
	fn(&t)
	t.UpdatedAt = time.Now()
	s.byID[id] = t
	return nil
}

func cloneTenant(t domain.Tenant) domain.Tenant {
	t.Modules = slices.Clone(t.Modules)
	if t.Modules == nil {
		t.Modules = []string{}
	}
	return t
}

// Modules is an in-memory singleton module configuration.
type Modules struct {
	mu     sync.Mutex
	config *domain.ModuleConfig
}

// NewModules creates a never-configured module store.
func NewModules() *Modules {
	return &Modules{}
}

// Upsert replaces the enabled module list, creating the row on first use.
func (s *Modules) Upsert(ctx context.Context, modules []string) (*domain.ModuleConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if s.config == nil {
		s.config = &domain.ModuleConfig{CreatedAt: now}
	}
	s.config.EnabledModules = domain.NormalizeModules(modules)
	s.config.UpdatedAt = now

	out := *s.config
	out.EnabledModules = slices.Clone(s.config.EnabledModules)
	return &out, nil
}

// Get returns the enabled modules, empty if never configured.
func (s *Modules) Get(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config == nil {
		return []string{}, nil
	}
	return slices.Clone(s.config.EnabledModules), nil
}
