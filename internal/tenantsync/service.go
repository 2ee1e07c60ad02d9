package tenantsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/hr-tenancy/pkg/auth"
	"github.com/tendant/hr-tenancy/pkg/domain"
)

const defaultAdminName = "Client Admin"

// ModuleStore persists the tenant's single module configuration.
type ModuleStore interface {
	Upsert(ctx context.Context, modules []string) (*domain.ModuleConfig, error)
	Get(ctx context.Context) ([]string, error)
}

// OnboardAdminInput is what the control plane sends when a tenant is onboarded.
type OnboardAdminInput struct {
	AdminID      uuid.UUID
	AdminEmail   string
	TempPassword string
	Modules      []string
	AdminName    string
}

// OnboardAdminResult reports the admin account and whether this call created it.
type OnboardAdminResult struct {
	Success bool      `json:"success"`
	UserID  uuid.UUID `json:"userId"`
	Created bool      `json:"created"`
}

// ModulesResult is the module list after an update.
type ModulesResult struct {
	Success        bool     `json:"success"`
	EnabledModules []string `json:"enabledModules"`
}

// Service applies control-plane pushes to the tenant's stores.
type Service struct {
	accounts  auth.AccountStore
	modules   ModuleStore
	adminRole string
	logger    *slog.Logger
}

// NewService creates the sync service. adminRole defaults to client-admin.
func NewService(accounts auth.AccountStore, modules ModuleStore, adminRole string, logger *slog.Logger) *Service {
	if adminRole == "" {
		adminRole = domain.RoleClientAdmin
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		accounts:  accounts,
		modules:   modules,
		adminRole: adminRole,
		logger:    logger,
	}
}

// OnboardAdmin creates the admin account unless one already exists for the
// email, then stores the module list. Safe to repeat.
func (s *Service) OnboardAdmin(ctx context.Context, in OnboardAdminInput) (*OnboardAdminResult, error) {
	if err := auth.ValidateEmail(in.AdminEmail); err != nil {
		return nil, err
	}
	email := auth.NormalizeEmail(in.AdminEmail)

	account, created, err := s.ensureAdmin(ctx, email, in)
	if err != nil {
		return nil, err
	}

	if _, err := s.modules.Upsert(ctx, in.Modules); err != nil {
		return nil, fmt.Errorf("store modules: %w", err)
	}

	s.logger.Info("admin onboarded",
		"account_id", account.ID,
		"created", created,
	)
	return &OnboardAdminResult{Success: true, UserID: account.ID, Created: created}, nil
}

func (s *Service) ensureAdmin(ctx context.Context, email string, in OnboardAdminInput) (*domain.Account, bool, error) {
	existing, err := s.accounts.GetByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, false, err
	}

	if in.TempPassword == "" {
		return nil, false, fmt.Errorf("%w: temporary password is required", domain.ErrWeakPassword)
	}

	name := strings.TrimSpace(in.AdminName)
	if name == "" {
		name = defaultAdminName
	}

	account, err := auth.NewAccount(name, email, in.TempPassword, s.adminRole)
	if err != nil {
		return nil, false, err
	}
	if in.AdminID != uuid.Nil {
		account.ID = in.AdminID
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if !errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, false, err
		}
		// Lost a race with a concurrent onboard for the same email.
		existing, err := s.accounts.GetByEmail(ctx, email)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	return account, true, nil
}

// UpdateModules replaces the enabled module list.
func (s *Service) UpdateModules(ctx context.Context, modules []string) (*ModulesResult, error) {
	cfg, err := s.modules.Upsert(ctx, modules)
	if err != nil {
		return nil, fmt.Errorf("store modules: %w", err)
	}
	s.logger.Info("modules updated", "modules", cfg.EnabledModules)
	return &ModulesResult{Success: true, EnabledModules: cfg.EnabledModules}, nil
}

// ReadModules returns the enabled modules, or an empty list if never configured.
func (s *Service) ReadModules(ctx context.Context) ([]string, error) {
	modules, err := s.modules.Get(ctx)
	if err != nil {
		return nil, err
	}
	if modules == nil {
		modules = []string{}
	}
	return modules, nil
}
