package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/tendant/hr-tenancy/pkg/domain"
)

const tenantColumns = `id, name, domain, shared_secret, employees, plan, status, modules,
	admin_id, admin_email, admin_password_hash, force_password_change,
	provisioning_state, provisioning_error, last_provisioned_at, created_at, updated_at`

// TenantsRepository handles control-plane tenant records.
type TenantsRepository struct {
	db Querier
}

// NewTenantsRepository creates a new tenants repository.
func NewTenantsRepository(db Querier) *TenantsRepository {
	return &TenantsRepository{db: db}
}

// Create creates a new tenant.
func (r *TenantsRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	query := `
		INSERT INTO tenants (` + tenantColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := r.db.ExecContext(ctx, query,
		tenant.ID, tenant.Name, tenant.Domain, tenant.SharedSecret, tenant.Employees, tenant.Plan,
		tenant.Status, pq.Array(domain.NormalizeModules(tenant.Modules)),
		tenant.AdminID, tenant.AdminEmail, tenant.AdminPasswordHash, tenant.ForcePasswordChange,
		tenant.ProvisioningState, tenant.ProvisioningError, tenant.LastProvisionedAt,
		tenant.CreatedAt, tenant.UpdatedAt,
	)
	if constraint, ok := uniqueConstraint(err); ok {
		if strings.Contains(constraint, "admin_email") {
			return domain.ErrDuplicateAdminEmail
		}
		return domain.ErrDuplicateDomain
	}
	return err
}

// GetByID retrieves a tenant by ID.
func (r *TenantsRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	return scanTenant(r.db.QueryRowContext(ctx, query, id))
}

// GetByAdminEmail retrieves a tenant by its admin email.
func (r *TenantsRepository) GetByAdminEmail(ctx context.Context, email string) (*domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE admin_email = $1`
	return scanTenant(r.db.QueryRowContext(ctx, query, email))
}

// List returns all tenants, newest first.
func (r *TenantsRepository) List(ctx context.Context) ([]*domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tenants := []*domain.Tenant{}
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, tenant)
	}
	return tenants, rows.Err()
}

// Stats counts active tenants and their employees.
func (r *TenantsRepository) Stats(ctx context.Context) (*domain.TenantStats, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(employees), 0)
		FROM tenants
		WHERE status = $1
	`
	stats := &domain.TenantStats{}
	err := r.db.QueryRowContext(ctx, query, domain.TenantStatusActive).Scan(&stats.ActiveCompanies, &stats.ActiveUsers)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// UpdateModules overwrites the desired module list.
func (r *TenantsRepository) UpdateModules(ctx context.Context, id uuid.UUID, modules []string) error {
	query := `UPDATE tenants SET modules = $2, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, query, id, pq.Array(domain.NormalizeModules(modules)))
}

// UpdateStatus sets the lifecycle status.
func (r *TenantsRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TenantStatus) error {
	query := `UPDATE tenants SET status = $2, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, query, id, status)
}

// UpdateProvisioning records the outcome of the last call to the tenant instance.
// lastProvisionedAt is only advanced on success.
func (r *TenantsRepository) UpdateProvisioning(ctx context.Context, id uuid.UUID, state domain.ProvisioningState, errText *string) error {
	query := `
		UPDATE tenants
		SET provisioning_state = $2,
		    provisioning_error = $3,
		    last_provisioned_at = CASE WHEN $2 = 'provisioned' THEN $4 ELSE last_provisioned_at END,
		    updated_at = NOW()
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, state, errText, time.Now())
}

// UpdateAdminPassword replaces the stored admin password hash.
func (r *TenantsRepository) UpdateAdminPassword(ctx context.Context, id uuid.UUID, hash string, forceChange bool) error {
	query := `
		UPDATE tenants
		SET admin_password_hash = $2, force_password_change = $3, updated_at = NOW()
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, hash, forceChange)
}

// Delete permanently removes a tenant record.
func (r *TenantsRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, `DELETE FROM tenants WHERE id = $1`, id)
}

func (r *TenantsRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrTenantNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenant(row rowScanner) (*domain.Tenant, error) {
	var (
		tenant  domain.Tenant
		modules pq.StringArray
	)
	err := row.Scan(
		&tenant.ID, &tenant.Name, &tenant.Domain, &tenant.SharedSecret, &tenant.Employees, &tenant.Plan,
		&tenant.Status, &modules,
		&tenant.AdminID, &tenant.AdminEmail, &tenant.AdminPasswordHash, &tenant.ForcePasswordChange,
		&tenant.ProvisioningState, &tenant.ProvisioningError, &tenant.LastProvisionedAt,
		&tenant.CreatedAt, &tenant.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTenantNotFound
	}
	if err != nil {
		return nil, err
	}
	tenant.Modules = domain.NormalizeModules(modules)
	return &tenant, nil
}
