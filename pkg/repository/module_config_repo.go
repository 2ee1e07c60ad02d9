package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/tendant/hr-tenancy/pkg/domain"
)

// ModuleConfigRepository persists the single module_config row of a tenant instance.
// The row is keyed by a constant id so an upsert can never create a second one.
type ModuleConfigRepository struct {
	db Querier
}

// NewModuleConfigRepository creates a new module config repository.
func NewModuleConfigRepository(db Querier) *ModuleConfigRepository {
	return &ModuleConfigRepository{db: db}
}

// Upsert creates the row if absent, otherwise overwrites the enabled modules.
func (r *ModuleConfigRepository) Upsert(ctx context.Context, modules []string) (*domain.ModuleConfig, error) {
	query := `
		INSERT INTO module_config (id, enabled_modules, created_at, updated_at)
		VALUES (1, $1, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE
		SET enabled_modules = EXCLUDED.enabled_modules, updated_at = NOW()
		RETURNING enabled_modules, created_at, updated_at
	`
	cfg := &domain.ModuleConfig{}
	var enabled pq.StringArray
	err := r.db.QueryRowContext(ctx, query, pq.Array(domain.NormalizeModules(modules))).
		Scan(&enabled, &cfg.CreatedAt, &cfg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	cfg.EnabledModules = domain.NormalizeModules(enabled)
	return cfg, nil
}

// Get returns the enabled modules, or an empty list if never configured.
func (r *ModuleConfigRepository) Get(ctx context.Context) ([]string, error) {
	query := `SELECT enabled_modules FROM module_config WHERE id = 1`
	var enabled pq.StringArray
	err := r.db.QueryRowContext(ctx, query).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return domain.NormalizeModules(enabled), nil
}
