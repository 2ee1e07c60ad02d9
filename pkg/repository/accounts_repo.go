package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/hr-tenancy/pkg/domain"
)

const accountColumns = `id, email, name, password_hash, role, is_active, token_version, created_at, updated_at`

// AccountsRepository handles account persistence. The same table layout is
// used by the control plane and by every tenant instance.
type AccountsRepository struct {
	db Querier
}

// NewAccountsRepository creates a new accounts repository.
func NewAccountsRepository(db Querier) *AccountsRepository {
	return &AccountsRepository{db: db}
}

// Create creates a new account.
func (r *AccountsRepository) Create(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		account.ID, account.Email, account.Name, account.PasswordHash, account.Role,
		account.IsActive, account.TokenVersion, account.CreatedAt, account.UpdatedAt,
	)
	if constraint, ok := uniqueConstraint(err); ok {
		if strings.Contains(constraint, "email") {
			return domain.ErrDuplicateEmail
		}
		return domain.ErrDuplicateAccountID
	}
	return err
}

// GetByID retrieves an account by ID.
func (r *AccountsRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves an account by normalized email.
func (r *AccountsRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

// IncrementTokenVersion atomically bumps the token version and returns the new value.
func (r *AccountsRepository) IncrementTokenVersion(ctx context.Context, id uuid.UUID) (int, error) {
	query := `
		UPDATE accounts
		SET token_version = token_version + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING token_version
	`
	var version int
	err := r.db.QueryRowContext(ctx, query, id).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrAccountNotFound
	}
	if err != nil {
		return 0, err
	}
	return version, nil
}

// SetActive enables or disables login for an account.
func (r *AccountsRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `
		UPDATE accounts
		SET is_active = $2, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, active)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *AccountsRepository) scanOne(row *sql.Row) (*domain.Account, error) {
	account := &domain.Account{}
	err := row.Scan(
		&account.ID, &account.Email, &account.Name, &account.PasswordHash, &account.Role,
		&account.IsActive, &account.TokenVersion, &account.CreatedAt, &account.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}
