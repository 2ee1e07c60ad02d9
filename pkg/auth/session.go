package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/hr-tenancy/pkg/domain"
)

// AccountStore persists accounts. Implementations return domain.ErrAccountNotFound
// for missing rows and domain.ErrDuplicateEmail on unique email violations.
type AccountStore interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	IncrementTokenVersion(ctx context.Context, id uuid.UUID) (int, error)
}

// SessionConfig holds session configuration.
type SessionConfig struct {
	// DefaultRole is assigned to self-registered accounts.
	DefaultRole string
	Policy      *PasswordPolicy
}

// SessionService is the session authority shared by both planes: login,
// registration, refresh and logout. Revocation is a per-account counter;
// there is no denylist.
type SessionService struct {
	config   SessionConfig
	accounts AccountStore
	tokens   *TokenIssuer
}

// NewSessionService creates a new session service.
func NewSessionService(config SessionConfig, accounts AccountStore, tokens *TokenIssuer) *SessionService {
	if config.DefaultRole == "" {
		config.DefaultRole = domain.RoleClientAdmin
	}
	return &SessionService{
		config:   config,
		accounts: accounts,
		tokens:   tokens,
	}
}

// Tokens returns the issuer used for this service.
func (s *SessionService) Tokens() *TokenIssuer {
	return s.tokens
}

// Login authenticates by email and password.
// Unknown email and wrong password both return domain.ErrInvalidCredentials.
func (s *SessionService) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	account, err := s.accounts.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			burnPasswordCheck(password)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !VerifyPassword(password, account.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	if !account.IsActive {
		return nil, domain.ErrAccountDisabled
	}

	return s.issue(account)
}

// Register creates an account with the service's default role and signs it in.
func (s *SessionService) Register(ctx context.Context, name, email, password string) (*domain.Session, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	email = NormalizeEmail(email)

	if err := s.config.Policy.ValidatePassword(password); err != nil {
		return nil, err
	}

	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return nil, domain.ErrDuplicateEmail
	} else if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}

	account, err := NewAccount(name, email, password, s.config.DefaultRole)
	if err != nil {
		return nil, err
	}

	// Create maps a unique-constraint race to ErrDuplicateEmail.
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}

	return s.issue(account)
}

// Refresh exchanges a refresh token for a new pair carrying the account's current token version.
// The account is looked up by id, never by email, since email may change.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	payload, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.GetByID(ctx, payload.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrInvalidSession
		}
		return nil, err
	}

	if payload.TokenVersion != account.TokenVersion {
		return nil, domain.ErrTokenRevoked
	}

	return s.issue(account)
}

// Logout bumps the account's token version by exactly one, invalidating every
// outstanding refresh token. Access tokens already issued stay valid until they expire.
func (s *SessionService) Logout(ctx context.Context, accountID uuid.UUID) error {
	_, err := s.accounts.IncrementTokenVersion(ctx, accountID)
	return err
}

// Me returns the sanitized account.
func (s *SessionService) Me(ctx context.Context, accountID uuid.UUID) (*domain.PublicAccount, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return Sanitize(account), nil
}

func (s *SessionService) issue(account *domain.Account) (*domain.Session, error) {
	tokens, err := s.tokens.Issue(account.ID, account.Email, account.Role, account.TokenVersion)
	if err != nil {
		return nil, err
	}
	return &domain.Session{Account: Sanitize(account), Tokens: tokens}, nil
}

// Sanitize strips the password hash from an account.
func Sanitize(account *domain.Account) *domain.PublicAccount {
	if account == nil {
		return nil
	}
	return account.Public()
}

// NewAccount builds an active account at token version zero with a freshly hashed password.
func NewAccount(name, email, password, role string) (*domain.Account, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &domain.Account{
		ID:           uuid.New(),
		Email:        NormalizeEmail(email),
		Name:         SanitizeName(name),
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		TokenVersion: 0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}
