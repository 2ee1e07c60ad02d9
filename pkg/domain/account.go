package domain

import (
	"time"

	"github.com/google/uuid"
)

// Default roles assigned by each plane.
const (
	RoleSuperadmin  = "superadmin"
	RoleClientAdmin = "client-admin"
)

// Account represents a human user of one service instance.
// Control plane and tenant plane each own their own accounts.
type Account struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash string
	Role         string
	IsActive     bool
	// TokenVersion only ever grows. Refresh tokens carrying an older value are revoked.
	TokenVersion int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PublicAccount is the caller-facing view of an Account. It never carries the password hash.
type PublicAccount struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"isActive"`
	TokenVersion int       `json:"tokenVersion"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Public returns the sanitized view of the account.
func (a *Account) Public() *PublicAccount {
	return &PublicAccount{
		ID:           a.ID,
		Email:        a.Email,
		Name:         a.Name,
		Role:         a.Role,
		IsActive:     a.IsActive,
		TokenVersion: a.TokenVersion,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}
