package auth

import (
	"fmt"
	"unicode"

	"github.com/tendant/hr-tenancy/pkg/domain"
)

// PasswordPolicy defines password complexity requirements.
type PasswordPolicy struct {
	MinLength      int
	RequireLetter  bool
	RequireNumber  bool
	RequireSpecial bool
}

// DefaultPasswordPolicy mirrors the minimum accepted by the admin change-password flow.
func DefaultPasswordPolicy() *PasswordPolicy {
	return &PasswordPolicy{MinLength: 8}
}

// ValidatePassword checks if a password meets the policy requirements.
// Failures wrap domain.ErrWeakPassword.
func (p *PasswordPolicy) ValidatePassword(password string) error {
	if p == nil {
		return nil
	}
	if p.MinLength > 0 && len(password) < p.MinLength {
		return fmt.Errorf("%w: must be at least %d characters long", domain.ErrWeakPassword, p.MinLength)
	}

	var letter, number, special bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			number = true
		case !unicode.IsSpace(r):
			special = true
		}
	}

	if p.RequireLetter && !letter {
		return fmt.Errorf("%w: must contain at least one letter", domain.ErrWeakPassword)
	}
	if p.RequireNumber && !number {
		return fmt.Errorf("%w: must contain at least one number", domain.ErrWeakPassword)
	}
	if p.RequireSpecial && !special {
		return fmt.Errorf("%w: must contain at least one special character", domain.ErrWeakPassword)
	}
	return nil
}
