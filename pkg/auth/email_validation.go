package auth

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/tendant/hr-tenancy/pkg/domain"
)

const maxEmailLength = 254 // RFC 5321

// ValidateEmail validates an email address for format and length.
// Failures wrap domain.ErrInvalidEmail.
func ValidateEmail(email string) error {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return fmt.Errorf("%w: email address is required", domain.ErrInvalidEmail)
	}
	if len(normalized) > maxEmailLength {
		return fmt.Errorf("%w: too long (max %d characters)", domain.ErrInvalidEmail, maxEmailLength)
	}

	addr, err := mail.ParseAddress(normalized)
	if err != nil || addr.Address != normalized {
		return domain.ErrInvalidEmail
	}
	return nil
}

// NormalizeEmail normalizes an email address by lowercasing and trimming.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
