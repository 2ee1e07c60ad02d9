package auth

import (
	"errors"
	"strings"
	"testing"

	"github.com/tendant/hr-tenancy/pkg/domain"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{name: "valid email", email: "test@example.com"},
		{name: "valid with subdomain", email: "test@mail.example.com"},
		{name: "valid with plus", email: "test+tag@example.com"},
		{name: "mixed case and spaces", email: "  Test@Example.COM "},
		{name: "empty", email: "", wantErr: true},
		{name: "whitespace only", email: "   ", wantErr: true},
		{name: "no @", email: "invalid.com", wantErr: true},
		{name: "no domain", email: "test@", wantErr: true},
		{name: "display name", email: "Test <test@example.com>", wantErr: true},
		{name: "too long", email: strings.Repeat("a", 250) + "@x.io", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmail(%q) error = %v, wantErr %v", tt.email, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrInvalidEmail) {
				t.Errorf("expected domain.ErrInvalidEmail, got %v", err)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Admin@Acme.COM\t"); got != "admin@acme.com" {
		t.Errorf("NormalizeEmail = %q, want %q", got, "admin@acme.com")
	}
}

func TestPasswordPolicy(t *testing.T) {
	strict := &PasswordPolicy{MinLength: 10, RequireLetter: true, RequireNumber: true, RequireSpecial: true}

	tests := []struct {
		name     string
		policy   *PasswordPolicy
		password string
		wantErr  bool
	}{
		{name: "default accepts 8 chars", policy: DefaultPasswordPolicy(), password: "abcdefgh"},
		{name: "default rejects 7 chars", policy: DefaultPasswordPolicy(), password: "abcdefg", wantErr: true},
		{name: "nil policy accepts anything", policy: nil, password: ""},
		{name: "strict accepts mixed", policy: strict, password: "abcdef12!x"},
		{name: "strict needs number", policy: strict, password: "abcdefgh!x", wantErr: true},
		{name: "strict needs letter", policy: strict, password: "12345678!9", wantErr: true},
		{name: "strict needs special", policy: strict, password: "abcdef12xy", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.ValidatePassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePassword(%q) error = %v, wantErr %v", tt.password, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrWeakPassword) {
				t.Errorf("expected domain.ErrWeakPassword, got %v", err)
			}
		})
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "  Ada Lovelace ", want: "Ada Lovelace"},
		{in: "Bob\x00\x07", want: "Bob"},
		{in: "<script>", want: "&lt;script&gt;"},
		{in: "O'Neil", want: "O&#39;Neil"},
	}

	for _, tt := range tests {
		if got := SanitizeName(tt.in); got != tt.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
