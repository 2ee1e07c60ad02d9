package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/tendant/hr-tenancy/internal/memstore"
	"github.com/tendant/hr-tenancy/pkg/domain"
)

func newTestSessions(t *testing.T) (*SessionService, *memstore.Accounts) {
	t.Helper()
	accounts := memstore.NewAccounts()
	sessions := NewSessionService(SessionConfig{Policy: DefaultPasswordPolicy()}, accounts, newTestIssuer())
	return sessions, accounts
}

func TestSession_Register(t *testing.T) {
	ctx := context.Background()
	sessions, accounts := newTestSessions(t)

	sess, err := sessions.Register(ctx, "  Ada ", "Ada@Acme.io", "password-1")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if sess.Account.Email != "ada@acme.io" || sess.Account.Name != "Ada" {
		t.Errorf("unexpected account: %+v", sess.Account)
	}
	if sess.Account.Role != domain.RoleClientAdmin || sess.Account.TokenVersion != 0 || !sess.Account.IsActive {
		t.Errorf("unexpected defaults: %+v", sess.Account)
	}

	stored, err := accounts.GetByEmail(ctx, "ada@acme.io")
	if err != nil {
		t.Fatal(err)
	}
	if stored.PasswordHash == "password-1" || !VerifyPassword("password-1", stored.PasswordHash) {
		t.Error("stored password must be a verifiable hash")
	}

	tests := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{name: "duplicate email", email: "ADA@acme.io", password: "password-2", want: domain.ErrDuplicateEmail},
		{name: "invalid email", email: "nope", password: "password-2", want: domain.ErrInvalidEmail},
		{name: "weak password", email: "bob@acme.io", password: "short", want: domain.ErrWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := sessions.Register(ctx, "x", tt.email, tt.password); !errors.Is(err, tt.want) {
				t.Errorf("Register error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSession_Login(t *testing.T) {
	ctx := context.Background()
	sessions, accounts := newTestSessions(t)

	sess, err := sessions.Register(ctx, "Ada", "ada@acme.io", "password-1")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := sessions.Login(ctx, " ADA@acme.io ", "password-1"); err != nil {
		t.Errorf("Login failed: %v", err)
	}
	if _, err := sessions.Login(ctx, "ada@acme.io", "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("wrong password: got %v", err)
	}
	if _, err := sessions.Login(ctx, "ghost@acme.io", "password-1"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("unknown email: got %v", err)
	}

	if err := accounts.SetActive(ctx, sess.Account.ID, false); err != nil {
		t.Fatal(err)
	}
	if _, err := sessions.Login(ctx, "ada@acme.io", "password-1"); !errors.Is(err, domain.ErrAccountDisabled) {
		t.Errorf("disabled account: got %v", err)
	}
	// A disabled account with a wrong password looks like any other bad login.
	if _, err := sessions.Login(ctx, "ada@acme.io", "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("disabled account, wrong password: got %v", err)
	}
}

func TestSession_RefreshAndLogout(t *testing.T) {
	ctx := context.Background()
	sessions, accounts := newTestSessions(t)

	sess, err := sessions.Register(ctx, "Ada", "ada@acme.io", "password-1")
	if err != nil {
		t.Fatal(err)
	}
	first := sess.Tokens.RefreshToken

	// Refresh tokens are not single-use: the same token works until the version moves.
	for i := range 2 {
		next, err := sessions.Refresh(ctx, first)
		if err != nil {
			t.Fatalf("refresh %d failed: %v", i, err)
		}
		if next.Account.TokenVersion != 0 {
			t.Errorf("refresh %d: version = %d, want 0", i, next.Account.TokenVersion)
		}
	}

	if err := sessions.Logout(ctx, sess.Account.ID); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := sessions.Refresh(ctx, first); !errors.Is(err, domain.ErrTokenRevoked) {
		t.Errorf("refresh after logout: got %v, want ErrTokenRevoked", err)
	}

	again, err := sessions.Login(ctx, "ada@acme.io", "password-1")
	if err != nil {
		t.Fatal(err)
	}
	if again.Account.TokenVersion != 1 {
		t.Errorf("version after logout = %d, want 1", again.Account.TokenVersion)
	}
	if _, err := sessions.Refresh(ctx, again.Tokens.RefreshToken); err != nil {
		t.Errorf("fresh login refresh failed: %v", err)
	}

	stored, err := accounts.GetByID(ctx, sess.Account.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.TokenVersion != 1 {
		t.Errorf("stored version = %d, want 1", stored.TokenVersion)
	}
}

func TestSession_LogoutBumpsVersion(t *testing.T) {
	ctx := context.Background()
	sessions, accounts := newTestSessions(t)

	account, err := NewAccount("A", "a@x.com", "correct", domain.RoleClientAdmin)
	if err != nil {
		t.Fatal(err)
	}
	account.TokenVersion = 3
	if err := accounts.Create(ctx, account); err != nil {
		t.Fatal(err)
	}

	sess, err := sessions.Login(ctx, "a@x.com", "correct")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := sessions.Tokens().VerifyAccess(sess.Tokens.AccessToken)
	if err != nil {
		t.Fatal(err)
	}
	if claims.TokenVersion != 3 {
		t.Errorf("access token version = %d, want 3", claims.TokenVersion)
	}

	if err := sessions.Logout(ctx, account.ID); err != nil {
		t.Fatal(err)
	}
	stored, err := accounts.GetByID(ctx, account.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.TokenVersion != 4 {
		t.Fatalf("version after logout = %d, want 4", stored.TokenVersion)
	}

	if _, err := sessions.Refresh(ctx, sess.Tokens.RefreshToken); !errors.Is(err, domain.ErrTokenRevoked) {
		t.Errorf("stale refresh: got %v, want ErrTokenRevoked", err)
	}

	fresh, err := sessions.Login(ctx, "a@x.com", "correct")
	if err != nil {
		t.Fatal(err)
	}
	payload, err := sessions.Tokens().VerifyRefresh(fresh.Tokens.RefreshToken)
	if err != nil {
		t.Fatal(err)
	}
	if payload.TokenVersion != 4 {
		t.Errorf("fresh refresh token version = %d, want 4", payload.TokenVersion)
	}
}

func TestSession_RefreshUnknownAccount(t *testing.T) {
	sessions, _ := newTestSessions(t)

	pair, err := newTestIssuer().Issue(uuid.New(), "gone@acme.io", domain.RoleClientAdmin, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sessions.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, domain.ErrInvalidSession) {
		t.Errorf("got %v, want ErrInvalidSession", err)
	}
	if _, err := sessions.Refresh(context.Background(), "garbage"); !errors.Is(err, domain.ErrTokenMalformed) {
		t.Errorf("got %v, want ErrTokenMalformed", err)
	}
}

func TestSession_LogoutUnknownAccount(t *testing.T) {
	sessions, _ := newTestSessions(t)
	if err := sessions.Logout(context.Background(), uuid.New()); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("got %v, want ErrAccountNotFound", err)
	}
}
