package domain

import (
	"time"

	"github.com/google/uuid"
)

// TokenPair represents the access and refresh token pair.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresIn        int       `json:"expires_in"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"-"`
}

// Session is the result of a successful login, registration or refresh.
type Session struct {
	Account *PublicAccount
	Tokens  *TokenPair
}

// RefreshPayload is what a verified refresh token asserts.
type RefreshPayload struct {
	AccountID    uuid.UUID
	TokenVersion int
}
