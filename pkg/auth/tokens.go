package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tendant/hr-tenancy/pkg/domain"
)

// Default token lifetimes
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// TokenConfig holds the signing material for both token kinds.
// AccessSecret and RefreshSecret must differ so a leaked access secret cannot mint refresh tokens.
type TokenConfig struct {
	AccessSecret    []byte
	RefreshSecret   []byte
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// AccessTokenClaims represents the claims in an access token.
type AccessTokenClaims struct {
	jwt.RegisteredClaims
	Email        string `json:"email"`
	Role         string `json:"role"`
	TokenVersion int    `json:"tokenVersion"`
}

// RefreshTokenClaims represents the claims in a refresh token.
type RefreshTokenClaims struct {
	jwt.RegisteredClaims
	TokenVersion int `json:"tokenVersion"`
}

// TokenIssuer creates and parses signed, time-bounded access and refresh tokens.
// It does not consult any revocation state.
type TokenIssuer struct {
	config TokenConfig
	now    func() time.Time
}

// NewTokenIssuer creates a token issuer, applying default lifetimes.
func NewTokenIssuer(config TokenConfig) *TokenIssuer {
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if config.RefreshTokenTTL == 0 {
		config.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	return &TokenIssuer{config: config, now: time.Now}
}

// AccessTokenTTL returns the access token TTL.
func (i *TokenIssuer) AccessTokenTTL() time.Duration {
	return i.config.AccessTokenTTL
}

// RefreshTokenTTL returns the refresh token TTL.
func (i *TokenIssuer) RefreshTokenTTL() time.Duration {
	return i.config.RefreshTokenTTL
}

// Issue signs a fresh access/refresh pair for the account at the given token version.
func (i *TokenIssuer) Issue(accountID uuid.UUID, email, role string, tokenVersion int) (*domain.TokenPair, error) {
	now := i.now()
	accessExpiry := now.Add(i.config.AccessTokenTTL)
	refreshExpiry := now.Add(i.config.RefreshTokenTTL)

	access := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			Issuer:    i.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExpiry),
			ID:        uuid.NewString(),
		},
		Email:        email,
		Role:         role,
		TokenVersion: tokenVersion,
	})
	accessToken, err := access.SignedString(i.config.AccessSecret)
	if err != nil {
		return nil, err
	}

	refresh := jwt.NewWithClaims(jwt.SigningMethodHS256, RefreshTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			Issuer:    i.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExpiry),
			ID:        uuid.NewString(),
		},
		TokenVersion: tokenVersion,
	})
	refreshToken, err := refresh.SignedString(i.config.RefreshSecret)
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		TokenType:        "Bearer",
		ExpiresIn:        int(i.config.AccessTokenTTL.Seconds()),
		ExpiresAt:        accessExpiry,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

// VerifyAccess validates an access token and returns its claims.
func (i *TokenIssuer) VerifyAccess(tokenString string) (*AccessTokenClaims, error) {
	claims := &AccessTokenClaims{}
	if err := i.parse(tokenString, claims, i.config.AccessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyRefresh validates a refresh token and returns what it asserts.
func (i *TokenIssuer) VerifyRefresh(tokenString string) (*domain.RefreshPayload, error) {
	claims := &RefreshTokenClaims{}
	if err := i.parse(tokenString, claims, i.config.RefreshSecret); err != nil {
		return nil, err
	}
	accountID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, domain.ErrTokenMalformed
	}
	return &domain.RefreshPayload{AccountID: accountID, TokenVersion: claims.TokenVersion}, nil
}

func (i *TokenIssuer) parse(tokenString string, claims jwt.Claims, secret []byte) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if i.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, opts...)
	switch {
	case err == nil && token.Valid:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return domain.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return domain.ErrTokenInvalidSignature
	default:
		return domain.ErrTokenMalformed
	}
}
