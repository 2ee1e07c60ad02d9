// Package tenantsync is the tenant side of provisioning: it authenticates the
// control plane and applies the admin accounts and module lists it pushes.
package tenantsync

import (
	"crypto/subtle"

	"github.com/tendant/hr-tenancy/pkg/domain"
)

// Gate checks the shared secret presented on internal endpoints.
type Gate struct {
	secret []byte
}

// NewGate creates a gate for the configured secret. An empty secret rejects everything.
func NewGate(secret string) *Gate {
	return &Gate{secret: []byte(secret)}
}

// Validate returns domain.ErrInvalidAPIKey unless presented matches the secret.
func (g *Gate) Validate(presented string) error {
	if g == nil || len(g.secret) == 0 {
		return domain.ErrInvalidAPIKey
	}
	if subtle.ConstantTimeCompare([]byte(presented), g.secret) != 1 {
		return domain.ErrInvalidAPIKey
	}
	return nil
}
