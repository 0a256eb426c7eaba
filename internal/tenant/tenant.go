// Package tenant implements the Tenant Store: read-only lookup of tenant
// identity and secrets by api-key hash, client-credential hash, or id.
// Tenants are immutable after bootstrap — nothing in the request path
// creates or mutates a Tenant row.
package tenant

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Tenant is an immutable tenant identity record, as described in spec §3.
type Tenant struct {
	ID                    string
	Name                  string
	APIKeyHash            string
	OAuthClientID         string
	OAuthClientSecretHash string
	TenantSecret          string
	WebhookSecret         string
	RateLimitRPS          int
	Scopes                []string
}

// DefaultAPIKeyScopes are granted to callers authenticating with an API key,
// matching the original service's fixed scope set for that credential type.
var DefaultAPIKeyScopes = []string{"underwrite:create", "underwrite:read"}

// HashAPIKey and HashSecret expose the same SHA-256 hex digest used to
// store and look up credentials, so callers (auth, bootstrap, scripts)
// compute comparable hashes without reaching into this package's internals.
func HashAPIKey(apiKey string) string { return hashHex(apiKey) }
func HashSecret(secret string) string { return hashHex(secret) }

func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Store is the read-only tenant lookup surface. Implementations must return
// (nil, nil) — not an error — when no matching tenant exists; callers map
// absence to an authentication failure themselves.
type Store interface {
	GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*Tenant, error)
	GetByClientCredentials(ctx context.Context, clientID, clientSecretHash string) (*Tenant, error)
	GetByID(ctx context.Context, tenantID string) (*Tenant, error)
	// Upsert is used only by bootstrap, never by the request path.
	Upsert(ctx context.Context, t Tenant) error
}
