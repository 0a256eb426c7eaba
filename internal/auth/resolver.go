package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/softmax/underwriting-gateway/internal/apierr"
	"github.com/softmax/underwriting-gateway/internal/tenant"
)

// Resolver resolves inbound credentials into a Context, and issues tokens
// for the client_credentials grant. One HS256 key is shared by token
// issuance and verification, matching the original service's use of its
// single ENCRYPTION_KEY as the JWT signing secret.
type Resolver struct {
	Tenants  tenant.Store
	JWTKey   []byte
	TokenTTL time.Duration
}

func NewResolver(tenants tenant.Store, jwtKey []byte, tokenTTL time.Duration) *Resolver {
	return &Resolver{Tenants: tenants, JWTKey: jwtKey, TokenTTL: tokenTTL}
}

// ResolveAPIKey looks up the tenant owning apiKey and grants the fixed
// API-key scope set (spec §4.3).
func (r *Resolver) ResolveAPIKey(ctx context.Context, apiKey string) (*Context, error) {
	t, err := r.Tenants.GetByAPIKeyHash(ctx, tenant.HashAPIKey(apiKey))
	if err != nil {
		return nil, apierr.Wrap(apierr.KindAuthentication, "tenant lookup failed", err)
	}
	if t == nil {
		return nil, apierr.Authentication("unknown tenant")
	}
	return newContextFromScopes(t.ID, t.TenantSecret, t.WebhookSecret, t.RateLimitRPS, tenant.DefaultAPIKeyScopes), nil
}

type bearerClaims struct {
	TenantID string `json:"tenant_id"`
	Scope    string `json:"scope"`
	jwt.RegisteredClaims
}

// ResolveBearer verifies tokenStr's HS256 signature and expiry, then looks
// up the tenant named by its tenant_id claim (spec §4.3).
func (r *Resolver) ResolveBearer(ctx context.Context, tokenStr string) (*Context, error) {
	var claims bearerClaims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apierr.Authentication("unexpected signing method")
		}
		return r.JWTKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, apierr.Wrap(apierr.KindAuthentication, "invalid token", err)
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return nil, apierr.Authentication("token expired")
	}

	t, err := r.Tenants.GetByID(ctx, claims.TenantID)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindAuthentication, "tenant lookup failed", err)
	}
	if t == nil {
		return nil, apierr.Authentication("unknown tenant")
	}

	var scopes []string
	if claims.Scope != "" {
		scopes = strings.Fields(claims.Scope)
	}
	return newContextFromScopes(t.ID, t.TenantSecret, t.WebhookSecret, t.RateLimitRPS, scopes), nil
}

// IssueToken implements the client_credentials grant (spec §4.3, §6.2):
// validate client_id/client_secret against the Tenant Store, then sign
// {tenant_id, scope, exp, jti}.
func (r *Resolver) IssueToken(ctx context.Context, clientID, clientSecret string, scope string) (accessToken string, expiresIn int, grantedScope string, err error) {
	t, lookupErr := r.Tenants.GetByClientCredentials(ctx, clientID, tenant.HashSecret(clientSecret))
	if lookupErr != nil {
		return "", 0, "", apierr.Wrap(apierr.KindAuthentication, "tenant lookup failed", lookupErr)
	}
	if t == nil {
		return "", 0, "", apierr.Authentication("invalid client credentials")
	}

	grantedScope = scope
	if grantedScope == "" {
		grantedScope = strings.Join(t.Scopes, " ")
	}

	jti, jErr := randomHex(8)
	if jErr != nil {
		return "", 0, "", apierr.Wrap(apierr.KindCrypto, "failed to generate jti", jErr)
	}

	now := time.Now()
	claims := bearerClaims{
		TenantID: t.ID,
		Scope:    grantedScope,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(r.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jti,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, signErr := token.SignedString(r.JWTKey)
	if signErr != nil {
		return "", 0, "", apierr.Wrap(apierr.KindCrypto, "failed to sign token", signErr)
	}
	return signed, int(r.TokenTTL.Seconds()), grantedScope, nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
