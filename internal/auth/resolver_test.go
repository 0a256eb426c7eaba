package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softmax/underwriting-gateway/internal/tenant"
)

func newTestResolver(t *testing.T) (*Resolver, *tenant.MemoryStore) {
	t.Helper()
	store := tenant.NewMemoryStore()
	require.NoError(t, store.Upsert(context.Background(), tenant.Tenant{
		ID:                    "tenant-a",
		Name:                  "Tenant A",
		APIKeyHash:            tenant.HashAPIKey("key-a"),
		OAuthClientID:         "client-a",
		OAuthClientSecretHash: tenant.HashSecret("secret-a"),
		TenantSecret:          "ts-a",
		WebhookSecret:         "ws-a",
		RateLimitRPS:          10,
		Scopes:                []string{"underwrite:create", "underwrite:read", "dashboard:read"},
	}))
	return NewResolver(store, []byte("jwt-signing-key"), time.Hour), store
}

func TestResolver_ResolveAPIKey(t *testing.T) {
	r, _ := newTestResolver(t)
	ac, err := r.ResolveAPIKey(context.Background(), "key-a")
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", ac.TenantID)
	assert.True(t, ac.HasScope("underwrite:create"))
	assert.True(t, ac.HasScope("underwrite:read"))
}

func TestResolver_ResolveAPIKey_Unknown(t *testing.T) {
	r, _ := newTestResolver(t)
	_, err := r.ResolveAPIKey(context.Background(), "not-a-real-key")
	assert.Error(t, err)
}

func TestResolver_IssueAndResolveBearer(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	token, expiresIn, scope, err := r.IssueToken(ctx, "client-a", "secret-a", "underwrite:read")
	require.NoError(t, err)
	assert.Equal(t, 3600, expiresIn)
	assert.Equal(t, "underwrite:read", scope)

	ac, err := r.ResolveBearer(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", ac.TenantID)
	assert.True(t, ac.HasScope("underwrite:read"))
	assert.False(t, ac.HasScope("underwrite:create"), "token was scoped to underwrite:read only")
}

func TestResolver_IssueToken_InvalidCredentials(t *testing.T) {
	r, _ := newTestResolver(t)
	_, _, _, err := r.IssueToken(context.Background(), "client-a", "wrong-secret", "")
	assert.Error(t, err)
}

func TestResolver_ResolveBearer_ExpiredToken(t *testing.T) {
	r, _ := newTestResolver(t)
	r.TokenTTL = -time.Hour // forces an already-expired token
	token, _, _, err := r.IssueToken(context.Background(), "client-a", "secret-a", "")
	require.NoError(t, err)

	_, err = r.ResolveBearer(context.Background(), token)
	assert.Error(t, err)
}

func TestResolver_ResolveBearer_WrongKeyRejected(t *testing.T) {
	r, _ := newTestResolver(t)
	token, _, _, err := r.IssueToken(context.Background(), "client-a", "secret-a", "")
	require.NoError(t, err)

	other := NewResolver(nil, []byte("different-key"), time.Hour)
	_, err = other.ResolveBearer(context.Background(), token)
	assert.Error(t, err)
}

func TestMissingScopes(t *testing.T) {
	ac := newContextFromScopes("t", "ts", "ws", 10, []string{"underwrite:read"})
	assert.Equal(t, []string{"underwrite:create"}, ac.MissingScopes("underwrite:create", "underwrite:read"))
	assert.Nil(t, ac.MissingScopes("underwrite:read"))
}
