package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_LookupsByCredential(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	apiKeyHash := HashAPIKey("tenant-a-key")
	secretHash := HashSecret("tenant-a-secret")

	require.NoError(t, store.Upsert(ctx, Tenant{
		ID:                    "tenant-a",
		Name:                  "Tenant A",
		APIKeyHash:            apiKeyHash,
		OAuthClientID:         "client-a",
		OAuthClientSecretHash: secretHash,
		TenantSecret:          "ts",
		WebhookSecret:         "ws",
		RateLimitRPS:          10,
		Scopes:                DefaultAPIKeyScopes,
	}))

	byAPI, err := store.GetByAPIKeyHash(ctx, apiKeyHash)
	require.NoError(t, err)
	require.NotNil(t, byAPI)
	assert.Equal(t, "tenant-a", byAPI.ID)

	byOAuth, err := store.GetByClientCredentials(ctx, "client-a", secretHash)
	require.NoError(t, err)
	require.NotNil(t, byOAuth)
	assert.Equal(t, "tenant-a", byOAuth.ID)

	byID, err := store.GetByID(ctx, "tenant-a")
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "Tenant A", byID.Name)
}

func TestMemoryStore_UnknownLookupsReturnNilNotError(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	t1, err := store.GetByAPIKeyHash(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, t1)

	t2, err := store.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, t2)

	t3, err := store.GetByClientCredentials(ctx, "nope", "nope")
	require.NoError(t, err)
	assert.Nil(t, t3)
}

func TestHashAPIKey_Deterministic(t *testing.T) {
	assert.Equal(t, HashAPIKey("abc"), HashAPIKey("abc"))
	assert.NotEqual(t, HashAPIKey("abc"), HashAPIKey("abd"))
}
