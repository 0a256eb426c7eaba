package tenant

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is the Postgres-backed Store, following the teacher's pattern of
// a thin wrapper around *pgxpool.Pool with one method per query shape.
type PgStore struct {
	db *pgxpool.Pool
}

func NewPgStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

const tenantColumns = `id, name, api_key_hash, oauth_client_id, oauth_client_secret_hash,
	tenant_secret, webhook_secret, rate_limit_rps, scopes`

func scanTenant(row pgx.Row) (*Tenant, error) {
	var t Tenant
	var scopes string
	err := row.Scan(&t.ID, &t.Name, &t.APIKeyHash, &t.OAuthClientID, &t.OAuthClientSecretHash,
		&t.TenantSecret, &t.WebhookSecret, &t.RateLimitRPS, &scopes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if scopes != "" {
		t.Scopes = strings.Split(scopes, ",")
	}
	return &t, nil
}

func (s *PgStore) GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*Tenant, error) {
	row := s.db.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenant WHERE api_key_hash = $1`, apiKeyHash)
	return scanTenant(row)
}

func (s *PgStore) GetByClientCredentials(ctx context.Context, clientID, clientSecretHash string) (*Tenant, error) {
	row := s.db.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenant
		WHERE oauth_client_id = $1 AND oauth_client_secret_hash = $2`, clientID, clientSecretHash)
	return scanTenant(row)
}

func (s *PgStore) GetByID(ctx context.Context, tenantID string) (*Tenant, error) {
	row := s.db.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenant WHERE id = $1`, tenantID)
	return scanTenant(row)
}

func (s *PgStore) Upsert(ctx context.Context, t Tenant) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO tenant (id, name, api_key_hash, oauth_client_id, oauth_client_secret_hash,
			tenant_secret, webhook_secret, rate_limit_rps, scopes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			api_key_hash = EXCLUDED.api_key_hash,
			oauth_client_id = EXCLUDED.oauth_client_id,
			oauth_client_secret_hash = EXCLUDED.oauth_client_secret_hash,
			tenant_secret = EXCLUDED.tenant_secret,
			webhook_secret = EXCLUDED.webhook_secret,
			rate_limit_rps = EXCLUDED.rate_limit_rps,
			scopes = EXCLUDED.scopes
	`, t.ID, t.Name, t.APIKeyHash, t.OAuthClientID, t.OAuthClientSecretHash,
		t.TenantSecret, t.WebhookSecret, t.RateLimitRPS, strings.Join(t.Scopes, ","))
	return err
}
