package tenant

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/softmax/underwriting-gateway/internal/config"
)

// Bootstrap seeds the Store from the static tenant list parsed out of
// config at startup. There is no runtime tenant-creation endpoint — the
// original service provisions tenants the same way, via a settings-sourced
// bootstrap list rather than an admin API.
func Bootstrap(ctx context.Context, store Store, entries []config.TenantBootstrap) error {
	for _, e := range entries {
		scopes := e.Scopes
		if len(scopes) == 0 {
			scopes = append([]string{}, DefaultAPIKeyScopes...)
		}
		t := Tenant{
			ID:            e.ID,
			Name:          e.Name,
			TenantSecret:  e.TenantSecret,
			WebhookSecret: e.WebhookSecret,
			RateLimitRPS:  e.RateLimitRPS,
			Scopes:        scopes,
		}
		if err := store.Upsert(ctx, t); err != nil {
			return fmt.Errorf("bootstrap tenant %q: %w", e.ID, err)
		}
		log.Info().Str("tenant_id", t.ID).Str("name", t.Name).Msg("tenant bootstrapped")
	}
	return nil
}
