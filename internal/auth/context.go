// Package auth resolves inbound credentials (API key or Bearer JWT) to a
// tenant identity, verifies inbound HMAC request signatures, enforces
// scopes, and issues access tokens for the client_credentials grant.
package auth

import "context"

// Context is the resolved tenant identity and permission set for one
// request, equivalent to the original service's TenantAuthContext.
type Context struct {
	TenantID      string
	TenantSecret  string
	WebhookSecret string
	RateLimitRPS  int
	Scopes        map[string]struct{}
}

// HasScope reports whether scope was granted to this context.
func (c *Context) HasScope(scope string) bool {
	_, ok := c.Scopes[scope]
	return ok
}

// MissingScopes returns the subset of required not present in c.Scopes.
func (c *Context) MissingScopes(required ...string) []string {
	var missing []string
	for _, s := range required {
		if !c.HasScope(s) {
			missing = append(missing, s)
		}
	}
	return missing
}

func newContextFromScopes(tenantID, tenantSecret, webhookSecret string, rps int, scopes []string) *Context {
	set := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		if s == "" {
			continue
		}
		set[s] = struct{}{}
	}
	return &Context{
		TenantID:      tenantID,
		TenantSecret:  tenantSecret,
		WebhookSecret: webhookSecret,
		RateLimitRPS:  rps,
		Scopes:        set,
	}
}

type ctxKey struct{}

// WithContext binds an auth Context to ctx for downstream handlers.
func WithContext(ctx context.Context, ac *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, ac)
}

// FromContext retrieves the auth Context bound by WithContext, if any.
func FromContext(ctx context.Context) (*Context, bool) {
	ac, ok := ctx.Value(ctxKey{}).(*Context)
	return ac, ok
}
