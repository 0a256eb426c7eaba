package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softmax/underwriting-gateway/internal/auth"
	"github.com/softmax/underwriting-gateway/internal/jobstore"
	"github.com/softmax/underwriting-gateway/internal/metrics"
	"github.com/softmax/underwriting-gateway/internal/pipeline"
	"github.com/softmax/underwriting-gateway/internal/queue"
	"github.com/softmax/underwriting-gateway/internal/ratelimit"
	"github.com/softmax/underwriting-gateway/internal/storage"
	"github.com/softmax/underwriting-gateway/internal/tenant"
	"github.com/softmax/underwriting-gateway/internal/webhook"
	"github.com/softmax/underwriting-gateway/internal/worker"
)

const validBody = `{
	"job_id": "BANK-001",
	"tenant_id": "tenant-a",
	"applicant": {"citizen_id": "UZ12345", "full_name": "Name", "phone": "+97699999999"},
	"loan": {"type": "personal", "amount": 1000000, "term_months": 12},
	"consent_artifact": {"provider": "p", "reference": "r", "scopes": ["x"], "issued_at": "2026-01-01T00:00:00Z", "expires_at": "2026-02-01T00:00:00Z", "hash": "h"},
	"third_party_data": {},
	"documents": {"bank_statement_url": null, "bank_statement_period": {"from": "", "to": ""}},
	"collateral": {},
	"callback_url": "https://cb.test/uw"
}`

func newTestServer(t *testing.T) (*Server, *tenant.MemoryStore, *jobstore.MemoryStore) {
	tenants := tenant.NewMemoryStore()
	require.NoError(t, tenants.Upsert(t.Context(), tenant.Tenant{
		ID: "tenant-a", TenantSecret: "ts", WebhookSecret: "ws", RateLimitRPS: 100,
		Scopes: []string{"underwrite:create", "underwrite:read", "dashboard:read"},
	}))
	store := jobstore.NewMemoryStore()
	q := queue.NewMemory(16)

	u := &worker.Underwriter{
		Store:      store,
		Tenants:    tenants,
		Scratch:    storage.New(t.TempDir(), 1024*1024, http.DefaultClient),
		Parser:     pipeline.SandboxParser{},
		Collateral: pipeline.SandboxCollateral{},
		LLM:        pipeline.SandboxLLM{},
		Rules:      pipeline.ThresholdRuleEvaluator{},
		Webhook:    webhook.NewSender(http.DefaultClient, 1, 0),
		Metrics:    metrics.New("test", prometheus.NewRegistry()),
	}

	return &Server{
		Store:           store,
		Tenants:         tenants,
		Resolver:        auth.NewResolver(tenants, []byte("jwt-key"), time.Hour),
		RateLimiter:     ratelimit.New(),
		Queue:           q,
		Underwriter:     u,
		Metrics:         metrics.New("test_http", prometheus.NewRegistry()),
		RequestIDHeader: "X-Request-Id",
	}, tenants, store
}

func signedRequest(method, url, apiKey, tenantSecret, body string) *http.Request {
	req := httptest.NewRequest(method, url, bytes.NewBufferString(body))
	req.Header.Set("X-Api-Key", apiKey)
	req.Header.Set(auth.SignatureHeader, auth.Sign([]byte(body), tenantSecret))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestUnderwrite_HappyPathAdmitsJob(t *testing.T) {
	s, tenants, store := newTestServer(t)
	require.NoError(t, tenants.Upsert(t.Context(), tenant.Tenant{
		ID: "tenant-a", APIKeyHash: tenant.HashAPIKey("key-a"), TenantSecret: "ts", WebhookSecret: "ws", RateLimitRPS: 100,
		Scopes: []string{"underwrite:create", "underwrite:read"},
	}))

	req := signedRequest(http.MethodPost, "/v1/underwrite", "key-a", "ts", validBody)
	w := httptest.NewRecorder()
	s.Routes().ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)

	jobs, err := store.ListForTenant(t.Context(), "tenant-a", nil, 10)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestUnderwrite_BadSignatureRejected(t *testing.T) {
	s, tenants, store := newTestServer(t)
	require.NoError(t, tenants.Upsert(t.Context(), tenant.Tenant{
		ID: "tenant-a", APIKeyHash: tenant.HashAPIKey("key-a"), TenantSecret: "ts", WebhookSecret: "ws", RateLimitRPS: 100,
		Scopes: []string{"underwrite:create"},
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/underwrite", bytes.NewBufferString(validBody+" "))
	req.Header.Set("X-Api-Key", "key-a")
	req.Header.Set(auth.SignatureHeader, auth.Sign([]byte(validBody), "ts"))

	w := httptest.NewRecorder()
	s.Routes().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	jobs, err := store.ListForTenant(t.Context(), "tenant-a", nil, 10)
	require.NoError(t, err)
	assert.Len(t, jobs, 0)
}

func TestUnderwrite_DuplicateBodyIsIdempotent(t *testing.T) {
	s, tenants, store := newTestServer(t)
	require.NoError(t, tenants.Upsert(t.Context(), tenant.Tenant{
		ID: "tenant-a", APIKeyHash: tenant.HashAPIKey("key-a"), TenantSecret: "ts", WebhookSecret: "ws", RateLimitRPS: 100,
		Scopes: []string{"underwrite:create"},
	}))

	req1 := signedRequest(http.MethodPost, "/v1/underwrite", "key-a", "ts", validBody)
	w1 := httptest.NewRecorder()
	s.Routes().ServeHTTP(w1, req1)
	require.Equal(t, http.StatusAccepted, w1.Code)

	req2 := signedRequest(http.MethodPost, "/v1/underwrite", "key-a", "ts", validBody)
	w2 := httptest.NewRecorder()
	s.Routes().ServeHTTP(w2, req2)
	require.Equal(t, http.StatusAccepted, w2.Code)

	jobs, err := store.ListForTenant(t.Context(), "tenant-a", nil, 10)
	require.NoError(t, err)
	assert.Len(t, jobs, 1, "identical body within a tenant must never duplicate a job")
}

func TestUnderwrite_MissingScopeRejected(t *testing.T) {
	s, tenants, _ := newTestServer(t)
	require.NoError(t, tenants.Upsert(t.Context(), tenant.Tenant{
		ID: "tenant-a", OAuthClientID: "client-a", OAuthClientSecretHash: tenant.HashSecret("secret-a"),
		TenantSecret: "ts", WebhookSecret: "ws", RateLimitRPS: 100,
		Scopes: []string{},
	}))

	// API keys always carry the fixed create/read scope set, so the
	// missing scope is exercised with a bearer token scoped to read only.
	token, _, _, err := s.Resolver.IssueToken(t.Context(), "client-a", "secret-a", "underwrite:read")
	require.NoError(t, err)

	req := signedRequest(http.MethodPost, "/v1/underwrite", "", "ts", validBody)
	req.Header.Del("X-Api-Key")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.Routes().ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUnderwrite_RateLimitExceeded(t *testing.T) {
	s, tenants, _ := newTestServer(t)
	require.NoError(t, tenants.Upsert(t.Context(), tenant.Tenant{
		ID: "tenant-a", APIKeyHash: tenant.HashAPIKey("key-a"), TenantSecret: "ts", WebhookSecret: "ws", RateLimitRPS: 1,
		Scopes: []string{"underwrite:create"},
	}))

	body1 := `{"job_id":"BANK-A","tenant_id":"tenant-a","applicant":{"citizen_id":"c"},"loan":{"type":"personal","amount":1,"term_months":1},"consent_artifact":{"reference":"r"},"callback_url":"https://cb.test/uw"}`
	body2 := `{"job_id":"BANK-B","tenant_id":"tenant-a","applicant":{"citizen_id":"c"},"loan":{"type":"personal","amount":1,"term_months":1},"consent_artifact":{"reference":"r"},"callback_url":"https://cb.test/uw"}`

	req1 := signedRequest(http.MethodPost, "/v1/underwrite", "key-a", "ts", body1)
	w1 := httptest.NewRecorder()
	s.Routes().ServeHTTP(w1, req1)
	require.Equal(t, http.StatusAccepted, w1.Code)

	req2 := signedRequest(http.MethodPost, "/v1/underwrite", "key-a", "ts", body2)
	w2 := httptest.NewRecorder()
	s.Routes().ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusTooManyRequests, w2.Code)
}
