package worker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softmax/underwriting-gateway/internal/jobstore"
	"github.com/softmax/underwriting-gateway/internal/metrics"
	"github.com/softmax/underwriting-gateway/internal/pipeline"
	"github.com/softmax/underwriting-gateway/internal/storage"
	"github.com/softmax/underwriting-gateway/internal/tenant"
	"github.com/softmax/underwriting-gateway/internal/webhook"
)

func newTestUnderwriter(t *testing.T, callbackURL string) (*Underwriter, *jobstore.MemoryStore, *tenant.MemoryStore) {
	store := jobstore.NewMemoryStore()
	tenants := tenant.NewMemoryStore()
	require.NoError(t, tenants.Upsert(t.Context(), tenant.Tenant{
		ID: "tenant-a", WebhookSecret: "whsec", RateLimitRPS: 10,
	}))

	return &Underwriter{
		Store:      store,
		Tenants:    tenants,
		Scratch:    storage.New(t.TempDir(), 1024*1024, http.DefaultClient),
		Parser:     pipeline.SandboxParser{},
		Collateral: pipeline.SandboxCollateral{},
		LLM:        pipeline.SandboxLLM{},
		Rules:      pipeline.ThresholdRuleEvaluator{},
		Webhook:    webhook.NewSender(http.DefaultClient, 1, 0),
		Metrics:    metrics.New("test", prometheus.NewRegistry()),
		Log:        zerolog.Nop(),
	}, store, tenants
}

func TestUnderwriter_Run_HappyPathSucceedsAndWebhookDelivered(t *testing.T) {
	var delivered bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	u, store, _ := newTestUnderwriter(t, srv.URL)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, "tenant-a", "BANK-001", map[string]any{
		"loan": map[string]any{"amount": 1_000_000.0},
	}, nil, "req-hash-1", srv.URL)
	require.NoError(t, err)
	require.NoError(t, store.UpdateStatus(ctx, job.ID, jobstore.StatusProcessing))

	err = u.Run(ctx, job.ID)
	require.NoError(t, err)

	got, err := store.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobstore.StatusSucceeded, got.Status)
	assert.True(t, delivered)
}

func TestUnderwriter_Run_AlreadyTerminalIsNoop(t *testing.T) {
	u, store, _ := newTestUnderwriter(t, "")
	ctx := context.Background()

	job, err := store.CreateJob(ctx, "tenant-a", "BANK-002", map[string]any{}, nil, "req-hash-2", "")
	require.NoError(t, err)
	require.NoError(t, store.UpdateStatus(ctx, job.ID, jobstore.StatusProcessing))
	require.NoError(t, store.UpdateStatus(ctx, job.ID, jobstore.StatusFailed))

	err = u.Run(ctx, job.ID)
	require.NoError(t, err)

	got, err := store.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobstore.StatusFailed, got.Status)
}

func TestUnderwriter_Run_UnknownTenantMarksFailed(t *testing.T) {
	u, store, _ := newTestUnderwriter(t, "")
	ctx := context.Background()

	job, err := store.CreateJob(ctx, "tenant-missing", "BANK-003", map[string]any{}, nil, "req-hash-3", "")
	require.NoError(t, err)
	require.NoError(t, store.UpdateStatus(ctx, job.ID, jobstore.StatusProcessing))

	err = u.Run(ctx, job.ID)
	require.Error(t, err)

	got, err := store.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobstore.StatusFailed, got.Status)
}
