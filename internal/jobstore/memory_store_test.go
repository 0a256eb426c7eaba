package jobstore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_IdempotencyByHeaderHash(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	idem := "idem-hash-1"
	job1, err := store.CreateJob(ctx, "tenant-a", "BANK-001", map[string]any{"x": 1.0}, &idem, "req-hash-1", "https://cb.test")
	require.NoError(t, err)

	existing, err := store.GetByIdempotencyHash(ctx, "tenant-a", idem)
	require.NoError(t, err)
	require.NotNil(t, existing)
	assert.Equal(t, job1.ID, existing.ID)
}

func TestMemoryStore_IdempotencyByRequestHash(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	job1, err := store.CreateJob(ctx, "tenant-a", "BANK-001", map[string]any{"x": 1.0}, nil, "req-hash-1", "https://cb.test")
	require.NoError(t, err)

	existing, err := store.GetByRequestHash(ctx, "tenant-a", "req-hash-1")
	require.NoError(t, err)
	require.NotNil(t, existing)
	assert.Equal(t, job1.ID, existing.ID)
}

func TestMemoryStore_ReserveNextJobs_NoOverlapConcurrently(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for i := 0; i < 2; i++ {
		_, err := store.CreateJob(ctx, "tenant-a", "BANK-00X", map[string]any{"i": float64(i)}, nil, "hash-"+string(rune('a'+i)), "https://cb.test")
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	results := make(chan []ReservedJob, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := store.ReserveNextJobs(ctx, "tenant-a", 1)
			require.NoError(t, err)
			results <- r
		}()
	}
	wg.Wait()
	close(results)

	seen := map[string]bool{}
	total := 0
	for r := range results {
		for _, rj := range r {
			assert.False(t, seen[rj.JobID], "job %s was reserved twice", rj.JobID)
			seen[rj.JobID] = true
			total++
		}
	}
	assert.Equal(t, 2, total)
}

func TestMemoryStore_StatusNeverRevertsFromTerminal(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	job, err := store.CreateJob(ctx, "tenant-a", "BANK-001", map[string]any{}, nil, "req-hash", "https://cb.test")
	require.NoError(t, err)

	require.NoError(t, store.UpdateStatus(ctx, job.ID, StatusProcessing))
	require.NoError(t, store.UpdateStatus(ctx, job.ID, StatusSucceeded))
	require.NoError(t, store.UpdateStatus(ctx, job.ID, StatusQueued))
	require.NoError(t, store.UpdateStatus(ctx, job.ID, StatusProcessing))

	got, err := store.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, got.Status.IsTerminal())
	assert.Equal(t, StatusSucceeded, got.Status)
}

func TestMemoryStore_DetailRedactsFeaturesUnlessRequested(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	job, err := store.CreateJob(ctx, "tenant-a", "BANK-001", map[string]any{"raw": true}, nil, "req-hash", "https://cb.test")
	require.NoError(t, err)
	require.NoError(t, store.PersistFeatures(ctx, job.ID, map[string]any{"sensitive": true}))

	tenantView, err := store.GetDetail(ctx, job.ID, true, false, true)
	require.NoError(t, err)
	assert.Nil(t, tenantView.Features, "tenant-facing detail must never include features")
	assert.NotNil(t, tenantView.Payload)

	adminView, err := store.GetDetail(ctx, job.ID, true, true, true)
	require.NoError(t, err)
	assert.NotNil(t, adminView.Features, "admin detail must include features")
}
