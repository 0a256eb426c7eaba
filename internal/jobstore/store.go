package jobstore

import (
	"context"
	"time"
)

// TenantStats is the roll-up dashboard endpoints project (spec §4.10).
type TenantStats struct {
	Total                 int
	Succeeded             int
	Failed                int
	AverageProcessingSecs *float64
}

// Store is the persistence surface the ingress handler, worker, polling
// protocol, and dashboard all share. A single implementation backs all of
// them, per the design note in spec §9 ("do not duplicate write logic").
type Store interface {
	// CreateJob inserts Job + Payload + an initial Audit row inside one
	// transaction (spec §4.5 step 5, §5 locking discipline).
	CreateJob(ctx context.Context, tenantID, clientJobID string, payload map[string]any, idempotencyHash *string, requestHash, callbackURL string) (*Job, error)

	GetByIdempotencyHash(ctx context.Context, tenantID, idempotencyHash string) (*Job, error)
	GetByRequestHash(ctx context.Context, tenantID, requestHash string) (*Job, error)
	GetByID(ctx context.Context, jobID string) (*Job, error)

	// GetDetail loads a job plus whichever associated rows the caller asks
	// for; includePayload/includeFeatures gate the redaction-sensitive
	// columns (spec §4.10).
	GetDetail(ctx context.Context, jobID string, includePayload, includeFeatures, includeResult bool) (*JobDetail, error)

	PersistFeatures(ctx context.Context, jobID string, features map[string]any) error
	PersistResult(ctx context.Context, jobID string, result Result) error
	UpdateStatus(ctx context.Context, jobID string, status Status) error
	AppendAudit(ctx context.Context, jobID, actor, action string, hash *string) error

	// ReserveNextJobs atomically selects up to limit oldest queued jobs for
	// tenantID and transitions them to processing, returning each job's id
	// and decrypted payload (spec §4.8, §5: FOR UPDATE SKIP LOCKED).
	ReserveNextJobs(ctx context.Context, tenantID string, limit int) ([]ReservedJob, error)

	ListForTenant(ctx context.Context, tenantID string, status *Status, limit int) ([]Job, error)
	ListRecent(ctx context.Context, tenantID *string, limit int) ([]Job, error)

	// TenantStatsSince returns per-tenant roll-ups for jobs created at or
	// after since (spec §4.10 tenant/admin summary endpoints).
	TenantStatsSince(ctx context.Context, since time.Time) (map[string]TenantStats, error)
}

// ReservedJob is one job handed to a poller by ReserveNextJobs.
type ReservedJob struct {
	JobID   string
	Payload map[string]any
}
