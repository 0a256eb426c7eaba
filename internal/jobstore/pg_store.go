package jobstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/softmax/underwriting-gateway/internal/apierr"
	"github.com/softmax/underwriting-gateway/internal/vault"
)

// PgStore is the Postgres-backed Store. Encrypted columns (payload,
// features, result.json_tail) are sealed/opened through vault.Vault at the
// persistence boundary, never elsewhere.
type PgStore struct {
	db    *pgxpool.Pool
	vault *vault.Vault
}

func NewPgStore(db *pgxpool.Pool, v *vault.Vault) *PgStore {
	return &PgStore{db: db, vault: v}
}

// newJobID mints an opaque job id with the "uwo_" prefix spec §3 requires.
func newJobID() string {
	return "uwo_" + uuid.New().String()
}

func (s *PgStore) CreateJob(ctx context.Context, tenantID, clientJobID string, payload map[string]any, idempotencyHash *string, requestHash, callbackURL string) (*Job, error) {
	sealed, err := s.vault.SealRaw(payload)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, apierr.DownstreamFatal("failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	job := Job{
		ID:             newJobID(),
		TenantID:       tenantID,
		ClientJobID:    clientJobID,
		Status:         StatusQueued,
		IdempotencyKey: derefOr(idempotencyHash, ""),
		CallbackURL:    callbackURL,
		RequestHash:    requestHash,
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO job (id, tenant_id, client_job_id, status, idempotency_key, callback_url, request_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at
	`, job.ID, job.TenantID, job.ClientJobID, job.Status, idempotencyHash, job.CallbackURL, job.RequestHash).
		Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, apierr.DownstreamFatal("failed to insert job", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO payload (job_id, json_encrypted) VALUES ($1, $2)
	`, job.ID, sealed); err != nil {
		return nil, apierr.DownstreamFatal("failed to insert payload", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO audit (job_id, actor, action, hash, created_at) VALUES ($1, 'api', 'job_queued', $2, NOW())
	`, job.ID, requestHash); err != nil {
		return nil, apierr.DownstreamFatal("failed to insert audit row", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apierr.DownstreamFatal("failed to commit job creation", err)
	}
	return &job, nil
}

func derefOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}

func scanJob(row pgx.Row) (*Job, error) {
	var j Job
	var idem *string
	err := row.Scan(&j.ID, &j.TenantID, &j.ClientJobID, &j.Status, &idem, &j.CallbackURL, &j.RequestHash, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apierr.DownstreamFatal("failed to scan job row", err)
	}
	if idem != nil {
		j.IdempotencyKey = *idem
	}
	return &j, nil
}

const jobColumns = `id, tenant_id, client_job_id, status, idempotency_key, callback_url, request_hash, created_at, updated_at`

func (s *PgStore) GetByIdempotencyHash(ctx context.Context, tenantID, idempotencyHash string) (*Job, error) {
	row := s.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM job WHERE tenant_id = $1 AND idempotency_key = $2`, tenantID, idempotencyHash)
	return scanJob(row)
}

func (s *PgStore) GetByRequestHash(ctx context.Context, tenantID, requestHash string) (*Job, error) {
	row := s.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM job WHERE tenant_id = $1 AND request_hash = $2`, tenantID, requestHash)
	return scanJob(row)
}

func (s *PgStore) GetByID(ctx context.Context, jobID string) (*Job, error) {
	row := s.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM job WHERE id = $1`, jobID)
	return scanJob(row)
}

func (s *PgStore) GetDetail(ctx context.Context, jobID string, includePayload, includeFeatures, includeResult bool) (*JobDetail, error) {
	job, err := s.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}
	detail := &JobDetail{Job: *job}

	if includePayload {
		var blob []byte
		err := s.db.QueryRow(ctx, `SELECT json_encrypted FROM payload WHERE job_id = $1`, jobID).Scan(&blob)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, apierr.DownstreamFatal("failed to load payload", err)
		}
		if err == nil {
			m, err := s.vault.OpenRaw(blob)
			if err != nil {
				return nil, err
			}
			detail.Payload = m
		}
	}

	if includeFeatures {
		var blob []byte
		err := s.db.QueryRow(ctx, `SELECT json_encrypted FROM features WHERE job_id = $1`, jobID).Scan(&blob)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, apierr.DownstreamFatal("failed to load features", err)
		}
		if err == nil {
			m, err := s.vault.OpenRaw(blob)
			if err != nil {
				return nil, err
			}
			detail.Features = m
		}
	}

	if includeResult {
		result, err := s.loadResult(ctx, jobID)
		if err != nil {
			return nil, err
		}
		detail.Result = result
	}

	audits, err := s.loadAudits(ctx, jobID)
	if err != nil {
		return nil, err
	}
	detail.Audits = audits

	return detail, nil
}

func (s *PgStore) loadResult(ctx context.Context, jobID string) (*Result, error) {
	var r Result
	var tailBlob []byte
	r.JobID = jobID
	err := s.db.QueryRow(ctx, `
		SELECT memo_markdown, memo_pdf_url, risk_score, decision, interest_rate_suggestion, json_tail
		FROM result WHERE job_id = $1
	`, jobID).Scan(&r.MemoMarkdown, &r.MemoPDFURL, &r.RiskScore, &r.Decision, &r.InterestRateSuggestion, &tailBlob)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apierr.DownstreamFatal("failed to load result", err)
	}
	if len(tailBlob) > 0 {
		tail, err := s.vault.OpenRaw(tailBlob)
		if err != nil {
			return nil, err
		}
		r.JSONTail = tail
	}
	return &r, nil
}

func (s *PgStore) loadAudits(ctx context.Context, jobID string) ([]Audit, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, job_id, actor, action, hash, created_at FROM audit WHERE job_id = $1 ORDER BY created_at
	`, jobID)
	if err != nil {
		return nil, apierr.DownstreamFatal("failed to load audits", err)
	}
	defer rows.Close()

	var audits []Audit
	for rows.Next() {
		var a Audit
		if err := rows.Scan(&a.ID, &a.JobID, &a.Actor, &a.Action, &a.Hash, &a.CreatedAt); err != nil {
			return nil, apierr.DownstreamFatal("failed to scan audit row", err)
		}
		audits = append(audits, a)
	}
	return audits, rows.Err()
}

func (s *PgStore) PersistFeatures(ctx context.Context, jobID string, features map[string]any) error {
	sealed, err := s.vault.SealRaw(features)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO features (job_id, json_encrypted) VALUES ($1, $2)
		ON CONFLICT (job_id) DO UPDATE SET json_encrypted = EXCLUDED.json_encrypted
	`, jobID, sealed)
	if err != nil {
		return apierr.DownstreamFatal("failed to persist features", err)
	}
	return nil
}

func (s *PgStore) PersistResult(ctx context.Context, jobID string, result Result) error {
	var sealedTail []byte
	if result.JSONTail != nil {
		sealed, err := s.vault.SealRaw(result.JSONTail)
		if err != nil {
			return err
		}
		sealedTail = sealed
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO result (job_id, memo_markdown, memo_pdf_url, risk_score, decision, interest_rate_suggestion, json_tail)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (job_id) DO UPDATE SET
			memo_markdown = EXCLUDED.memo_markdown,
			memo_pdf_url = EXCLUDED.memo_pdf_url,
			risk_score = EXCLUDED.risk_score,
			decision = EXCLUDED.decision,
			interest_rate_suggestion = EXCLUDED.interest_rate_suggestion,
			json_tail = EXCLUDED.json_tail
	`, jobID, result.MemoMarkdown, result.MemoPDFURL, result.RiskScore, result.Decision, result.InterestRateSuggestion, sealedTail)
	if err != nil {
		return apierr.DownstreamFatal("failed to persist result", err)
	}
	return nil
}

func (s *PgStore) UpdateStatus(ctx context.Context, jobID string, status Status) error {
	_, err := s.db.Exec(ctx, `UPDATE job SET status = $1, updated_at = NOW() WHERE id = $2 AND status NOT IN ('succeeded', 'failed')`, status, jobID)
	if err != nil {
		return apierr.DownstreamFatal("failed to update job status", err)
	}
	return nil
}

func (s *PgStore) AppendAudit(ctx context.Context, jobID, actor, action string, hash *string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO audit (job_id, actor, action, hash, created_at) VALUES ($1, $2, $3, $4, NOW())
	`, jobID, actor, action, hash)
	if err != nil {
		return apierr.DownstreamFatal("failed to append audit", err)
	}
	return nil
}

// ReserveNextJobs implements spec §4.8/§5: the selection and status
// transition are serialized per tenant with FOR UPDATE SKIP LOCKED so two
// concurrent pollers never receive the same job.
func (s *PgStore) ReserveNextJobs(ctx context.Context, tenantID string, limit int) ([]ReservedJob, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, apierr.DownstreamFatal("failed to begin reservation transaction", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id FROM job
		WHERE tenant_id = $1 AND status = $2
		ORDER BY created_at
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	`, tenantID, StatusQueued, limit)
	if err != nil {
		return nil, apierr.DownstreamFatal("failed to select queued jobs", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, apierr.DownstreamFatal("failed to scan queued job id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, apierr.DownstreamFatal("failed to iterate queued jobs", err)
	}

	var reserved []ReservedJob
	for _, id := range ids {
		if _, err := tx.Exec(ctx, `UPDATE job SET status = $1, updated_at = NOW() WHERE id = $2`, StatusProcessing, id); err != nil {
			return nil, apierr.DownstreamFatal("failed to transition job to processing", err)
		}
		var blob []byte
		if err := tx.QueryRow(ctx, `SELECT json_encrypted FROM payload WHERE job_id = $1`, id).Scan(&blob); err != nil {
			return nil, apierr.DownstreamFatal("failed to load reserved job payload", err)
		}
		payload, err := s.vault.OpenRaw(blob)
		if err != nil {
			return nil, err
		}
		reserved = append(reserved, ReservedJob{JobID: id, Payload: payload})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apierr.DownstreamFatal("failed to commit reservation", err)
	}
	return reserved, nil
}

func (s *PgStore) ListForTenant(ctx context.Context, tenantID string, status *Status, limit int) ([]Job, error) {
	var rows pgx.Rows
	var err error
	if status != nil {
		rows, err = s.db.Query(ctx, `
			SELECT `+jobColumns+` FROM job WHERE tenant_id = $1 AND status = $2 ORDER BY created_at DESC LIMIT $3
		`, tenantID, *status, limit)
	} else {
		rows, err = s.db.Query(ctx, `
			SELECT `+jobColumns+` FROM job WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2
		`, tenantID, limit)
	}
	if err != nil {
		return nil, apierr.DownstreamFatal("failed to list tenant jobs", err)
	}
	defer rows.Close()
	return scanJobRows(rows)
}

func (s *PgStore) ListRecent(ctx context.Context, tenantID *string, limit int) ([]Job, error) {
	var rows pgx.Rows
	var err error
	if tenantID != nil {
		rows, err = s.db.Query(ctx, `
			SELECT `+jobColumns+` FROM job WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2
		`, *tenantID, limit)
	} else {
		rows, err = s.db.Query(ctx, `
			SELECT `+jobColumns+` FROM job ORDER BY created_at DESC LIMIT $1
		`, limit)
	}
	if err != nil {
		return nil, apierr.DownstreamFatal("failed to list recent jobs", err)
	}
	defer rows.Close()
	return scanJobRows(rows)
}

func scanJobRows(rows pgx.Rows) ([]Job, error) {
	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		if j != nil {
			jobs = append(jobs, *j)
		}
	}
	return jobs, rows.Err()
}

func (s *PgStore) TenantStatsSince(ctx context.Context, since time.Time) (map[string]TenantStats, error) {
	rows, err := s.db.Query(ctx, `
		SELECT
			j.tenant_id,
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE j.status = 'succeeded') AS succeeded,
			COUNT(*) FILTER (WHERE j.status = 'failed') AS failed,
			AVG(EXTRACT(EPOCH FROM (j.updated_at - j.created_at))) FILTER (WHERE j.status IN ('succeeded','failed')) AS avg_processing
		FROM job j
		WHERE j.created_at >= $1
		GROUP BY j.tenant_id
	`, since)
	if err != nil {
		return nil, apierr.DownstreamFatal("failed to compute tenant stats", err)
	}
	defer rows.Close()

	out := make(map[string]TenantStats)
	for rows.Next() {
		var tenantID string
		var st TenantStats
		var avg *float64
		if err := rows.Scan(&tenantID, &st.Total, &st.Succeeded, &st.Failed, &avg); err != nil {
			return nil, apierr.DownstreamFatal("failed to scan tenant stats row", err)
		}
		st.AverageProcessingSecs = avg
		out[tenantID] = st
	}
	return out, rows.Err()
}
