package jobstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by unit tests and the dev/sandbox
// run mode. It implements the same admission/reservation/redaction
// semantics as PgStore without a database, so handler and worker tests can
// run without a live Postgres instance.
type MemoryStore struct {
	mu       sync.Mutex
	jobs     map[string]*Job
	payloads map[string]map[string]any
	features map[string]map[string]any
	results  map[string]*Result
	audits   map[string][]Audit
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:     make(map[string]*Job),
		payloads: make(map[string]map[string]any),
		features: make(map[string]map[string]any),
		results:  make(map[string]*Result),
		audits:   make(map[string][]Audit),
	}
}

func (s *MemoryStore) CreateJob(_ context.Context, tenantID, clientJobID string, payload map[string]any, idempotencyHash *string, requestHash, callbackURL string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	job := &Job{
		ID:          newJobID(),
		TenantID:    tenantID,
		ClientJobID: clientJobID,
		Status:      StatusQueued,
		CallbackURL: callbackURL,
		RequestHash: requestHash,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if idempotencyHash != nil {
		job.IdempotencyKey = *idempotencyHash
	}
	s.jobs[job.ID] = job
	s.payloads[job.ID] = payload
	s.audits[job.ID] = append(s.audits[job.ID], Audit{
		ID: int64(len(s.audits[job.ID]) + 1), JobID: job.ID, Actor: "api", Action: "job_queued",
		Hash: &requestHash, CreatedAt: now,
	})
	cp := *job
	return &cp, nil
}

func (s *MemoryStore) GetByIdempotencyHash(_ context.Context, tenantID, idempotencyHash string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.TenantID == tenantID && j.IdempotencyKey != "" && j.IdempotencyKey == idempotencyHash {
			cp := *j
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) GetByRequestHash(_ context.Context, tenantID, requestHash string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.TenantID == tenantID && j.RequestHash == requestHash {
			cp := *j
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) GetByID(_ context.Context, jobID string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, nil
	}
	cp := *j
	return &cp, nil
}

func (s *MemoryStore) GetDetail(_ context.Context, jobID string, includePayload, includeFeatures, includeResult bool) (*JobDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, nil
	}
	detail := &JobDetail{Job: *j}
	if includePayload {
		detail.Payload = s.payloads[jobID]
	}
	if includeFeatures {
		detail.Features = s.features[jobID]
	}
	if includeResult {
		detail.Result = s.results[jobID]
	}
	detail.Audits = append([]Audit(nil), s.audits[jobID]...)
	return detail, nil
}

func (s *MemoryStore) PersistFeatures(_ context.Context, jobID string, features map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.features[jobID] = features
	return nil
}

func (s *MemoryStore) PersistResult(_ context.Context, jobID string, result Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := result
	cp.JobID = jobID
	s.results[jobID] = &cp
	return nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, jobID string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok || j.Status.IsTerminal() {
		return nil
	}
	j.Status = status
	j.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) AppendAudit(_ context.Context, jobID, actor, action string, hash *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits[jobID] = append(s.audits[jobID], Audit{
		ID: int64(len(s.audits[jobID]) + 1), JobID: jobID, Actor: actor, Action: action,
		Hash: hash, CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (s *MemoryStore) ReserveNextJobs(_ context.Context, tenantID string, limit int) ([]ReservedJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []*Job
	for _, j := range s.jobs {
		if j.TenantID == tenantID && j.Status == StatusQueued {
			candidates = append(candidates, j)
		}
	}
	sort.Slice(candidates, func(i, k int) bool { return candidates[i].CreatedAt.Before(candidates[k].CreatedAt) })

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	var reserved []ReservedJob
	for _, j := range candidates {
		j.Status = StatusProcessing
		j.UpdatedAt = time.Now().UTC()
		reserved = append(reserved, ReservedJob{JobID: j.ID, Payload: s.payloads[j.ID]})
	}
	return reserved, nil
}

func (s *MemoryStore) ListForTenant(_ context.Context, tenantID string, status *Status, limit int) ([]Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Job
	for _, j := range s.jobs {
		if j.TenantID != tenantID {
			continue
		}
		if status != nil && j.Status != *status {
			continue
		}
		out = append(out, *j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListRecent(_ context.Context, tenantID *string, limit int) ([]Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Job
	for _, j := range s.jobs {
		if tenantID != nil && j.TenantID != *tenantID {
			continue
		}
		out = append(out, *j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) TenantStatsSince(_ context.Context, since time.Time) (map[string]TenantStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]TenantStats)
	durations := make(map[string][]float64)
	for _, j := range s.jobs {
		if j.CreatedAt.Before(since) {
			continue
		}
		st := out[j.TenantID]
		st.Total++
		switch j.Status {
		case StatusSucceeded:
			st.Succeeded++
			durations[j.TenantID] = append(durations[j.TenantID], j.UpdatedAt.Sub(j.CreatedAt).Seconds())
		case StatusFailed:
			st.Failed++
			durations[j.TenantID] = append(durations[j.TenantID], j.UpdatedAt.Sub(j.CreatedAt).Seconds())
		}
		out[j.TenantID] = st
	}
	for tenantID, st := range out {
		if ds := durations[tenantID]; len(ds) > 0 {
			sum := 0.0
			for _, d := range ds {
				sum += d
			}
			avg := sum / float64(len(ds))
			st.AverageProcessingSecs = &avg
			out[tenantID] = st
		}
	}
	return out, nil
}
