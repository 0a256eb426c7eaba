package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/softmax/underwriting-gateway/internal/apierr"
	"github.com/softmax/underwriting-gateway/internal/auth"
	"github.com/softmax/underwriting-gateway/internal/jobstore"
)

type jobView struct {
	JobID                  string         `json:"job_id"`
	Status                 string         `json:"status"`
	ClientJobID            string         `json:"client_job_id"`
	Decision               *string        `json:"decision,omitempty"`
	RiskScore              *float64       `json:"risk_score,omitempty"`
	InterestRateSuggestion *float64       `json:"interest_rate_suggestion,omitempty"`
	MemoMarkdown           *string        `json:"memo_markdown,omitempty"`
	MemoPDFURL             *string        `json:"memo_pdf_url,omitempty"`
	CreatedAt              string         `json:"created_at"`
	UpdatedAt              string         `json:"updated_at"`
	Metadata               map[string]any `json:"metadata,omitempty"`
}

func jobViewFrom(detail *jobstore.JobDetail) jobView {
	v := jobView{
		JobID:       detail.Job.ID,
		Status:      string(detail.Job.Status),
		ClientJobID: detail.Job.ClientJobID,
		CreatedAt:   detail.Job.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:   detail.Job.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if detail.Result != nil {
		v.Decision = detail.Result.Decision
		v.RiskScore = detail.Result.RiskScore
		v.InterestRateSuggestion = detail.Result.InterestRateSuggestion
		memo := detail.Result.MemoMarkdown
		v.MemoMarkdown = &memo
		v.MemoPDFURL = detail.Result.MemoPDFURL
	}
	return v
}

// GetJob implements GET /v1/jobs/{id} (spec §6.4). Cross-tenant access
// returns not-found rather than forbidden, so callers cannot enumerate
// other tenants' job ids.
func (s *Server) GetJob(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	jobID := chi.URLParam(r, "id")

	detail, err := s.Store.GetDetail(r.Context(), jobID, false, false, true)
	if err != nil {
		writeError(w, r, apierr.DownstreamFatal("failed to load job", err))
		return
	}
	if detail == nil || detail.Job.TenantID != ac.TenantID {
		writeError(w, r, apierr.NotFound("job not found"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": jobViewFrom(detail)})
}

type pullRequest struct {
	MaxJobs int `json:"max_jobs"`
}

type pulledJob struct {
	JobID        string         `json:"job_id"`
	PayloadPlain map[string]any `json:"payload_plain"`
}

// PullJobs implements POST /v1/jobs/pull (spec §4.8): atomic reservation
// of the oldest queued jobs for the caller's tenant, serialized so two
// concurrent pollers never receive the same job.
func (s *Server) PullJobs(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req pullRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apierr.Validation("request body is not valid JSON"))
		return
	}
	if req.MaxJobs < 1 || req.MaxJobs > 5 {
		writeError(w, r, apierr.Validation("max_jobs must be between 1 and 5"))
		return
	}

	reserved, err := s.Store.ReserveNextJobs(r.Context(), ac.TenantID, req.MaxJobs)
	if err != nil {
		writeError(w, r, apierr.DownstreamFatal("failed to reserve jobs", err))
		return
	}

	out := make([]pulledJob, 0, len(reserved))
	for _, rj := range reserved {
		out = append(out, pulledJob{JobID: rj.JobID, PayloadPlain: rj.Payload})
	}
	writeJSON(w, http.StatusOK, out)
}

type completeRequest struct {
	JobID                  string         `json:"job_id"`
	Status                 string         `json:"status"`
	Decision               *string        `json:"decision"`
	RiskScore              *float64       `json:"risk_score"`
	InterestRateSuggestion *float64       `json:"interest_rate_suggestion"`
	MemoMarkdown           *string        `json:"memo_markdown"`
	Metadata               map[string]any `json:"metadata"`
}

var validCompleteStatuses = map[jobstore.Status]bool{
	jobstore.StatusQueued:     true,
	jobstore.StatusProcessing: true,
	jobstore.StatusSucceeded:  true,
	jobstore.StatusFailed:     true,
}

// CompleteJob implements POST /v1/jobs/complete (spec §4.8): only the
// owning tenant may complete a job; it always updates status, persists a
// Result on succeeded, and appends the polling_worker audit entry,
// re-using the exact same store writes the underwrite worker uses.
func (s *Server) CompleteJob(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apierr.Validation("request body is not valid JSON"))
		return
	}

	status := jobstore.Status(req.Status)
	if !validCompleteStatuses[status] {
		writeError(w, r, apierr.Validation("status is not a recognized job status"))
		return
	}

	ctx := r.Context()
	job, err := s.Store.GetByID(ctx, req.JobID)
	if err != nil {
		writeError(w, r, apierr.DownstreamFatal("failed to load job", err))
		return
	}
	if job == nil || job.TenantID != ac.TenantID {
		writeError(w, r, apierr.NotFound("job not found"))
		return
	}

	if status == jobstore.StatusSucceeded {
		result := jobstore.Result{
			Decision:               req.Decision,
			RiskScore:              req.RiskScore,
			InterestRateSuggestion: req.InterestRateSuggestion,
			JSONTail:               req.Metadata,
		}
		if req.MemoMarkdown != nil {
			result.MemoMarkdown = *req.MemoMarkdown
		}
		if err := s.Store.PersistResult(ctx, job.ID, result); err != nil {
			writeError(w, r, apierr.DownstreamFatal("failed to persist result", err))
			return
		}
	}

	if err := s.Store.UpdateStatus(ctx, job.ID, status); err != nil {
		writeError(w, r, apierr.DownstreamFatal("failed to update status", err))
		return
	}
	if err := s.Store.AppendAudit(ctx, job.ID, "polling_worker", "job_complete", nil); err != nil {
		writeError(w, r, apierr.DownstreamFatal("failed to append audit", err))
		return
	}

	if status.IsTerminal() && status == jobstore.StatusFailed {
		s.Metrics.JobsFailedTotal.WithLabelValues(ac.TenantID).Inc()
	}

	writeJSON(w, http.StatusOK, map[string]any{"job_id": job.ID, "status": string(status)})
}
