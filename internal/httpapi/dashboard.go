package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/softmax/underwriting-gateway/internal/apierr"
	"github.com/softmax/underwriting-gateway/internal/auth"
	"github.com/softmax/underwriting-gateway/internal/jobstore"
)

type jobSummary struct {
	JobID            string   `json:"job_id"`
	TenantID         string   `json:"tenant_id"`
	ClientJobID      string   `json:"client_job_id"`
	Status           string   `json:"status"`
	Decision         *string  `json:"decision,omitempty"`
	RiskScore        *float64 `json:"risk_score,omitempty"`
	CreatedAt        string   `json:"created_at"`
	UpdatedAt        string   `json:"updated_at"`
	ProcessingSecs   float64  `json:"processing_seconds"`
}

type rollup struct {
	Total                 int      `json:"total"`
	Succeeded             int      `json:"succeeded"`
	Failed                int      `json:"failed"`
	AverageProcessingSecs *float64 `json:"average_processing_seconds"`
}

func summarizeJobs(jobs []jobstore.Job) ([]jobSummary, rollup) {
	out := make([]jobSummary, 0, len(jobs))
	var roll rollup
	var totalProcessing float64
	var withDuration int
	for _, j := range jobs {
		processingSecs := j.UpdatedAt.Sub(j.CreatedAt).Seconds()
		out = append(out, jobSummary{
			JobID: j.ID, TenantID: j.TenantID, ClientJobID: j.ClientJobID,
			Status: string(j.Status), CreatedAt: j.CreatedAt.Format(time.RFC3339), UpdatedAt: j.UpdatedAt.Format(time.RFC3339),
			ProcessingSecs: processingSecs,
		})
		roll.Total++
		switch j.Status {
		case jobstore.StatusSucceeded:
			roll.Succeeded++
			totalProcessing += processingSecs
			withDuration++
		case jobstore.StatusFailed:
			roll.Failed++
			totalProcessing += processingSecs
			withDuration++
		}
	}
	if withDuration > 0 {
		avg := totalProcessing / float64(withDuration)
		roll.AverageProcessingSecs = &avg
	}
	return out, roll
}

// TenantJobs implements GET /v1/dashboard/tenant/jobs (spec §4.10).
func (s *Server) TenantJobs(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	limit := parseLimit(r.URL.Query().Get("limit"), 20, 200)

	var statusFilter *jobstore.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		st := jobstore.Status(raw)
		statusFilter = &st
	}

	jobs, err := s.Store.ListForTenant(r.Context(), ac.TenantID, statusFilter, limit)
	if err != nil {
		writeError(w, r, apierr.DownstreamFatal("failed to list jobs", err))
		return
	}

	summaries, roll := summarizeJobs(jobs)
	writeJSON(w, http.StatusOK, map[string]any{"jobs": summaries, "rollup": roll})
}

// TenantJobDetail implements GET /v1/dashboard/tenant/jobs/{id}. Tenant
// detail views never include features (the LLM input), only admin views
// do (spec §4.10, §8 redaction invariant).
func (s *Server) TenantJobDetail(w http.ResponseWriter, r *http.Request) {
	s.jobDetail(w, r, false)
}

// AdminJobDetail implements GET /v1/dashboard/admin/jobs/{id}, which
// additionally includes features.
func (s *Server) AdminJobDetail(w http.ResponseWriter, r *http.Request) {
	s.jobDetail(w, r, true)
}

func (s *Server) jobDetail(w http.ResponseWriter, r *http.Request, admin bool) {
	ac, _ := auth.FromContext(r.Context())
	jobID := chi.URLParam(r, "id")

	detail, err := s.Store.GetDetail(r.Context(), jobID, true, admin, true)
	if err != nil {
		writeError(w, r, apierr.DownstreamFatal("failed to load job", err))
		return
	}
	if detail == nil {
		writeError(w, r, apierr.NotFound("job not found"))
		return
	}
	if !admin && detail.Job.TenantID != ac.TenantID {
		writeError(w, r, apierr.NotFound("job not found"))
		return
	}

	resp := map[string]any{
		"job":     jobViewFrom(detail),
		"payload": detail.Payload,
		"result":  detail.Result,
		"audits":  detail.Audits,
	}
	if admin {
		resp["features"] = detail.Features
	}
	writeJSON(w, http.StatusOK, resp)
}

// TenantSummary implements GET /v1/dashboard/tenant/summary (spec §4.10).
func (s *Server) TenantSummary(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	since := lookbackSince(r)

	stats, err := s.Store.TenantStatsSince(r.Context(), since)
	if err != nil {
		writeError(w, r, apierr.DownstreamFatal("failed to compute summary", err))
		return
	}
	writeJSON(w, http.StatusOK, stats[ac.TenantID])
}

// AdminTenants implements GET /v1/dashboard/admin/tenants (spec §4.10):
// one row per tenant with total_jobs_24h and failure_rate_24h.
func (s *Server) AdminTenants(w http.ResponseWriter, r *http.Request) {
	since := time.Now().Add(-24 * time.Hour)
	stats, err := s.Store.TenantStatsSince(r.Context(), since)
	if err != nil {
		writeError(w, r, apierr.DownstreamFatal("failed to compute tenant summary", err))
		return
	}

	type row struct {
		TenantID       string  `json:"tenant_id"`
		TotalJobs24h   int     `json:"total_jobs_24h"`
		FailureRate24h float64 `json:"failure_rate_24h"`
	}
	rows := make([]row, 0, len(stats))
	for tenantID, st := range stats {
		var rate float64
		if st.Total > 0 {
			rate = roundTo2((float64(st.Failed) / float64(st.Total)) * 100)
		}
		rows = append(rows, row{TenantID: tenantID, TotalJobs24h: st.Total, FailureRate24h: rate})
	}
	writeJSON(w, http.StatusOK, rows)
}

// AdminJobs implements GET /v1/dashboard/admin/jobs: same shape as the
// tenant list endpoint but across every tenant.
func (s *Server) AdminJobs(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"), 20, 200)
	jobs, err := s.Store.ListRecent(r.Context(), nil, limit)
	if err != nil {
		writeError(w, r, apierr.DownstreamFatal("failed to list jobs", err))
		return
	}
	summaries, roll := summarizeJobs(jobs)
	writeJSON(w, http.StatusOK, map[string]any{"jobs": summaries, "rollup": roll})
}

func lookbackSince(r *http.Request) time.Time {
	hours := 24
	if raw := r.URL.Query().Get("lookback_hours"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			hours = n
		}
	}
	return time.Now().Add(-time.Duration(hours) * time.Hour)
}

func roundTo2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
