package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/softmax/underwriting-gateway/internal/apierr"
	"github.com/softmax/underwriting-gateway/internal/auth"
)

// canonicalPayload is the required shape of POST /v1/underwrite (spec §6.1).
type canonicalPayload struct {
	JobID    string `json:"job_id"`
	TenantID string `json:"tenant_id"`
	Applicant struct {
		CitizenID string `json:"citizen_id"`
		FullName  string `json:"full_name"`
		Phone     string `json:"phone"`
	} `json:"applicant"`
	Loan struct {
		Type        string  `json:"type"`
		Amount      float64 `json:"amount"`
		TermMonths  int     `json:"term_months"`
	} `json:"loan"`
	ConsentArtifact struct {
		Provider  string   `json:"provider"`
		Reference string   `json:"reference"`
		Scopes    []string `json:"scopes"`
		IssuedAt  string   `json:"issued_at"`
		ExpiresAt string   `json:"expires_at"`
		Hash      string   `json:"hash"`
	} `json:"consent_artifact"`
	ThirdPartyData map[string]any `json:"third_party_data"`
	Documents      struct {
		BankStatementURL    *string `json:"bank_statement_url"`
		BankStatementPeriod struct {
			From string `json:"from"`
			To   string `json:"to"`
		} `json:"bank_statement_period"`
	} `json:"documents"`
	Collateral  map[string]any `json:"collateral"`
	CallbackURL string         `json:"callback_url"`
}

func (p *canonicalPayload) validate() error {
	switch {
	case p.JobID == "":
		return apierr.Validation("job_id is required")
	case p.TenantID == "":
		return apierr.Validation("tenant_id is required")
	case p.Applicant.CitizenID == "":
		return apierr.Validation("applicant.citizen_id is required")
	case p.Loan.Amount <= 0:
		return apierr.Validation("loan.amount must be positive")
	case p.ConsentArtifact.Reference == "":
		return apierr.Validation("consent_artifact.reference is required")
	case p.CallbackURL == "":
		return apierr.Validation("callback_url is required")
	}
	return nil
}

func (p *canonicalPayload) toMap() (map[string]any, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

type admissionResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// Underwrite implements POST /v1/underwrite (spec §4.5). Preconditions
// (a)-(c) — identity, HMAC, rate-limit — are enforced by the middleware
// chain before this handler runs; here we enforce (d) and the admission
// logic's idempotency/dedup ordering.
func (s *Server) Underwrite(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	body := rawBodyFromContext(r.Context())

	var payload canonicalPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, r, apierr.Validation("request body is not valid JSON"))
		return
	}
	if err := payload.validate(); err != nil {
		writeError(w, r, err)
		return
	}
	if payload.TenantID != ac.TenantID {
		writeError(w, r, apierr.Authorization("tenant_id does not match authenticated tenant"))
		return
	}

	requestHash := sha256Hex(body)

	var idempotencyHash *string
	if key := r.Header.Get("X-Idempotency-Key"); key != "" {
		h := sha256Hex([]byte(key))
		idempotencyHash = &h
	}

	ctx := r.Context()

	if idempotencyHash != nil {
		existing, err := s.Store.GetByIdempotencyHash(ctx, ac.TenantID, *idempotencyHash)
		if err != nil {
			writeError(w, r, apierr.DownstreamFatal("idempotency lookup failed", err))
			return
		}
		if existing != nil {
			writeJSON(w, http.StatusAccepted, admissionResponse{JobID: existing.ID, Status: string(existing.Status)})
			return
		}
	}

	existing, err := s.Store.GetByRequestHash(ctx, ac.TenantID, requestHash)
	if err != nil {
		writeError(w, r, apierr.DownstreamFatal("dedup lookup failed", err))
		return
	}
	if existing != nil {
		writeJSON(w, http.StatusAccepted, admissionResponse{JobID: existing.ID, Status: string(existing.Status)})
		return
	}

	payloadMap, err := payload.toMap()
	if err != nil {
		writeError(w, r, apierr.Validation("failed to normalize payload"))
		return
	}

	job, err := s.Store.CreateJob(ctx, ac.TenantID, payload.JobID, payloadMap, idempotencyHash, requestHash, payload.CallbackURL)
	if err != nil {
		writeError(w, r, apierr.DownstreamFatal("failed to create job", err))
		return
	}

	s.Metrics.JobsCreatedTotal.WithLabelValues(ac.TenantID).Inc()

	if err := s.Queue.Notify(ctx, ac.TenantID); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("job_id", job.ID).Msg("failed to notify queue, job stays queued until the tenant's next wake-up or a poller pulls it")
	}

	writeJSON(w, http.StatusAccepted, admissionResponse{JobID: job.ID, Status: string(job.Status)})
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
