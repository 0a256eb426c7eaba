// Package worker runs the underwrite pipeline per job (spec §4.7): a
// bounded, synchronous, per-stage-timed sequence from payload load through
// webhook emission. It is invoked by the queue-driven dispatcher; the
// polling-complete handler does not call it but shares the same
// terminal-state writes through jobstore.Store, per spec §9's "do not
// duplicate write logic" note.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/softmax/underwriting-gateway/internal/jobstore"
	"github.com/softmax/underwriting-gateway/internal/metrics"
	"github.com/softmax/underwriting-gateway/internal/pipeline"
	"github.com/softmax/underwriting-gateway/internal/storage"
	"github.com/softmax/underwriting-gateway/internal/tenant"
	"github.com/softmax/underwriting-gateway/internal/webhook"
)

// Underwriter executes the fixed 8-step pipeline for one job at a time.
// It holds no per-job state between calls so many can run concurrently.
type Underwriter struct {
	Store      jobstore.Store
	Tenants    tenant.Store
	Scratch    *storage.Scratch
	Parser     pipeline.Parser
	Collateral pipeline.Collateral
	LLM        pipeline.LLM
	Rules      pipeline.RuleEvaluator
	Webhook    *webhook.Sender
	Metrics    *metrics.Registry
	Log        zerolog.Logger
}

// Run executes the pipeline for jobID, which must already be in
// processing (the dispatcher's jobstore reservation makes the queued ->
// processing transition; Run does not). A job that is already terminal is
// skipped. If the job itself cannot be loaded, Run returns an error and
// leaves its status alone; a later failure (tenant or payload load,
// feature persistence, decision, result persistence, status update) marks
// the job failed. Bank-statement and collateral errors are not failures.
// The returned error is advisory only, for the caller to log.
func (u *Underwriter) Run(ctx context.Context, jobID string) error {
	runStart := time.Now()

	job, err := u.Store.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	if job == nil {
		return fmt.Errorf("job %s not found", jobID)
	}
	if job.Status.IsTerminal() {
		u.Log.Info().Str("job_id", jobID).Str("status", string(job.Status)).Msg("job already terminal, skipping")
		return nil
	}
	defer u.observeStage(job.TenantID, "total", runStart)

	t, err := u.Tenants.GetByID(ctx, job.TenantID)
	if err != nil || t == nil {
		return u.fail(ctx, job.TenantID, jobID, fmt.Errorf("load tenant %s: %w", job.TenantID, err))
	}

	detail, err := u.Store.GetDetail(ctx, jobID, true, false, false)
	if err != nil || detail == nil || detail.Payload == nil {
		return u.fail(ctx, job.TenantID, jobID, fmt.Errorf("load payload for job %s: %w", jobID, err))
	}
	payload := detail.Payload

	parseOut := u.acquireBankStatement(ctx, job.TenantID, payload)
	collateralOut := u.valuateCollateral(ctx, job.TenantID, payload)

	fuseStart := time.Now()
	features := pipeline.FuseFeatures(payload, parseOut, collateralOut)
	u.observeStage(job.TenantID, "fuse", fuseStart)
	if err := u.Store.PersistFeatures(ctx, jobID, features); err != nil {
		return u.fail(ctx, job.TenantID, jobID, fmt.Errorf("persist features for job %s: %w", jobID, err))
	}

	result, err := u.decide(ctx, job.TenantID, features)
	if err != nil {
		return u.fail(ctx, job.TenantID, jobID, fmt.Errorf("decision stage for job %s: %w", jobID, err))
	}

	if err := u.Store.PersistResult(ctx, jobID, result); err != nil {
		return u.fail(ctx, job.TenantID, jobID, fmt.Errorf("persist result for job %s: %w", jobID, err))
	}
	if err := u.Store.UpdateStatus(ctx, jobID, jobstore.StatusSucceeded); err != nil {
		return u.fail(ctx, job.TenantID, jobID, fmt.Errorf("update status for job %s: %w", jobID, err))
	}
	if err := u.Store.AppendAudit(ctx, jobID, "underwrite_worker", "job_completed", nil); err != nil {
		u.Log.Warn().Err(err).Str("job_id", jobID).Msg("failed to append completion audit")
	}

	u.emitWebhook(ctx, *t, *job, result, features)

	return nil
}

func (u *Underwriter) acquireBankStatement(ctx context.Context, tenantID string, payload map[string]any) pipeline.ParseResult {
	documents, _ := payload["documents"].(map[string]any)
	if documents == nil {
		return pipeline.ParseResult{}
	}
	url, _ := documents["bank_statement_url"].(string)
	if url == "" {
		return pipeline.ParseResult{}
	}

	path, err := u.Scratch.Download(ctx, url)
	if err != nil {
		u.Log.Warn().Err(err).Str("tenant_id", tenantID).Msg("bank statement download failed, continuing with no data")
		return pipeline.ParseResult{}
	}
	defer u.Scratch.Cleanup(path)

	start := time.Now()
	parseOut, err := u.Parser.Parse(ctx, path)
	u.observe(u.Metrics.ParserSeconds, tenantID, start)
	u.observeStage(tenantID, "parser", start)
	if err != nil {
		u.Log.Warn().Err(err).Str("tenant_id", tenantID).Msg("parser error, continuing with no data")
		return pipeline.ParseResult{}
	}
	return parseOut
}

func (u *Underwriter) valuateCollateral(ctx context.Context, tenantID string, payload map[string]any) pipeline.CollateralResult {
	start := time.Now()
	out, err := u.Collateral.Valuate(ctx, payload)
	u.observe(u.Metrics.CollateralSeconds, tenantID, start)
	u.observeStage(tenantID, "collateral", start)
	if err != nil {
		u.Log.Warn().Err(err).Str("tenant_id", tenantID).Msg("collateral enrichment error, continuing with no data")
		return pipeline.CollateralResult{Source: pipeline.CollateralSourceUnavailable}
	}
	return out
}

func (u *Underwriter) decide(ctx context.Context, tenantID string, features map[string]any) (jobstore.Result, error) {
	start := time.Now()
	memo, meta, err := u.LLM.GenerateMemo(ctx, features)
	u.observe(u.Metrics.LLMSeconds, tenantID, start)
	u.observeStage(tenantID, "llm", start)
	if err != nil {
		return jobstore.Result{}, fmt.Errorf("llm call: %w", err)
	}

	decision := meta.Decision
	var reasons []string
	if decision == nil {
		rulesStart := time.Now()
		rule, err := u.Rules.Evaluate(ctx, features)
		u.observeStage(tenantID, "rules", rulesStart)
		if err != nil {
			return jobstore.Result{}, fmt.Errorf("rule evaluator: %w", err)
		}
		decision = &rule.Decision
		reasons = rule.Reasons
	}

	result := jobstore.Result{
		MemoMarkdown:           memo,
		RiskScore:              meta.RiskScore,
		Decision:               decision,
		InterestRateSuggestion: meta.InterestRateSuggestion,
	}
	if len(reasons) > 0 {
		result.JSONTail = map[string]any{"rule_reasons": reasons}
	}
	return result, nil
}

func (u *Underwriter) emitWebhook(ctx context.Context, t tenant.Tenant, job jobstore.Job, result jobstore.Result, features map[string]any) {
	if job.CallbackURL == "" {
		return
	}
	memo := result.MemoMarkdown
	payload := webhook.Payload{
		Event:                  webhook.EventMemoGenerated,
		JobID:                  job.ID,
		ClientJobID:            job.ClientJobID,
		Decision:               result.Decision,
		InterestRateSuggestion: result.InterestRateSuggestion,
		RiskScore:              result.RiskScore,
		LLMInput:               features,
		CreditMemoMarkdown:     memo,
		Attachments:            []string{},
		AuditRef:               job.ID,
		Timestamp:              time.Now().UTC().Format(time.RFC3339),
	}

	onAttempt := func(status string) {
		u.Metrics.WebhookAttemptsTotal.WithLabelValues(t.ID, status).Inc()
	}
	if err := u.Webhook.Deliver(ctx, u.Log, job.CallbackURL, t.WebhookSecret, payload, onAttempt); err != nil {
		u.Metrics.WebhookFailuresTotal.WithLabelValues(t.ID).Inc()
		u.Log.Error().Err(err).Str("job_id", job.ID).Msg("webhook delivery exhausted retries")
	}
}

func (u *Underwriter) fail(ctx context.Context, tenantID, jobID string, cause error) error {
	if err := u.Store.UpdateStatus(ctx, jobID, jobstore.StatusFailed); err != nil {
		u.Log.Error().Err(err).Str("job_id", jobID).Msg("failed to mark job failed")
	}
	if err := u.Store.AppendAudit(ctx, jobID, "underwrite_worker", "job_failed", nil); err != nil {
		u.Log.Warn().Err(err).Str("job_id", jobID).Msg("failed to append failure audit")
	}
	u.Metrics.JobsFailedTotal.WithLabelValues(tenantID).Inc()
	u.Log.Error().Err(cause).Str("job_id", jobID).Msg("underwrite job failed")
	return cause
}

func (u *Underwriter) observe(hist *prometheus.HistogramVec, tenantID string, start time.Time) {
	hist.WithLabelValues(tenantID).Observe(time.Since(start).Seconds())
}

// observeStage records underwrite_duration_seconds{tenant_id,stage} (spec
// §4.11), one series per pipeline step plus a "total" series for the
// whole Run call.
func (u *Underwriter) observeStage(tenantID, stage string, start time.Time) {
	u.Metrics.UnderwriteDurationSeconds.WithLabelValues(tenantID, stage).Observe(time.Since(start).Seconds())
}
