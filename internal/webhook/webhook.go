// Package webhook delivers the signed job-completion callback (spec
// §4.9, §6.5). Delivery is best-effort: after the retry budget is spent
// the failure is logged and surfaced to the caller only through polling
// or the dashboard, never by failing the underlying job (spec §9 "Error
// Handling Design" — webhook failures are non-fatal).
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/softmax/underwriting-gateway/internal/auth"
)

// Payload is the canonical "memo.generated" callback body (spec §6.5).
// Field order matches the spec's listed key order, since the body is
// signed and must be produced deterministically.
type Payload struct {
	Event                  string         `json:"event"`
	JobID                  string         `json:"job_id"`
	ClientJobID            string         `json:"client_job_id"`
	Decision               *string        `json:"decision,omitempty"`
	InterestRateSuggestion *float64       `json:"interest_rate_suggestion,omitempty"`
	RiskScore              *float64       `json:"risk_score,omitempty"`
	LLMInput               map[string]any `json:"llm_input,omitempty"`
	CreditMemoMarkdown     string         `json:"credit_memo_markdown"`
	Attachments            []string       `json:"attachments"`
	AuditRef               string         `json:"audit_ref"`
	Timestamp              string         `json:"timestamp"`
}

const EventMemoGenerated = "memo.generated"

// Sender delivers a signed callback with bounded linear backoff.
type Sender struct {
	Client      *http.Client
	MaxAttempts int
	BackoffBase time.Duration
	Sleep       func(time.Duration)
}

func NewSender(client *http.Client, maxAttempts int, backoffBase time.Duration) *Sender {
	if client == nil {
		client = http.DefaultClient
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Sender{
		Client:      client,
		MaxAttempts: maxAttempts,
		BackoffBase: backoffBase,
		Sleep:       time.Sleep,
	}
}

// Deliver POSTs the signed payload to callbackURL, retrying up to
// MaxAttempts times with linear backoff (backoff_seconds * attempt). A
// 2xx response terminates the attempt loop; any transport error or
// non-2xx status counts as a failed attempt. The final error, if any, is
// returned to the caller to log — never to fail the job. onAttempt, if
// non-nil, is called once per attempt with "success" or "error" so the
// caller can record webhook_attempts_total per attempt rather than once
// per Deliver call (spec §8 S7, matching the label values
// original_source/app/workers/tasks.py uses).
func (s *Sender) Deliver(ctx context.Context, log zerolog.Logger, callbackURL, webhookSecret string, payload Payload, onAttempt func(status string)) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	signature := auth.Sign(body, webhookSecret)

	var lastErr error
	for attempt := 1; attempt <= s.MaxAttempts; attempt++ {
		err := s.attempt(ctx, callbackURL, signature, body)
		if err == nil {
			if onAttempt != nil {
				onAttempt("success")
			}
			log.Info().Str("job_id", payload.JobID).Int("attempt", attempt).Msg("webhook delivered")
			return nil
		}
		lastErr = err
		if onAttempt != nil {
			onAttempt("error")
		}
		log.Warn().Err(err).Str("job_id", payload.JobID).Int("attempt", attempt).Msg("webhook attempt failed")

		if attempt < s.MaxAttempts {
			s.Sleep(s.BackoffBase * time.Duration(attempt))
		}
	}
	return fmt.Errorf("webhook delivery exhausted after %d attempts: %w", s.MaxAttempts, lastErr)
}

func (s *Sender) attempt(ctx context.Context, callbackURL, signature string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(auth.WebhookSignatureHeader, signature)

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
