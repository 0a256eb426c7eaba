// Package jobstore persists the Job/Payload/Features/Result/Audit graph
// described in spec §3 and implements the admission, reservation, and
// completion queries spec §4.5, §4.7, §4.8 depend on. Every encrypted
// column is sealed/opened through vault.Vault so callers never see raw
// ciphertext bytes.
package jobstore

import (
	"time"
)

type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether s is a terminal status (spec §3, §4.7:
// terminal states never revert).
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Job mirrors the spec §3 Job entity.
type Job struct {
	ID             string
	TenantID       string
	ClientJobID    string
	Status         Status
	IdempotencyKey string // hashed, nullable
	CallbackURL    string
	RequestHash    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Result mirrors the spec §3 Result entity.
type Result struct {
	JobID                  string
	MemoMarkdown           string
	MemoPDFURL             *string
	RiskScore              *float64
	Decision               *string
	InterestRateSuggestion *float64
	JSONTail               map[string]any
}

// Audit mirrors the spec §3 Audit entity — append-only, never mutated.
type Audit struct {
	ID        int64
	JobID     string
	Actor     string
	Action    string
	Hash      *string
	CreatedAt time.Time
}

// JobDetail bundles a Job with its optional associated rows, the shape the
// dashboard and polling/query endpoints project from (spec §4.10, §6.4).
type JobDetail struct {
	Job      Job
	Payload  map[string]any // nil if not loaded/redacted
	Features map[string]any // nil if not loaded/redacted
	Result   *Result
	Audits   []Audit
}
