// Package pipeline defines the narrow collaborator interfaces spec §6.6–§6.9
// describe (parser, collateral enrichment, LLM, rule evaluator) plus the
// feature-fusion step that combines their outputs, and provides sandbox
// implementations for local/dev/test runs (spec §9's "Sandbox mode"
// design note, confirmed by the original's SANDBOX_MODE flag).
package pipeline

import "context"

// ParseResult is the bank-statement parser contract (spec §6.6).
type ParseResult struct {
	BankCode      string           `json:"bank_code,omitempty"`
	CustomerName  string           `json:"customer_name,omitempty"`
	AccountNumber string           `json:"account_number,omitempty"`
	Rows          [][]any          `json:"rows,omitempty"`
	Stats         ParseResultStats `json:"stats"`
}

type ParseResultStats struct {
	RowCount   int     `json:"row_count"`
	PeriodFrom *string `json:"period_from,omitempty"`
	PeriodTo   *string `json:"period_to,omitempty"`
}

// Parser parses a local bank-statement PDF. Errors are caught by the
// worker and treated as "no data" (spec §4.7 step 2).
type Parser interface {
	Parse(ctx context.Context, localPath string) (ParseResult, error)
}

// CollateralSource enumerates the provenance spec §6.7 requires.
type CollateralSource string

const (
	CollateralSourceMLModel          CollateralSource = "ml_model"
	CollateralSourceWebSearch        CollateralSource = "web_search"
	CollateralSourceDeclaredFallback CollateralSource = "declared_fallback"
	CollateralSourceNotProvided      CollateralSource = "not_provided"
	CollateralSourceUnavailable      CollateralSource = "unavailable"
)

// CollateralResult is the collateral-enrichment contract (spec §6.7).
type CollateralResult struct {
	Value      float64          `json:"value"`
	Currency   string           `json:"currency"`
	Confidence float64          `json:"confidence"`
	Source     CollateralSource `json:"source"`
	RiskScore  float64          `json:"risk_score"`
	Market     map[string]any   `json:"market,omitempty"`
}

// Collateral enriches a canonical payload with a collateral valuation.
// Errors are non-fatal to the worker (spec §4.7 step 3).
type Collateral interface {
	Valuate(ctx context.Context, payload map[string]any) (CollateralResult, error)
}

// LLMMeta is the decision metadata an LLM call may produce (spec §6.8).
type LLMMeta struct {
	Decision               *string        `json:"decision,omitempty"`
	InterestRateSuggestion *float64       `json:"interest_rate_suggestion,omitempty"`
	RiskScore              *float64       `json:"risk_score,omitempty"`
	RawResponse            map[string]any `json:"raw_response,omitempty"`
}

// LLM produces a credit memo and decision metadata from fused features
// (spec §6.8).
type LLM interface {
	GenerateMemo(ctx context.Context, features map[string]any) (memoMarkdown string, meta LLMMeta, err error)
}

// Decisions fixed by spec §3/§6.9.
const (
	DecisionApprove = "APPROVE"
	DecisionReview  = "REVIEW"
	DecisionDecline = "DECLINE"
)

// RuleResult is the rule-evaluator contract (spec §6.9), used as a
// fallback when the LLM provider returns no decision (spec §4.7 step 5).
type RuleResult struct {
	Decision string   `json:"decision"`
	Reasons  []string `json:"reasons"`
}

// RuleEvaluator inspects fused features and produces at minimum a decision
// and reasons.
type RuleEvaluator interface {
	Evaluate(ctx context.Context, features map[string]any) (RuleResult, error)
}
