package pipeline

import (
	"context"
	"fmt"
)

// Sandbox collaborators back spec §9's "Sandbox mode": deterministic,
// network-free stand-ins used in dev and tests. They are the only
// implementations of these interfaces in this repository, and
// cmd/gateway wires them for every tenant. They are deliberately
// simplistic; production providers are expected to implement the same
// interfaces against real services.

// SandboxParser returns an empty, successful parse for any PDF. Real
// parsers are expected to read transaction rows from the document; the
// sandbox has no document to read so it reports zero rows rather than
// fabricating data.
type SandboxParser struct{}

func (SandboxParser) Parse(ctx context.Context, localPath string) (ParseResult, error) {
	return ParseResult{Stats: ParseResultStats{RowCount: 0}}, nil
}

// SandboxCollateral derives a deterministic valuation from the declared
// collateral payload so repeated runs over the same job are reproducible.
type SandboxCollateral struct{}

func (SandboxCollateral) Valuate(ctx context.Context, payload map[string]any) (CollateralResult, error) {
	declared, _ := payload["collateral"].(map[string]any)
	if declared == nil {
		return CollateralResult{Source: CollateralSourceNotProvided, RiskScore: 0.5}, nil
	}
	value, _ := asFloat(declared["declared_value"])
	if value == 0 {
		value, _ = asFloat(declared["value"])
	}
	return CollateralResult{
		Value:      value,
		Currency:   "MNT",
		Confidence: 0.4,
		Source:     CollateralSourceDeclaredFallback,
		RiskScore:  0.5,
	}, nil
}

// SandboxLLM returns no decision, forcing the worker to fall back to the
// RuleEvaluator (spec §4.7 step 5).
type SandboxLLM struct{}

func (SandboxLLM) GenerateMemo(ctx context.Context, features map[string]any) (string, LLMMeta, error) {
	memo := fmt.Sprintf("Sandbox memo: requested amount %.2f, risk score %.2f.",
		features["requested_loan_amount"], features["risk_score"])
	return memo, LLMMeta{}, nil
}

// ThresholdRuleEvaluator is the deterministic fallback decision-maker
// (spec §4.7 step 5, §6.9). It is grounded directly in the original
// underwriting engine's rule thresholds: a risk score of 0.6 or above
// declines outright, 0.35 or below approves outright, and anything
// in between defaults to manual review — further forced into review
// when the expense-to-income ratio exceeds 0.8 regardless of risk score.
type ThresholdRuleEvaluator struct{}

const (
	declineRiskThreshold = 0.6
	approveRiskThreshold = 0.35
	expenseIncomeLimit   = 0.8
)

func (ThresholdRuleEvaluator) Evaluate(ctx context.Context, features map[string]any) (RuleResult, error) {
	riskScore, _ := asFloat(features["risk_score"])

	result := RuleResult{Decision: DecisionReview}
	switch {
	case riskScore >= declineRiskThreshold:
		result = RuleResult{Decision: DecisionDecline, Reasons: []string{"Risk score too high"}}
	case riskScore <= approveRiskThreshold:
		result = RuleResult{Decision: DecisionApprove}
	default:
		result.Reasons = []string{"Risk score inconclusive"}
	}

	if ratio, ok := expenseToIncomeRatio(features); ok && ratio > expenseIncomeLimit {
		result.Decision = DecisionReview
		result.Reasons = append(result.Reasons, "High expense to income ratio")
	}

	return result, nil
}

func expenseToIncomeRatio(features map[string]any) (float64, bool) {
	statement, _ := features["bank_statement"].(map[string]any)
	if statement == nil {
		return 0, false
	}
	income, okIncome := asFloat(statement["average_monthly_income"])
	expense, okExpense := asFloat(statement["total_expense"])
	if !okIncome || !okExpense || income <= 0 {
		return 0, false
	}
	return expense / income, true
}
