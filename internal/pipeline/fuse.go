package pipeline

// FuseFeatures merges the raw canonical payload, parser output, and
// collateral enrichment into the single features object surrendered to the
// LLM (spec §4.7 step 4). Field names are English and flat, unlike the
// original's locale-specific, bank-layout-heuristic-heavy feature tree —
// spec §1 explicitly excludes "bank-specific PDF layout heuristics and
// free-form insight generators" from this port's scope, so only the
// shape the spec names survives: statement-derived averages, third-party
// data passthrough, and the collateral valuation summary.
func FuseFeatures(payload map[string]any, parseOut ParseResult, collateralOut CollateralResult) map[string]any {
	thirdParty, _ := payload["third_party_data"].(map[string]any)

	avgIncome, totalExpense := summarizeRows(parseOut.Rows)

	loan, _ := payload["loan"].(map[string]any)
	var loanAmount float64
	if loan != nil {
		if amt, ok := loan["amount"].(float64); ok {
			loanAmount = amt
		}
	}

	collateralPayload, _ := payload["collateral"].(map[string]any)

	features := map[string]any{
		"third_party_data": thirdParty,
		"bank_statement": map[string]any{
			"period_from":          parseOut.Stats.PeriodFrom,
			"period_to":            parseOut.Stats.PeriodTo,
			"row_count":            parseOut.Stats.RowCount,
			"average_monthly_income": avgIncome,
			"total_expense":        totalExpense,
		},
		"collateral": map[string]any{
			"declared":   collateralPayload,
			"value":      collateralOut.Value,
			"currency":   collateralOut.Currency,
			"confidence": collateralOut.Confidence,
			"source":     collateralOut.Source,
			"market":     collateralOut.Market,
		},
		"risk_score":         collateralOut.RiskScore,
		"requested_loan_amount": loanAmount,
	}
	return features
}

func summarizeRows(rows [][]any) (avgIncome, totalExpense float64) {
	const defaultAvgIncome = 7_000_000.0
	var credits []float64
	for _, row := range rows {
		if len(row) > 5 {
			if v, ok := asFloat(row[5]); ok && v > 0 {
				credits = append(credits, v)
			}
		}
		if len(row) > 4 {
			if v, ok := asFloat(row[4]); ok && v > 0 {
				totalExpense += v
			}
		}
	}
	if len(credits) == 0 {
		return defaultAvgIncome, totalExpense
	}
	sum := 0.0
	for _, c := range credits {
		sum += c
	}
	return sum / float64(len(credits)), totalExpense
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
