// Package pricing implements the rate-card engine: a risk tier picks the
// base rate, then fixed basis-point adjustments stack on top. Ineligible
// loans still get a fully explained result so the decision layer can show
// why.
package pricing

import (
	"fmt"

	"lendgate/internal/domain"
)

// Program eligibility limits.
const (
	minDSCR        = 0.75
	maxLTV         = 80.0
	minCreditScore = 620
	minLoanCents   = int64(100_000_00)
	maxLoanCents   = int64(3_000_000_00)
)

// baseRates by risk tier, annual percentage.
var baseRates = map[domain.RiskTier]float64{
	domain.TierExcellent:  6.625,
	domain.TierGood:       6.990,
	domain.TierAcceptable: 7.375,
	domain.TierMarginal:   7.875,
	domain.TierHighRisk:   8.500,
}

// Engine is stateless; the rate card is compiled in.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Price runs the full card: eligibility screen, tier selection, adjustments.
func (e *Engine) Price(input domain.PricingInput) domain.PricingResult {
	result := domain.PricingResult{Eligible: true}

	if input.DSCR < minDSCR {
		result.IneligibilityReasons = append(result.IneligibilityReasons,
			fmt.Sprintf("DSCR %.2f below program minimum %.2f", input.DSCR, minDSCR))
	}
	if input.LTV > maxLTV {
		result.IneligibilityReasons = append(result.IneligibilityReasons,
			fmt.Sprintf("LTV %.1f%% above program maximum %.1f%%", input.LTV, maxLTV))
	}
	if input.CreditScore < minCreditScore {
		result.IneligibilityReasons = append(result.IneligibilityReasons,
			fmt.Sprintf("credit score %d below program minimum %d", input.CreditScore, minCreditScore))
	}
	if input.LoanAmountCents < minLoanCents || input.LoanAmountCents > maxLoanCents {
		result.IneligibilityReasons = append(result.IneligibilityReasons,
			fmt.Sprintf("loan amount outside program limits ($%d to $%d)",
				minLoanCents/100, maxLoanCents/100))
	}
	if len(result.IneligibilityReasons) > 0 {
		result.Eligible = false
	}

	result.RiskTier = riskTier(input)
	result.BaseRate = baseRates[result.RiskTier]
	result.Adjustments = adjustments(input)
	for _, adj := range result.Adjustments {
		result.TotalAdjustmentBps += adj.AdjustmentBps
	}
	result.FinalRate = result.BaseRate + float64(result.TotalAdjustmentBps)/100
	return result
}

// riskTier scores DSCR, LTV and credit into the coarse tier that selects the
// base rate.
func riskTier(input domain.PricingInput) domain.RiskTier {
	score := 0
	switch {
	case input.DSCR >= 1.25:
		score += 3
	case input.DSCR >= 1.10:
		score += 2
	case input.DSCR >= 1.00:
		score += 1
	}
	switch {
	case input.LTV <= 60:
		score += 3
	case input.LTV <= 70:
		score += 2
	case input.LTV <= 75:
		score += 1
	}
	switch {
	case input.CreditScore >= 760:
		score += 3
	case input.CreditScore >= 720:
		score += 2
	case input.CreditScore >= 680:
		score += 1
	}

	switch {
	case score >= 8:
		return domain.TierExcellent
	case score >= 6:
		return domain.TierGood
	case score >= 4:
		return domain.TierAcceptable
	case score >= 2:
		return domain.TierMarginal
	default:
		return domain.TierHighRisk
	}
}

func adjustments(input domain.PricingInput) []domain.PricingAdjustment {
	var out []domain.PricingAdjustment

	switch {
	case input.DSCR < 1.0:
		out = append(out, domain.PricingAdjustment{
			Factor: "dscr", AdjustmentBps: 50,
			Reason: fmt.Sprintf("DSCR %.2f below 1.00", input.DSCR),
		})
	case input.DSCR >= 1.25:
		out = append(out, domain.PricingAdjustment{
			Factor: "dscr", AdjustmentBps: -25,
			Reason: fmt.Sprintf("DSCR %.2f at or above 1.25", input.DSCR),
		})
	}

	switch {
	case input.LTV > 75:
		out = append(out, domain.PricingAdjustment{
			Factor: "ltv", AdjustmentBps: 37,
			Reason: fmt.Sprintf("LTV %.1f%% above 75%%", input.LTV),
		})
	case input.LTV <= 60:
		out = append(out, domain.PricingAdjustment{
			Factor: "ltv", AdjustmentBps: -25,
			Reason: fmt.Sprintf("LTV %.1f%% at or below 60%%", input.LTV),
		})
	}

	if input.CreditScore < 680 {
		out = append(out, domain.PricingAdjustment{
			Factor: "credit", AdjustmentBps: 50,
			Reason: fmt.Sprintf("credit score %d below 680", input.CreditScore),
		})
	}

	switch input.PropertyType {
	case "CONDO":
		out = append(out, domain.PricingAdjustment{
			Factor: "property_type", AdjustmentBps: 25, Reason: "condominium",
		})
	case "MULTI_2_4":
		out = append(out, domain.PricingAdjustment{
			Factor: "property_type", AdjustmentBps: 37, Reason: "2-4 unit property",
		})
	}

	if input.IsCashOut {
		out = append(out, domain.PricingAdjustment{
			Factor: "cash_out", AdjustmentBps: 50, Reason: "cash-out refinance",
		})
	}
	return out
}
