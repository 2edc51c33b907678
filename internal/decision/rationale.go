package decision

import (
	"fmt"

	"lendgate/internal/domain"
)

// Factor weights sum to 1.0. The market baseline keeps a floor of
// irreducible risk in every score.
const (
	weightCredit = 0.30
	weightLTV    = 0.25
	weightDSCR   = 0.35
	weightMarket = 0.10
)

// Risk band cut points on the 0-100 score, higher is riskier.
const (
	bandLowMax      = 30.0
	bandModerateMax = 50.0
	bandHighMax     = 70.0
)

// Per-class factor scores feeding the weighted sum.
const (
	scorePositive = 0.0
	scoreNeutral  = 50.0
	scoreNegative = 100.0
)

// buildRationale scores the four fixed factors against fixed thresholds and
// folds eligibility warnings into the weaknesses.
func buildRationale(factors domain.LoanFactors, eligibility domain.EligibilityResult) domain.DecisionRationale {
	scored := []domain.RationaleFactor{
		dscrFactor(factors.DSCR),
		creditFactor(factors.CreditScore),
		ltvFactor(factors.LTV),
		{
			Name:   "market",
			Class:  domain.FactorNeutral,
			Weight: weightMarket,
			Detail: "baseline market conditions",
		},
	}

	rationale := domain.DecisionRationale{Factors: scored}
	for _, factor := range scored {
		rationale.RiskScore += factor.Weight * classScore(factor.Class)
		switch factor.Class {
		case domain.FactorPositive:
			rationale.Strengths = append(rationale.Strengths, factor.Detail)
		case domain.FactorNegative:
			rationale.Weaknesses = append(rationale.Weaknesses, factor.Detail)
		}
	}
	rationale.Weaknesses = append(rationale.Weaknesses, eligibility.Warnings...)
	rationale.RiskBand = riskBand(rationale.RiskScore)
	return rationale
}

func dscrFactor(dscr *float64) domain.RationaleFactor {
	factor := domain.RationaleFactor{Name: "dscr", Weight: weightDSCR}
	switch {
	case dscr == nil:
		factor.Class = domain.FactorNegative
		factor.Detail = "DSCR not provided"
	case *dscr >= 1.25:
		factor.Class = domain.FactorPositive
		factor.Detail = fmt.Sprintf("strong DSCR of %.2f", *dscr)
	case *dscr >= 1.0:
		factor.Class = domain.FactorNeutral
		factor.Detail = fmt.Sprintf("adequate DSCR of %.2f", *dscr)
	default:
		factor.Class = domain.FactorNegative
		factor.Detail = fmt.Sprintf("DSCR of %.2f below break-even", *dscr)
	}
	return factor
}

func creditFactor(score *int) domain.RationaleFactor {
	factor := domain.RationaleFactor{Name: "credit", Weight: weightCredit}
	switch {
	case score == nil:
		factor.Class = domain.FactorNegative
		factor.Detail = "credit score not provided"
	case *score >= 740:
		factor.Class = domain.FactorPositive
		factor.Detail = fmt.Sprintf("excellent credit score of %d", *score)
	case *score >= 680:
		factor.Class = domain.FactorNeutral
		factor.Detail = fmt.Sprintf("acceptable credit score of %d", *score)
	default:
		factor.Class = domain.FactorNegative
		factor.Detail = fmt.Sprintf("credit score of %d below program comfort", *score)
	}
	return factor
}

func ltvFactor(ltv *float64) domain.RationaleFactor {
	factor := domain.RationaleFactor{Name: "ltv", Weight: weightLTV}
	switch {
	case ltv == nil:
		factor.Class = domain.FactorNegative
		factor.Detail = "LTV not determinable"
	case *ltv <= 65:
		factor.Class = domain.FactorPositive
		factor.Detail = fmt.Sprintf("conservative LTV of %.1f%%", *ltv)
	case *ltv <= 75:
		factor.Class = domain.FactorNeutral
		factor.Detail = fmt.Sprintf("moderate LTV of %.1f%%", *ltv)
	default:
		factor.Class = domain.FactorNegative
		factor.Detail = fmt.Sprintf("elevated LTV of %.1f%%", *ltv)
	}
	return factor
}

func classScore(class domain.FactorClass) float64 {
	switch class {
	case domain.FactorPositive:
		return scorePositive
	case domain.FactorNegative:
		return scoreNegative
	default:
		return scoreNeutral
	}
}

func riskBand(score float64) domain.RiskBand {
	switch {
	case score < bandLowMax:
		return domain.RiskLow
	case score < bandModerateMax:
		return domain.RiskModerate
	case score < bandHighMax:
		return domain.RiskHigh
	default:
		return domain.RiskVeryHigh
	}
}
