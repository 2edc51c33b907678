package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"lendgate/internal/domain"
)

func TestPriceTopTier(t *testing.T) {
	engine := NewEngine()

	result := engine.Price(domain.PricingInput{
		DSCR:            1.35,
		LTV:             55,
		CreditScore:     780,
		PropertyType:    "SFR",
		LoanAmountCents: 450_000_00,
	})

	require.True(t, result.Eligible)
	require.Equal(t, domain.TierExcellent, result.RiskTier)
	require.Equal(t, 6.625, result.BaseRate)
	require.Equal(t, -50, result.TotalAdjustmentBps, "strong DSCR and low LTV both credit")
	require.InDelta(t, 6.125, result.FinalRate, 0.0001)
}

func TestPriceStackedAdjustments(t *testing.T) {
	engine := NewEngine()

	result := engine.Price(domain.PricingInput{
		DSCR:            0.95,
		LTV:             78,
		CreditScore:     665,
		PropertyType:    "CONDO",
		LoanAmountCents: 300_000_00,
		IsCashOut:       true,
	})

	require.True(t, result.Eligible)
	require.Len(t, result.Adjustments, 5)
	require.Equal(t, 50+37+50+25+50, result.TotalAdjustmentBps)
	require.InDelta(t, result.BaseRate+2.12, result.FinalRate, 0.0001)
}

func TestPriceIneligibleStillExplains(t *testing.T) {
	engine := NewEngine()

	result := engine.Price(domain.PricingInput{
		DSCR:            0.60,
		LTV:             85,
		CreditScore:     590,
		LoanAmountCents: 50_000_00,
	})

	require.False(t, result.Eligible)
	require.Len(t, result.IneligibilityReasons, 4)
	require.Equal(t, domain.TierHighRisk, result.RiskTier)
	require.Greater(t, result.FinalRate, 0.0, "rate is still quoted for counteroffer math")
}

func TestRiskTierBoundaries(t *testing.T) {
	tests := []struct {
		name  string
		input domain.PricingInput
		want  domain.RiskTier
	}{
		{"all top buckets", domain.PricingInput{DSCR: 1.25, LTV: 60, CreditScore: 760}, domain.TierExcellent},
		{"middle of the card", domain.PricingInput{DSCR: 1.12, LTV: 72, CreditScore: 700}, domain.TierAcceptable},
		{"one weak leg drops a tier", domain.PricingInput{DSCR: 1.25, LTV: 60, CreditScore: 640}, domain.TierGood},
		{"everything weak", domain.PricingInput{DSCR: 0.80, LTV: 85, CreditScore: 600}, domain.TierHighRisk},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, riskTier(tc.input))
		})
	}
}
