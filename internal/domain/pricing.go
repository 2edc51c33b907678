package domain

// RiskTier classifies a loan for base-rate selection.
type RiskTier string

const (
	TierExcellent  RiskTier = "EXCELLENT"
	TierGood       RiskTier = "GOOD"
	TierAcceptable RiskTier = "ACCEPTABLE"
	TierMarginal   RiskTier = "MARGINAL"
	TierHighRisk   RiskTier = "HIGH_RISK"
)

// PricingInput is what the rate-card lookup needs.
type PricingInput struct {
	DSCR            float64 `json:"dscr"`
	LTV             float64 `json:"ltv"`
	CreditScore     int     `json:"creditScore"`
	PropertyType    string  `json:"propertyType"`
	LoanAmountCents int64   `json:"loanAmountCents"`
	IsCashOut       bool    `json:"isCashOut"`
}

// PricingAdjustment is one basis-point adjustment with its reason.
type PricingAdjustment struct {
	Factor        string `json:"factor"`
	AdjustmentBps int    `json:"adjustmentBps"`
	Reason        string `json:"reason"`
}

// PricingResult is the rate-card output attached to a decision.
type PricingResult struct {
	BaseRate             float64             `json:"baseRate"`
	Adjustments          []PricingAdjustment `json:"adjustments"`
	TotalAdjustmentBps   int                 `json:"totalAdjustmentBps"`
	FinalRate            float64             `json:"finalRate"`
	RiskTier             RiskTier            `json:"riskTier"`
	Eligible             bool                `json:"eligible"`
	IneligibilityReasons []string            `json:"ineligibilityReasons,omitempty"`
}
