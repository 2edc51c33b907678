package domain

import "time"

// DecisionType distinguishes the stage a decision was rendered at.
type DecisionType string

const (
	DecisionPreApproval   DecisionType = "PRE_APPROVAL"
	DecisionUnderwriting  DecisionType = "UNDERWRITING"
	DecisionFinalApproval DecisionType = "FINAL_APPROVAL"
)

// DecisionOutcome is the credit decision itself.
type DecisionOutcome string

const (
	OutcomeApproved  DecisionOutcome = "APPROVED"
	OutcomeDeclined  DecisionOutcome = "DECLINED"
	OutcomeSuspended DecisionOutcome = "SUSPENDED"
	OutcomeCounter   DecisionOutcome = "COUNTER"
)

// EligibilityResult summarizes a rule evaluation for decisioning.
type EligibilityResult struct {
	EvaluationID     string   `json:"evaluationId"`
	Eligible         bool     `json:"eligible"`
	BlockingFailures int      `json:"blockingFailures"`
	Failures         []string `json:"failures,omitempty"`
	Warnings         []string `json:"warnings,omitempty"`
}

// LoanFactors carries the metrics the rationale scorer needs. Pointers mark
// data that may be missing; missing critical inputs suspend the decision.
type LoanFactors struct {
	DSCR               *float64 `json:"dscr,omitempty"`
	LTV                *float64 `json:"ltv,omitempty"`
	CreditScore        *int     `json:"creditScore,omitempty"`
	ReservesMonths     *int     `json:"reservesMonths,omitempty"`
	PropertyValueCents *int64   `json:"propertyValueCents,omitempty"`
}

// FactorClass classifies one rationale factor.
type FactorClass string

const (
	FactorPositive FactorClass = "POSITIVE"
	FactorNeutral  FactorClass = "NEUTRAL"
	FactorNegative FactorClass = "NEGATIVE"
)

// RationaleFactor is a scored component of the decision rationale.
type RationaleFactor struct {
	Name   string      `json:"name"`
	Class  FactorClass `json:"class"`
	Weight float64     `json:"weight"`
	Detail string      `json:"detail"`
}

// RiskBand maps a weighted risk score to a coarse band.
type RiskBand string

const (
	RiskLow      RiskBand = "LOW"
	RiskModerate RiskBand = "MODERATE"
	RiskHigh     RiskBand = "HIGH"
	RiskVeryHigh RiskBand = "VERY_HIGH"
)

// DecisionRationale explains a decision in underwriter terms.
type DecisionRationale struct {
	Strengths  []string          `json:"strengths"`
	Weaknesses []string          `json:"weaknesses"`
	Factors    []RationaleFactor `json:"factors"`
	RiskScore  float64           `json:"riskScore"`
	RiskBand   RiskBand          `json:"riskBand"`
}

// Decision is a versioned, supersede-able underwriting decision. Exactly one
// decision per application has IsLatest=true (except transiently during
// supersession, which runs under the per-application lock).
type Decision struct {
	ID            string            `json:"id"`
	ApplicationID string            `json:"applicationId"`
	Type          DecisionType      `json:"type"`
	Result        DecisionOutcome   `json:"result"`
	Version       int               `json:"version"`
	IsLatest      bool              `json:"isLatest"`
	SupersededBy  string            `json:"supersededBy,omitempty"`
	Eligibility   EligibilityResult `json:"eligibility"`
	Pricing       *PricingResult    `json:"pricing,omitempty"`
	Conditions    []Condition       `json:"conditions,omitempty"`
	Rationale     DecisionRationale `json:"rationale"`
	ExpiresAt     *time.Time        `json:"expiresAt,omitempty"`
	DecidedAt     time.Time         `json:"decidedAt"`
	ReviewedBy    string            `json:"reviewedBy,omitempty"`
	ReviewedAt    *time.Time        `json:"reviewedAt,omitempty"`
}
