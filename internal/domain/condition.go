package domain

import "time"

// ConditionCategory orders conditions by the stage they must clear before.
type ConditionCategory string

const (
	// CategoryPTD is Prior To Documents.
	CategoryPTD ConditionCategory = "PTD"
	// CategoryPTC is Prior To Close.
	CategoryPTC ConditionCategory = "PTC"
	// CategoryPTF is Prior To Funding.
	CategoryPTF ConditionCategory = "PTF"
	// CategoryPOC is Post-Closing.
	CategoryPOC ConditionCategory = "POC"
)

// ConditionStatus tracks the lifecycle of a condition.
type ConditionStatus string

const (
	ConditionOpen     ConditionStatus = "OPEN"
	ConditionWaived   ConditionStatus = "WAIVED"
	ConditionCleared  ConditionStatus = "CLEARED"
	ConditionReopened ConditionStatus = "REOPENED"
)

// ConditionSource identifies who raised the condition.
type ConditionSource string

const (
	SourceSystem      ConditionSource = "SYSTEM"
	SourceUnderwriter ConditionSource = "UW"
	SourceInvestor    ConditionSource = "INVESTOR"
)

// Condition is a follow-up requirement on an application. It is created by a
// failing rule or manually; cleared when its auto-clear predicate holds or a
// human clears it; reopened if the underlying data regresses after clearing.
type Condition struct {
	ID            string            `json:"id"`
	ApplicationID string            `json:"applicationId"`
	Code          string            `json:"code"`
	Category      ConditionCategory `json:"category"`
	Description   string            `json:"description"`
	Status        ConditionStatus   `json:"status"`
	Source        ConditionSource   `json:"source"`
	AutoClear     *RuleCondition    `json:"autoClear,omitempty"`
	RuleID        string            `json:"ruleId,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	ClearedAt     *time.Time        `json:"clearedAt,omitempty"`
	ClearedBy     string            `json:"clearedBy,omitempty"`
}

// IsOpen reports whether the condition still blocks progress. REOPENED counts
// as open; WAIVED and CLEARED do not.
func (c Condition) IsOpen() bool {
	return c.Status == ConditionOpen || c.Status == ConditionReopened
}
