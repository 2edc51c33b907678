package domain

import "time"

// ConditionType discriminates the rule condition tree variants. The set is
// closed: the evaluator matches exhaustively and rejects anything else.
type ConditionType string

const (
	ConditionSimple   ConditionType = "SIMPLE"
	ConditionCompound ConditionType = "COMPOUND"
	ConditionCustom   ConditionType = "CUSTOM"
)

// CompoundLogic joins the children of a compound condition.
type CompoundLogic string

const (
	LogicAnd CompoundLogic = "AND"
	LogicOr  CompoundLogic = "OR"
)

// Operator names a comparison applied by a simple condition.
type Operator string

const (
	OpEq          Operator = "eq"
	OpNe          Operator = "ne"
	OpGt          Operator = "gt"
	OpGte         Operator = "gte"
	OpLt          Operator = "lt"
	OpLte         Operator = "lte"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
	OpBetween     Operator = "between"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpExists      Operator = "exists"
	OpNotExists   Operator = "not_exists"
	OpRegex       Operator = "regex"
)

// RuleCondition is a recursive predicate tree. Exactly one variant's fields
// are meaningful, selected by Type:
//   - SIMPLE:   Field (dot-path into the evaluation snapshot), Operator, Value
//   - COMPOUND: Logic, Children (an empty child list is vacuously true)
//   - CUSTOM:   Function (must be registered with the evaluator)
type RuleCondition struct {
	Type     ConditionType   `json:"type" yaml:"type"`
	Field    string          `json:"field,omitempty" yaml:"field,omitempty"`
	Operator Operator        `json:"operator,omitempty" yaml:"operator,omitempty"`
	Value    any             `json:"value,omitempty" yaml:"value,omitempty"`
	Logic    CompoundLogic   `json:"logic,omitempty" yaml:"logic,omitempty"`
	Children []RuleCondition `json:"children,omitempty" yaml:"children,omitempty"`
	Function string          `json:"function,omitempty" yaml:"function,omitempty"`
}

// RuleResultKind is the outcome of evaluating one rule.
type RuleResultKind string

const (
	RulePass RuleResultKind = "PASS"
	RuleFail RuleResultKind = "FAIL"
	RuleWarn RuleResultKind = "WARN"
	RuleSkip RuleResultKind = "SKIP"
)

// RuleSeverity drives how a failing rule affects the aggregate outcome.
type RuleSeverity string

const (
	SeverityBlocking RuleSeverity = "BLOCKING"
	SeverityWarning  RuleSeverity = "WARNING"
	SeverityInfo     RuleSeverity = "INFO"
)

// ConditionTemplate describes the follow-up condition a failing rule creates.
type ConditionTemplate struct {
	Code        string            `json:"code" yaml:"code"`
	Category    ConditionCategory `json:"category" yaml:"category"`
	Description string            `json:"description" yaml:"description"`
	AutoClear   *RuleCondition    `json:"autoClear,omitempty" yaml:"autoClear,omitempty"`
}

// RuleOutcome describes what a pass or a fail of the rule yields.
type RuleOutcome struct {
	Result          RuleResultKind     `json:"result" yaml:"result"`
	CreateCondition *ConditionTemplate `json:"createCondition,omitempty" yaml:"createCondition,omitempty"`
}

// Rule is immutable once published; editing produces a new RuleVersion.
type Rule struct {
	ID        string        `json:"id" yaml:"id"`
	Name      string        `json:"name" yaml:"name"`
	Category  string        `json:"category" yaml:"category"`
	Condition RuleCondition `json:"condition" yaml:"condition"`
	OnPass    RuleOutcome   `json:"onPass" yaml:"onPass"`
	OnFail    RuleOutcome   `json:"onFail" yaml:"onFail"`
	Severity  RuleSeverity  `json:"severity" yaml:"severity"`
	Active    bool          `json:"active" yaml:"active"`
}

// RuleVersion is an ordered, versioned collection of rules for one rule set.
// At most one version per rule-set name may be active at evaluation time.
type RuleVersion struct {
	ID            string     `json:"id"`
	RuleSet       string     `json:"ruleSet"`
	Version       string     `json:"version"`
	Rules         []Rule     `json:"rules"`
	EffectiveFrom time.Time  `json:"effectiveFrom"`
	EffectiveTo   *time.Time `json:"effectiveTo,omitempty"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// DecisionResult is the aggregate outcome of a rule evaluation.
type DecisionResult string

const (
	ResultApproved     DecisionResult = "APPROVED"
	ResultDenied       DecisionResult = "DENIED"
	ResultException    DecisionResult = "EXCEPTION"
	ResultManualReview DecisionResult = "MANUAL_REVIEW"
)

// RuleEvaluationResult is the audit row for a single rule.
type RuleEvaluationResult struct {
	RuleID      string         `json:"ruleId"`
	RuleName    string         `json:"ruleName"`
	Category    string         `json:"category"`
	Result      RuleResultKind `json:"result"`
	Severity    RuleSeverity   `json:"severity"`
	Message     string         `json:"message,omitempty"`
	SkipReason  string         `json:"skipReason,omitempty"`
	ConditionID string         `json:"conditionId,omitempty"`
}

// RuleEvaluation is the append-only audit record of one engine run. It is
// never mutated after creation.
type RuleEvaluation struct {
	ID            string                 `json:"id"`
	ApplicationID string                 `json:"applicationId"`
	RuleSet       string                 `json:"ruleSet"`
	Version       string                 `json:"version"`
	Snapshot      map[string]any         `json:"snapshot"`
	Results       []RuleEvaluationResult `json:"results"`
	RulesPassed   int                    `json:"rulesPassed"`
	RulesFailed   int                    `json:"rulesFailed"`
	RulesWarned   int                    `json:"rulesWarned"`
	RulesSkipped  int                    `json:"rulesSkipped"`
	Overall       DecisionResult         `json:"overall"`
	Duration      time.Duration          `json:"duration"`
	EvaluatedAt   time.Time              `json:"evaluatedAt"`
}

// EvalContext is the loan data snapshot a rule set is scored against. Data is
// a flat-ish map addressed by dot-paths (e.g. "dscr.ratio").
type EvalContext struct {
	ApplicationID string
	Data          map[string]any
}
