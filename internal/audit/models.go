package audit

import "time"

// EventCategory classifies audit events by their primary purpose. This
// enables different retention policies and sink routing.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance: rule
	// evaluations, decisions, condition lifecycle. Long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for operational visibility:
	// milestone advances, task completions, SLA breaches.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category      EventCategory  `json:"category"`
	Timestamp     time.Time      `json:"timestamp"`
	ApplicationID string         `json:"applicationId"`
	Action        Action         `json:"action"`
	Actor         string         `json:"actor,omitempty"`
	Outcome       string         `json:"outcome,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Detail        map[string]any `json:"detail,omitempty"`
}

// Action names an auditable event.
type Action string

const (
	// Rules events
	ActionRulesEvaluated       Action = "rules_evaluated"
	ActionRuleVersionActivated Action = "rule_version_activated"

	// Condition events
	ActionConditionCreated  Action = "condition_created"
	ActionConditionCleared  Action = "condition_cleared"
	ActionConditionWaived   Action = "condition_waived"
	ActionConditionReopened Action = "condition_reopened"

	// Workflow events
	ActionMilestoneAdvanced        Action = "milestone_advanced"
	ActionMilestoneAdvanceRejected Action = "milestone_advance_rejected"
	ActionTaskCompleted            Action = "task_completed"
	ActionSLABreached              Action = "sla_breached"

	// Decision events
	ActionDecisionCreated    Action = "decision_created"
	ActionDecisionSuperseded Action = "decision_superseded"
	ActionDecisionReviewed   Action = "decision_reviewed"
)

// actionCategories maps each action to its category. Compliance events need
// tamper-evident storage; operations events can be sampled.
var actionCategories = map[Action]EventCategory{
	ActionRulesEvaluated:       CategoryCompliance,
	ActionRuleVersionActivated: CategoryCompliance,
	ActionConditionCreated:     CategoryCompliance,
	ActionConditionCleared:     CategoryCompliance,
	ActionConditionWaived:      CategoryCompliance,
	ActionConditionReopened:    CategoryCompliance,
	ActionDecisionCreated:      CategoryCompliance,
	ActionDecisionSuperseded:   CategoryCompliance,
	ActionDecisionReviewed:     CategoryCompliance,

	ActionMilestoneAdvanced:        CategoryOperations,
	ActionMilestoneAdvanceRejected: CategoryOperations,
	ActionTaskCompleted:            CategoryOperations,
	ActionSLABreached:              CategoryOperations,
}

// Category returns the EventCategory for this action. Unknown actions
// default to CategoryOperations.
func (a Action) Category() EventCategory {
	if cat, ok := actionCategories[a]; ok {
		return cat
	}
	return CategoryOperations
}
