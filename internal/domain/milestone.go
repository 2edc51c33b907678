package domain

import "time"

// MilestoneCode names a stage of the origination pipeline.
type MilestoneCode string

const (
	MilestoneStarted               MilestoneCode = "STARTED"
	MilestoneApplication           MilestoneCode = "APPLICATION"
	MilestonePreApproved           MilestoneCode = "PRE_APPROVED"
	MilestoneProcessing            MilestoneCode = "PROCESSING"
	MilestoneSubmitted             MilestoneCode = "SUBMITTED"
	MilestoneConditionallyApproved MilestoneCode = "CONDITIONALLY_APPROVED"
	MilestoneApproved              MilestoneCode = "APPROVED"
	MilestoneDocsOut               MilestoneCode = "DOCS_OUT"
	MilestoneDocsBack              MilestoneCode = "DOCS_BACK"
	MilestoneClearToClose          MilestoneCode = "CLEAR_TO_CLOSE"
	MilestoneClosing               MilestoneCode = "CLOSING"
	MilestoneFunded                MilestoneCode = "FUNDED"

	// Terminal exception states, reachable from any milestone.
	MilestoneSuspended MilestoneCode = "SUSPENDED"
	MilestoneWithdrawn MilestoneCode = "WITHDRAWN"
	MilestoneDenied    MilestoneCode = "DENIED"
)

// PrerequisiteKind selects how a milestone prerequisite is checked.
type PrerequisiteKind string

const (
	// PrereqMilestone: the referenced milestone has been entered at least once.
	PrereqMilestone PrerequisiteKind = "MILESTONE"
	// PrereqConditionCategory: zero open conditions in the referenced category.
	PrereqConditionCategory PrerequisiteKind = "CONDITION_CATEGORY"
	// PrereqTask: the referenced task is COMPLETED.
	PrereqTask PrerequisiteKind = "TASK"
	// PrereqDataField: the referenced data flag is set, per the data checker.
	PrereqDataField PrerequisiteKind = "DATA_FIELD"
	// PrereqDecision: a decision of the referenced type exists.
	PrereqDecision PrerequisiteKind = "DECISION"
)

// MilestonePrerequisite is one typed gate on entering a milestone. Ref is
// interpreted per Kind: a milestone code, condition category, task code,
// data field code, or decision type.
type MilestonePrerequisite struct {
	Kind PrerequisiteKind `json:"kind" yaml:"kind"`
	Ref  string           `json:"ref" yaml:"ref"`
}

// Milestone is a static pipeline stage definition. Definitions never change
// at runtime; per-application progress lives in MilestoneHistory.
type Milestone struct {
	Code          MilestoneCode           `json:"code" yaml:"code"`
	Order         int                     `json:"order" yaml:"order"`
	Terminal      bool                    `json:"terminal" yaml:"terminal"`
	AutoAdvance   bool                    `json:"autoAdvance" yaml:"autoAdvance"`
	SLAHours      int                     `json:"slaHours" yaml:"slaHours"`
	Prerequisites []MilestonePrerequisite `json:"prerequisites" yaml:"prerequisites"`
}

// ActorKind distinguishes system-triggered from user-triggered transitions.
type ActorKind string

const (
	ActorSystem ActorKind = "SYSTEM"
	ActorUser   ActorKind = "USER"
)

// MilestoneHistory is one row per (application, milestone) entry. The row
// with a nil ExitedAt is the application's current milestone; at most one
// such row exists per application at any time.
type MilestoneHistory struct {
	ID            string        `json:"id"`
	ApplicationID string        `json:"applicationId"`
	Milestone     MilestoneCode `json:"milestone"`
	EnteredAt     time.Time     `json:"enteredAt"`
	ExitedAt      *time.Time    `json:"exitedAt,omitempty"`
	DurationHours float64       `json:"durationHours,omitempty"`
	TriggeredBy   ActorKind     `json:"triggeredBy"`
	Actor         string        `json:"actor,omitempty"`
}

// SLAStatus summarizes schedule health for a workflow.
type SLAStatus string

const (
	SLAOnTrack  SLAStatus = "ON_TRACK"
	SLAAtRisk   SLAStatus = "AT_RISK"
	SLABreached SLAStatus = "BREACHED"
)

// WorkflowState is the derived view of where an application stands.
type WorkflowState struct {
	ApplicationID    string         `json:"applicationId"`
	CurrentMilestone MilestoneCode  `json:"currentMilestone"`
	EnteredAt        time.Time      `json:"enteredAt"`
	HoursInMilestone float64        `json:"hoursInMilestone"`
	SLAStatus        SLAStatus      `json:"slaStatus"`
	NextMilestone    *MilestoneCode `json:"nextMilestone,omitempty"`
	OpenTasks        []Task         `json:"openTasks"`
	CompletedTasks   []Task         `json:"completedTasks"`
	Blockers         []string       `json:"blockers"`
}
