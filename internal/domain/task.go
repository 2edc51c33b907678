package domain

import "time"

// TaskStatus tracks a task through its lifecycle. BLOCKED holds exactly when
// BlockedBy is non-empty.
type TaskStatus string

const (
	TaskPending    TaskStatus = "PENDING"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskCancelled  TaskStatus = "CANCELLED"
	TaskBlocked    TaskStatus = "BLOCKED"
)

// TaskPriority orders work queues.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "LOW"
	PriorityMedium TaskPriority = "MEDIUM"
	PriorityHigh   TaskPriority = "HIGH"
	PriorityUrgent TaskPriority = "URGENT"
)

// TaskTemplate is a static definition instantiated per application when its
// trigger milestone is entered. DependsOn names other template codes.
type TaskTemplate struct {
	Code             string        `json:"code" yaml:"code"`
	Title            string        `json:"title" yaml:"title"`
	TriggerMilestone MilestoneCode `json:"triggerMilestone" yaml:"triggerMilestone"`
	AssignedRole     string        `json:"assignedRole" yaml:"assignedRole"`
	Priority         TaskPriority  `json:"priority" yaml:"priority"`
	SLAHours         int           `json:"slaHours" yaml:"slaHours"`
	DependsOn        []string      `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`
}

// Task is a per-application instance of a template. BlockedBy is the subset
// of DependsOn not yet completed for this application.
type Task struct {
	ID            string       `json:"id"`
	ApplicationID string       `json:"applicationId"`
	Code          string       `json:"code"`
	Title         string       `json:"title"`
	Status        TaskStatus   `json:"status"`
	Priority      TaskPriority `json:"priority"`
	AssignedRole  string       `json:"assignedRole"`
	AssigneeID    string       `json:"assigneeId,omitempty"`
	DependsOn     []string     `json:"dependsOn,omitempty"`
	BlockedBy     []string     `json:"blockedBy,omitempty"`
	DueAt         *time.Time   `json:"dueAt,omitempty"`
	SLABreached   bool         `json:"slaBreached"`
	CreatedAt     time.Time    `json:"createdAt"`
	StartedAt     *time.Time   `json:"startedAt,omitempty"`
	CompletedAt   *time.Time   `json:"completedAt,omitempty"`
}

// Active reports whether the task still counts toward workload and SLAs.
func (t Task) Active() bool {
	return t.Status != TaskCompleted && t.Status != TaskCancelled
}
