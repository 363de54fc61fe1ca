package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusSkipped   TaskStatus = "skipped"
)

// taskTransitions lists the statuses each status may move to. Statuses that
// are absent are terminal.
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusPending: {TaskStatusCompleted, TaskStatusSkipped},
}

// IsValid reports whether s is a known status.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusCompleted, TaskStatusSkipped:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether a task in status s may move to next.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	for _, allowed := range taskTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s TaskStatus) IsTerminal() bool {
	return len(taskTransitions[s]) == 0
}

// Task is one scheduled transfer between two accounts.
type Task struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	StrategyID    uuid.UUID       `json:"strategy_id"`
	GroupName     string          `json:"group_name"`
	Cycle         int             `json:"cycle"`
	AnchorDate    time.Time       `json:"anchor_date"`
	ExecDate      time.Time       `json:"exec_date"`
	ExecTime      TimeOfDay       `json:"exec_time"`
	FromAccountID uuid.UUID       `json:"from_account_id"`
	ToAccountID   uuid.UUID       `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Memo          string          `json:"memo,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	Status        TaskStatus      `json:"status"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Validate checks the structural invariants of a task.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}
	if t.UserID == uuid.Nil {
		return NewValidationError("user_id", "cannot be empty", ErrInvalidID)
	}
	if t.Cycle < 1 {
		return NewValidationError("cycle", "must be positive", ErrValidation)
	}
	if t.FromAccountID == uuid.Nil || t.ToAccountID == uuid.Nil {
		return NewValidationError("account_id", "cannot be empty", ErrInvalidID)
	}
	if t.FromAccountID == t.ToAccountID {
		return NewValidationError("to_account_id", "must differ from from_account_id", ErrValidation)
	}
	if t.ExecDate.IsZero() {
		return NewValidationError("exec_date", "cannot be empty", ErrValidation)
	}
	if !t.ExecTime.Valid() {
		return NewValidationError("exec_time", "must be a time of day", ErrValidation)
	}
	if t.Amount.IsNegative() {
		return NewValidationError("amount", "must not be negative", ErrValidation)
	}
	if !t.Status.IsValid() {
		return NewValidationError("status", "is not a known status", ErrValidation)
	}
	if t.Status == TaskStatusCompleted && t.CompletedAt == nil {
		return NewValidationError("completed_at", "is required for completed tasks", ErrValidation)
	}
	if t.Status != TaskStatusCompleted && t.CompletedAt != nil {
		return NewValidationError("completed_at", "is only set on completed tasks", ErrValidation)
	}
	return nil
}

// IsPending reports whether the task still awaits action.
func (t *Task) IsPending() bool {
	return t.Status == TaskStatusPending
}

// Complete moves a pending task to completed, stamping completedAt and
// replacing notes when given.
func (t *Task) Complete(notes string, completedAt time.Time) error {
	if !t.Status.CanTransitionTo(TaskStatusCompleted) {
		return &TransitionError{From: t.Status, To: TaskStatusCompleted}
	}
	at := completedAt.UTC()
	t.Status = TaskStatusCompleted
	t.CompletedAt = &at
	if notes != "" {
		t.Notes = notes
	}
	return nil
}

// Skip moves a pending task to skipped.
func (t *Task) Skip() error {
	if !t.Status.CanTransitionTo(TaskStatusSkipped) {
		return &TransitionError{From: t.Status, To: TaskStatusSkipped}
	}
	t.Status = TaskStatusSkipped
	return nil
}

// ActivityDate is the date a task last changed: its completion date, or its
// scheduled date when it was never completed.
func (t *Task) ActivityDate() time.Time {
	if t.CompletedAt != nil {
		return DateOf(*t.CompletedAt)
	}
	return t.ExecDate
}
