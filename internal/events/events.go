package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Task lifecycle event types.
const (
	TaskGenerated = "task.generated"
	TaskCompleted = "task.completed"
	TaskSkipped   = "task.skipped"
	TaskDeleted   = "task.deleted"
)

// TaskEvent records a committed change to one or more tasks of a user.
type TaskEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is one of the task.* constants
	Type string `json:"type"`

	UserID  uuid.UUID   `json:"user_id"`
	TaskIDs []uuid.UUID `json:"task_ids"`

	// Payload contains type-specific details serialized as JSON
	Payload json.RawMessage `json:"payload,omitempty"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *TaskEvent) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// NewTaskEvent creates a TaskEvent. A nil payload leaves Payload empty.
func NewTaskEvent(eventType string, userID uuid.UUID, taskIDs []uuid.UUID, payload interface{}) (*TaskEvent, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}

	return &TaskEvent{
		ID:        uuid.New(),
		Type:      eventType,
		UserID:    userID,
		TaskIDs:   taskIDs,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// GeneratedPayload is the payload of a task.generated event.
type GeneratedPayload struct {
	StrategyID uuid.UUID `json:"strategy_id"`
	Group      string    `json:"group"`
	FirstCycle int       `json:"first_cycle"`
	LastCycle  int       `json:"last_cycle"`
	Count      int       `json:"count"`
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *TaskEvent) error
}

// EventEmitter defines an interface for components that can emit events.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *TaskEvent) error
}
