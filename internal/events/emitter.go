package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Errors returned by InMemoryEventEmitter.EmitEvent.
var (
	ErrNilEvent     = errors.New("event is nil")
	ErrHandlerPanic = errors.New("event handler panicked")
)

// InMemoryEventEmitter hands each event to the handlers subscribed to its
// type, in registration order, on the caller's goroutine.
type InMemoryEventEmitter struct {
	mu            sync.RWMutex
	subscriptions []subscription
	logger        *slog.Logger
}

type subscription struct {
	handler EventHandler
	// types is empty for handlers that receive every event.
	types map[string]bool
}

func (s subscription) wants(eventType string) bool {
	return len(s.types) == 0 || s.types[eventType]
}

var _ EventEmitter = (*InMemoryEventEmitter)(nil)

// NewInMemoryEventEmitter creates an emitter with no handlers.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryEventEmitter{
		logger: logger.With("component", "event_emitter"),
	}
}

// RegisterHandler subscribes handler to the given event types, or to every
// event when no type is named.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler, eventTypes ...string) {
	sub := subscription{handler: handler}
	if len(eventTypes) > 0 {
		sub.types = make(map[string]bool, len(eventTypes))
		for _, t := range eventTypes {
			sub.types[t] = true
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscriptions = append(e.subscriptions, sub)
	e.logger.Debug("registered event handler",
		"handler_count", len(e.subscriptions),
		"event_types", eventTypes)
}

// EmitEvent delivers event to every subscribed handler. A failing or
// panicking handler does not stop delivery to the rest; their errors are
// joined into the result.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *TaskEvent) error {
	if event == nil {
		return ErrNilEvent
	}

	e.mu.RLock()
	subs := make([]subscription, len(e.subscriptions))
	copy(subs, e.subscriptions)
	e.mu.RUnlock()

	var errs []error
	delivered := 0
	for i, sub := range subs {
		if !sub.wants(event.Type) {
			continue
		}
		delivered++
		if err := e.deliver(ctx, sub.handler, event); err != nil {
			e.logger.Error("handler failed to process event",
				"error", err,
				"handler_index", i,
				"event_id", event.ID,
				"event_type", event.Type)
			errs = append(errs, err)
		}
	}

	e.logger.Debug("event emitted",
		"event_id", event.ID,
		"event_type", event.Type,
		"delivered", delivered)
	return errors.Join(errs...)
}

func (e *InMemoryEventEmitter) deliver(ctx context.Context, handler EventHandler, event *TaskEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return handler.HandleEvent(ctx, event)
}

// NotificationLogHandler stands in for the notification dispatcher: it
// records every event it receives at info level.
type NotificationLogHandler struct {
	logger *slog.Logger
}

// NewNotificationLogHandler creates a NotificationLogHandler.
func NewNotificationLogHandler(logger *slog.Logger) *NotificationLogHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationLogHandler{logger: logger.With("component", "notification_dispatcher")}
}

func (h *NotificationLogHandler) HandleEvent(ctx context.Context, event *TaskEvent) error {
	h.logger.InfoContext(ctx, "task event",
		"event_id", event.ID,
		"event_type", event.Type,
		"user_id", event.UserID,
		"task_count", len(event.TaskIDs))
	return nil
}
