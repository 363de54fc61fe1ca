package events

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent(t *testing.T) *TaskEvent {
	t.Helper()
	event, err := NewTaskEvent(TaskCompleted, uuid.New(), []uuid.UUID{uuid.New()}, nil)
	require.NoError(t, err)
	return event
}

func TestInMemoryEventEmitter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("emit event with no handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		assert.NoError(t, emitter.EmitEvent(context.Background(), testEvent(t)))
	})

	t.Run("emit event with successful handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		handler1 := &MockEventHandler{}
		handler2 := &MockEventHandler{}
		emitter.RegisterHandler(handler1)
		emitter.RegisterHandler(handler2)

		event := testEvent(t)
		assert.NoError(t, emitter.EmitEvent(context.Background(), event))

		assert.Equal(t, 1, handler1.HandledCount)
		assert.Equal(t, 1, handler2.HandledCount)
		assert.Equal(t, event, handler1.LastEvent)
		assert.Equal(t, event, handler2.LastEvent)
	})

	t.Run("emit event with failing handler", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		failingHandler := &MockEventHandler{HandlerError: errors.New("handler error")}
		successHandler := &MockEventHandler{}
		emitter.RegisterHandler(failingHandler)
		emitter.RegisterHandler(successHandler)

		err := emitter.EmitEvent(context.Background(), testEvent(t))
		assert.EqualError(t, err, "handler error")

		// later handlers still run
		assert.Equal(t, 1, successHandler.HandledCount)
		assert.Equal(t, 1, failingHandler.HandledCount)
	})
}

type panickingHandler struct{}

func (panickingHandler) HandleEvent(context.Context, *TaskEvent) error {
	panic("notifier exploded")
}

func TestInMemoryEventEmitterSubscriptions(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	emitter := NewInMemoryEventEmitter(logger)

	all := &MockEventHandler{}
	completions := &MockEventHandler{}
	removals := &MockEventHandler{}
	emitter.RegisterHandler(all)
	emitter.RegisterHandler(completions, TaskCompleted, TaskSkipped)
	emitter.RegisterHandler(removals, TaskDeleted)

	for _, eventType := range []string{TaskGenerated, TaskCompleted, TaskSkipped} {
		event, err := NewTaskEvent(eventType, uuid.New(), nil, nil)
		require.NoError(t, err)
		require.NoError(t, emitter.EmitEvent(context.Background(), event))
	}

	assert.Equal(t, 3, all.HandledCount)
	assert.Equal(t, 2, completions.HandledCount)
	assert.Equal(t, TaskSkipped, completions.LastEvent.Type)
	assert.Zero(t, removals.HandledCount)
}

func TestInMemoryEventEmitterErrors(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("nil event", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		handler := &MockEventHandler{}
		emitter.RegisterHandler(handler)

		assert.ErrorIs(t, emitter.EmitEvent(context.Background(), nil), ErrNilEvent)
		assert.Zero(t, handler.HandledCount)
	})

	t.Run("every failure is reported", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		first := errors.New("mailer down")
		second := errors.New("webhook timeout")
		emitter.RegisterHandler(&MockEventHandler{HandlerError: first})
		emitter.RegisterHandler(&MockEventHandler{HandlerError: second})

		err := emitter.EmitEvent(context.Background(), testEvent(t))
		assert.ErrorIs(t, err, first)
		assert.ErrorIs(t, err, second)
	})

	t.Run("panicking handler", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		after := &MockEventHandler{}
		emitter.RegisterHandler(panickingHandler{})
		emitter.RegisterHandler(after)

		var err error
		require.NotPanics(t, func() {
			err = emitter.EmitEvent(context.Background(), testEvent(t))
		})
		assert.ErrorIs(t, err, ErrHandlerPanic)
		assert.Contains(t, err.Error(), "notifier exploded")
		assert.Equal(t, 1, after.HandledCount)
	})
}

func TestNotificationLogHandler(t *testing.T) {
	var buf bytes.Buffer
	handler := NewNotificationLogHandler(slog.New(slog.NewJSONHandler(&buf, nil)))

	event := testEvent(t)
	require.NoError(t, handler.HandleEvent(context.Background(), event))

	out := buf.String()
	assert.Contains(t, out, `"event_type":"task.completed"`)
	assert.Contains(t, out, event.ID.String())
	assert.Contains(t, out, `"task_count":1`)
}
