package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Errors returned by AsyncDispatcher.EmitEvent.
var (
	ErrDispatcherClosed = errors.New("event dispatcher is closed")
	ErrQueueFull        = errors.New("event queue is full")
)

// DispatcherConfig sizes an AsyncDispatcher.
type DispatcherConfig struct {
	// WorkerCount is the number of goroutines delivering events. Values
	// below 1 use 1.
	WorkerCount int

	// QueueSize is the number of events buffered ahead of the workers.
	QueueSize int
}

// DefaultDispatcherConfig returns a DispatcherConfig with reasonable defaults
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		WorkerCount: 2,
		QueueSize:   256,
	}
}

type queuedEvent struct {
	ctx   context.Context
	event *TaskEvent
}

// AsyncDispatcher queues events and hands them to the next emitter on a pool
// of workers, so a slow handler never holds up the caller. Events emitted
// while the queue is full are rejected rather than blocking.
type AsyncDispatcher struct {
	next   EventEmitter
	queue  chan queuedEvent
	config DispatcherConfig
	logger *slog.Logger

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

var _ EventEmitter = (*AsyncDispatcher)(nil)

// NewAsyncDispatcher creates a dispatcher in front of next. Call Start to
// launch the workers.
func NewAsyncDispatcher(next EventEmitter, config DispatcherConfig, logger *slog.Logger) *AsyncDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "event_dispatcher")

	if config.WorkerCount <= 0 {
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
		config.WorkerCount = 1
	}
	if config.QueueSize < 0 {
		config.QueueSize = 0
	}

	return &AsyncDispatcher{
		next:   next,
		queue:  make(chan queuedEvent, config.QueueSize),
		config: config,
		logger: logger,
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (d *AsyncDispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	d.logger.Info("starting event dispatcher",
		"worker_count", d.config.WorkerCount,
		"queue_size", d.config.QueueSize)
	for i := 0; i < d.config.WorkerCount; i++ {
		d.wg.Add(1)
		go d.work(i)
	}
}

func (d *AsyncDispatcher) work(id int) {
	defer d.wg.Done()
	for item := range d.queue {
		if err := d.next.EmitEvent(item.ctx, item.event); err != nil {
			d.logger.Error("event delivery failed",
				"worker_id", id,
				"event_id", item.event.ID,
				"event_type", item.event.Type,
				"error", err)
		}
	}
}

// EmitEvent queues event for delivery. Values carried by ctx, such as the
// request logger, travel with the event; its cancellation does not.
func (d *AsyncDispatcher) EmitEvent(ctx context.Context, event *TaskEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.queue <- queuedEvent{ctx: context.WithoutCancel(ctx), event: event}:
		d.logger.Debug("event queued",
			"event_id", event.ID,
			"event_type", event.Type,
			"queue_len", len(d.queue))
		return nil
	default:
		return fmt.Errorf("%w: capacity %d reached", ErrQueueFull, cap(d.queue))
	}
}

// Stop rejects new events, lets the workers drain the queue and waits for
// them until ctx is done.
func (d *AsyncDispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		if n := len(d.queue); n > 0 {
			d.logger.Warn("dispatcher stopped before start, dropping events", "dropped", n)
		}
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("event dispatcher stopped")
		return nil
	case <-ctx.Done():
		d.logger.Warn("event dispatcher stop timed out", "pending", len(d.queue))
		return ctx.Err()
	}
}
