package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/covana/insurance-backoffice/internal/application/port"
	"github.com/covana/insurance-backoffice/internal/domain/event"
)

// Dispatcher routes notification intents to the sinks registered for their
// audience. Dispatch happens strictly after the transition that produced the
// event has committed; sink failures are logged and discarded, they never
// reach the transition's caller.
type Dispatcher interface {
	// Register adds a sink for an audience under a name used in logs
	Register(audience event.Audience, name string, sink port.NotificationSink)

	// Dispatch delivers the event synchronously; returns the first sink
	// error (used by tests and the dispatcher itself)
	Dispatch(ctx context.Context, evt *event.Event) error

	// DispatchAsync delivers the event on its own goroutine and does not
	// wait; errors are swallowed after logging. Delivery is detached from
	// the caller's cancellation so it survives the request that produced
	// the event.
	DispatchAsync(ctx context.Context, evt *event.Event)

	// Close stops accepting events and waits for in-flight deliveries
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type sinkInfo struct {
	name string
	sink port.NotificationSink
}

type notificationDispatcher struct {
	mu     sync.RWMutex
	sinks  map[event.Audience][]sinkInfo
	logger Logger

	wg     sync.WaitGroup
	closed atomic.Bool
}

// Option configures the dispatcher
type Option func(*notificationDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *notificationDispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a new notification dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &notificationDispatcher{
		sinks: make(map[event.Audience][]sinkInfo),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register adds a sink for an audience
func (d *notificationDispatcher) Register(audience event.Audience, name string, sink port.NotificationSink) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.sinks[audience] = append(d.sinks[audience], sinkInfo{name: name, sink: sink})

	if d.logger != nil {
		d.logger.Info("Notification sink registered",
			"audience", audience,
			"sink_name", name,
		)
	}
}

// Dispatch delivers the event to every sink of its audience synchronously
func (d *notificationDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	if d.closed.Load() {
		return fmt.Errorf("dispatcher is closed")
	}

	d.mu.RLock()
	sinks := d.sinks[evt.Audience]
	d.mu.RUnlock()

	for _, info := range sinks {
		if err := d.safeDeliver(ctx, evt, info); err != nil {
			return fmt.Errorf("sink %s failed: %w", info.name, err)
		}
	}
	return nil
}

// DispatchAsync delivers the event without waiting; failures only get logged
func (d *notificationDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	if d.closed.Load() {
		if d.logger != nil {
			d.logger.Error("Dropping event, dispatcher is closed",
				"event_type", evt.Type,
				"event_id", evt.ID,
			)
		}
		return
	}

	d.mu.RLock()
	sinks := d.sinks[evt.Audience]
	d.mu.RUnlock()

	// The transition has already committed; the caller's context dies when
	// its request returns, so delivery must not inherit its cancellation
	ctx = context.WithoutCancel(ctx)

	for _, info := range sinks {
		d.wg.Add(1)
		go func(info sinkInfo) {
			defer d.wg.Done()

			if err := d.safeDeliver(ctx, evt, info); err != nil {
				if d.logger != nil {
					d.logger.Error("Notification delivery failed",
						"event_type", evt.Type,
						"event_id", evt.ID,
						"sink_name", info.name,
						"error", err,
					)
				}
			}
		}(info)
	}
}

// Close shuts down the dispatcher and waits for in-flight deliveries
func (d *notificationDispatcher) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("dispatcher already closed")
	}
	d.wg.Wait()
	return nil
}

// safeDeliver invokes a sink, converting a panic into an error so one bad
// sink cannot take down the process
func (d *notificationDispatcher) safeDeliver(ctx context.Context, evt *event.Event, info sinkInfo) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink %s panicked: %v", info.name, r)
		}
	}()
	return info.sink.Deliver(ctx, evt)
}
