package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/procwarden/internal/process"
)

const (
	// DefaultQueueSize is used when NewDispatcher is given a size <= 0.
	DefaultQueueSize = 256

	// deliverTimeout bounds each sink's work on a single event.
	deliverTimeout = 5 * time.Second
)

// Sink consumes lifecycle events off the dispatcher goroutine.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, e process.Event) error
}

// Logger is the subset of logging.Logger the package uses.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Dispatcher implements process.EventSink with a bounded queue drained by
// one goroutine. Events arriving while the queue is full are dropped and
// counted.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Dispatcher struct {
	queue  chan process.Event
	done   chan struct{}
	logger Logger

	sinksMu sync.RWMutex
	sinks   []Sink

	closeMu sync.RWMutex
	closed  bool

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewDispatcher creates a dispatcher and starts its delivery goroutine.
// Call Close to drain pending events and stop it.
func NewDispatcher(queueSize int, logger Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = noopLogger{}
	}
	d := &Dispatcher{
		queue:  make(chan process.Event, queueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	go d.run()
	return d
}

// Add registers a sink. Sinks receive events in registration order.
func (d *Dispatcher) Add(s Sink) {
	d.sinksMu.Lock()
	d.sinks = append(d.sinks, s)
	d.sinksMu.Unlock()
}

// HandleEvent enqueues e without blocking.
func (d *Dispatcher) HandleEvent(e process.Event) {
	d.closeMu.RLock()
	defer d.closeMu.RUnlock()

	if d.closed {
		d.dropped.Add(1)
		return
	}

	select {
	case d.queue <- e:
	default:
		d.dropped.Add(1)
		d.logger.Warn("event queue full, dropping event",
			"type", e.Type,
			"pid", e.PID,
		)
	}
}

// Close stops accepting events and waits until the queue is drained or ctx
// ends. Safe to call repeatedly.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.closeMu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.closeMu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("draining event queue: %w", ctx.Err())
	}
}

// Delivered returns how many events were handed to the sinks.
func (d *Dispatcher) Delivered() uint64 {
	return d.delivered.Load()
}

// Dropped returns how many events were discarded.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for e := range d.queue {
		d.deliver(e)
		d.delivered.Add(1)
	}
}

func (d *Dispatcher) deliver(e process.Event) {
	d.sinksMu.RLock()
	sinks := make([]Sink, len(d.sinks))
	copy(sinks, d.sinks)
	d.sinksMu.RUnlock()

	for _, s := range sinks {
		d.deliverTo(s, e)
	}
}

// deliverTo isolates one sink: an error or panic is logged and the next
// sink still runs.
func (d *Dispatcher) deliverTo(s Sink, e process.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event sink panicked",
				"sink", s.Name(),
				"type", e.Type,
				"panic", r,
			)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()

	if err := s.Deliver(ctx, e); err != nil {
		d.logger.Warn("event sink failed",
			"sink", s.Name(),
			"type", e.Type,
			"pid", e.PID,
			"error", err,
		)
	}
}
