package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Config holds tuning for the lifecycle controller.
type Config struct {
	// BufferCapacity is the number of lines kept per stream.
	BufferCapacity int

	// StopTimeout bounds how long Stop waits for exit confirmation.
	StopTimeout time.Duration

	// StopAllTimeout bounds the per-process wait during StopAll.
	StopAllTimeout time.Duration

	// GracefulTimeout is how long to wait after SIGTERM before SIGKILL.
	// It is capped by the stop timeout in effect.
	GracefulTimeout time.Duration

	// StopAllConcurrency limits how many processes StopAll terminates at once.
	StopAllConcurrency int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BufferCapacity:     DefaultBufferCapacity,
		StopTimeout:        5 * time.Second,
		StopAllTimeout:     3 * time.Second,
		GracefulTimeout:    2 * time.Second,
		StopAllConcurrency: 8,
	}
}

// Logger defines the logging interface for the process manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Status is the result of a status query for one process.
type Status struct {
	Info
	Stdout []string `json:"output,omitempty"`
	Stderr []string `json:"error,omitempty"`
}

// Output is the captured output of one process.
type Output struct {
	PID     int      `json:"pid"`
	Running bool     `json:"running"`
	Stdout  []string `json:"output"`
	Stderr  []string `json:"error"`
}

// StopOutcome records what happened while stopping one process.
type StopOutcome struct {
	PID  int    `json:"pid"`
	Name string `json:"name"`

	// AlreadyExited is true when the process had exited before stop began.
	AlreadyExited bool `json:"already_exited"`

	// Forced is true when SIGKILL had to be sent.
	Forced bool `json:"forced"`

	// TimedOut is true when exit was not confirmed within the timeout.
	// The process is retired regardless.
	TimedOut bool `json:"timed_out"`

	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
}

// StopAllResult aggregates the outcomes of a bulk stop.
type StopAllResult struct {
	// Count is the number of handles drained and processed.
	Count    int           `json:"count"`
	Outcomes []StopOutcome `json:"outcomes"`
}

// Failures returns the number of outcomes carrying an error or timeout.
func (r StopAllResult) Failures() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err != nil || o.TimedOut {
			n++
		}
	}
	return n
}

// Manager starts, queries and stops supervised processes.
//
// The registry is passed in explicitly and owned by the Manager for its
// lifetime; there is no process-wide singleton.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Manager struct {
	config   Config
	logger   Logger
	registry *Registry

	// signal delivers SIGTERM, or SIGKILL when forced, to a process tree.
	signal func(p *os.Process, forced bool) error

	sinksMu sync.RWMutex
	sinks   []EventSink
}

// NewManager creates a lifecycle controller over registry.
// A nil registry is replaced with a fresh one.
func NewManager(cfg Config, registry *Registry) *Manager {
	defaults := DefaultConfig()
	if cfg.BufferCapacity <= 0 {
		cfg.BufferCapacity = defaults.BufferCapacity
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = defaults.StopTimeout
	}
	if cfg.StopAllTimeout <= 0 {
		cfg.StopAllTimeout = defaults.StopAllTimeout
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = defaults.GracefulTimeout
	}
	if cfg.StopAllConcurrency <= 0 {
		cfg.StopAllConcurrency = defaults.StopAllConcurrency
	}
	if registry == nil {
		registry = NewRegistry()
	}

	return &Manager{
		config:   cfg,
		logger:   noopLogger{},
		registry: registry,
		signal:   signalTree,
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	m.logger = logger
}

// AddEventSink registers a sink for lifecycle events.
func (m *Manager) AddEventSink(sink EventSink) {
	m.sinksMu.Lock()
	m.sinks = append(m.sinks, sink)
	m.sinksMu.Unlock()
}

// Count returns the number of supervised processes.
func (m *Manager) Count() int {
	return m.registry.Len()
}

// Start spawns the process described by spec, attaches capture to both
// output streams and registers it under its OS-assigned pid.
// On failure nothing is registered and a *SpawnError is returned.
func (m *Manager) Start(ctx context.Context, spec LaunchSpec) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("starting process: %w", err)
	}
	if spec.Binary == "" {
		return 0, fmt.Errorf("%w: binary is required", ErrInvalidLaunchSpec)
	}

	m.logger.Info("starting process",
		"name", spec.Name,
		"binary", spec.Binary,
		"args", spec.Args,
	)

	h, err := spawn(spec, m.config.BufferCapacity, m.logger)
	if err != nil {
		m.logger.Error("failed to start process", "binary", spec.Binary, "error", err)
		m.emit(Event{
			Type:   EventSpawnFailed,
			Name:   spec.Name,
			Binary: spec.Binary,
			Error:  err.Error(),
		})
		return 0, err
	}

	if replaced := m.registry.Register(h); replaced != nil {
		if !replaced.Exited() {
			m.logger.Warn("replaced a live handle on pid reuse", "pid", h.pid)
		}
		go replaced.release()
	}

	m.logger.Info("process started", "name", h.name, "pid", h.pid)
	m.emit(Event{
		Type:   EventStarted,
		PID:    h.pid,
		Name:   h.name,
		Binary: h.binary,
	})

	return h.pid, nil
}

// Status reports whether pid has exited and, when withOutput is set, the
// current output snapshots. Returns ErrNotSupervised for unknown ids.
func (m *Manager) Status(pid int, withOutput bool) (Status, error) {
	h, ok := m.registry.Lookup(pid)
	if !ok {
		return Status{}, fmt.Errorf("%w: pid %d", ErrNotSupervised, pid)
	}

	st := Status{Info: h.Info()}
	if withOutput {
		st.Stdout = h.stdout.Snapshot()
		st.Stderr = h.stderr.Snapshot()
	}
	return st, nil
}

// Output returns the captured stdout and stderr of pid.
func (m *Manager) Output(pid int) (Output, error) {
	st, err := m.Status(pid, true)
	if err != nil {
		return Output{}, err
	}
	return Output{
		PID:     pid,
		Running: st.Running,
		Stdout:  st.Stdout,
		Stderr:  st.Stderr,
	}, nil
}

// List returns a summary of every supervised process in pid order.
func (m *Manager) List() []Info {
	handles := m.registry.List()
	infos := make([]Info, 0, len(handles))
	for _, h := range handles {
		infos = append(infos, h.Info())
	}
	return infos
}

// Stats is an aggregate gauge over every supervised process.
type Stats struct {
	Supervised    int `json:"supervised"`
	Running       int `json:"running"`
	BufferedLines int `json:"buffered_lines"`

	// LinesCaptured counts every line appended to the currently supervised
	// buffers, including lines since evicted.
	LinesCaptured int `json:"lines_captured"`
}

// Stats returns a snapshot of supervisor-wide counters.
func (m *Manager) Stats() Stats {
	var st Stats
	for _, h := range m.registry.List() {
		st.Supervised++
		if !h.Exited() {
			st.Running++
		}
		st.BufferedLines += h.stdout.Len() + h.stderr.Len()
		st.LinesCaptured += h.stdout.TotalWritten() + h.stderr.TotalWritten()
	}
	return st
}

// Stop retires pid: it is removed from the registry first, then the process
// tree is terminated within StopTimeout and its resources released.
// A termination timeout is reported in the outcome, not as an error.
func (m *Manager) Stop(ctx context.Context, pid int) (StopOutcome, error) {
	h, ok := m.registry.Remove(pid)
	if !ok {
		return StopOutcome{}, fmt.Errorf("%w: pid %d", ErrNotSupervised, pid)
	}

	outcome := m.terminate(ctx, h, m.config.StopTimeout)
	m.emit(Event{
		Type:    EventStopped,
		PID:     h.pid,
		Name:    h.name,
		Binary:  h.binary,
		Outcome: &outcome,
		Error:   outcome.Error,
	})
	return outcome, nil
}

// StopAll drains the registry and stops every drained process independently.
// A failure on one process never prevents attempts on the others.
func (m *Manager) StopAll(ctx context.Context) StopAllResult {
	handles := m.registry.Drain()
	result := StopAllResult{
		Count:    len(handles),
		Outcomes: make([]StopOutcome, len(handles)),
	}
	if len(handles) == 0 {
		return result
	}

	m.logger.Info("stopping all processes", "count", len(handles))

	var g errgroup.Group
	g.SetLimit(m.config.StopAllConcurrency)
	for i, h := range handles {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					err := fmt.Errorf("panic while stopping pid %d: %v", h.pid, r)
					result.Outcomes[i] = StopOutcome{PID: h.pid, Name: h.name, Err: err, Error: err.Error()}
					m.logger.Error("recovered panic during stop", "pid", h.pid, "panic", r)
				}
			}()
			result.Outcomes[i] = m.terminate(ctx, h, m.config.StopAllTimeout)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // Workers record failures in their outcome

	for i := range result.Outcomes {
		o := result.Outcomes[i]
		m.emit(Event{
			Type:    EventStopped,
			PID:     o.PID,
			Name:    o.Name,
			Outcome: &o,
			Error:   o.Error,
		})
	}
	m.emit(Event{
		Type:     EventStopAll,
		Count:    result.Count,
		Failures: result.Failures(),
	})

	m.logger.Info("all processes stopped",
		"count", result.Count,
		"failures", result.Failures(),
	)
	return result
}

// Close stops every supervised process. It is the shutdown hook for the
// owning service.
func (m *Manager) Close(ctx context.Context) error {
	res := m.StopAll(ctx)
	if n := res.Failures(); n > 0 {
		return fmt.Errorf("stopping processes: %d of %d did not stop cleanly", n, res.Count)
	}
	return nil
}

// terminate signals the process tree and waits up to timeout for exit,
// escalating to SIGKILL after the graceful period. The handle is always
// released, whatever the outcome.
func (m *Manager) terminate(ctx context.Context, h *Handle, timeout time.Duration) StopOutcome {
	start := time.Now()
	outcome := StopOutcome{PID: h.pid, Name: h.name}
	defer func() {
		h.release()
		outcome.Duration = time.Since(start)
		if outcome.Err != nil {
			outcome.Error = outcome.Err.Error()
		}
	}()

	if h.Exited() {
		outcome.AlreadyExited = true
		m.logger.Info("process already exited", "pid", h.pid)
		return outcome
	}

	m.logger.Info("stopping process", "name", h.name, "pid", h.pid)

	grace := m.config.GracefulTimeout
	if grace > timeout {
		grace = timeout
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	if err := m.signal(h.proc, false); err != nil {
		m.logger.Warn("failed to send SIGTERM to process group", "pid", h.pid, "error", err)
		outcome.Err = err
	}

	graceTimer := time.NewTimer(grace)
	defer graceTimer.Stop()

	select {
	case <-h.done:
		m.logger.Info("process stopped gracefully", "pid", h.pid)
		return outcome
	case <-graceTimer.C:
		m.logger.Warn("graceful shutdown timeout, sending SIGKILL", "pid", h.pid, "timeout", grace)
	case <-ctx.Done():
		m.logger.Warn("stop cancelled, sending SIGKILL", "pid", h.pid, "error", ctx.Err())
	}

	outcome.Forced = true
	if err := m.signal(h.proc, true); err != nil {
		m.logger.Error("failed to kill process group", "pid", h.pid, "error", err)
		outcome.Err = errors.Join(outcome.Err, err)
	}

	select {
	case <-h.done:
		m.logger.Info("process killed", "pid", h.pid)
	case <-deadline.C:
		outcome.TimedOut = true
		m.logger.Warn("process did not confirm exit; retiring anyway", "pid", h.pid, "timeout", timeout)
	}
	return outcome
}

// emit stamps e and delivers it to every registered sink.
func (m *Manager) emit(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	m.sinksMu.RLock()
	sinks := make([]EventSink, len(m.sinks))
	copy(sinks, m.sinks)
	m.sinksMu.RUnlock()

	for _, s := range sinks {
		s.HandleEvent(e)
	}
}
