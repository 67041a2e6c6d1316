package process

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"
)

// LaunchSpec describes a child process to spawn.
// Path resolution and argument construction are the caller's concern.
type LaunchSpec struct {
	// Name is a human-readable identifier; defaults to the binary's base name.
	Name string

	// Binary is the path to the executable.
	Binary string

	// Args are command-line arguments to pass to the binary.
	Args []string

	// Env are additional environment variables (key=value format).
	// If nil, the child inherits the supervisor's environment.
	Env []string

	// Dir is the working directory. If empty, inherits from the supervisor.
	Dir string
}

// Info is a point-in-time summary of a supervised process.
type Info struct {
	PID         int        `json:"pid"`
	Name        string     `json:"name"`
	Binary      string     `json:"binary"`
	Running     bool       `json:"running"`
	HasExited   bool       `json:"has_exited"`
	StartTime   *time.Time `json:"start_time,omitempty"`
	StdoutLines int        `json:"stdout_lines"`
	StderrLines int        `json:"stderr_lines"`

	// BufferCapacity is the number of lines retained per stream.
	BufferCapacity int `json:"buffer_capacity"`

	// ExitError describes a non-zero exit; empty while running or on success.
	ExitError string `json:"exit_error,omitempty"`
}

// Handle wraps one launched process and its two output buffers.
//
// The native process is exclusively owned by the handle. It is mutated only by
// the capture goroutines (appending lines) and by the Manager (termination and
// release).
type Handle struct {
	pid       int
	name      string
	binary    string
	startTime time.Time

	proc   *os.Process
	stdout *OutputBuffer
	stderr *OutputBuffer

	// Read ends of the output pipes; closed by release to end capture.
	stdoutR *os.File
	stderrR *os.File
	readers sync.WaitGroup

	done    chan struct{}
	exitErr error

	releaseOnce sync.Once
}

// spawn starts the process described by spec and wires its output streams
// into fresh buffers. On failure nothing is left running.
func spawn(spec LaunchSpec, capacity int, logger Logger) (*Handle, error) {
	cmd := exec.Command(spec.Binary, spec.Args...) //nolint:gosec // Binary is resolved and checked by the launcher
	setProcAttr(cmd)

	if spec.Env != nil {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	}

	// Plain os.Pipe rather than StdoutPipe: exec copies nothing, so Wait
	// reports exit as soon as the child is reaped, independent of readers.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, &SpawnError{Binary: spec.Binary, Err: fmt.Errorf("creating stdout pipe: %w", err)}
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(stdoutR, stdoutW)
		return nil, &SpawnError{Binary: spec.Binary, Err: fmt.Errorf("creating stderr pipe: %w", err)}
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	startErr := cmd.Start()
	// The child holds its own copies of the write ends.
	closeAll(stdoutW, stderrW)
	if startErr != nil {
		closeAll(stdoutR, stderrR)
		return nil, &SpawnError{Binary: spec.Binary, Err: startErr}
	}

	name := spec.Name
	if name == "" {
		name = filepath.Base(spec.Binary)
	}

	h := &Handle{
		pid:       cmd.Process.Pid,
		name:      name,
		binary:    spec.Binary,
		startTime: time.Now(),
		proc:      cmd.Process,
		stdout:    NewOutputBuffer(capacity),
		stderr:    NewOutputBuffer(capacity),
		stdoutR:   stdoutR,
		stderrR:   stderrR,
		done:      make(chan struct{}),
	}

	go func() {
		h.exitErr = cmd.Wait()
		close(h.done)
	}()

	h.readers.Add(2)
	go func() {
		defer h.readers.Done()
		capture(h.stdoutR, h.stdout, StreamStdout, h.pid, logger)
	}()
	go func() {
		defer h.readers.Done()
		capture(h.stderrR, h.stderr, StreamStderr, h.pid, logger)
	}()

	return h, nil
}

// PID returns the operating-system process id.
func (h *Handle) PID() int {
	return h.pid
}

// Name returns the display name of the process.
func (h *Handle) Name() string {
	return h.name
}

// StartTime returns when the process was spawned.
func (h *Handle) StartTime() time.Time {
	return h.startTime
}

// Stdout returns the buffer holding recent standard output lines.
func (h *Handle) Stdout() *OutputBuffer {
	return h.stdout
}

// Stderr returns the buffer holding recent standard error lines.
func (h *Handle) Stderr() *OutputBuffer {
	return h.stderr
}

// Done is closed once the process has exited and been reaped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Exited reports whether the process has exited. A reaped process can no
// longer be queried, so the answer comes from the wait goroutine alone.
func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// ExitErr returns the error from Wait, or nil while the process is running
// or if it exited with status zero.
func (h *Handle) ExitErr() error {
	if !h.Exited() {
		return nil
	}
	return h.exitErr
}

// Info returns a summary of the handle's current state.
func (h *Handle) Info() Info {
	exited := h.Exited()
	info := Info{
		PID:            h.pid,
		Name:           h.name,
		Binary:         h.binary,
		Running:        !exited,
		HasExited:      exited,
		StdoutLines:    h.stdout.Len(),
		StderrLines:    h.stderr.Len(),
		BufferCapacity: h.stdout.Capacity(),
	}
	if err := h.ExitErr(); err != nil {
		info.ExitError = err.Error()
	}
	if !h.startTime.IsZero() {
		st := h.startTime
		info.StartTime = &st
	}
	return info
}

// release ends capture and drops buffered output. Safe to call repeatedly.
func (h *Handle) release() {
	h.releaseOnce.Do(func() {
		closeAll(h.stdoutR, h.stderrR)
		h.readers.Wait()
		h.stdout.Clear()
		h.stderr.Clear()
	})
}

// closeAll closes every non-nil file, ignoring errors.
func closeAll(files ...*os.File) {
	for _, f := range files {
		if f != nil {
			_ = f.Close() //nolint:errcheck // Best-effort cleanup
		}
	}
}
