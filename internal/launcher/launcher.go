package launcher

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/nerrad567/procwarden/internal/infrastructure/config"
	"github.com/nerrad567/procwarden/internal/process"
)

// Worker suffix bounds, lower inclusive and upper exclusive.
const (
	workerSuffixMin = 1000
	workerSuffixMax = 99999999
)

// Argument template placeholders.
const (
	placeholderPool   = "{pool}"
	placeholderWorker = "{worker}"
	placeholderName   = "{name}"
)

// StartRequest carries the caller-supplied launch parameters.
type StartRequest struct {
	// Pool is substituted for {pool} in the argument template.
	Pool string `json:"pool"`

	// Name prefixes the generated worker name. The HTTP layer fills it
	// with the request host when the caller leaves it empty.
	Name string `json:"name,omitempty"`
}

// Logger defines the logging interface for the launcher.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Launcher builds launch specs for the configured executable.
//
// Thread Safety: safe for concurrent use; configuration is read-only after New.
type Launcher struct {
	cfg    config.LauncherConfig
	logger Logger
	suffix func() int
}

// New creates a Launcher from cfg. An empty WorkDir means the current
// directory and an empty DiagnosticsFile disables diagnostics.
func New(cfg config.LauncherConfig) *Launcher {
	if cfg.WorkDir == "" {
		cfg.WorkDir = "."
	}
	return &Launcher{
		cfg:    cfg,
		logger: noopLogger{},
		suffix: func() int {
			return workerSuffixMin + rand.IntN(workerSuffixMax-workerSuffixMin) //nolint:gosec // Not security sensitive
		},
	}
}

// SetLogger sets the logger used for diagnostic write failures.
func (l *Launcher) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	l.logger = logger
}

// ExecutableName returns the platform file name of the executable.
func (l *Launcher) ExecutableName() string {
	return executableName(l.cfg.Executable, runtime.GOOS)
}

func executableName(name, goos string) string {
	if goos == "windows" && !strings.EqualFold(filepath.Ext(name), ".exe") {
		return name + ".exe"
	}
	return name
}

// ExecutablePath returns the absolute-or-relative path of the executable.
func (l *Launcher) ExecutablePath() string {
	return filepath.Join(l.cfg.WorkDir, l.ExecutableName())
}

// Resolve returns the executable path after checking that it exists.
// A missing executable is recorded in the diagnostics file.
func (l *Launcher) Resolve() (string, error) {
	path := l.ExecutablePath()
	info, err := os.Stat(path)
	if err == nil && !info.IsDir() {
		// exec searches PATH for a bare name, so hand it an absolute path.
		if abs, absErr := filepath.Abs(path); absErr == nil {
			path = abs
		}
		return path, nil
	}

	l.writeDiagnostic(l.ExecutableName() + " not found.")
	if err == nil {
		err = errors.New("is a directory")
	}
	return "", fmt.Errorf("%w: %s: %v", ErrExecutableNotFound, path, err)
}

// Build resolves the executable and produces the launch spec for req along
// with the generated worker name.
func (l *Launcher) Build(req StartRequest) (process.LaunchSpec, string, error) {
	if strings.TrimSpace(req.Pool) == "" {
		return process.LaunchSpec{}, "", ErrPoolRequired
	}

	path, err := l.Resolve()
	if err != nil {
		return process.LaunchSpec{}, "", err
	}

	worker := req.Name + strconv.Itoa(l.suffix())

	replacer := strings.NewReplacer(
		placeholderPool, req.Pool,
		placeholderWorker, worker,
		placeholderName, req.Name,
	)
	args := make([]string, len(l.cfg.Args))
	for i, a := range l.cfg.Args {
		args[i] = replacer.Replace(a)
	}

	var env []string
	if len(l.cfg.Env) > 0 {
		env = append(env, l.cfg.Env...)
	}

	return process.LaunchSpec{
		Name:   worker,
		Binary: path,
		Args:   args,
		Env:    env,
		Dir:    l.cfg.WorkDir,
	}, worker, nil
}

// WriteDiagnostic records err in the diagnostics file. Failures to write
// are logged and otherwise ignored.
func (l *Launcher) WriteDiagnostic(err error) {
	if err == nil {
		return
	}
	l.writeDiagnostic("Exception: " + err.Error() + "\n")
}

// DiagnosticsPath returns where diagnostics are written, or "" when disabled.
func (l *Launcher) DiagnosticsPath() string {
	if l.cfg.DiagnosticsFile == "" {
		return ""
	}
	if filepath.IsAbs(l.cfg.DiagnosticsFile) {
		return l.cfg.DiagnosticsFile
	}
	return filepath.Join(l.cfg.WorkDir, l.cfg.DiagnosticsFile)
}

func (l *Launcher) writeDiagnostic(text string) {
	path := l.DiagnosticsPath()
	if path == "" {
		return
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil { //nolint:gosec // Operator-readable diagnostics
		l.logger.Warn("failed to write diagnostics file", "path", path, "error", err)
	}
}
