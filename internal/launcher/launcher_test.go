package launcher

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/nerrad567/procwarden/internal/infrastructure/config"
)

// newTestLauncher creates a work directory holding an executable named exe.
func newTestLauncher(t *testing.T, exe string, args []string) (*Launcher, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.LauncherConfig{
		Executable:      exe,
		WorkDir:         dir,
		Args:            args,
		DiagnosticsFile: "diag.txt",
	}
	l := New(cfg)
	if err := os.WriteFile(l.ExecutablePath(), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("failed to create executable: %v", err)
	}
	return l, dir
}

func TestExecutableName(t *testing.T) {
	tests := []struct {
		name string
		goos string
		want string
	}{
		{"worker", "linux", "worker"},
		{"worker", "windows", "worker.exe"},
		{"worker.exe", "windows", "worker.exe"},
		{"Worker.EXE", "windows", "Worker.EXE"},
		{"worker.exe", "darwin", "worker.exe"},
	}

	for _, tt := range tests {
		if got := executableName(tt.name, tt.goos); got != tt.want {
			t.Errorf("executableName(%q, %q) = %q, want %q", tt.name, tt.goos, got, tt.want)
		}
	}
}

func TestResolve_Found(t *testing.T) {
	l, dir := newTestLauncher(t, "worker", nil)

	path, err := l.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("Resolve() = %q, want path inside %q", path, dir)
	}
	if _, err := os.Stat(filepath.Join(dir, "diag.txt")); !os.IsNotExist(err) {
		t.Error("diagnostics file written on success")
	}
}

func TestResolve_MissingWritesDiagnostic(t *testing.T) {
	dir := t.TempDir()
	l := New(config.LauncherConfig{Executable: "absent", WorkDir: dir, DiagnosticsFile: "diag.txt"})

	_, err := l.Resolve()
	if !errors.Is(err, ErrExecutableNotFound) {
		t.Fatalf("Resolve() error = %v, want ErrExecutableNotFound", err)
	}

	data, readErr := os.ReadFile(filepath.Join(dir, "diag.txt"))
	if readErr != nil {
		t.Fatalf("reading diagnostics: %v", readErr)
	}
	want := l.ExecutableName() + " not found."
	if string(data) != want {
		t.Errorf("diagnostics = %q, want %q", data, want)
	}
}

func TestResolve_DirectoryIsNotExecutable(t *testing.T) {
	dir := t.TempDir()
	l := New(config.LauncherConfig{Executable: "sub", WorkDir: dir})
	if err := os.Mkdir(l.ExecutablePath(), 0o755); err != nil {
		t.Fatal(err)
	}

	if _, err := l.Resolve(); !errors.Is(err, ErrExecutableNotFound) {
		t.Errorf("Resolve() error = %v, want ErrExecutableNotFound", err)
	}
}

func TestBuild_FillsTemplate(t *testing.T) {
	l, dir := newTestLauncher(t, "worker", []string{"-o", "{pool}", "-p", "{worker}", "--tag={name}"})
	l.suffix = func() int { return 4242 }

	spec, worker, err := l.Build(StartRequest{Pool: "pool.example:3333", Name: "rig"})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if worker != "rig4242" {
		t.Errorf("worker = %q, want %q", worker, "rig4242")
	}
	if spec.Name != worker {
		t.Errorf("spec.Name = %q, want %q", spec.Name, worker)
	}
	if spec.Dir != dir {
		t.Errorf("spec.Dir = %q, want %q", spec.Dir, dir)
	}
	want := []string{"-o", "pool.example:3333", "-p", "rig4242", "--tag=rig"}
	if strings.Join(spec.Args, " ") != strings.Join(want, " ") {
		t.Errorf("spec.Args = %v, want %v", spec.Args, want)
	}
}

func TestBuild_WorkerSuffixRange(t *testing.T) {
	l, _ := newTestLauncher(t, "worker", nil)

	for i := 0; i < 100; i++ {
		n := l.suffix()
		if n < workerSuffixMin || n >= workerSuffixMax {
			t.Fatalf("suffix() = %d, want in [%d, %d)", n, workerSuffixMin, workerSuffixMax)
		}
	}
}

func TestBuild_PoolRequired(t *testing.T) {
	l, _ := newTestLauncher(t, "worker", nil)

	for _, pool := range []string{"", "   "} {
		if _, _, err := l.Build(StartRequest{Pool: pool}); !errors.Is(err, ErrPoolRequired) {
			t.Errorf("Build(pool=%q) error = %v, want ErrPoolRequired", pool, err)
		}
	}
}

func TestBuild_MissingExecutable(t *testing.T) {
	l := New(config.LauncherConfig{Executable: "absent", WorkDir: t.TempDir()})

	if _, _, err := l.Build(StartRequest{Pool: "p"}); !errors.Is(err, ErrExecutableNotFound) {
		t.Errorf("Build() error = %v, want ErrExecutableNotFound", err)
	}
}

func TestBuild_EnvCopied(t *testing.T) {
	dir := t.TempDir()
	cfg := config.LauncherConfig{Executable: "worker", WorkDir: dir, Env: []string{"A=1"}}
	l := New(cfg)
	if err := os.WriteFile(l.ExecutablePath(), nil, 0o755); err != nil {
		t.Fatal(err)
	}

	spec, _, err := l.Build(StartRequest{Pool: "p"})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	spec.Env[0] = "B=2"
	if cfg.Env[0] != "A=1" {
		t.Error("Build() shares the configured Env slice")
	}
}

func TestWriteDiagnostic(t *testing.T) {
	l, dir := newTestLauncher(t, "worker", nil)

	l.WriteDiagnostic(errors.New("fork/exec: permission denied"))

	data, err := os.ReadFile(filepath.Join(dir, "diag.txt"))
	if err != nil {
		t.Fatalf("reading diagnostics: %v", err)
	}
	if !strings.HasPrefix(string(data), "Exception: fork/exec: permission denied") {
		t.Errorf("diagnostics = %q", data)
	}
}

func TestDiagnosticsPath(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "abs.txt")
	tests := []struct {
		name string
		file string
		want string
	}{
		{"disabled", "", ""},
		{"relative", "diag.txt", filepath.Join("/srv", "diag.txt")},
		{"absolute", abs, abs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(config.LauncherConfig{WorkDir: "/srv", DiagnosticsFile: tt.file})
			if got := l.DiagnosticsPath(); got != tt.want {
				t.Errorf("DiagnosticsPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNew_DefaultWorkDir(t *testing.T) {
	l := New(config.LauncherConfig{Executable: "worker"})
	if runtime.GOOS != "windows" && l.ExecutablePath() != "worker" {
		t.Errorf("ExecutablePath() = %q, want %q", l.ExecutablePath(), "worker")
	}
}
