package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nerrad567/procwarden/internal/infrastructure/config"
	"github.com/nerrad567/procwarden/internal/infrastructure/logging"
	"github.com/nerrad567/procwarden/internal/launcher"
	"github.com/nerrad567/procwarden/internal/process"
)

const (
	testSecret = "test-secret-key-at-least-32-characters-long"
	testIssuer = "procwarden-test"
)

// workerScript echoes its arguments and stays alive until stopped.
const workerScript = "#!/bin/sh\necho \"started $*\"\nsleep 30\n"

type testEnv struct {
	srv     *Server
	handler http.Handler
	workDir string
}

type option func(*Deps)

func withSecurity(sec config.SecurityConfig) option {
	return func(d *Deps) { d.Security = sec }
}

func withoutLegacyRoutes() option {
	return func(d *Deps) { d.Config.LegacyRoutes = false }
}

func testLogger() *logging.Logger {
	return logging.NewWithWriter(config.LoggingConfig{Level: "error", Format: "text"}, "test", io.Discard)
}

// writeWorker installs the test executable in dir with the given mode.
func writeWorker(t *testing.T, dir string, mode os.FileMode) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "worker"), []byte(workerScript), mode))
}

func newTestEnv(t *testing.T, opts ...option) *testEnv {
	t.Helper()

	workDir := t.TempDir()
	manager := process.NewManager(process.Config{
		StopTimeout:     3 * time.Second,
		StopAllTimeout:  3 * time.Second,
		GracefulTimeout: time.Second,
	}, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		manager.StopAll(ctx)
	})

	deps := Deps{
		Config: config.APIConfig{
			Host:         "127.0.0.1",
			Timeouts:     config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
			LegacyRoutes: true,
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:  testLogger(),
		Manager: manager,
		Launcher: launcher.New(config.LauncherConfig{
			Executable:      "worker",
			WorkDir:         workDir,
			Args:            []string{"--pool", "{pool}", "--worker", "{worker}"},
			DiagnosticsFile: "diag.txt",
		}),
		Version: "test",
	}
	for _, opt := range opts {
		opt(&deps)
	}

	srv, err := New(deps)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.hub.Run(ctx)

	return &testEnv{srv: srv, handler: srv.Handler(), workDir: workDir}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, r)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": []string{"Bearer " + token}}
}
