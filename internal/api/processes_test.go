package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/procwarden/internal/process"
)

func startWorker(t *testing.T, env *testEnv, name string) StartProcessResponse {
	t.Helper()
	w := env.do(t, http.MethodPost, "/api/v1/processes", StartProcessRequest{Pool: "pool.example:3333", Name: name}, nil)
	require.Equal(t, http.StatusCreated, w.Code, "body: %s", w.Body.String())
	return decode[StartProcessResponse](t, w)
}

// =============================================================================
// Start
// =============================================================================

func TestStartProcess(t *testing.T) {
	env := newTestEnv(t)
	writeWorker(t, env.workDir, 0o755)

	resp := startWorker(t, env, "rig")
	assert.Positive(t, resp.PID)
	assert.True(t, strings.HasPrefix(resp.Worker, "rig"), "worker = %q", resp.Worker)
	assert.Equal(t, "Process started with worker="+resp.Worker, resp.Message)

	want := fmt.Sprintf("started --pool pool.example:3333 --worker %s", resp.Worker)
	require.Eventually(t, func() bool {
		w := env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/processes/%d", resp.PID), nil, nil)
		if w.Code != http.StatusOK {
			return false
		}
		out := decode[process.Output](t, w)
		return len(out.Stdout) == 1 && out.Stdout[0] == want
	}, 5*time.Second, 20*time.Millisecond)

	w := env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/processes/%d", resp.PID), nil, nil)
	out := decode[process.Output](t, w)
	assert.True(t, out.Running)
	assert.Equal(t, resp.PID, out.PID)
	assert.Empty(t, out.Stderr)
}

func TestStartProcess_NameDefaultsToHost(t *testing.T) {
	env := newTestEnv(t)
	writeWorker(t, env.workDir, 0o755)

	// httptest requests are addressed to example.com.
	w := env.do(t, http.MethodPost, "/api/v1/processes", StartProcessRequest{Pool: "p"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	resp := decode[StartProcessResponse](t, w)
	assert.True(t, strings.HasPrefix(resp.Worker, "example.com"), "worker = %q", resp.Worker)
}

func TestStartProcess_BadRequests(t *testing.T) {
	env := newTestEnv(t)
	writeWorker(t, env.workDir, 0o755)

	w := env.do(t, http.MethodPost, "/api/v1/processes", "{not json", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/processes", StartProcessRequest{Name: "rig"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrCodeBadRequest, decode[Error](t, w).Code)
}

func TestStartProcess_ExecutableMissing(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/processes", StartProcessRequest{Pool: "p", Name: "rig"}, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ErrCodeNotExecutable, decode[Error](t, w).Code)

	diag, err := os.ReadFile(filepath.Join(env.workDir, "diag.txt"))
	require.NoError(t, err)
	assert.Equal(t, "worker not found.", string(diag))
}

func TestStartProcess_SpawnFailureWritesDiagnostic(t *testing.T) {
	env := newTestEnv(t)
	writeWorker(t, env.workDir, 0o644) // present but not executable

	w := env.do(t, http.MethodPost, "/api/v1/processes", StartProcessRequest{Pool: "p", Name: "rig"}, nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, ErrCodeSpawnFailed, decode[Error](t, w).Code)

	diag, err := os.ReadFile(filepath.Join(env.workDir, "diag.txt"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(diag), "Exception: "), "diag = %q", diag)
	assert.Zero(t, env.srv.manager.Count())
}

// =============================================================================
// List, get, stop
// =============================================================================

func TestListProcesses(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/processes", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]process.Info](t, w))

	writeWorker(t, env.workDir, 0o755)
	a := startWorker(t, env, "a")
	b := startWorker(t, env, "b")

	w = env.do(t, http.MethodGet, "/api/v1/processes", nil, nil)
	infos := decode[[]process.Info](t, w)
	require.Len(t, infos, 2)

	pids := []int{infos[0].PID, infos[1].PID}
	assert.ElementsMatch(t, []int{a.PID, b.PID}, pids)
	for _, info := range infos {
		assert.False(t, info.HasExited)
		assert.NotNil(t, info.StartTime)
	}
}

func TestGetProcess_Errors(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/processes/abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/processes/-4", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/processes/999999", nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	e := decode[Error](t, w)
	assert.Equal(t, ErrCodeNotSupervised, e.Code)
	assert.Equal(t, "No tracked process with PID 999999.", e.Message)
}

func TestStopProcess(t *testing.T) {
	env := newTestEnv(t)
	writeWorker(t, env.workDir, 0o755)
	resp := startWorker(t, env, "rig")

	path := fmt.Sprintf("/api/v1/processes/%d", resp.PID)
	w := env.do(t, http.MethodDelete, path, nil, nil)
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())

	stop := decode[StopProcessResponse](t, w)
	assert.Equal(t, resp.PID, stop.PID)
	assert.Equal(t, fmt.Sprintf("Process with PID %d stopped.", resp.PID), stop.Message)
	assert.False(t, stop.TimedOut)

	w = env.do(t, http.MethodGet, path, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodDelete, path, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStopAll(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodDelete, "/api/v1/processes", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, decode[StopAllResponse](t, w).Stopped)

	writeWorker(t, env.workDir, 0o755)
	startWorker(t, env, "a")
	startWorker(t, env, "b")

	w = env.do(t, http.MethodDelete, "/api/v1/processes", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[StopAllResponse](t, w)
	assert.Equal(t, 2, res.Stopped)
	assert.Zero(t, res.Failures)
	assert.Len(t, res.Outcomes, 2)
	assert.Zero(t, env.srv.manager.Count())
}

func TestRequestHost(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"example.com", "example.com"},
		{"example.com:8080", "example.com"},
		{"[::1]:8080", "::1"},
	}
	for _, tt := range tests {
		r, err := http.NewRequest(http.MethodGet, "/", nil)
		require.NoError(t, err)
		r.Host = tt.host
		assert.Equal(t, tt.want, requestHost(r), "host %q", tt.host)
	}
}

// =============================================================================
// Legacy routes
// =============================================================================

func TestLegacyRoutes(t *testing.T) {
	env := newTestEnv(t)
	writeWorker(t, env.workDir, 0o755)

	w := env.do(t, http.MethodGet, "/start/pool.example:3333?name=legacy", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, "body: %s", w.Body.String())
	started := decode[map[string]any](t, w)
	pid := int(started["pid"].(float64))
	assert.Positive(t, pid)
	assert.Contains(t, started["message"], "worker=legacy")

	w = env.do(t, http.MethodGet, "/status", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]process.Info](t, w), 1)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/status/%d", pid), nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/stop/%d", pid), nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/stop/%d", pid), nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	startWorker(t, env, "x")
	w = env.do(t, http.MethodGet, "/stopall", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1 processes stopped.", decode[map[string]any](t, w)["message"])
}

func TestLegacyRoutes_Disabled(t *testing.T) {
	env := newTestEnv(t, withoutLegacyRoutes())

	w := env.do(t, http.MethodGet, "/status", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
