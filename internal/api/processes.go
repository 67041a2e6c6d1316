package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/procwarden/internal/launcher"
	"github.com/nerrad567/procwarden/internal/process"
)

// StartProcessRequest is the body of POST /processes.
type StartProcessRequest struct {
	Pool string `json:"pool"`
	Name string `json:"name,omitempty"`
}

// StartProcessResponse is returned for a successful start.
type StartProcessResponse struct {
	PID     int    `json:"pid"`
	Worker  string `json:"worker"`
	Message string `json:"message"`
}

// StopProcessResponse is returned for a successful stop.
type StopProcessResponse struct {
	Message       string `json:"message"`
	PID           int    `json:"pid"`
	AlreadyExited bool   `json:"already_exited"`
	Forced        bool   `json:"forced"`
	TimedOut      bool   `json:"timed_out"`
}

// StopAllResponse is returned by DELETE /processes.
type StopAllResponse struct {
	Stopped  int                   `json:"stopped"`
	Failures int                   `json:"failures"`
	Outcomes []process.StopOutcome `json:"outcomes"`
}

// startProcess builds and launches a worker. On failure it returns the
// structured error to send; spawn failures are also written to the
// diagnostics file.
func (s *Server) startProcess(ctx context.Context, req launcher.StartRequest) (StartProcessResponse, *Error) {
	s.logger.Info("start requested",
		"pool", req.Pool,
		"name", req.Name,
		"subject", subjectFrom(ctx),
	)

	spec, worker, err := s.launcher.Build(req)
	switch {
	case errors.Is(err, launcher.ErrPoolRequired):
		return StartProcessResponse{}, &Error{Status: http.StatusBadRequest, Code: ErrCodeBadRequest, Message: "pool is required"}
	case errors.Is(err, launcher.ErrExecutableNotFound):
		return StartProcessResponse{}, &Error{
			Status:  http.StatusNotFound,
			Code:    ErrCodeNotExecutable,
			Message: s.launcher.ExecutableName() + " not found in work directory",
		}
	case err != nil:
		s.logger.Error("building launch spec failed", "error", err)
		return StartProcessResponse{}, &Error{Status: http.StatusInternalServerError, Code: ErrCodeInternal, Message: "failed to prepare launch"}
	}

	pid, err := s.manager.Start(ctx, spec)
	if err != nil {
		s.launcher.WriteDiagnostic(err)
		return StartProcessResponse{}, &Error{
			Status:  http.StatusInternalServerError,
			Code:    ErrCodeSpawnFailed,
			Message: "failed to start process, see " + s.launcher.DiagnosticsPath(),
		}
	}

	return StartProcessResponse{
		PID:     pid,
		Worker:  worker,
		Message: "Process started with worker=" + worker,
	}, nil
}

// handleStartProcess launches a worker for the requested pool.
func (s *Server) handleStartProcess(w http.ResponseWriter, r *http.Request) {
	var req StartProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Name == "" {
		req.Name = requestHost(r)
	}

	resp, apiErr := s.startProcess(r.Context(), launcher.StartRequest{Pool: req.Pool, Name: req.Name})
	if apiErr != nil {
		writeJSON(w, apiErr.Status, apiErr)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// handleListProcesses returns every supervised process.
func (s *Server) handleListProcesses(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.List())
}

// handleGetProcess returns the running flag and captured output of one process.
func (s *Server) handleGetProcess(w http.ResponseWriter, r *http.Request) {
	pid, ok := pidParam(w, r)
	if !ok {
		return
	}

	out, err := s.manager.Output(pid)
	if errors.Is(err, process.ErrNotSupervised) {
		writeNotFound(w, ErrCodeNotSupervised, notSupervisedMessage(pid))
		return
	}
	if err != nil {
		writeInternalError(w, ErrCodeInternal, "failed to read process output")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleStopProcess retires one process.
func (s *Server) handleStopProcess(w http.ResponseWriter, r *http.Request) {
	pid, ok := pidParam(w, r)
	if !ok {
		return
	}

	outcome, err := s.manager.Stop(context.WithoutCancel(r.Context()), pid)
	if errors.Is(err, process.ErrNotSupervised) {
		writeNotFound(w, ErrCodeNotSupervised, notSupervisedMessage(pid))
		return
	}
	if err != nil {
		writeInternalError(w, ErrCodeInternal, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, StopProcessResponse{
		Message:       fmt.Sprintf("Process with PID %d stopped.", pid),
		PID:           pid,
		AlreadyExited: outcome.AlreadyExited,
		Forced:        outcome.Forced,
		TimedOut:      outcome.TimedOut,
	})
}

// handleStopAll retires every supervised process.
func (s *Server) handleStopAll(w http.ResponseWriter, r *http.Request) {
	res := s.manager.StopAll(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusOK, StopAllResponse{
		Stopped:  res.Count,
		Failures: res.Failures(),
		Outcomes: res.Outcomes,
	})
}

// pidParam parses the {pid} URL parameter, writing a 400 when malformed.
func pidParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "pid")
	pid, err := strconv.Atoi(raw)
	if err != nil || pid <= 0 {
		writeBadRequest(w, "invalid pid: "+raw)
		return 0, false
	}
	return pid, true
}

func notSupervisedMessage(pid int) string {
	return fmt.Sprintf("No tracked process with PID %d.", pid)
}

// requestHost returns the host the client addressed, without port.
func requestHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.Host)
	if err != nil {
		return r.Host
	}
	return host
}
