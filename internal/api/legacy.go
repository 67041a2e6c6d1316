package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/procwarden/internal/launcher"
)

// mountLegacyRoutes serves the flat GET routes older clients call.
//
//	GET /start/{pool}?name=
//	GET /status
//	GET /status/{pid}
//	GET /stop/{pid}
//	GET /stopall
func (s *Server) mountLegacyRoutes(r chi.Router) {
	r.Get("/start/{pool}", s.handleLegacyStart)
	r.Get("/status", s.handleListProcesses)
	r.Get("/status/{pid}", s.handleGetProcess)
	r.Get("/stop/{pid}", s.handleStopProcess)
	r.Get("/stopall", s.handleLegacyStopAll)
}

// handleLegacyStart starts a worker; name defaults to the request host.
func (s *Server) handleLegacyStart(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		name = requestHost(r)
	}

	resp, apiErr := s.startProcess(r.Context(), launcher.StartRequest{
		Pool: chi.URLParam(r, "pool"),
		Name: name,
	})
	if apiErr != nil {
		writeJSON(w, apiErr.Status, apiErr)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": resp.Message,
		"pid":     resp.PID,
	})
}

// handleLegacyStopAll stops everything and reports the count as a message.
func (s *Server) handleLegacyStopAll(w http.ResponseWriter, r *http.Request) {
	res := s.manager.StopAll(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  fmt.Sprintf("%d processes stopped.", res.Count),
		"stopped":  res.Count,
		"failures": res.Failures(),
	})
}
