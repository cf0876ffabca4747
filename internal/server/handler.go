// Package server exposes the conversational agent over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Veraticus/recall/internal/agent"
	"github.com/Veraticus/recall/internal/metrics"
)

// Server routes inbound requests to the actor registry.
type Server struct {
	registry *agent.Registry
	log      *slog.Logger
	recorder metrics.Recorder
}

// New builds the HTTP handler: POST / for agent requests plus health and
// metrics endpoints, wrapped in request-id and logging middleware.
func New(registry *agent.Registry, logger *slog.Logger, recorder metrics.Recorder) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.Nop()
	}

	s := &Server{
		registry: registry,
		log:      logger,
		recorder: recorder,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	return chainMiddlewares(mux, withLogging(logger), withRequestID)
}

// agentRequest is the single request shape: a chat turn, or a reminder
// registration when action is "remind".
type agentRequest struct {
	ID      string  `json:"id"`
	Action  string  `json:"action,omitempty"`
	Message string  `json:"message"`
	Delay   float64 `json:"delay,omitempty"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type remindResponse struct {
	ScheduledID string `json:"scheduledId"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleRoot serves POST /. The mux routes every unregistered path here, so
// anything other than the exact root is a 404.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
		return
	}
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var req agentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.recorder.RequestHandled("validation_error")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		s.recorder.RequestHandled("validation_error")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "id is required"})
		return
	}

	actor := s.registry.Get(req.ID)
	result, err := actor.HandleRequest(r.Context(), agent.Request{
		Action:       req.Action,
		Message:      req.Message,
		DelaySeconds: req.Delay,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.recorder.RequestHandled("ok")
	if result.ScheduledID != "" {
		writeJSON(w, http.StatusOK, remindResponse{ScheduledID: result.ScheduledID})
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Response: result.Response})
}

// writeError maps the agent error taxonomy onto status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *agent.ValidationError
	if errors.As(err, &validationErr) {
		s.recorder.RequestHandled("validation_error")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: validationErr.Error()})
		return
	}

	var upstreamErr *agent.UpstreamError
	if errors.As(err, &upstreamErr) {
		s.recorder.RequestHandled("upstream_error")
		s.log.Error("completion failed", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "completion failed"})
		return
	}

	var schedulerFault *agent.SchedulerFault
	if errors.As(err, &schedulerFault) {
		s.recorder.RequestHandled("scheduler_fault")
		s.log.Error("reminder registration failed", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to schedule reminder"})
		return
	}

	s.recorder.RequestHandled("internal_error")
	s.log.Error("request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
