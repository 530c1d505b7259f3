// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/leakcoach/internal/adapters/repository"
	service "github.com/okian/leakcoach/internal/app"
	"github.com/okian/leakcoach/internal/domain/batch"
	"github.com/okian/leakcoach/internal/domain/focus"
	"github.com/okian/leakcoach/internal/domain/model"
	"github.com/okian/leakcoach/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	QueueDependencies
	FocusDependencies
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires HTTP routes for the scheduler API.
type Server struct {
	healthHandler *HealthHandler
	queueHandler  *QueueHandler
	focusHandler  *FocusHandler
	logger        logger.Logger
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithLogger sets the logger used for server-side failures.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPinger enables the /readyz store check.
func WithPinger(p Pinger) Option {
	return func(s *Server) {
		s.healthHandler.pinger = p
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		healthHandler: NewHealthHandler(),
		logger:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.queueHandler = NewQueueHandler(deps, s.logger)
	s.focusHandler = NewFocusHandler(deps, s.logger)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /readyz", MetricsMiddleware(s.healthHandler.HandleReady, "readyz"))
	mux.HandleFunc("POST /queue/build", MetricsMiddleware(RequireUser(s.queueHandler.HandleBuild), "queue_build"))
	mux.HandleFunc("GET /queue", MetricsMiddleware(RequireUser(s.queueHandler.HandleDue), "queue"))
	mux.HandleFunc("POST /queue/{id}/answer", MetricsMiddleware(RequireUser(s.queueHandler.HandleAnswer), "queue_answer"))
	mux.HandleFunc("PUT /queue/{id}/scenario", MetricsMiddleware(RequireUser(s.queueHandler.HandleAttachScenario), "queue_scenario"))
	mux.HandleFunc("GET /focus", MetricsMiddleware(RequireUser(s.focusHandler.HandleGetFocus), "focus"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type buildResponse = batch.Summary

type answerRequest struct {
	Action string `json:"action"`
}

type dueResponse struct {
	Items []model.QueueItem `json:"items"`
}

type focusResponse = focus.Selection

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps service and store sentinels onto status codes.
// Unknown failures are logged and reported without detail.
func writeServiceError(ctx context.Context, w http.ResponseWriter, log logger.Logger, op string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", repository.ErrNotFound)
	case errors.Is(err, repository.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", repository.ErrConflict)
	default:
		log.Error(ctx, "request failed", logger.String("op", op), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}
