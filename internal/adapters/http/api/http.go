// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/exposurerisk/internal/adapters/http/bind"
	"github.com/okian/exposurerisk/internal/adapters/mq/queue"
	"github.com/okian/exposurerisk/internal/adapters/repository"
	"github.com/okian/exposurerisk/internal/domain/detection"
	"github.com/okian/exposurerisk/internal/domain/model"
	"github.com/okian/exposurerisk/internal/domain/scoring"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Submit queues a run for async evaluation. duplicate reports a run ID
	// that was accepted before.
	Submit(ctx context.Context, run model.DetectionRun) (runID string, duplicate bool, err error)

	// Result and Recent expose stored runs.
	Result(ctx context.Context, runID string) (repository.Record, error)
	Recent(ctx context.Context, n int) ([]repository.Record, error)

	// Evaluate scores a run synchronously.
	Evaluate(ctx context.Context, run model.DetectionRun) (detection.Result, error)

	// Current returns the active scoring configuration.
	Current() *scoring.Configuration
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler        *HealthHandler
	statsHandler         *StatsHandler
	detectionsHandler    *DetectionsHandler
	scoreHandler         *ScoreHandler
	configurationHandler *ConfigurationHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:        NewHealthHandler(),
		statsHandler:         NewStatsHandler(statsProvider),
		detectionsHandler:    NewDetectionsHandler(deps),
		scoreHandler:         NewScoreHandler(deps),
		configurationHandler: NewConfigurationHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", MetricsMiddleware(s.healthHandler.HandleHealth, "metrics"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /detections", MetricsMiddleware(s.detectionsHandler.HandlePostDetection, "detections"))
	mux.HandleFunc("GET /detections", MetricsMiddleware(s.detectionsHandler.HandleListDetections, "detections"))
	mux.HandleFunc("GET /detections/{id}", MetricsMiddleware(s.detectionsHandler.HandleGetDetection, "detection"))
	mux.HandleFunc("POST /score", MetricsMiddleware(s.scoreHandler.HandleScore, "score"))
	mux.HandleFunc("GET /configuration", MetricsMiddleware(s.configurationHandler.HandleGetConfiguration, "configuration"))
}

// writeFailure maps err onto a status and error code.
func writeFailure(w http.ResponseWriter, op string, err error) {
	var fe *bind.FieldError
	switch {
	case errors.As(err, &fe):
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "bad_request", Message: fe.Message, Field: fe.Field})
	case errors.Is(err, bind.ErrBodyTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, bind.ErrEmptyBody), errors.Is(err, bind.ErrInvalidJSON), errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, detection.ErrTooManyWindows):
		writeError(w, http.StatusBadRequest, "too_many_windows", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, queue.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
	case errors.Is(err, queue.ErrQueueClosed):
		writeError(w, http.StatusServiceUnavailable, "unavailable", NewKind(op, ErrUnavailable))
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
	case errors.Is(err, scoring.ErrInvalidConfiguration):
		writeError(w, http.StatusUnprocessableEntity, "invalid_configuration", WrapKind(op, ErrUnprocessable, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal", Wrap(op, err))
	}
}
