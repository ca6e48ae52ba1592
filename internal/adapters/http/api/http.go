// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/okian/openab/internal/adapters/render"
	"github.com/okian/openab/internal/domain/assign"
	"github.com/okian/openab/internal/domain/model"
	"github.com/okian/openab/pkg/logger"
)

// Route and cookie defaults.
const (
	defaultRoute        = "/open-ab"
	defaultCookieName   = "assigned_ab_page"
	defaultCookieMaxAge = 30 * 24 * time.Hour
)

// Assigner makes the assignment decision for a request.
type Assigner interface {
	Assign(ctx context.Context, marker string) (model.Decision, error)
}

// ExperimentProvider exposes the served experiment.
type ExperimentProvider interface {
	Experiment() model.Experiment
	Policy() assign.MarkerPolicy
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Assigner
	ExperimentProvider
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	route        string
	cookieName   string
	cookieMaxAge time.Duration
	persist      bool
	logger       logger.Logger

	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	variantHandler    *VariantHandler
	experimentHandler *ExperimentHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, renderer render.Renderer, opts ...Option) *Server {
	s := &Server{
		route:        defaultRoute,
		cookieName:   defaultCookieName,
		cookieMaxAge: defaultCookieMaxAge,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	cookie := cookieSettings{name: s.cookieName, maxAge: s.cookieMaxAge, persist: s.persist}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(deps)
	s.variantHandler = NewVariantHandler(deps, renderer, cookie, s.logger)
	s.experimentHandler = NewExperimentHandler(deps, s.route, cookie)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/experiment", MetricsMiddleware(s.experimentHandler.HandleGetExperiment, "experiment"))
	mux.HandleFunc(s.route, MetricsMiddleware(s.variantHandler.HandleVariant, "variant"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

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
