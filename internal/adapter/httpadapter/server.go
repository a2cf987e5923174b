// Package httpadapter serves the health, readiness, and metrics endpoints and
// the JSON bloom analysis API.
package httpadapter

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/bloomwatch/internal/analysis"
	"github.com/couchcryptid/bloomwatch/internal/domain"
	"github.com/couchcryptid/bloomwatch/internal/scanner"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Analyzer runs the request-driven analyses.
type Analyzer interface {
	Detect(ctx context.Context, req analysis.DetectRequest) (analysis.DetectReport, error)
	Timeseries(ctx context.Context, req analysis.TimeseriesRequest) (analysis.TimeseriesReport, error)
	Predict(ctx context.Context, req analysis.PredictRequest) (analysis.PredictReport, error)
	CalculateIndices(ctx context.Context, loc domain.Location, date time.Time) (analysis.IndicesReport, error)
}

// RegionScanner scans bounding boxes and predefined regions.
type RegionScanner interface {
	Scan(ctx context.Context, req scanner.Request) (scanner.Result, error)
	ScanRegion(ctx context.Context, key string, start, end time.Time, satellite string, progress func(done, total int)) (scanner.Result, error)
}

// Server exposes the health, readiness, metrics, and API routes.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and the
// /api routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, svc Analyzer, scan RegionScanner, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	s := &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     r,
			ReadTimeout: 10 * time.Second,
			// Region scans fan out to many catalog requests.
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(ready))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	h := &apiHandler{svc: svc, scan: scan, validate: newValidator(), logger: logger}
	r.Route("/api", h.routes)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
