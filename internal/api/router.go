package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func (s *Server) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(s.app.Metrics.Middleware)

	r.Get("/metrics", promhttp.HandlerFor(s.app.Registry, promhttp.HandlerOpts{}).ServeHTTP)
	r.Get("/api/health", s.handleHealthCheck)

	r.Route("/api", func(r chi.Router) {
		// Enrichment calls can take well over a minute in deep mode.
		r.Use(middleware.Timeout(5 * time.Minute))

		r.Post("/ingest", s.handleIngest)
		r.Delete("/ingest", s.handleClearIngest)

		r.Post("/batches", s.handleStartBatch)
		r.Get("/batches/current", s.handleCurrentBatch)
		r.Post("/batches/current/abort", s.handleAbortBatch)
		r.Get("/batches/current/export", s.handleExportBatch)

		r.Post("/search", s.handleSearch)
		r.Post("/nearby", s.handleNearby)

		r.Route("/workspaces", func(r chi.Router) {
			r.Get("/", s.handleListWorkspaces)
			r.Post("/", s.handleSaveWorkspace)
			r.Get("/{id}", s.handleGetWorkspace)
			r.Delete("/{id}", s.handleDeleteWorkspace)
			r.Get("/{id}/export", s.handleExportWorkspace)
		})
	})

	return r
}

// requestLogger logs one line per request with its chi request id.
func requestLogger(l *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			l.Info("http request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote", r.RemoteAddr),
			)
		})
	}
}
