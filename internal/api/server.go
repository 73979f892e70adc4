// Package api exposes the enrichment pipeline as a local JSON HTTP API.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shpitdev/zuno-lead-enrichment/internal/app"
	"github.com/shpitdev/zuno-lead-enrichment/internal/lead"
	"github.com/shpitdev/zuno-lead-enrichment/internal/pipeline"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	app        *app.App
	logger     *zap.Logger
	router     http.Handler
	httpServer *http.Server

	// ctx outlives requests so background batches keep running; Shutdown cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	session session
}

// session is the single analyst's working state between requests.
type session struct {
	fileName string
	leads    []lead.Lead
	manual   *pipeline.Row
}

func NewServer(a *app.App, addr string) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		app:    a,
		logger: a.Logger.Named("api"),
		ctx:    ctx,
		cancel: cancel,
	}
	s.router = s.setupRouter()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler is the routed API, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until Shutdown. It never returns http.ErrServerClosed.
func (s *Server) Start() error {
	s.logger.Info("api listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve is Start on an existing listener.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("api listening", zap.String("addr", l.Addr().String()))
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and aborts any running batch.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	err := s.httpServer.Shutdown(ctx)
	s.app.Orchestrator.Wait()
	return err
}
