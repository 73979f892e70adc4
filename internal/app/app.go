// Package app assembles the enrichment pipeline from configuration.
package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/shpitdev/zuno-lead-enrichment/internal/config"
	"github.com/shpitdev/zuno-lead-enrichment/internal/enrich"
	"github.com/shpitdev/zuno-lead-enrichment/internal/enrich/gemini"
	"github.com/shpitdev/zuno-lead-enrichment/internal/monitoring"
	"github.com/shpitdev/zuno-lead-enrichment/internal/pipeline"
	"github.com/shpitdev/zuno-lead-enrichment/internal/workspace"
	"github.com/shpitdev/zuno-lead-enrichment/pkg/blob"
)

// ErrMissingAPIKey is returned by New when Gemini is selected but no key is configured.
var ErrMissingAPIKey = errors.New("app: Gemini API key not configured (set GEMINI_API_KEY or gemini.api_key)")

type Options struct {
	// Enricher replaces the Gemini client, e.g. with enrich.Stub for offline runs. Nearby
	// scans find nothing unless it also implements enrich.NearbyFinder.
	Enricher enrich.Enricher

	Logger *zap.Logger
	// Registry receives the application metrics. Defaults to a fresh registry with the
	// Go and process collectors.
	Registry *prometheus.Registry
}

// App holds the long-lived components shared by the CLI and the HTTP API.
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	Enricher     enrich.Enricher
	Nearby       enrich.NearbyFinder
	Orchestrator *pipeline.Orchestrator
	Workspaces   *workspace.Store
	Metrics      *monitoring.Metrics
	Registry     *prometheus.Registry
	Location     *time.Location

	blob blob.Store
}

// New builds every component and loads the saved workspaces.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	loc, err := cfg.Export.Location()
	if err != nil {
		return nil, err
	}

	enricher := opts.Enricher
	if enricher == nil {
		if strings.TrimSpace(cfg.Gemini.APIKey) == "" {
			return nil, ErrMissingAPIKey
		}
		g, err := gemini.New(ctx, gemini.Config{
			APIKey:  cfg.Gemini.APIKey,
			Model:   cfg.Gemini.Model,
			BaseURL: cfg.Gemini.BaseURL,
			Logger:  logger.Named("gemini"),
		})
		if err != nil {
			return nil, err
		}
		logger.Info("gemini enricher ready", zap.String("model", g.Model()))
		enricher = g
	}
	metrics := monitoring.NewMetrics(reg)
	ws, b, err := OpenWorkspaces(ctx, cfg.Store, logger, metrics)
	if err != nil {
		return nil, err
	}

	traced := newTracedEnricher(enricher, logger.Named("enrich"))
	orch := pipeline.NewOrchestrator(traced, pipeline.Options{
		Worker:  cfg.Pipeline.WorkerOptions(),
		Logger:  logger.Named("pipeline"),
		Metrics: metrics,
	})

	return &App{
		Config:       cfg,
		Logger:       logger,
		Enricher:     traced,
		Nearby:       traced,
		Orchestrator: orch,
		Workspaces:   ws,
		Metrics:      metrics,
		Registry:     reg,
		Location:     loc,
		blob:         b,
	}, nil
}

// OpenWorkspaces opens the configured storage backend and loads the saved workspaces.
// The caller closes the returned blob store. metrics may be nil.
func OpenWorkspaces(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger, metrics *monitoring.Metrics) (*workspace.Store, blob.Store, error) {
	b, err := blob.Open(ctx, cfg.BlobConfig())
	if err != nil {
		return nil, nil, err
	}
	logger.Info("workspace storage ready", zap.String("driver", cfg.Driver))

	ws := workspace.NewStore(b,
		workspace.WithLogger(logger.Named("workspace")),
		workspace.WithMetrics(metrics),
	)
	ws.Load(ctx)
	return ws, b, nil
}

// Close aborts any running batch, waits for it and releases storage.
func (a *App) Close() error {
	a.Orchestrator.Abort()
	a.Orchestrator.Wait()
	return a.blob.Close()
}
