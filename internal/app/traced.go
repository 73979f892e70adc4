package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/shpitdev/zuno-lead-enrichment/internal/enrich"
	"github.com/shpitdev/zuno-lead-enrichment/internal/lead"
	"github.com/shpitdev/zuno-lead-enrichment/pkg/pipeline/redact"
	"github.com/shpitdev/zuno-lead-enrichment/pkg/pipeline/worker"
)

// tracedEnricher logs every call with its attempt number, deadline and outcome.
type tracedEnricher struct {
	next enrich.Enricher
	log  *zap.Logger
}

func newTracedEnricher(next enrich.Enricher, log *zap.Logger) *tracedEnricher {
	return &tracedEnricher{next: next, log: log}
}

func (t *tracedEnricher) Enrich(ctx context.Context, l lead.Lead, mode enrich.Mode) (enrich.Result, error) {
	deadlineIn := "none"
	if d, ok := ctx.Deadline(); ok {
		deadlineIn = time.Until(d).Round(time.Millisecond).String()
	}
	log := t.log.With(
		zap.String("lead_id", l.ID),
		zap.String("mode", mode.String()),
		zap.Int("attempt", worker.Attempt(ctx)),
	)
	log.Debug("enrich request", zap.String("query", l.Query()), zap.String("deadline_in", deadlineIn))

	start := time.Now()
	out, err := t.next.Enrich(ctx, l, mode)
	elapsed := time.Since(start).Round(time.Millisecond)

	if err != nil {
		log.Warn("enrich call failed",
			zap.Duration("duration", elapsed),
			zap.Bool("retryable", worker.IsTransient(err)),
			redact.Error(err),
		)
		return out, err
	}
	log.Debug("enrich response",
		zap.Duration("duration", elapsed),
		zap.String("status", string(enrich.Classify(out))),
		zap.Int("grounding_sources", len(out.GroundingSources)),
	)
	return out, nil
}

// FindNearby passes through to the wrapped enricher when it can scan.
func (t *tracedEnricher) FindNearby(ctx context.Context, latitude, longitude float64) []enrich.NearbyProperty {
	nf, ok := t.next.(enrich.NearbyFinder)
	if !ok {
		return []enrich.NearbyProperty{}
	}
	out := nf.FindNearby(ctx, latitude, longitude)
	t.log.Debug("nearby scan", zap.Float64("latitude", latitude), zap.Float64("longitude", longitude), zap.Int("found", len(out)))
	return out
}
