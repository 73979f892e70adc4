package enrich

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shpitdev/zuno-lead-enrichment/internal/lead"
)

// Stub is a deterministic offline Enricher.
//
// Addresses containing "error" fail the call, addresses containing "nomatch" report no
// match, and anything else gets a made-up best contact.
type Stub struct{}

func (Stub) Enrich(ctx context.Context, l lead.Lead, mode Mode) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	addr := strings.ToLower(l.Address)
	now := time.Now().UTC().Format(time.RFC3339)
	switch {
	case strings.Contains(addr, "error"):
		return Result{}, errors.New("forced error")
	case strings.Contains(addr, "nomatch"):
		return Result{
			Subject:     l.Address,
			Status:      string(StatusNoMatch),
			Message:     "No public owner records found.",
			GeneratedAt: now,
		}, nil
	}

	phone := "555-0100"
	confidence := "Low"
	if mode == Deep {
		confidence = "Medium"
	}
	return Result{
		Subject:     l.Query(),
		BestContact: &BestContact{Phone: &phone, Confidence: &confidence},
		SearchLog:   []string{l.Query() + " owner phone"},
		Sources:     []DataSource{{Label: "Stub", URL: "https://example.invalid/" + l.ID, DataPoint: "phone"}},
		GeneratedAt: now,
	}, nil
}
