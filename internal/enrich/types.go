// Package enrich defines what the AI collaborator returns for a lead and how a reply is
// classified.
package enrich

import (
	"context"
	"time"

	"github.com/shpitdev/zuno-lead-enrichment/internal/lead"
	"github.com/shpitdev/zuno-lead-enrichment/pkg/pipeline/core"
)

// Result is the collaborator's reply for a single lead. Field names follow the JSON the
// model is asked to produce.
type Result struct {
	Subject     string       `json:"subject,omitempty"`
	BestContact *BestContact `json:"best_contact,omitempty"`
	AltContacts []AltContact `json:"alt_contacts,omitempty"`
	SearchLog   []string     `json:"search_log,omitempty"`
	Sources     []DataSource `json:"sources,omitempty"`
	GeneratedAt string       `json:"generated_at,omitempty"`

	// Error is a soft failure reported inside an otherwise successful call. Status is
	// only ever "no_match" when the model sets it.
	Error   string `json:"error,omitempty"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`

	// GroundingSources come from the API's grounding metadata, not the model text.
	GroundingSources []GroundingSource `json:"groundingSources,omitempty"`
}

// BestContact is the single most trusted phone/email pair. Nil fields mean the model
// returned null.
type BestContact struct {
	Phone      *string `json:"phone"`
	Email      *string `json:"email"`
	Confidence *string `json:"confidence"`
}

type AltContact struct {
	Phone *string `json:"phone"`
	Email *string `json:"email"`
	Note  string  `json:"note"`
}

type DataSource struct {
	Label     string `json:"label"`
	URL       string `json:"url"`
	DataPoint string `json:"data_point"`
}

type GroundingSource struct {
	URI   string `json:"uri"`
	Title string `json:"title,omitempty"`
}

// NearbyProperty is one opportunity returned by a location scan.
type NearbyProperty struct {
	ID               string `json:"id"`
	Address          string `json:"address"`
	City             string `json:"city"`
	State            string `json:"state"`
	Description      string `json:"description"`
	ReasonForBenefit string `json:"reasonForBenefit"`
}

// Mode selects the prompt template.
type Mode int

const (
	Standard Mode = iota
	Deep
)

// ModeFor maps the deep-research flag to a Mode.
func ModeFor(deepResearch bool) Mode {
	if deepResearch {
		return Deep
	}
	return Standard
}

// PerItemEstimate is the advisory time one lead takes in this mode. It drives the
// countdown only and is never enforced.
func (m Mode) PerItemEstimate() time.Duration {
	if m == Deep {
		return 35 * time.Second
	}
	return 15 * time.Second
}

func (m Mode) String() string {
	if m == Deep {
		return "deep"
	}
	return "standard"
}

// Enricher looks up contact intelligence for one lead.
//
// A returned error is a hard failure of the call. Soft failures come back as a Result
// with Error set.
type Enricher interface {
	Enrich(ctx context.Context, l lead.Lead, mode Mode) (Result, error)
}

// NearbyFinder scans for opportunities around a coordinate. It never fails; problems
// yield an empty slice.
type NearbyFinder interface {
	FindNearby(ctx context.Context, latitude, longitude float64) []NearbyProperty
}

// TransientError marks an error as retryable by the worker.
type TransientError = core.TransientError

// EnricherFunc adapts a function to the Enricher interface.
type EnricherFunc func(ctx context.Context, l lead.Lead, mode Mode) (Result, error)

func (f EnricherFunc) Enrich(ctx context.Context, l lead.Lead, mode Mode) (Result, error) {
	return f(ctx, l, mode)
}
