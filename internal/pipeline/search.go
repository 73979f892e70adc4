package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/shpitdev/zuno-lead-enrichment/internal/enrich"
	"github.com/shpitdev/zuno-lead-enrichment/internal/lead"
	"github.com/shpitdev/zuno-lead-enrichment/pkg/pipeline/redact"
)

// ManualLeadID is the id given to the single lead of a manual search.
const ManualLeadID = "manual-1"

// ErrAddressRequired rejects a manual search without an address.
var ErrAddressRequired = errors.New("pipeline: property address is required")

// AddressRequiredMessage is what the user sees for ErrAddressRequired.
const AddressRequiredMessage = "Property Address is required."

// SearchResult is the outcome of a manual search. Error is set whenever the row is an
// error row.
type SearchResult struct {
	Row   Row    `json:"row"`
	Error string `json:"error,omitempty"`
}

// Search enriches one manually entered property.
func Search(ctx context.Context, e enrich.Enricher, contactName, address string, mode enrich.Mode) (SearchResult, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return SearchResult{}, ErrAddressRequired
	}
	l := lead.Lead{
		ID:          ManualLeadID,
		ContactName: strings.TrimSpace(contactName),
		Address:     address,
	}

	r, err := e.Enrich(ctx, l, mode)
	if err != nil {
		msg := redact.Message(err)
		return SearchResult{
			Row:   NewRow(l, enrich.Result{Error: msg}),
			Error: msg,
		}, nil
	}

	row := NewRow(l, r)
	out := SearchResult{Row: row}
	if row.AIStatus == enrich.StatusError {
		out.Error = row.AIMessage
		if out.Error == "" {
			out.Error = "Manual search failed with an AI processing error."
		}
	}
	return out, nil
}
