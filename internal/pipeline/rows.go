// Package pipeline runs leads through the AI collaborator one at a time and shapes the
// results for display, storage and export.
package pipeline

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shpitdev/zuno-lead-enrichment/internal/enrich"
	"github.com/shpitdev/zuno-lead-enrichment/internal/lead"
)

// Row is a lead joined with its flattened enrichment result. JSON field names match the
// stored workspace format.
type Row struct {
	lead.Lead

	Subject    string  `json:"subject,omitempty"`
	BestPhone  *string `json:"best_phone,omitempty"`
	BestEmail  *string `json:"best_email,omitempty"`
	Confidence *string `json:"confidence,omitempty"`

	AltContactsJSON string `json:"alt_contacts_json,omitempty"`
	SearchLogText   string `json:"search_log_text,omitempty"`
	SourcesJSON     string `json:"sources_json,omitempty"`

	GeneratedAt string        `json:"generated_at,omitempty"`
	AIStatus    enrich.Status `json:"ai_status,omitempty"`
	AIMessage   string        `json:"ai_message,omitempty"`

	GroundingSources []enrich.GroundingSource `json:"groundingSources,omitempty"`
}

// NewRow classifies r and flattens it onto l.
func NewRow(l lead.Lead, r enrich.Result) Row {
	row := Row{
		Lead:             l,
		Subject:          r.Subject,
		AltContactsJSON:  indentedJSON(r.AltContacts),
		SearchLogText:    strings.Join(r.SearchLog, "; "),
		SourcesJSON:      indentedJSON(r.Sources),
		GeneratedAt:      r.GeneratedAt,
		AIStatus:         enrich.Classify(r),
		AIMessage:        enrich.Message(r),
		GroundingSources: r.GroundingSources,
	}
	if bc := r.BestContact; bc != nil {
		row.BestPhone = bc.Phone
		row.BestEmail = bc.Email
		row.Confidence = bc.Confidence
	}
	return row
}

// HasContact reports whether the row carries a best phone or email.
func (r Row) HasContact() bool {
	return deref(r.BestPhone) != "" || deref(r.BestEmail) != ""
}

// indentedJSON renders v with two-space indentation, "[]" for empty slices.
func indentedJSON[T any](v []T) string {
	if len(v) == 0 {
		return "[]"
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "[]"
	}
	return strings.TrimRight(buf.String(), "\n")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// ErrorDetail names one failed record in a Summary.
type ErrorDetail struct {
	RecordDetail string `json:"recordDetail"`
	Message      string `json:"message"`
}

// Summary aggregates one completed batch.
type Summary struct {
	TotalRecords                 int           `json:"totalRecords"`
	RecordsSuccessfullyProcessed int           `json:"recordsSuccessfullyProcessed"`
	RecordsWithContacts          int           `json:"recordsWithContacts"`
	ErrorsEncountered            int           `json:"errorsEncountered"`
	DetailedErrors               []ErrorDetail `json:"detailedErrors"`
}

// Summarize counts rows by outcome. Every error row contributes one DetailedErrors entry.
func Summarize(rows []Row) Summary {
	s := Summary{
		TotalRecords:   len(rows),
		DetailedErrors: []ErrorDetail{},
	}
	for _, r := range rows {
		if r.HasContact() {
			s.RecordsWithContacts++
		}
		if r.AIStatus != enrich.StatusError {
			continue
		}
		s.ErrorsEncountered++
		msg := r.AIMessage
		if msg == "" {
			msg = "Unknown"
		}
		s.DetailedErrors = append(s.DetailedErrors, ErrorDetail{
			RecordDetail: r.ContactName + " (ID: " + r.ID + ")",
			Message:      msg,
		})
	}
	s.RecordsSuccessfullyProcessed = s.TotalRecords - s.ErrorsEncountered
	return s
}
