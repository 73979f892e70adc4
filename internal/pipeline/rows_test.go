package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shpitdev/zuno-lead-enrichment/internal/enrich"
	"github.com/shpitdev/zuno-lead-enrichment/internal/lead"
)

func ptr(s string) *string { return &s }

func TestNewRow_Flattens(t *testing.T) {
	l := lead.Lead{ID: "7", ContactName: "J Doe", Address: "123 Main St", City: "Frankfort"}
	r := enrich.Result{
		Subject:     "123 Main St",
		BestContact: &enrich.BestContact{Phone: ptr("555-1111"), Confidence: ptr("High")},
		AltContacts: []enrich.AltContact{{Email: ptr("old@owner.test"), Note: "Previous owner <LLC>"}},
		SearchLog:   []string{"q1", "q2"},
		GeneratedAt: "2025-06-01T10:00:00Z",
		GroundingSources: []enrich.GroundingSource{
			{URI: "https://a.example", Title: "A"},
		},
	}

	row := NewRow(l, r)
	assert.Equal(t, l, row.Lead)
	assert.Equal(t, "555-1111", *row.BestPhone)
	assert.Nil(t, row.BestEmail)
	assert.Equal(t, "High", *row.Confidence)
	assert.Equal(t, "[\n  {\n    \"phone\": null,\n    \"email\": \"old@owner.test\",\n    \"note\": \"Previous owner <LLC>\"\n  }\n]", row.AltContactsJSON)
	assert.Equal(t, "q1; q2", row.SearchLogText)
	assert.Equal(t, "[]", row.SourcesJSON)
	assert.Equal(t, enrich.StatusSuccess, row.AIStatus)
	assert.Empty(t, row.AIMessage)
	assert.True(t, row.HasContact())
}

func TestNewRow_SoftError(t *testing.T) {
	row := NewRow(lead.Lead{ID: "1"}, enrich.Result{Error: "timeout"})
	assert.Equal(t, enrich.StatusError, row.AIStatus)
	assert.Equal(t, "timeout", row.AIMessage)
	assert.Nil(t, row.BestPhone)
	assert.False(t, row.HasContact())
	assert.Equal(t, "[]", row.AltContactsJSON)
}

func TestSummarize(t *testing.T) {
	rows := []Row{
		NewRow(lead.Lead{ID: "1", ContactName: "A"}, enrich.Result{Error: "timeout"}),
		NewRow(lead.Lead{ID: "2", ContactName: "B"}, enrich.Result{BestContact: &enrich.BestContact{Phone: ptr("555-1111"), Confidence: ptr("High")}}),
		NewRow(lead.Lead{ID: "3", ContactName: "C"}, enrich.Result{}),
		{Lead: lead.Lead{ID: "4", ContactName: "D"}, AIStatus: enrich.StatusError},
	}

	got := Summarize(rows)
	assert.Equal(t, 4, got.TotalRecords)
	assert.Equal(t, 2, got.ErrorsEncountered)
	assert.Equal(t, 2, got.RecordsSuccessfullyProcessed)
	assert.Equal(t, 1, got.RecordsWithContacts)
	assert.Equal(t, []ErrorDetail{
		{RecordDetail: "A (ID: 1)", Message: "timeout"},
		{RecordDetail: "D (ID: 4)", Message: "Unknown"},
	}, got.DetailedErrors)

	empty := Summarize(nil)
	assert.NotNil(t, empty.DetailedErrors)
}
