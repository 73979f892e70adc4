package app_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/shpitdev/zuno-lead-enrichment/internal/app"
	"github.com/shpitdev/zuno-lead-enrichment/internal/config"
	"github.com/shpitdev/zuno-lead-enrichment/internal/enrich"
	"github.com/shpitdev/zuno-lead-enrichment/internal/lead"
	"github.com/shpitdev/zuno-lead-enrichment/internal/mockgemini"
	"github.com/shpitdev/zuno-lead-enrichment/internal/pipeline"
	localio "github.com/shpitdev/zuno-lead-enrichment/pkg/pipeline/io/local"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Gemini: config.GeminiConfig{APIKey: "test-key", Model: "gemini-test"},
		Store:  config.StoreConfig{Driver: "file", Dir: t.TempDir()},
		Log:    config.LogConfig{Level: "debug", Format: "console"},
		Export: config.ExportConfig{Timezone: "UTC"},
	}
}

func newApp(t *testing.T, cfg *config.Config, opts app.Options) *app.App {
	t.Helper()
	opts.Logger = zaptest.NewLogger(t)
	a, err := app.New(context.Background(), cfg, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

const leadsCSV = "Owner - Contact,Address,City\nJ Doe,123 Main St,Louisville\nNo Address,,\nA Smith,9 Elm Ave,\n"

func TestRunLocal_EndToEndAgainstMockGemini(t *testing.T) {
	srv := mockgemini.New()
	srv.RequireAPIKey("test-key")
	srv.Respond(func(c mockgemini.Call) mockgemini.Reply {
		if strings.Contains(c.Prompt, "123 Main St") {
			return mockgemini.Reply{
				Text:      `{"subject":"123 Main St","best_contact":{"phone":"555-1111","email":null,"confidence":"High"},"generated_at":"2026-01-02T15:04:05Z"}`,
				Grounding: []mockgemini.Chunk{{URI: "https://pva.example/1", Title: "PVA"}},
			}
		}
		return mockgemini.Reply{Text: `{"status":"no_match","message":"No public records."}`}
	})
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)

	cfg := testConfig(t)
	cfg.Gemini.BaseURL = hs.URL
	a := newApp(t, cfg, app.Options{})

	dir := t.TempDir()
	input := filepath.Join(dir, "leads.csv")
	require.NoError(t, os.WriteFile(input, []byte(leadsCSV), 0o644))
	output := filepath.Join(dir, "out.csv")

	final, written, err := a.RunLocal(context.Background(), input, output, enrich.Standard)
	require.NoError(t, err)
	assert.Equal(t, output, written)
	assert.Equal(t, pipeline.Completed, final.Phase)
	require.Len(t, final.Rows, 2)
	assert.Equal(t, []string{"1", "3"}, []string{final.Rows[0].ID, final.Rows[1].ID})
	require.NotNil(t, final.Summary)
	assert.Equal(t, 2, final.Summary.TotalRecords)
	assert.Equal(t, 1, final.Summary.RecordsWithContacts)
	assert.Equal(t, 0, final.Summary.ErrorsEncountered)
	assert.Len(t, srv.Calls(), 2)

	b, err := os.ReadFile(output)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(b)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, pipeline.ExportHeader(), records[0])
	assert.Equal(t, "J Doe", records[1][0])
	assert.Equal(t, "123 Main St, Louisville", records[1][1])
	assert.Equal(t, "555-1111", records[1][3])
	assert.Equal(t, "1/2/2026, 3:04:05 PM", records[1][6])
	assert.Equal(t, "success", records[1][7])
	assert.Equal(t, "https://pva.example/1", records[1][12])
	assert.Equal(t, "no_match", records[2][7])
	assert.Equal(t, "No public records.", records[2][8])
}

func TestRunLocal_DefaultOutputIsXLSX(t *testing.T) {
	a := newApp(t, testConfig(t), app.Options{Enricher: enrich.Stub{}})

	dir := t.TempDir()
	input := filepath.Join(dir, "leads.csv")
	require.NoError(t, os.WriteFile(input, []byte(leadsCSV), 0o644))

	_, written, err := a.RunLocal(context.Background(), input, "", enrich.Deep)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Zuno_leads.xlsx"), written)

	b, err := os.ReadFile(written)
	require.NoError(t, err)
	rows, err := localio.ReadXLSX(b)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "555-0100", rows[0]["Best Phone"])
	assert.Equal(t, "Medium", rows[0]["Confidence"])
}

func TestRunLocal_InputErrors(t *testing.T) {
	a := newApp(t, testConfig(t), app.Options{Enricher: enrich.Stub{}})
	dir := t.TempDir()

	txt := filepath.Join(dir, "leads.txt")
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0o644))
	_, _, err := a.RunLocal(context.Background(), txt, "", enrich.Standard)
	assert.ErrorIs(t, err, localio.ErrUnsupportedFileType)

	noAddr := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(noAddr, []byte("Name\nJ Doe\n"), 0o644))
	_, _, err = a.RunLocal(context.Background(), noAddr, "", enrich.Standard)
	assert.ErrorIs(t, err, lead.ErrNoValidLeads)

	good := filepath.Join(dir, "good.csv")
	require.NoError(t, os.WriteFile(good, []byte(leadsCSV), 0o644))
	_, _, err = a.RunLocal(context.Background(), good, filepath.Join(dir, "out.pdf"), enrich.Standard)
	assert.Error(t, err)

	_, _, err = a.RunLocal(context.Background(), filepath.Join(dir, "missing.csv"), "", enrich.Standard)
	assert.Error(t, err)
}

func TestDecodeLeads_CorruptWorkbook(t *testing.T) {
	_, err := app.DecodeLeads("leads.xlsx", []byte("not a zip"))
	require.ErrorIs(t, err, lead.ErrDecode)
	assert.Equal(t, "Parse failed: File data could not be read.", lead.ParseError(err))
}

func TestNew_RequiresAPIKeyForGemini(t *testing.T) {
	cfg := testConfig(t)
	cfg.Gemini.APIKey = "  "
	_, err := app.New(context.Background(), cfg, app.Options{Logger: zaptest.NewLogger(t)})
	assert.ErrorIs(t, err, app.ErrMissingAPIKey)
}

func TestNew_LoadsSavedWorkspaces(t *testing.T) {
	cfg := testConfig(t)

	first, err := app.New(context.Background(), cfg, app.Options{Enricher: enrich.Stub{}, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	row := pipeline.NewRow(lead.Lead{ID: "1", ContactName: "J Doe", Address: "123 Main St"}, enrich.Result{})
	saved, err := first.Workspaces.Save(context.Background(), []pipeline.Row{row}, "Downtown")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := newApp(t, cfg, app.Options{Enricher: enrich.Stub{}})
	got, err := second.Workspaces.Get(saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Downtown", got.Name)

	out := filepath.Join(t.TempDir(), "ws.csv")
	require.NoError(t, app.WriteExport(out, pipeline.FormatCSV, got.Searches, second.Location))
	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(b), "123 Main St")
}

func TestNearby_WithoutFinderIsEmpty(t *testing.T) {
	a := newApp(t, testConfig(t), app.Options{Enricher: enrich.Stub{}})
	got := a.Nearby.FindNearby(context.Background(), 38.25, -85.75)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
