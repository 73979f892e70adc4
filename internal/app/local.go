package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shpitdev/zuno-lead-enrichment/internal/enrich"
	"github.com/shpitdev/zuno-lead-enrichment/internal/lead"
	"github.com/shpitdev/zuno-lead-enrichment/internal/pipeline"
	localio "github.com/shpitdev/zuno-lead-enrichment/pkg/pipeline/io/local"
)

// DecodeLeads turns an uploaded spreadsheet into leads. Errors are either
// localio.ErrUnsupportedFileType or one of the lead ingestion errors; lead.ParseError
// renders the latter for the user.
func DecodeLeads(fileName string, data []byte) ([]lead.Lead, error) {
	rows, err := localio.Decode(fileName, data)
	if err != nil {
		if errors.Is(err, localio.ErrUnsupportedFileType) {
			return nil, err
		}
		return nil, lead.DecodeError(err)
	}
	return lead.Ingest(rows)
}

// ReadLeads decodes the spreadsheet at path.
func ReadLeads(path string) ([]lead.Lead, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "app: read %s", path)
	}
	return DecodeLeads(filepath.Base(path), data)
}

// RunLocal reads a local lead spreadsheet, enriches every lead and writes the export.
// An empty outputPath writes Zuno_<input>.xlsx next to the input; otherwise the format
// follows the output extension.
func (a *App) RunLocal(ctx context.Context, inputPath, outputPath string, mode enrich.Mode) (pipeline.State, string, error) {
	leads, err := ReadLeads(inputPath)
	if err != nil {
		return pipeline.State{}, "", err
	}
	a.Logger.Info("leads loaded", zap.String("input", inputPath), zap.Int("leads", len(leads)))

	format := pipeline.FormatXLSX
	if outputPath == "" {
		outputPath = filepath.Join(filepath.Dir(inputPath), pipeline.ExportFileName(inputPath, format))
	} else if ext := strings.TrimPrefix(filepath.Ext(outputPath), "."); ext != "" {
		if format, err = pipeline.ParseFormat(ext); err != nil {
			return pipeline.State{}, "", err
		}
	}

	final, err := a.Orchestrator.Run(ctx, leads, mode)
	if err != nil {
		return pipeline.State{}, "", err
	}

	if err := WriteExport(outputPath, format, final.Rows, a.Location); err != nil {
		return final, "", err
	}
	a.Logger.Info("export written", zap.String("output", outputPath), zap.Int("rows", len(final.Rows)))
	return final, outputPath, nil
}

// WriteExport encodes rows in format to a new file at path.
func WriteExport(path string, format pipeline.Format, rows []pipeline.Row, loc *time.Location) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "app: create %s", path)
	}
	defer func() {
		_ = f.Close()
	}()

	if err := pipeline.Write(f, format, rows, loc); err != nil {
		return err
	}
	return f.Close()
}
