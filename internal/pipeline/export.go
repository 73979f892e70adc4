package pipeline

import (
	"encoding/csv"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

const (
	ExportSheetName       = "Zuno_Intelligence"
	DefaultExportBaseName = "Zuno_Intelligence_Export"
	notAvailable          = "N/A"
	generatedAtLayout     = "1/2/2006, 3:04:05 PM"
)

// Format is an export file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts "xlsx" (the default for "") and "csv".
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatXLSX:
		return FormatXLSX, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", eris.Errorf("pipeline: unknown export format %q", s)
	}
}

func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// ExportHeader is the column set of every export.
func ExportHeader() []string {
	return []string{
		"Original Contact",
		"Original Address",
		"Subject (from AI)",
		"Best Phone",
		"Best Email",
		"Confidence",
		"Generated At (UTC)",
		"AI Status",
		"AI Message",
		"Alternate Contacts (JSON)",
		"Search Log",
		"Data Sources (JSON)",
		"Web Sources (URLs)",
	}
}

// Records flattens rows into export records, header first. Generated-at timestamps are
// rendered in loc (UTC when nil). The result depends only on its inputs.
func Records(rows []Row, loc *time.Location) [][]string {
	if loc == nil {
		loc = time.UTC
	}
	out := make([][]string, 0, len(rows)+1)
	out = append(out, ExportHeader())
	for _, r := range rows {
		uris := make([]string, 0, len(r.GroundingSources))
		for _, s := range r.GroundingSources {
			uris = append(uris, s.URI)
		}
		status := string(r.AIStatus)
		if status == "" {
			status = "Processed"
		}
		out = append(out, []string{
			r.ContactName,
			r.FullAddress(),
			orNA(r.Subject),
			orNA(deref(r.BestPhone)),
			orNA(deref(r.BestEmail)),
			orNA(deref(r.Confidence)),
			formatGeneratedAt(r.GeneratedAt, loc),
			status,
			orNA(r.AIMessage),
			orEmptyArray(r.AltContactsJSON),
			orNA(r.SearchLogText),
			orEmptyArray(r.SourcesJSON),
			strings.Join(uris, "; "),
		})
	}
	return out
}

// WriteXLSX encodes rows as a single-sheet workbook.
func WriteXLSX(w io.Writer, rows []Row, loc *time.Location) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(ExportSheetName)
	if err != nil {
		return eris.Wrap(err, "xlsx: add sheet")
	}
	for _, rec := range Records(rows, loc) {
		row := sheet.AddRow()
		for _, v := range rec {
			row.AddCell().SetString(v)
		}
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "xlsx: write workbook")
	}
	return nil
}

// WriteCSV encodes rows as CSV with the same columns as WriteXLSX.
func WriteCSV(w io.Writer, rows []Row, loc *time.Location) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(Records(rows, loc)); err != nil {
		return eris.Wrap(err, "csv: write records")
	}
	return nil
}

// Write encodes rows in format f.
func Write(w io.Writer, f Format, rows []Row, loc *time.Location) error {
	if f == FormatCSV {
		return WriteCSV(w, rows, loc)
	}
	return WriteXLSX(w, rows, loc)
}

// ExportFileName names the export of source: Zuno_<source> with the extension set to f,
// or the default name when source is unknown.
func ExportFileName(source string, f Format) string {
	source = strings.TrimSpace(source)
	ext := "." + string(f)
	if source == "" {
		return DefaultExportBaseName + ext
	}
	base := filepath.Base(source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	return "Zuno_" + stem + ext
}

func formatGeneratedAt(s string, loc *time.Location) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return notAvailable
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(loc).Format(generatedAtLayout)
		}
	}
	return s
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}

func orEmptyArray(s string) string {
	if strings.TrimSpace(s) == "" {
		return "[]"
	}
	return s
}
