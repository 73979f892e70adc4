// Package local decodes uploaded spreadsheets into header-keyed rows.
package local

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ErrUnsupportedFileType is returned by Decode for anything that is not a spreadsheet.
var ErrUnsupportedFileType = errors.New("local: unsupported file type")

// UnsupportedFileTypeMessage is what an uploader is told when Decode rejects the file.
const UnsupportedFileTypeMessage = "Invalid file type. Please upload an .xlsx or .xls file."

// Row is one data row keyed by its column header.
type Row = map[string]any

// Decode picks a reader from the file extension.
func Decode(fileName string, data []byte) ([]Row, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xls":
		return ReadXLSX(data)
	case ".csv":
		return ReadCSV(bytes.NewReader(data))
	default:
		return nil, ErrUnsupportedFileType
	}
}

// ReadXLSX reads the first sheet of a workbook. The first row is the header; blank rows
// are skipped and cells beyond the header are ignored.
func ReadXLSX(data []byte) ([]Row, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open workbook")
	}
	if len(f.Sheets) == 0 {
		return nil, nil
	}

	var records [][]string
	for _, row := range f.Sheets[0].Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		records = append(records, cells)
	}
	return toRows(records), nil
}

// ReadCSV reads comma-separated text with the same header conventions as ReadXLSX.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "csv: read records")
	}
	return toRows(records), nil
}

func toRows(records [][]string) []Row {
	if len(records) == 0 {
		return nil
	}
	header := headerKeys(records[0])

	var out []Row
	for _, rec := range records[1:] {
		row := Row{}
		for i, v := range rec {
			if i >= len(header) || strings.TrimSpace(v) == "" {
				continue
			}
			row[header[i]] = v
		}
		if len(row) == 0 {
			continue
		}
		out = append(out, row)
	}
	return out
}

// headerKeys names blank header cells __EMPTY, __EMPTY_1, ... and suffixes repeated
// names with _1, _2, ...
func headerKeys(cells []string) []string {
	used := make(map[string]struct{}, len(cells))
	suffix := make(map[string]int)
	keys := make([]string, len(cells))
	for i, c := range cells {
		base := strings.TrimSpace(c)
		if base == "" {
			base = "__EMPTY"
		}
		key := base
		if _, dup := used[key]; dup {
			for n := suffix[base] + 1; ; n++ {
				cand := base + "_" + strconv.Itoa(n)
				if _, taken := used[cand]; !taken {
					suffix[base] = n
					key = cand
					break
				}
			}
		}
		used[key] = struct{}{}
		keys[i] = key
	}
	return keys
}
