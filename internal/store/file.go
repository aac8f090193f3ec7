package store

import (
	"context"
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/fiscal-cli/internal/model"
)

// CSVSource reads a snapshot from a CSV file with a header row. Path may be
// an http(s) URL.
type CSVSource struct {
	Path  string
	Label string
}

// Load reads, parses and validates the file.
func (s *CSVSource) Load(ctx context.Context) (*model.Snapshot, error) {
	r, err := openPath(ctx, s.Path)
	if err != nil {
		return nil, err
	}
	defer r.Close() //nolint:errcheck

	records, err := ReadCSV(r)
	if err != nil {
		return nil, err
	}
	entities, err := parseRecords(records)
	if err != nil {
		return nil, eris.Wrapf(err, "store: parse %s", s.Path)
	}
	return newSnapshot(s.Path, s.Label, entities)
}

// Close is a no-op.
func (s *CSVSource) Close() error { return nil }

// ReadCSV reads every record, allowing ragged rows.
func ReadCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "store: read csv")
	}
	return records, nil
}

// XLSXSource reads a snapshot from one worksheet of an XLSX workbook.
// An empty Sheet selects the first worksheet.
type XLSXSource struct {
	Path  string
	Sheet string
	Label string
}

// Load reads, parses and validates the worksheet.
func (s *XLSXSource) Load(ctx context.Context) (*model.Snapshot, error) {
	path := s.Path
	if isRemote(path) {
		tmp, err := downloadTemp(ctx, path, "*.xlsx")
		if err != nil {
			return nil, err
		}
		defer os.Remove(tmp) //nolint:errcheck
		path = tmp
	}

	records, err := ReadXLSX(path, s.Sheet)
	if err != nil {
		return nil, err
	}
	entities, err := parseRecords(records)
	if err != nil {
		return nil, eris.Wrapf(err, "store: parse %s", s.Path)
	}
	return newSnapshot(s.Path, s.Label, entities)
}

// Close is a no-op.
func (s *XLSXSource) Close() error { return nil }

// ReadXLSX returns every row of the named sheet as strings.
func ReadXLSX(path, sheetName string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "store: open xlsx")
	}

	var sheet *xlsx.Sheet
	if sheetName != "" {
		var ok bool
		if sheet, ok = f.Sheet[sheetName]; !ok {
			return nil, eris.Errorf("store: sheet %q not found", sheetName)
		}
	} else {
		if len(f.Sheets) == 0 {
			return nil, eris.New("store: workbook has no sheets")
		}
		sheet = f.Sheets[0]
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func openPath(ctx context.Context, path string) (io.ReadCloser, error) {
	if isRemote(path) {
		return download(ctx, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "store: open %s", path)
	}
	return f, nil
}
