package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// DelimitedReader reads CSV-like text with a header row.
type DelimitedReader struct {
	Name  string
	Comma rune
}

// Format returns the reader name.
func (d *DelimitedReader) Format() string { return d.Name }

// Read parses the header and rows. Rows shorter than the header are padded.
func (d *DelimitedReader) Read(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = d.Comma
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("reading %s: %w", d.Name, err)
	}
	return tableFromRecords(records), nil
}

// XLSXReader reads a worksheet of an .xlsx workbook. An empty Sheet means the
// first sheet.
type XLSXReader struct {
	Sheet string
}

// Format returns the reader name.
func (x *XLSXReader) Format() string { return "xlsx" }

// Read parses the sheet's first row as the header.
func (x *XLSXReader) Read(r io.Reader) (Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Table{}, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheet := x.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return Table{}, nil
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return Table{}, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}
	return tableFromRecords(rows), nil
}

func tableFromRecords(records [][]string) Table {
	if len(records) == 0 {
		return Table{}
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	t := Table{Columns: header}
	for _, rec := range records[1:] {
		row := make(Row, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			if i < len(rec) {
				row[col] = strings.TrimSpace(rec[i])
			} else {
				row[col] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}
