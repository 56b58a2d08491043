package accounts

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sitebooks/sitebooks/internal/model"
)

// Entry is one chart-of-accounts row. Parents are referenced by code so a
// chart file can be loaded into any company.
type Entry struct {
	Code       string
	Name       string
	Type       model.AccountType
	ParentCode string
	Active     bool
}

const (
	numFields = 5
	colCode   = 0
	colName   = 1
	colType   = 2
	colParent = 3
	colActive = 4
)

var header = []string{"code", "name", "type", "parent_code", "active"}

// ReadEntries reads chart-of-accounts.csv.
func ReadEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// WriteEntries writes chart-of-accounts.csv.
func WriteEntries(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colCode] = e.Code
	row[colName] = e.Name
	row[colType] = string(e.Type)
	row[colParent] = e.ParentCode
	row[colActive] = strconv.FormatBool(e.Active)
	return row
}

// UnmarshalEntry converts a CSV row to an Entry. A blank active column means
// active.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	code := strings.TrimSpace(record[colCode])
	if code == "" {
		return Entry{}, fmt.Errorf("code is empty")
	}
	typ := model.AccountType(strings.ToUpper(strings.TrimSpace(record[colType])))
	if !typ.Valid() {
		return Entry{}, fmt.Errorf("unknown account type %q", record[colType])
	}

	active := true
	if raw := strings.TrimSpace(record[colActive]); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return Entry{}, fmt.Errorf("parsing active %q: %w", raw, err)
		}
		active = v
	}

	return Entry{
		Code:       code,
		Name:       strings.TrimSpace(record[colName]),
		Type:       typ,
		ParentCode: strings.TrimSpace(record[colParent]),
		Active:     active,
	}, nil
}
