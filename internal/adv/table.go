package adv

import (
	"encoding/csv"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// RawTable is a sparse CSV table with normalized column lookup. Raw FOIA
// files disagree on header casing and parenthesization between periods, so
// all access goes through the normalized index.
type RawTable struct {
	Header []string
	Index  map[string]int
	Rows   [][]string
}

// NewTable creates an empty table with the given header.
func NewTable(header []string) *RawTable {
	return &RawTable{
		Header: header,
		Index:  MapColumns(header),
	}
}

// HasColumn reports whether the table has the named column.
func (t *RawTable) HasColumn(name string) bool {
	_, ok := t.Index[NormalizeCol(name)]
	return ok
}

// Get returns a column value from a row by normalized name, or "" if the
// column is absent or the row is short.
func (t *RawTable) Get(row []string, name string) string {
	idx, ok := t.Index[NormalizeCol(name)]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// FirstNonEmpty returns the first non-empty value from the named columns.
// Used for columns with different names between formats (e.g. "1A" vs "1B1").
func (t *RawTable) FirstNonEmpty(row []string, names ...string) string {
	for _, name := range names {
		if v := TrimQuotes(t.Get(row, name)); v != "" {
			return v
		}
	}
	return ""
}

// AnyBoolYN returns true if ANY of the named columns is "Y".
func (t *RawTable) AnyBoolYN(row []string, names ...string) bool {
	for _, name := range names {
		if ParseBoolYN(t.Get(row, name)) {
			return true
		}
	}
	return false
}

// ReadCSVFile loads a CSV file with encoding fallback and returns the parsed
// table plus the name of the encoding used.
func ReadCSVFile(path string) (*RawTable, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", eris.Wrapf(err, "adv: read %s", path)
	}

	text, encName, err := Decode(data)
	if err != nil {
		return nil, "", eris.Wrapf(err, "adv: decode %s", path)
	}

	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, "", eris.Wrapf(err, "adv: parse %s", path)
	}
	if len(records) == 0 {
		return nil, "", eris.Errorf("adv: %s has no header row", path)
	}

	t := NewTable(records[0])
	t.Rows = records[1:]
	return t, encName, nil
}

// WriteCSVFile writes the table to a CSV file, padding short rows so every
// record has the full header width.
func (t *RawTable) WriteCSVFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "adv: create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.Header); err != nil {
		return eris.Wrapf(err, "adv: write header to %s", path)
	}
	for _, row := range t.Rows {
		if len(row) < len(t.Header) {
			padded := make([]string, len(t.Header))
			copy(padded, row)
			row = padded
		}
		if err := w.Write(row[:len(t.Header)]); err != nil {
			return eris.Wrapf(err, "adv: write row to %s", path)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrapf(err, "adv: flush %s", path)
	}
	return nil
}
