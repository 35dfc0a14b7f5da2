package source

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Table is a parsed CSV document. Every row has len(Columns) cells; short
// records are padded with empty strings.
type Table struct {
	Columns []string
	Rows    [][]string

	index map[string]int
}

// NewTable builds a table from a header and rows, padding or truncating
// each row to the header width.
func NewTable(columns []string, rows [][]string) *Table {
	t := &Table{Columns: columns, index: make(map[string]int, len(columns))}
	for i, c := range columns {
		if _, dup := t.index[c]; !dup {
			t.index[c] = i
		}
	}
	t.Rows = make([][]string, 0, len(rows))
	for _, r := range rows {
		t.Rows = append(t.Rows, fit(r, len(columns)))
	}
	return t
}

func fit(r []string, n int) []string {
	if len(r) == n {
		return r
	}
	out := make([]string, n)
	copy(out, r)
	return out
}

// ParseTable reads a CSV document with a header row.
func ParseTable(data []byte) (*Table, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty document")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	return NewTable(header, records), nil
}

// Index returns the position of column c, or -1.
func (t *Table) Index(c string) int {
	if i, ok := t.index[c]; ok {
		return i
	}
	return -1
}

func (t *Table) Has(c string) bool { return t.Index(c) >= 0 }

func (t *Table) Len() int { return len(t.Rows) }

// Value returns the cell at row i, column c, or "" if the column is absent.
func (t *Table) Value(i int, c string) string {
	j := t.Index(c)
	if j < 0 {
		return ""
	}
	return t.Rows[i][j]
}

// Column returns a copy of column c.
func (t *Table) Column(c string) []string {
	j := t.Index(c)
	if j < 0 {
		return nil
	}
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[j]
	}
	return out
}

// Lookup maps each value of key to the value of col on the first row
// that carries it. Rows with an empty key are ignored.
func (t *Table) Lookup(key, col string) map[string]string {
	k, v := t.Index(key), t.Index(col)
	out := make(map[string]string, len(t.Rows))
	if k < 0 || v < 0 {
		return out
	}
	for _, r := range t.Rows {
		if r[k] == "" {
			continue
		}
		if _, seen := out[r[k]]; !seen {
			out[r[k]] = r[v]
		}
	}
	return out
}

// WriteCSV encodes the table with a header row.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

// Bytes is WriteCSV into a buffer.
func (t *Table) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := t.WriteCSV(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadTable loads a tabular dataset. Parse failures are reported as
// UnavailableError since the input cannot be used.
func (r *Registry) ReadTable(name string) (*Table, error) {
	data, err := r.ReadFile(name)
	if err != nil {
		return nil, err
	}
	ds, _ := r.Resolve(name)
	t, err := ParseTable(data)
	if err != nil {
		return nil, unavailable(ds, fmt.Errorf("malformed csv: %w", err))
	}
	return t, nil
}
