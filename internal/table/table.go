// Package table holds the in-memory string tables that the geocoder joins,
// plus readers and writers for delimited text and XLSX files.
package table

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/gebref-geocoder/internal/apperr"
)

// Table is an ordered set of named string columns. Every row has exactly
// len(Columns) cells.
type Table struct {
	Columns []string
	Rows    [][]string

	index map[string]int
}

// New creates an empty table with the given column names.
func New(columns ...string) *Table {
	t := &Table{Columns: append([]string(nil), columns...)}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		// First occurrence wins for duplicate header names.
		if _, ok := t.index[c]; !ok {
			t.index[c] = i
		}
	}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Has reports whether the table has a column with the given name.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Col returns the position of the named column or a MissingInputError.
func (t *Table) Col(name string) (int, error) {
	i, ok := t.index[name]
	if !ok {
		return 0, apperr.MissingColumn(name)
	}
	return i, nil
}

// Append adds a row. Short rows are padded with empty cells, long rows are rejected.
func (t *Table) Append(row []string) error {
	if len(row) > len(t.Columns) {
		return eris.Errorf("table: row has %d cells, table has %d columns", len(row), len(t.Columns))
	}
	cells := make([]string, len(t.Columns))
	copy(cells, row)
	t.Rows = append(t.Rows, cells)
	return nil
}

// Value returns the cell at row i in the named column, or "" if the column is unknown.
func (t *Table) Value(i int, name string) string {
	c, ok := t.index[name]
	if !ok || i < 0 || i >= len(t.Rows) {
		return ""
	}
	return t.Rows[i][c]
}

// SetColumn computes a value for every row and stores it in the named column.
// The column is appended when it does not exist yet, otherwise overwritten.
func (t *Table) SetColumn(name string, fn func(row []string) string) {
	c, ok := t.index[name]
	if !ok {
		t.Columns = append(t.Columns, name)
		c = len(t.Columns) - 1
		t.index[name] = c
		for i, row := range t.Rows {
			t.Rows[i] = append(row, "")
		}
	}
	for i, row := range t.Rows {
		t.Rows[i][c] = fn(row)
	}
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := New(t.Columns...)
	out.Rows = make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	return out
}

// Column returns a copy of all values in the named column.
func (t *Table) Column(name string) ([]string, error) {
	c, err := t.Col(name)
	if err != nil {
		return nil, err
	}
	vals := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		vals[i] = row[c]
	}
	return vals, nil
}
