package table

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gebref-geocoder/internal/apperr"
)

// CSVOptions configures the delimited text reader.
type CSVOptions struct {
	Delimiter  rune   // default ','
	Encoding   string // default utf-8
	HasHeader  bool   // if false, columns are named "0", "1", ...
	Comment    rune   // comment character (0 = none)
	LazyQuotes bool
	TrimSpace  bool
	// FieldsPerRecord is passed to csv.Reader: 0 means "same as first row",
	// negative disables the check.
	FieldsPerRecord int
}

// ReadDelimited parses delimited text into a table. Empty lines are skipped.
func ReadDelimited(ctx context.Context, r io.Reader, opts CSVOptions) (*Table, error) {
	decoded, err := NewDecodingReader(r, opts.Encoding)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(decoded)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	if opts.Comment != 0 {
		reader.Comment = opts.Comment
	}
	reader.LazyQuotes = opts.LazyQuotes
	reader.FieldsPerRecord = opts.FieldsPerRecord
	reader.ReuseRecord = false

	var t *Table
	for {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "csv: context cancelled")
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}

		if opts.TrimSpace {
			for i, field := range record {
				record[i] = strings.TrimSpace(field)
			}
		}

		if t == nil {
			if opts.HasHeader {
				t = New(record...)
				continue
			}
			t = New(PositionalColumns(len(record))...)
		}

		if err := t.Append(record); err != nil {
			line, _ := reader.FieldPos(0)
			return nil, eris.Wrapf(err, "csv: line %d", line)
		}
	}

	if t == nil {
		return New(), nil
	}
	return t, nil
}

// PositionalColumns returns the names "0".."n-1".
func PositionalColumns(n int) []string {
	cols := make([]string, n)
	for i := range cols {
		cols[i] = strconv.Itoa(i)
	}
	return cols
}

// WriteOptions configures the delimited text writer.
type WriteOptions struct {
	Delimiter rune   // default ','
	Encoding  string // default utf-8
}

// WriteDelimited writes the table with a header row to w.
func WriteDelimited(w io.Writer, t *Table, opts WriteOptions) error {
	enc, err := NewEncodingWriter(w, opts.Encoding)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(enc)
	if opts.Delimiter != 0 {
		cw.Comma = opts.Delimiter
	}

	if err := cw.Write(t.Columns); err != nil {
		return eris.Wrap(err, "csv: write header")
	}
	for _, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "csv: write row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "csv: flush")
	}

	if err := enc.Close(); err != nil {
		return eris.Wrap(err, "csv: flush encoder")
	}
	return nil
}

// WriteDelimitedFile writes the table to path. Any failure is reported as an IOError.
func WriteDelimitedFile(path string, t *Table, opts WriteOptions) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return &apperr.IOError{Path: path, Err: err}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = &apperr.IOError{Path: path, Err: cerr}
		}
	}()

	if err := WriteDelimited(f, t, opts); err != nil {
		return &apperr.IOError{Path: path, Err: err}
	}
	return nil
}
