package table

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/gebref-geocoder/internal/apperr"
)

// XLSXSource reads a worksheet whose first row holds the column names.
type XLSXSource struct {
	Path  string
	Sheet string // empty selects the first sheet
}

// Name returns the file path and sheet.
func (s *XLSXSource) Name() string {
	if s.Sheet == "" {
		return s.Path
	}
	return s.Path + "#" + s.Sheet
}

// Read loads the worksheet. Rows that are entirely empty are skipped.
func (s *XLSXSource) Read(ctx context.Context) (*Table, error) {
	if _, err := os.Stat(s.Path); errors.Is(err, fs.ErrNotExist) {
		return nil, &apperr.MissingInputError{What: "file", Name: s.Path, Err: err}
	}

	f, err := xlsx.OpenFile(s.Path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := getSheet(f, s.Sheet)
	if err != nil {
		return nil, err
	}

	var t *Table
	for i, row := range sheet.Rows {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "xlsx: context cancelled")
		}
		if row == nil {
			continue
		}

		cells := rowToStrings(row)
		if isBlank(cells) {
			continue
		}

		if t == nil {
			t = New(cells...)
			continue
		}
		// Empty cells past the header width are dropped; values there are an error.
		for len(cells) > len(t.Columns) && cells[len(cells)-1] == "" {
			cells = cells[:len(cells)-1]
		}
		if err := t.Append(cells); err != nil {
			return nil, &apperr.ParseError{Path: s.Name(), Line: i + 1, Err: err}
		}
	}

	if t == nil {
		return New(), nil
	}
	return t, nil
}

// Sheets lists the worksheet names of an XLSX file in workbook order.
func Sheets(path string) ([]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	names := make([]string, len(f.Sheets))
	for i, sh := range f.Sheets {
		names[i] = sh.Name
	}
	return names, nil
}

func getSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, &apperr.MissingInputError{What: "sheet", Name: name}
		}
		return sheet, nil
	}

	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: workbook has no sheets")
	}

	return f.Sheets[0], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = strings.TrimSpace(cell.String())
	}
	return cells
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
