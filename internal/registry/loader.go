package registry

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gebref-geocoder/internal/address"
	"github.com/sells-group/gebref-geocoder/internal/apperr"
	"github.com/sells-group/gebref-geocoder/internal/table"
)

// Positional column names of the registry text file.
const (
	ColNBA       = "0"
	ColObjectID  = "1"
	ColQuality   = "2"
	ColLand      = "3"
	ColDistrict  = "4"
	ColCounty    = "5"
	ColCommunity = "6"
	ColOTT       = "7"
	ColStreetKey = "8"
	ColHNR       = "9"
	ColSuffix    = "10"
	ColX         = "11"
	ColY         = "12"
	ColStreet    = "13"

	// NumColumns is the fixed arity of a registry line.
	NumColumns = 14

	landIndex = 3
	xIndex    = 11
	yIndex    = 12
)

// LoadOptions configures Load.
type LoadOptions struct {
	Encoding string // default utf-8
}

// Load parses the semicolon-separated registry file at path. Coordinates are
// rewritten from comma to dot decimals and the municipality identifier is
// appended as address.MunicipalityColumn.
func Load(ctx context.Context, path string, opts LoadOptions) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &apperr.MissingInputError{What: "file", Name: path, Err: err}
		}
		return nil, eris.Wrapf(err, "registry: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	return Parse(ctx, f, path, opts)
}

// Parse reads registry lines from r. name is used in ParseError messages.
func Parse(ctx context.Context, r io.Reader, name string, opts LoadOptions) (*table.Table, error) {
	decoded, err := table.NewDecodingReader(r, opts.Encoding)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(decoded)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	t := table.New(table.PositionalColumns(NumColumns)...)
	for {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "registry: context cancelled")
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			line := 0
			if errors.As(err, &pe) {
				line = pe.StartLine
			}
			return nil, &apperr.ParseError{Path: name, Line: line, Err: err}
		}
		line, _ := reader.FieldPos(0)
		if len(record) != NumColumns {
			return nil, &apperr.ParseError{
				Path: name,
				Line: line,
				Err:  eris.Errorf("expected %d fields, got %d", NumColumns, len(record)),
			}
		}

		for _, col := range []int{xIndex, yIndex} {
			v, err := normalizeDecimal(record[col])
			if err != nil {
				return nil, &apperr.ParseError{Path: name, Line: line, Err: eris.Wrapf(err, "column %d", col)}
			}
			record[col] = v
		}

		if err := t.Append(record); err != nil {
			return nil, &apperr.ParseError{Path: name, Line: line, Err: err}
		}
	}

	t.SetColumn(address.MunicipalityColumn, func(row []string) string {
		return address.MunicipalityID(row[landIndex], row[landIndex+1], row[landIndex+2], row[landIndex+3])
	})

	return t, nil
}

// ParseCoordinate parses a registry coordinate written with either a comma or
// a dot as decimal separator.
func ParseCoordinate(s string) (float64, error) {
	s = strings.TrimSpace(strings.Replace(s, ",", ".", 1))
	if s == "" {
		return 0, eris.New("empty coordinate")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "invalid coordinate %q", s)
	}
	return v, nil
}

func normalizeDecimal(s string) (string, error) {
	if _, err := ParseCoordinate(s); err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.Replace(s, ",", ".", 1)), nil
}
