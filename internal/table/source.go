package table

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gebref-geocoder/internal/apperr"
)

// Source provides the user address table. Implementations read a whole
// table into memory.
type Source interface {
	// Name identifies the source in logs.
	Name() string

	// Read loads the table.
	Read(ctx context.Context) (*Table, error)
}

// SourceOptions configures OpenSource.
type SourceOptions struct {
	Delimiter rune
	Encoding  string
	Sheet     string
}

// OpenSource returns a Source for path, chosen by file extension.
// .xlsx files are read with the XLSX reader, everything else as delimited text.
func OpenSource(path string, opts SourceOptions) Source {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return &XLSXSource{Path: path, Sheet: opts.Sheet}
	}
	return &FileSource{
		Path: path,
		Options: CSVOptions{
			Delimiter: opts.Delimiter,
			Encoding:  opts.Encoding,
			HasHeader: true,
			TrimSpace: true,
		},
	}
}

// FileSource reads a delimited text file with a header row.
type FileSource struct {
	Path    string
	Options CSVOptions
}

// Name returns the file path.
func (s *FileSource) Name() string {
	return s.Path
}

// Read opens and parses the file.
func (s *FileSource) Read(ctx context.Context) (*Table, error) {
	f, err := openInput(s.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	t, err := ReadDelimited(ctx, f, s.Options)
	if err != nil {
		return nil, eris.Wrapf(err, "table: read %s", s.Path)
	}
	return t, nil
}

// openInput opens a user-supplied file, reporting absence as a MissingInputError.
func openInput(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &apperr.MissingInputError{What: "file", Name: path, Err: err}
		}
		return nil, eris.Wrapf(err, "table: open %s", path)
	}
	return f, nil
}
