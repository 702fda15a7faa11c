// Package output writes the delimited result files of a geocoding run.
package output

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/gebref-geocoder/internal/apperr"
	"github.com/sells-group/gebref-geocoder/internal/join"
	"github.com/sells-group/gebref-geocoder/internal/table"
)

// Output file names inside the output directory.
const (
	UnmatchedFile  = "fehlendeAdressen_nichtInAmtlichenAdressverzeichnis.csv"
	MatchedFile    = "abgeglicheneAdressen_imAmtlichenAdressverzeichnis.csv"
	KeyedFile      = "inTabelle_mitSchluessel.csv"
	GeometryBase   = "geocodierteAdressen_imAmtlichenAdressverzeichnis"
	GeoPackageFile = GeometryBase + ".gpkg"
	ShapefileFile  = GeometryBase + ".shp"
	SummaryFile    = "abgleich_protokoll.yaml"
)

// RowKeyColumn holds the sequential row number in the keyed input table.
const RowKeyColumn = "keyID"

// Writer writes result tables to Dir.
type Writer struct {
	Dir     string
	Options table.WriteOptions
	Log     *zap.Logger
}

// Files lists the paths written by Writer.Write.
type Files struct {
	Unmatched string
	Matched   string
	Keyed     string
}

// Paths returns the written paths in write order.
func (f *Files) Paths() []string {
	return []string{f.Unmatched, f.Matched, f.Keyed}
}

// Write writes the unmatched, matched and keyed tables. keyed is the user
// table carrying the address key; it is copied before the row key is added.
func (w *Writer) Write(ctx context.Context, res *join.Result, keyed *table.Table) (*Files, error) {
	if err := EnsureDir(w.Dir); err != nil {
		return nil, err
	}

	files := &Files{
		Unmatched: filepath.Join(w.Dir, UnmatchedFile),
		Matched:   filepath.Join(w.Dir, MatchedFile),
		Keyed:     filepath.Join(w.Dir, KeyedFile),
	}

	jobs := []struct {
		path string
		tbl  *table.Table
	}{
		{files.Unmatched, res.Unmatched},
		{files.Matched, res.Matched},
		{files.Keyed, WithRowKey(keyed)},
	}

	for _, j := range jobs {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "output: context cancelled")
		}
		if err := table.WriteDelimitedFile(j.path, j.tbl, w.Options); err != nil {
			return nil, err
		}
		w.logger().Info("wrote table",
			zap.String("path", j.path),
			zap.Int("rows", j.tbl.Len()),
		)
	}

	return files, nil
}

// WithRowKey returns a copy of t with RowKeyColumn set to 0..n-1.
func WithRowKey(t *table.Table) *table.Table {
	out := t.Clone()
	i := 0
	out.SetColumn(RowKeyColumn, func([]string) string {
		v := strconv.Itoa(i)
		i++
		return v
	})
	return out
}

// EnsureDir creates dir if it does not exist.
func EnsureDir(dir string) error {
	if dir == "" {
		return &apperr.MissingInputError{What: "parameter", Name: "output directory"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &apperr.IOError{Path: dir, Err: err}
	}
	return nil
}

func (w *Writer) logger() *zap.Logger {
	if w.Log != nil {
		return w.Log
	}
	return zap.L()
}
