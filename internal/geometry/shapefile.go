package geometry

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"

	"github.com/sells-group/gebref-geocoder/internal/apperr"
	"github.com/sells-group/gebref-geocoder/internal/table"
)

const (
	dbfNameLen    = 10
	dbfMaxSize    = 254
	dbfMaxRecLen  = 32767
	shpExt        = ".shp"
	defaultDBFEnc = "windows-1252"
)

// ShapefileSink writes a layer as an ESRI point shapefile (.shp, .shx, .dbf)
// plus .prj and .cpg sidecar files. Attribute names are cut to 10 bytes.
type ShapefileSink struct {
	FilePath string
	Encoding string // DBF attribute charset, default windows-1252
	Log      *zap.Logger
}

// Path implements Sink.
func (s *ShapefileSink) Path() string {
	return s.FilePath
}

// Write implements Sink.
func (s *ShapefileSink) Write(ctx context.Context, layer *Layer) error {
	if err := s.write(ctx, layer); err != nil {
		return &apperr.IOError{Path: s.FilePath, Err: err}
	}
	s.logger().Info("wrote shapefile",
		zap.String("path", s.FilePath),
		zap.Int("features", len(layer.Features)),
	)
	return nil
}

func (s *ShapefileSink) write(ctx context.Context, layer *Layer) error {
	base := strings.TrimSuffix(s.FilePath, shpExt)
	if base == s.FilePath {
		return eris.Errorf("shapefile: path %q must end in .shp", s.FilePath)
	}

	charset := s.Encoding
	if charset == "" {
		charset = defaultDBFEnc
	}
	enc, err := table.LookupEncoding(charset)
	if err != nil {
		return err
	}
	encoder := encoding.ReplaceUnsupported(enc.NewEncoder())
	// Values are cut after encoding, so the cut has to follow the target charset.
	cut := cutBytes
	if isUTF8(charset) {
		cut = truncate
	}

	values := make([][]string, len(layer.Features))
	for i, f := range layer.Features {
		values[i] = make([]string, len(layer.Fields))
		for j := range layer.Fields {
			if j >= len(f.Attributes) {
				continue
			}
			v, err := encoder.String(f.Attributes[j])
			if err != nil {
				return eris.Wrapf(err, "shapefile: encode feature %d", i)
			}
			values[i][j] = cut(v, dbfMaxSize)
		}
	}

	encodedFields := make([]string, len(layer.Fields))
	for j, name := range layer.Fields {
		if encodedFields[j], err = encoder.String(name); err != nil {
			return eris.Wrapf(err, "shapefile: encode field name %q", name)
		}
	}
	names := uniqueNames(encodedFields, nil, dbfNameLen, cut)
	fields := make([]shp.Field, len(names))
	recLen := 1
	for j, n := range names {
		size := 1
		for i := range values {
			size = max(size, len(values[i][j]))
		}
		if recLen+size > dbfMaxRecLen {
			return eris.Errorf("shapefile: %d attribute columns exceed the dbf record size", len(names))
		}
		recLen += size
		fields[j] = shp.StringField(n, uint8(size))
	}

	w, err := shp.Create(base+shpExt, shp.POINT)
	if err != nil {
		return eris.Wrap(err, "shapefile: create")
	}
	if err := w.SetFields(fields); err != nil {
		w.Close()
		return eris.Wrap(err, "shapefile: set fields")
	}

	for i, f := range layer.Features {
		if err := ctx.Err(); err != nil {
			w.Close()
			return eris.Wrap(err, "shapefile: context cancelled")
		}
		row := int(w.Write(&shp.Point{X: f.Point.X(), Y: f.Point.Y()}))
		for j := range fields {
			if values[i][j] == "" {
				continue
			}
			if err := w.WriteAttribute(row, j, values[i][j]); err != nil {
				w.Close()
				return eris.Wrapf(err, "shapefile: write attribute %s of feature %d", names[j], i)
			}
		}
	}
	w.Close()

	// go-shp v0.1.1 names the attribute table "<base>dbf"; move it next to
	// the .shp where readers look for it.
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return eris.Wrap(err, "shapefile: rename dbf")
	}

	if ref, ok := LookupSpatialRef(layer.SRID); ok && ref.Org == "EPSG" {
		if err := os.WriteFile(base+".prj", []byte(ref.Definition), 0o644); err != nil {
			return eris.Wrap(err, "shapefile: write prj")
		}
	}
	if err := os.WriteFile(base+".cpg", []byte(cpgName(charset)), 0o644); err != nil {
		return eris.Wrap(err, "shapefile: write cpg")
	}
	return nil
}

func isUTF8(charset string) bool {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "utf-8", "utf8":
		return true
	}
	return false
}

// cpgName returns the code page label GIS tools expect in a .cpg file.
func cpgName(charset string) string {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "windows-1252", "cp1252", "ansi":
		return "1252"
	case "", "utf-8", "utf8":
		return "UTF-8"
	default:
		return charset
	}
}

func (s *ShapefileSink) logger() *zap.Logger {
	if s.Log != nil {
		return s.Log
	}
	return zap.L()
}
