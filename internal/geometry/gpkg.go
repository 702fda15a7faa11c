package geometry

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/gebref-geocoder/internal/apperr"
)

const (
	gpkgApplicationID = 0x47504B47 // "GPKG"
	gpkgUserVersion   = 10200
	gpkgGeomColumn    = "geom"
	gpkgFIDColumn     = "fid"
)

const gpkgSchema = `
CREATE TABLE gpkg_spatial_ref_sys (
	srs_name                 TEXT    NOT NULL,
	srs_id                   INTEGER NOT NULL PRIMARY KEY,
	organization             TEXT    NOT NULL,
	organization_coordsys_id INTEGER NOT NULL,
	definition               TEXT    NOT NULL,
	description              TEXT
);

CREATE TABLE gpkg_contents (
	table_name  TEXT     NOT NULL PRIMARY KEY,
	data_type   TEXT     NOT NULL,
	identifier  TEXT     UNIQUE,
	description TEXT     DEFAULT '',
	last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
	min_x       DOUBLE,
	min_y       DOUBLE,
	max_x       DOUBLE,
	max_y       DOUBLE,
	srs_id      INTEGER,
	CONSTRAINT fk_gc_r_srs_id FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
);

CREATE TABLE gpkg_geometry_columns (
	table_name         TEXT    NOT NULL,
	column_name        TEXT    NOT NULL,
	geometry_type_name TEXT    NOT NULL,
	srs_id             INTEGER NOT NULL,
	z                  TINYINT NOT NULL,
	m                  TINYINT NOT NULL,
	CONSTRAINT pk_geom_cols PRIMARY KEY (table_name, column_name),
	CONSTRAINT uk_gc_table_name UNIQUE (table_name),
	CONSTRAINT fk_gc_tn FOREIGN KEY (table_name) REFERENCES gpkg_contents(table_name),
	CONSTRAINT fk_gc_srs FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
);
`

// GeoPackageSink writes a layer as a single feature table of an OGC
// GeoPackage 1.2 file. An existing file at FilePath is replaced.
type GeoPackageSink struct {
	FilePath string
	// Now stamps gpkg_contents.last_change; defaults to time.Now.
	Now func() time.Time
	Log *zap.Logger
}

// Path implements Sink.
func (s *GeoPackageSink) Path() string {
	return s.FilePath
}

// Write implements Sink.
func (s *GeoPackageSink) Write(ctx context.Context, layer *Layer) error {
	if err := os.Remove(s.FilePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &apperr.IOError{Path: s.FilePath, Err: err}
	}

	if err := s.write(ctx, layer); err != nil {
		_ = os.Remove(s.FilePath)
		return &apperr.IOError{Path: s.FilePath, Err: err}
	}

	s.logger().Info("wrote geopackage",
		zap.String("path", s.FilePath),
		zap.String("layer", layer.Name),
		zap.Int("features", len(layer.Features)),
	)
	return nil
}

func (s *GeoPackageSink) write(ctx context.Context, layer *Layer) (err error) {
	ref, ok := LookupSpatialRef(layer.SRID)
	if !ok {
		return eris.Errorf("gpkg: unknown srid %d", layer.SRID)
	}

	db, err := sql.Open("sqlite", s.FilePath)
	if err != nil {
		return eris.Wrap(err, "gpkg: open")
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = eris.Wrap(cerr, "gpkg: close")
		}
	}()
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA application_id = " + strconv.Itoa(gpkgApplicationID),
		"PRAGMA user_version = " + strconv.Itoa(gpkgUserVersion),
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return eris.Wrapf(err, "gpkg: exec %s", pragma)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "gpkg: begin")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, gpkgSchema); err != nil {
		return eris.Wrap(err, "gpkg: create metadata tables")
	}

	if err := insertSpatialRefs(ctx, tx, ref); err != nil {
		return err
	}

	columns := uniqueNames(layer.Fields, []string{gpkgFIDColumn, gpkgGeomColumn}, 0, nil)
	tableName := layer.Name
	if tableName == "" {
		tableName = "features"
	}

	var ddl strings.Builder
	ddl.WriteString("CREATE TABLE " + quoteIdent(tableName) + " (")
	ddl.WriteString(quoteIdent(gpkgFIDColumn) + " INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL, ")
	ddl.WriteString(quoteIdent(gpkgGeomColumn) + " POINT")
	for _, c := range columns {
		ddl.WriteString(", " + quoteIdent(c) + " TEXT")
	}
	ddl.WriteString(")")
	if _, err := tx.ExecContext(ctx, ddl.String()); err != nil {
		return eris.Wrap(err, "gpkg: create feature table")
	}

	var minX, minY, maxX, maxY any
	if b, ok := layer.Bounds(); ok {
		minX, minY, maxX, maxY = b.Min(0), b.Min(1), b.Max(0), b.Max(1)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO gpkg_contents (table_name, data_type, identifier, description, last_change, min_x, min_y, max_x, max_y, srs_id)
		 VALUES (?, 'features', ?, '', ?, ?, ?, ?, ?, ?)`,
		tableName, tableName, s.now().UTC().Format("2006-01-02T15:04:05.000Z"),
		minX, minY, maxX, maxY, ref.SRID,
	); err != nil {
		return eris.Wrap(err, "gpkg: insert contents")
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO gpkg_geometry_columns (table_name, column_name, geometry_type_name, srs_id, z, m)
		 VALUES (?, ?, 'POINT', ?, 0, 0)`,
		tableName, gpkgGeomColumn, ref.SRID,
	); err != nil {
		return eris.Wrap(err, "gpkg: insert geometry column")
	}

	placeholders := strings.Repeat(", ?", len(columns))
	insert := "INSERT INTO " + quoteIdent(tableName) + " (" + quoteIdent(gpkgGeomColumn)
	for _, c := range columns {
		insert += ", " + quoteIdent(c)
	}
	insert += ") VALUES (?" + placeholders + ")"

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return eris.Wrap(err, "gpkg: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	args := make([]any, len(columns)+1)
	for i, f := range layer.Features {
		blob, err := EncodeGeoPackageGeometry(f.Point, int32(ref.SRID))
		if err != nil {
			return eris.Wrapf(err, "gpkg: encode feature %d", i)
		}
		args[0] = blob
		for j := range columns {
			if j < len(f.Attributes) {
				args[j+1] = f.Attributes[j]
			} else {
				args[j+1] = nil
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return eris.Wrapf(err, "gpkg: insert feature %d", i)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "gpkg: commit")
	}
	return nil
}

func insertSpatialRefs(ctx context.Context, tx *sql.Tx, layerRef SpatialRef) error {
	refs := []SpatialRef{spatialRefs[-1], spatialRefs[0], spatialRefs[4326]}
	if layerRef.SRID != -1 && layerRef.SRID != 0 && layerRef.SRID != 4326 {
		refs = append(refs, layerRef)
	}
	for _, r := range refs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO gpkg_spatial_ref_sys (srs_name, srs_id, organization, organization_coordsys_id, definition, description)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			r.Name, r.SRID, r.Org, r.OrgID, r.Definition, r.Description,
		); err != nil {
			return eris.Wrapf(err, "gpkg: insert srs %d", r.SRID)
		}
	}
	return nil
}

// EncodeGeoPackageGeometry returns a GeoPackage geometry blob: the "GP"
// header without envelope followed by little-endian WKB.
func EncodeGeoPackageGeometry(g geom.T, srid int32) ([]byte, error) {
	body, err := wkb.Marshal(g, wkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "gpkg: marshal wkb")
	}

	out := make([]byte, 8, 8+len(body))
	out[0], out[1] = 'G', 'P'
	out[2] = 0    // version 1
	out[3] = 0x01 // little endian, no envelope
	binary.LittleEndian.PutUint32(out[4:8], uint32(srid))
	return append(out, body...), nil
}

func (s *GeoPackageSink) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *GeoPackageSink) logger() *zap.Logger {
	if s.Log != nil {
		return s.Log
	}
	return zap.L()
}
