package geometry

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"go.uber.org/zap"

	"github.com/sells-group/gebref-geocoder/internal/apperr"
	"github.com/sells-group/gebref-geocoder/internal/table"
)

func parseDot(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

func matchedTable(t *testing.T) *table.Table {
	t.Helper()
	tbl := table.New("Straße", "Hausnummer", "addressID", "11", "12")
	require.NoError(t, tbl.Append([]string{"Hauptstraße", "5", "hauptstr5_05315000", "32356123.45", "5645123.67"}))
	require.NoError(t, tbl.Append([]string{"Kölner Weg", "1", "koelnerweg1_05315000", "32356200", "5645000.5"}))
	require.NoError(t, tbl.Append([]string{"Kaputt", "2", "kaputt2_05315000", "", "5645000"}))
	return tbl
}

func testLayer(t *testing.T) *Layer {
	t.Helper()
	layer, skipped, err := BuildLayer(matchedTable(t), BuildOptions{
		Name:   "geocodierteAdressen",
		SRID:   SRIDETRS89UTM32,
		Fields: []string{"Straße", "Hausnummer", "addressID"},
		XCol:   "11",
		YCol:   "12",
	}, parseDot, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, 1, skipped)
	return layer
}

func TestBuildLayer(t *testing.T) {
	layer := testLayer(t)

	require.Len(t, layer.Features, 2)
	f := layer.Features[0]
	assert.Equal(t, []string{"Hauptstraße", "5", "hauptstr5_05315000"}, f.Attributes)
	assert.InDelta(t, 32356123.45, f.Point.X(), 1e-6)
	assert.InDelta(t, 5645123.67, f.Point.Y(), 1e-6)
	assert.Equal(t, SRIDETRS89UTM32, f.Point.SRID())

	b, ok := layer.Bounds()
	require.True(t, ok)
	assert.InDelta(t, 32356123.45, b.Min(0), 1e-6)
	assert.InDelta(t, 32356200, b.Max(0), 1e-6)
	assert.InDelta(t, 5645000.5, b.Min(1), 1e-6)
}

func TestBuildLayer_MissingColumn(t *testing.T) {
	_, _, err := BuildLayer(matchedTable(t), BuildOptions{XCol: "x", YCol: "12"}, parseDot, zap.NewNop())
	require.Error(t, err)
	assert.True(t, apperr.IsMissingInput(err))

	_, _, err = BuildLayer(matchedTable(t), BuildOptions{XCol: "11", YCol: "12", Fields: []string{"nope"}}, parseDot, zap.NewNop())
	assert.True(t, apperr.IsMissingInput(err))
}

func TestLayerBounds_Empty(t *testing.T) {
	_, ok := (&Layer{}).Bounds()
	assert.False(t, ok)
}

func TestGeoPackageGeometry_RoundTrip(t *testing.T) {
	p := geom.NewPointFlat(geom.XY, []float64{32356123.45, 5645123.67})

	blob, err := EncodeGeoPackageGeometry(p, SRIDETRS89UTM32)
	require.NoError(t, err)
	assert.Equal(t, []byte{'G', 'P', 0, 0x01, 0x27, 0x12, 0, 0}, blob[:8])
	assert.Len(t, blob, 8+21)

	g, srid, err := decodeGeometry(blob)
	require.NoError(t, err)
	assert.Equal(t, int32(SRIDETRS89UTM32), srid)
	got, ok := g.(*geom.Point)
	require.True(t, ok)
	assert.Equal(t, p.FlatCoords(), got.FlatCoords())

	_, _, err = decodeGeometry([]byte("nope"))
	assert.Error(t, err)
}

func TestGeoPackageSink_Write(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.gpkg")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	sink := &GeoPackageSink{
		FilePath: path,
		Now:      func() time.Time { return time.Date(2024, 5, 3, 10, 0, 0, 0, time.UTC) },
		Log:      zap.NewNop(),
	}
	require.NoError(t, sink.Write(context.Background(), testLayer(t)))
	assert.Equal(t, path, sink.Path())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck

	var appID, userVersion int
	require.NoError(t, db.QueryRow("PRAGMA application_id").Scan(&appID))
	require.NoError(t, db.QueryRow("PRAGMA user_version").Scan(&userVersion))
	assert.Equal(t, gpkgApplicationID, appID)
	assert.Equal(t, gpkgUserVersion, userVersion)

	var def string
	require.NoError(t, db.QueryRow("SELECT definition FROM gpkg_spatial_ref_sys WHERE srs_id = 4647").Scan(&def))
	assert.Contains(t, def, `AUTHORITY["EPSG","4647"]`)

	var dataType, lastChange string
	var minX, maxY float64
	require.NoError(t, db.QueryRow(
		"SELECT data_type, last_change, min_x, max_y FROM gpkg_contents WHERE table_name = 'geocodierteAdressen'",
	).Scan(&dataType, &lastChange, &minX, &maxY))
	assert.Equal(t, "features", dataType)
	assert.Equal(t, "2024-05-03T10:00:00.000Z", lastChange)
	assert.InDelta(t, 32356123.45, minX, 1e-6)
	assert.InDelta(t, 5645123.67, maxY, 1e-6)

	var geomType string
	var srsID int
	require.NoError(t, db.QueryRow(
		"SELECT geometry_type_name, srs_id FROM gpkg_geometry_columns WHERE table_name = 'geocodierteAdressen'",
	).Scan(&geomType, &srsID))
	assert.Equal(t, "POINT", geomType)
	assert.Equal(t, 4647, srsID)

	rows, err := db.Query(`SELECT geom, "Straße", "Hausnummer", "addressID" FROM "geocodierteAdressen" ORDER BY fid`)
	require.NoError(t, err)
	defer rows.Close() //nolint:errcheck

	var streets []string
	var xs []float64
	for rows.Next() {
		var blob []byte
		var street, hnr, key string
		require.NoError(t, rows.Scan(&blob, &street, &hnr, &key))
		g, _, err := decodeGeometry(blob)
		require.NoError(t, err)
		streets = append(streets, street)
		xs = append(xs, g.FlatCoords()[0])
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"Hauptstraße", "Kölner Weg"}, streets)
	assert.InDeltaSlice(t, []float64{32356123.45, 32356200}, xs, 1e-6)
}

func TestGeoPackageSink_ReservedAndDuplicateFields(t *testing.T) {
	layer := &Layer{
		Name:   "pts",
		SRID:   SRIDETRS89UTM32,
		Fields: []string{"fid", "GEOM", "a", "A"},
		Features: []Feature{{
			Point:      geom.NewPointFlat(geom.XY, []float64{1, 2}),
			Attributes: []string{"1", "2", "3", "4"},
		}},
	}
	path := filepath.Join(t.TempDir(), "x.gpkg")
	require.NoError(t, (&GeoPackageSink{FilePath: path, Log: zap.NewNop()}).Write(context.Background(), layer))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck

	var f1, g1, a, a1 string
	require.NoError(t, db.QueryRow(`SELECT "fid_1", "GEOM_1", "a", "A_1" FROM "pts"`).Scan(&f1, &g1, &a, &a1))
	assert.Equal(t, []string{"1", "2", "3", "4"}, []string{f1, g1, a, a1})
}

func TestGeoPackageSink_EmptyLayer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.gpkg")
	layer := &Layer{Name: "pts", SRID: SRIDETRS89UTM32, Fields: []string{"a"}}
	require.NoError(t, (&GeoPackageSink{FilePath: path, Log: zap.NewNop()}).Write(context.Background(), layer))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck

	var n int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM "pts"`).Scan(&n))
	assert.Zero(t, n)
}

func TestGeoPackageSink_UnknownSRID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.gpkg")
	err := (&GeoPackageSink{FilePath: path, Log: zap.NewNop()}).Write(context.Background(), &Layer{SRID: 99999})
	require.Error(t, err)
	assert.True(t, apperr.IsIO(err))

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestShapefileSink_Write(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "geocodierteAdressen.shp")
	layer := testLayer(t)
	layer.Fields[1] = "Hausnummer_lang"

	sink := &ShapefileSink{FilePath: path, Log: zap.NewNop()}
	require.NoError(t, sink.Write(context.Background(), layer))

	for _, ext := range []string{".shp", ".shx", ".dbf", ".prj", ".cpg"} {
		_, err := os.Stat(filepath.Join(dir, "geocodierteAdressen"+ext))
		assert.NoError(t, err, ext)
	}
	prj, err := os.ReadFile(filepath.Join(dir, "geocodierteAdressen.prj"))
	require.NoError(t, err)
	assert.Contains(t, string(prj), "UTM zone 32N")
	cpg, err := os.ReadFile(filepath.Join(dir, "geocodierteAdressen.cpg"))
	require.NoError(t, err)
	assert.Equal(t, "1252", string(cpg))

	r, err := shp.Open(path)
	require.NoError(t, err)
	defer r.Close() //nolint:errcheck

	var names []string
	for _, f := range r.Fields() {
		names = append(names, f.String())
	}
	assert.Equal(t, []string{"Stra\xdfe", "Hausnummer", "addressID"}, names)

	var xs []float64
	var keys []string
	for r.Next() {
		_, shape := r.Shape()
		p, ok := shape.(*shp.Point)
		require.True(t, ok)
		xs = append(xs, p.X)
		keys = append(keys, strings.TrimRight(r.Attribute(2), "\x00"))
	}
	assert.InDeltaSlice(t, []float64{32356123.45, 32356200}, xs, 1e-6)
	assert.Equal(t, []string{"hauptstr5_05315000", "koelnerweg1_05315000"}, keys)
}

func TestShapefileSink_BadPath(t *testing.T) {
	err := (&ShapefileSink{FilePath: filepath.Join(t.TempDir(), "x.gpkg"), Log: zap.NewNop()}).Write(context.Background(), testLayer(t))
	require.Error(t, err)
	assert.True(t, apperr.IsIO(err))
}

func TestUniqueNames(t *testing.T) {
	tests := []struct {
		name     string
		in       []string
		reserved []string
		maxLen   int
		cut      func(string, int) string
		want     []string
	}{
		{name: "unchanged", in: []string{"a", "b"}, want: []string{"a", "b"}},
		{name: "case insensitive", in: []string{"a", "A"}, want: []string{"a", "A_1"}},
		{name: "reserved", in: []string{"fid"}, reserved: []string{"FID"}, want: []string{"fid_1"}},
		{name: "empty", in: []string{""}, want: []string{"field"}},
		{
			name:   "truncated dbf names",
			in:     []string{"Hausnummer_lang", "Hausnummer_kurz", "ok"},
			maxLen: 10,
			want:   []string{"Hausnummer", "Hausnumm_1", "ok"},
		},
		{
			name:   "single byte charset",
			in:     []string{"Lage\xb0\xb0\xb0\xb0\xb0\xb0\xb0\xb0"},
			maxLen: 10,
			cut:    cutBytes,
			want:   []string{"Lage\xb0\xb0\xb0\xb0\xb0\xb0"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, uniqueNames(tt.in, tt.reserved, tt.maxLen, tt.cut))
		})
	}
}

func TestTruncate_RuneBoundary(t *testing.T) {
	assert.Equal(t, "Stra", truncate("Straße", 5))
	assert.Equal(t, "Straß", truncate("Straße", 6))
	assert.Equal(t, "abc", truncate("abc", 0))
}

func TestCutBytes(t *testing.T) {
	assert.Equal(t, "Gr\xb0", cutBytes("Gr\xb0\xb0\xb0", 3))
	assert.Equal(t, "abc", cutBytes("abc", 5))
	assert.Equal(t, "abc", cutBytes("abc", 0))
}

func TestShapefileSink_LongSingleByteValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "geocodierteAdressen.shp")
	layer := testLayer(t)
	layer.Features[0].Attributes[0] = strings.Repeat("°", 300)

	require.NoError(t, (&ShapefileSink{FilePath: path, Log: zap.NewNop()}).Write(context.Background(), layer))

	r, err := shp.Open(path)
	require.NoError(t, err)
	defer r.Close() //nolint:errcheck

	require.True(t, r.Next())
	got := strings.TrimRight(r.Attribute(0), "\x00")
	assert.Equal(t, strings.Repeat("\xb0", dbfMaxSize), got)
}

// decodeGeometry parses a blob written by EncodeGeoPackageGeometry.
func decodeGeometry(blob []byte) (geom.T, int32, error) {
	if len(blob) < 8 || blob[0] != 'G' || blob[1] != 'P' {
		return nil, 0, errors.New("not a geopackage geometry")
	}
	var order binary.ByteOrder = binary.BigEndian
	if blob[3]&0x01 != 0 {
		order = binary.LittleEndian
	}
	srid := int32(order.Uint32(blob[4:8]))

	envelopeLen := map[byte]int{0: 0, 1: 32, 2: 48, 3: 48, 4: 64}[(blob[3]>>1)&0x07]
	if len(blob) < 8+envelopeLen {
		return nil, 0, errors.New("truncated geometry header")
	}
	g, err := wkb.Unmarshal(blob[8+envelopeLen:])
	return g, srid, err
}
