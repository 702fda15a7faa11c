// Package geometry turns matched addresses into point features and writes
// them to GeoPackage or Shapefile containers.
package geometry

import (
	"context"
	"math"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/gebref-geocoder/internal/table"
)

// Sink writes a point layer to some geospatial container.
type Sink interface {
	Write(ctx context.Context, layer *Layer) error
	// Path is the main file the sink writes.
	Path() string
}

// Feature is one point with its string attributes, aligned with Layer.Fields.
type Feature struct {
	Point      *geom.Point
	Attributes []string
}

// Layer is a named collection of point features in one spatial reference.
type Layer struct {
	Name     string
	SRID     int
	Fields   []string
	Features []Feature
}

// Bounds returns the envelope of all features. ok is false for an empty layer.
func (l *Layer) Bounds() (b *geom.Bounds, ok bool) {
	if len(l.Features) == 0 {
		return nil, false
	}
	b = geom.NewBounds(geom.XY)
	for _, f := range l.Features {
		b.Extend(f.Point)
	}
	return b, true
}

// BuildOptions selects the columns BuildLayer reads.
type BuildOptions struct {
	Name   string
	SRID   int
	Fields []string // attribute columns, copied as strings
	XCol   string
	YCol   string
}

// BuildLayer creates one point per row of t. Rows whose coordinates do not
// parse are skipped and counted.
func BuildLayer(t *table.Table, opts BuildOptions, parse func(string) (float64, error), log *zap.Logger) (*Layer, int, error) {
	if log == nil {
		log = zap.L()
	}
	xi, err := t.Col(opts.XCol)
	if err != nil {
		return nil, 0, err
	}
	yi, err := t.Col(opts.YCol)
	if err != nil {
		return nil, 0, err
	}
	attrIdx := make([]int, len(opts.Fields))
	for i, f := range opts.Fields {
		if attrIdx[i], err = t.Col(f); err != nil {
			return nil, 0, err
		}
	}

	layer := &Layer{
		Name:     opts.Name,
		SRID:     opts.SRID,
		Fields:   append([]string(nil), opts.Fields...),
		Features: make([]Feature, 0, t.Len()),
	}

	skipped := 0
	for i, row := range t.Rows {
		x, xerr := parse(row[xi])
		y, yerr := parse(row[yi])
		if xerr != nil || yerr != nil || math.IsNaN(x) || math.IsNaN(y) {
			skipped++
			log.Warn("skipping row without usable coordinates",
				zap.Int("row", i),
				zap.String("x", row[xi]),
				zap.String("y", row[yi]),
			)
			continue
		}

		attrs := make([]string, len(attrIdx))
		for j, c := range attrIdx {
			attrs[j] = row[c]
		}
		layer.Features = append(layer.Features, Feature{
			Point:      geom.NewPointFlat(geom.XY, []float64{x, y}).SetSRID(opts.SRID),
			Attributes: attrs,
		})
	}

	return layer, skipped, nil
}
