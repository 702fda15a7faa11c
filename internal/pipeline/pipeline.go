// Package pipeline runs one geocoding pass: read the user table, make sure
// the registry is present, build keys on both sides, join and write results.
package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/gebref-geocoder/internal/address"
	"github.com/sells-group/gebref-geocoder/internal/apperr"
	"github.com/sells-group/gebref-geocoder/internal/geometry"
	"github.com/sells-group/gebref-geocoder/internal/join"
	"github.com/sells-group/gebref-geocoder/internal/output"
	"github.com/sells-group/gebref-geocoder/internal/registry"
	"github.com/sells-group/gebref-geocoder/internal/table"
)

// Geometry output formats.
const (
	FormatGeoPackage = "gpkg"
	FormatShapefile  = "shp"
)

// LayerName is the feature table name inside the geometry outputs.
const LayerName = "geocodierteAdressen"

// Acquirer provides the local path of the registry file.
type Acquirer interface {
	Ensure(ctx context.Context, refresh bool) (*registry.Result, error)
}

// Params are the per-run inputs chosen by the caller.
type Params struct {
	Source         table.Source
	StreetCol      string
	HouseNumberCol string
	SuffixCol      string
	AGSCol         string
	Redownload     bool
	OutputDir      string
}

// Binding returns the key binding for the user table.
func (p Params) Binding() address.Binding {
	return address.Binding{
		Street:       p.StreetCol,
		HouseNumber:  p.HouseNumberCol,
		Suffix:       p.SuffixCol,
		Municipality: p.AGSCol,
	}
}

// Validate reports the first missing parameter as a MissingInputError.
func (p Params) Validate() error {
	if p.Source == nil {
		return &apperr.MissingInputError{What: "parameter", Name: "input"}
	}
	for _, c := range []struct{ name, val string }{
		{"street column", p.StreetCol},
		{"house number column", p.HouseNumberCol},
		{"house number suffix column", p.SuffixCol},
		{"municipality code column", p.AGSCol},
		{"output directory", p.OutputDir},
	} {
		if strings.TrimSpace(c.val) == "" {
			return &apperr.MissingInputError{What: "parameter", Name: c.name}
		}
	}
	return nil
}

// Pipeline holds everything that stays fixed across runs.
type Pipeline struct {
	Log      *zap.Logger
	Acquirer Acquirer

	Registry registry.LoadOptions
	Policy   join.Policy
	Output   table.WriteOptions
	// Formats lists geometry outputs; empty means GeoPackage only.
	Formats []string

	// Now defaults to time.Now.
	Now func() time.Time
}

// Run executes all steps in order and writes the run summary next to the
// result files. Any error aborts the run.
func (p *Pipeline) Run(ctx context.Context, params Params) (*Summary, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if p.Acquirer == nil {
		return nil, eris.New("pipeline: no registry acquirer configured")
	}
	policy, err := join.ParsePolicy(string(p.Policy))
	if err != nil {
		return nil, err
	}
	// Geometry outputs are stamped with the registry's modification time so
	// reruns on an unchanged cache produce identical files.
	var registryModified time.Time
	sinks, err := p.sinks(params.OutputDir, func() time.Time {
		if !registryModified.IsZero() {
			return registryModified
		}
		return p.now()
	})
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	log := p.logger().With(zap.String("run_id", runID))
	sum := &Summary{
		RunID:     runID,
		StartedAt: p.now().UTC(),
		Input:     params.Source.Name(),
		Columns: Columns{
			Street:       params.StreetCol,
			HouseNumber:  params.HouseNumberCol,
			Suffix:       params.SuffixCol,
			Municipality: params.AGSCol,
		},
		Policy: string(policy),
	}
	log.Info("pipeline: starting geocoding run",
		zap.String("input", sum.Input),
		zap.String("output_dir", params.OutputDir),
		zap.Bool("redownload", params.Redownload),
	)

	phase := func(name string, fn func() error) error {
		start := p.now()
		err := fn()
		pr := PhaseResult{Name: name, DurationMs: p.now().Sub(start).Milliseconds(), Status: "complete"}
		if err != nil {
			pr.Status = "failed"
			pr.Error = err.Error()
			log.Error("pipeline: phase failed", zap.String("phase", name), zap.Int64("duration_ms", pr.DurationMs), zap.Error(err))
		} else {
			log.Info("pipeline: phase complete", zap.String("phase", name), zap.Int64("duration_ms", pr.DurationMs))
		}
		sum.Phases = append(sum.Phases, pr)
		return err
	}

	var (
		user  *table.Table
		reg   *table.Table
		res   *join.Result
		files *output.Files
	)

	if err := phase("read_input", func() error {
		var err error
		if user, err = params.Source.Read(ctx); err != nil {
			return err
		}
		for _, c := range params.Binding().Columns() {
			if _, err := user.Col(c); err != nil {
				return err
			}
		}
		sum.Counts.InputRows = user.Len()
		return nil
	}); err != nil {
		return nil, err
	}

	if err := phase("acquire_registry", func() error {
		r, err := p.Acquirer.Ensure(ctx, params.Redownload)
		if err != nil {
			return err
		}
		sum.Registry.Path = r.Path
		sum.Registry.Downloaded = r.Downloaded
		sum.Registry.Modified = r.ModTime
		registryModified = r.ModTime
		return nil
	}); err != nil {
		return nil, err
	}

	if err := phase("load_registry", func() error {
		var err error
		if reg, err = registry.Load(ctx, sum.Registry.Path, p.Registry); err != nil {
			return err
		}
		sum.Registry.Rows = reg.Len()
		return nil
	}); err != nil {
		return nil, err
	}

	if err := phase("build_keys", func() error {
		if err := address.AddKeyColumn(user, params.Binding()); err != nil {
			return err
		}
		return address.AddKeyColumn(reg, address.RegistryBinding)
	}); err != nil {
		return nil, err
	}

	if err := phase("join", func() error {
		var err error
		if res, err = join.Left(user, reg, address.KeyColumn, policy); err != nil {
			return err
		}
		sum.Counts.Matched = res.MatchedInputs()
		sum.Counts.MatchedRows = res.Matched.Len()
		sum.Counts.Unmatched = res.Unmatched.Len()
		sum.Registry.DuplicateKeys = res.Duplicates
		log.Info("pipeline: join finished",
			zap.Int("matched", sum.Counts.Matched),
			zap.Int("unmatched", sum.Counts.Unmatched),
			zap.Int("duplicate_keys", res.Duplicates),
		)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := phase("write_tables", func() error {
		w := &output.Writer{Dir: params.OutputDir, Options: p.Output, Log: log}
		var err error
		if files, err = w.Write(ctx, res, user); err != nil {
			return err
		}
		sum.Files = append(sum.Files, files.Paths()...)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := phase("write_geometry", func() error {
		layer, skipped, err := geometry.BuildLayer(res.Matched, geometry.BuildOptions{
			Name:   LayerName,
			SRID:   geometry.SRIDETRS89UTM32,
			Fields: user.Columns,
			XCol:   res.RegistryColumns[registry.ColX],
			YCol:   res.RegistryColumns[registry.ColY],
		}, registry.ParseCoordinate, log)
		if err != nil {
			return err
		}
		sum.Counts.SkippedGeometries = skipped
		for _, s := range sinks {
			if err := s.Write(ctx, layer); err != nil {
				return err
			}
			sum.Files = append(sum.Files, s.Path())
		}
		return nil
	}); err != nil {
		return nil, err
	}

	sum.FinishedAt = p.now().UTC()
	summaryPath := filepath.Join(params.OutputDir, output.SummaryFile)
	if err := WriteSummary(summaryPath, sum); err != nil {
		return nil, err
	}
	sum.SummaryPath = summaryPath

	log.Info("pipeline: geocoding run complete",
		zap.Int("input_rows", sum.Counts.InputRows),
		zap.Int("matched", sum.Counts.Matched),
		zap.Int("unmatched", sum.Counts.Unmatched),
		zap.String("summary", summaryPath),
	)
	return sum, nil
}

func (p *Pipeline) sinks(dir string, stamp func() time.Time) ([]geometry.Sink, error) {
	formats := p.Formats
	if len(formats) == 0 {
		formats = []string{FormatGeoPackage}
	}
	var sinks []geometry.Sink
	for _, f := range formats {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case FormatGeoPackage:
			sinks = append(sinks, &geometry.GeoPackageSink{
				FilePath: filepath.Join(dir, output.GeoPackageFile),
				Now:      stamp,
				Log:      p.logger(),
			})
		case FormatShapefile:
			sinks = append(sinks, &geometry.ShapefileSink{
				FilePath: filepath.Join(dir, output.ShapefileFile),
				Encoding: p.Output.Encoding,
				Log:      p.logger(),
			})
		default:
			return nil, eris.Errorf("pipeline: unknown geometry format %q", f)
		}
	}
	return sinks, nil
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Pipeline) logger() *zap.Logger {
	if p.Log != nil {
		return p.Log
	}
	return zap.NewNop()
}
