package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/gebref-geocoder/internal/pipeline"
)

var geocodeFlags struct {
	input      string
	street     string
	hnr        string
	hnrz       string
	ags        string
	redownload bool
	output     string
	sheet      string
}

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Match an address table against the official registry",
	Long: "Reads the input table, makes sure the registry is cached locally (downloading it when missing " +
		"or when --redownload is set), joins both on the normalized address key and writes the result " +
		"files into the output directory.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		log := zap.L()

		acq, err := newAcquirer(cfg, log)
		if err != nil {
			return err
		}

		sum, err := newPipeline(cfg, acq, log).Run(ctx, pipeline.Params{
			Source:         openInput(cfg, geocodeFlags.input, geocodeFlags.sheet),
			StreetCol:      geocodeFlags.street,
			HouseNumberCol: geocodeFlags.hnr,
			SuffixCol:      geocodeFlags.hnrz,
			AGSCol:         geocodeFlags.ags,
			Redownload:     geocodeFlags.redownload,
			OutputDir:      geocodeFlags.output,
		})
		if err != nil {
			return err
		}

		formatSummary(cmd.OutOrStdout(), sum)
		return nil
	},
}

func init() {
	f := geocodeCmd.Flags()
	f.StringVar(&geocodeFlags.input, "input", "", "address table (.csv, .txt or .xlsx)")
	f.StringVar(&geocodeFlags.street, "street", "", "street name column")
	f.StringVar(&geocodeFlags.hnr, "hnr", "", "house number column")
	f.StringVar(&geocodeFlags.hnrz, "hnrz", "", "house number suffix column")
	f.StringVar(&geocodeFlags.ags, "ags", "", "municipality code (AGS) column")
	f.BoolVar(&geocodeFlags.redownload, "redownload", false, "download the registry even if a cached copy exists")
	f.StringVar(&geocodeFlags.output, "output", "", "output directory")
	f.StringVar(&geocodeFlags.sheet, "sheet", "", "worksheet name for .xlsx input (default: first sheet)")
	for _, name := range []string{"input", "street", "hnr", "hnrz", "ags", "output"} {
		_ = geocodeCmd.MarkFlagRequired(name)
	}
	rootCmd.AddCommand(geocodeCmd)
}

// formatSummary writes the counts and result files of a run to out.
func formatSummary(out io.Writer, s *pipeline.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "run\t%s\n", s.RunID)
	_, _ = fmt.Fprintf(w, "registry\t%s (downloaded: %t, rows: %d, duplicate keys: %d)\n",
		s.Registry.Path, s.Registry.Downloaded, s.Registry.Rows, s.Registry.DuplicateKeys)
	_, _ = fmt.Fprintf(w, "input rows\t%d\n", s.Counts.InputRows)
	_, _ = fmt.Fprintf(w, "matched\t%d\n", s.Counts.Matched)
	_, _ = fmt.Fprintf(w, "unmatched\t%d\n", s.Counts.Unmatched)
	if s.Counts.SkippedGeometries > 0 {
		_, _ = fmt.Fprintf(w, "skipped geometries\t%d\n", s.Counts.SkippedGeometries)
	}
	for _, f := range s.Files {
		_, _ = fmt.Fprintf(w, "wrote\t%s\n", f)
	}
	_, _ = fmt.Fprintf(w, "summary\t%s\n", s.SummaryPath)
	_ = w.Flush()
}
