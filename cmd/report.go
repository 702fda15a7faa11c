package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sells-group/gebref-geocoder/internal/output"
	"github.com/sells-group/gebref-geocoder/internal/pipeline"
)

var reportOutput string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the summary of the last geocode run in an output directory",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sum, err := pipeline.ReadSummary(filepath.Join(reportOutput, output.SummaryFile))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		formatSummary(out, sum)
		_, _ = fmt.Fprintf(out, "\nstarted %s, finished %s\n",
			sum.StartedAt.Format("2006-01-02 15:04:05"), sum.FinishedAt.Format("2006-01-02 15:04:05"))
		for _, ph := range sum.Phases {
			_, _ = fmt.Fprintf(out, "  %-18s %-8s %6dms\n", ph.Name, ph.Status, ph.DurationMs)
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportOutput, "output", "", "output directory of a previous geocode run")
	_ = reportCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(reportCmd)
}
