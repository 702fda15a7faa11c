package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/gebref-geocoder/internal/address"
	"github.com/sells-group/gebref-geocoder/internal/registry"
	"github.com/sells-group/gebref-geocoder/internal/table"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Manage the cached official address registry",
}

var registryFetchForce bool

var registryFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download and unpack the registry into the cache directory",
	Long:  "Downloads the registry archive when no cached copy exists. With --force the archive is fetched again; a stored ETag lets the server answer 304 when nothing changed.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		acq, err := newAcquirer(cfg, zap.L())
		if err != nil {
			return err
		}
		res, err := acq.Ensure(cmd.Context(), registryFetchForce)
		if err != nil {
			return err
		}

		state := "cached"
		switch {
		case res.Downloaded:
			state = "downloaded"
		case res.NotChanged:
			state = "not modified"
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", res.Path, state)
		return nil
	},
}

var registryInspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Load the cached registry and print row and municipality counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		acq, err := newAcquirer(cfg, zap.L())
		if err != nil {
			return err
		}
		res, err := acq.Ensure(cmd.Context(), false)
		if err != nil {
			return err
		}

		t, err := registry.Load(cmd.Context(), res.Path, registry.LoadOptions{Encoding: cfg.Registry.Encoding})
		if err != nil {
			return err
		}
		return formatRegistryStats(cmd.OutOrStdout(), res.Path, t)
	},
}

func init() {
	registryFetchCmd.Flags().BoolVar(&registryFetchForce, "force", false, "download even if a cached copy exists")
	registryCmd.AddCommand(registryFetchCmd, registryInspectCmd)
	rootCmd.AddCommand(registryCmd)
}

// formatRegistryStats prints the row count and the ten municipalities with
// the most addresses.
func formatRegistryStats(out io.Writer, path string, t *table.Table) error {
	ags, err := t.Column(address.MunicipalityColumn)
	if err != nil {
		return err
	}
	counts := make(map[string]int)
	for _, a := range ags {
		counts[a]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "file\t%s\n", path)
	_, _ = fmt.Fprintf(w, "addresses\t%d\n", t.Len())
	_, _ = fmt.Fprintf(w, "municipalities\t%d\n", len(counts))
	_, _ = fmt.Fprintln(w, "AGS\tADDRESSES")
	for i, k := range keys {
		if i == 10 {
			break
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\n", k, counts[k])
	}
	return w.Flush()
}
