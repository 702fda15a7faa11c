package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/gebref-geocoder/internal/table"
)

var columnsFlags struct {
	input string
	sheet string
}

var columnsCmd = &cobra.Command{
	Use:   "columns",
	Short: "List the columns of an input table",
	Long:  "Prints the column names of the input table so they can be passed to geocode --street/--hnr/--hnrz/--ags. For .xlsx files the available sheets are listed as well.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		src := openInput(cfg, columnsFlags.input, columnsFlags.sheet)

		if xs, ok := src.(*table.XLSXSource); ok {
			sheets, err := table.Sheets(xs.Path)
			if err != nil {
				return err
			}
			for _, s := range sheets {
				_, _ = fmt.Fprintf(out, "sheet: %s\n", s)
			}
		}

		t, err := src.Read(cmd.Context())
		if err != nil {
			return err
		}
		for i, c := range t.Columns {
			_, _ = fmt.Fprintf(out, "%d\t%s\n", i, c)
		}
		return nil
	},
}

func init() {
	columnsCmd.Flags().StringVar(&columnsFlags.input, "input", "", "address table (.csv, .txt or .xlsx)")
	columnsCmd.Flags().StringVar(&columnsFlags.sheet, "sheet", "", "worksheet name for .xlsx input")
	_ = columnsCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(columnsCmd)
}
