package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/gebref-geocoder/internal/address"
)

var keyFlags struct {
	street string
	hnr    string
	hnrz   string
	ags    string
}

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Print the normalized address key for one address",
	Example: `  gebref-geocoder key --street "Hauptstraße" --hnr 5 --hnrz a --ags 05315000
  hauptstr5a_05315000`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		k := address.BuildKey(keyFlags.street, keyFlags.hnr, keyFlags.hnrz, keyFlags.ags)
		_, err := fmt.Fprintln(cmd.OutOrStdout(), k)
		return err
	},
}

func init() {
	keyCmd.Flags().StringVar(&keyFlags.street, "street", "", "street name")
	keyCmd.Flags().StringVar(&keyFlags.hnr, "hnr", "", "house number")
	keyCmd.Flags().StringVar(&keyFlags.hnrz, "hnrz", "", "house number suffix")
	keyCmd.Flags().StringVar(&keyFlags.ags, "ags", "", "municipality code")
	_ = keyCmd.MarkFlagRequired("street")
	_ = keyCmd.MarkFlagRequired("ags")
	rootCmd.AddCommand(keyCmd)
}
