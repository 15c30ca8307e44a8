package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long:  "Merges defaults, config.yaml, and AGROCHECK_* environment variables and prints the result.",
	RunE: func(cmd *cobra.Command, args []string) error {
		shown := *cfg
		// Secrets never reach stdout.
		if shown.Geocode.LocationIQKey != "" {
			shown.Geocode.LocationIQKey = "***"
		}

		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		if err := enc.Encode(&shown); err != nil {
			return eris.Wrap(err, "encode config")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
