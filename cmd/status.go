package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show service health and data-source freshness",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		report := e.Monitor.Report(ctx)

		if statusJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		fmt.Printf("status:   %s\n", report.Status)
		fmt.Printf("database: %s\n", upDown(report.Database))
		fmt.Printf("cache:    %s\n", upDown(report.Cache))
		fmt.Println()

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SOURCE\tCADENCE\tFRESHNESS\tRECORDS\tLAST UPDATED")
		for _, s := range report.Sources {
			last := "never"
			if s.LastUpdated != nil {
				last = s.LastUpdated.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", s.Name, s.Cadence, s.Freshness, s.RecordCount, last)
		}
		return w.Flush()
	},
}

func upDown(ok bool) string {
	if ok {
		return "up"
	}
	return "down"
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output JSON")
	rootCmd.AddCommand(statusCmd)
}
