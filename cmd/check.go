package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/agrotrace/agrocheck/internal/model"
)

var (
	checkType    string
	checkLat     float64
	checkLon     float64
	checkSources []string
)

var checkCmd = &cobra.Command{
	Use:   "check [value]",
	Short: "Run a one-off compliance check from the command line",
	Long: `Runs the full checker set against a single input and prints the JSON
response. The input value is a CPF, CNPJ, CAR code, or address depending on
--type; for --type COORDINATES pass --lat and --lon instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		inputType := model.InputType(strings.ToUpper(checkType))
		if !inputType.Valid() {
			return eris.Errorf("unknown input type %q", checkType)
		}

		var value any
		if inputType == model.InputCoordinates {
			value = map[string]any{"lat": checkLat, "lon": checkLon}
		} else {
			if len(args) != 1 {
				return eris.Errorf("input value required for type %s", inputType)
			}
			value = args[0]
		}

		resp, err := e.Orchestrator.Execute(ctx, model.CheckRequest{
			Input:   model.RawInput{Type: inputType, Value: value},
			Options: model.CheckOptions{Sources: checkSources},
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkType, "type", "", "input type: CPF, CNPJ, COORDINATES, ADDRESS, CAR")
	checkCmd.Flags().Float64Var(&checkLat, "lat", 0, "latitude (COORDINATES only)")
	checkCmd.Flags().Float64Var(&checkLon, "lon", 0, "longitude (COORDINATES only)")
	checkCmd.Flags().StringSliceVar(&checkSources, "sources", nil, "restrict to these checker names")
	checkCmd.MarkFlagRequired("type")
	rootCmd.AddCommand(checkCmd)
}
