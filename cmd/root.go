package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agrotrace/agrocheck/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "agrocheck",
	Short: "Compliance verification for Brazilian agricultural supply chains",
	Long:  "Checks producers, properties, and locations against public registries: slave labor, IBAMA embargoes, deforestation alerts, protected areas, fire, water permits, and CAR status.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
