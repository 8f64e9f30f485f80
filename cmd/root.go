package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/osmtools/bridgematch/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "bridgematch",
	Short: "Associates bridge inventory records with OSM ways",
	Long:  "Filters a national bridge inventory extract, joins it against OSM waterway and road geometry, scores name similarity, and emits per-bridge editing dispositions with a reconciled statistics ledger.",
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
