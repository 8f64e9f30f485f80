package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/osmtools/bridgematch/internal/osmfilter"
)

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Filter an OSM extract down to drivable ways",
	Long: `Runs osmium tags-filter over a region .osm.pbf extract, keeping only
highway classes a bridge can plausibly carry, then converts the result to a
GeoPackage with ogr2ogr for the spatial-join host.

Both tools must be installed; their paths and the per-invocation timeout come
from config.`,
	RunE: runFilter,
}

func init() {
	f := filterCmd.Flags()
	f.String("input", "", "input .osm.pbf extract (default: inputs.osm_extract from config)")
	f.String("filtered", "filtered.osm.pbf", "filtered .osm.pbf output path")
	f.String("gpkg", "filtered.gpkg", "GeoPackage output path")

	rootCmd.AddCommand(filterCmd)
}

func runFilter(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	input, _ := cmd.Flags().GetString("input")
	if input == "" {
		input = cfg.Inputs.OSMExtract
	}
	filtered, _ := cmd.Flags().GetString("filtered")
	gpkg, _ := cmd.Flags().GetString("gpkg")

	f := osmfilter.New(
		cfg.Tools.OsmiumPath,
		cfg.Tools.Ogr2ogrPath,
		time.Duration(cfg.Tools.TimeoutSecs)*time.Second,
	)
	if err := f.Run(ctx, input, filtered, gpkg); err != nil {
		return err
	}

	zap.L().Info("filter complete",
		zap.String("filtered", filtered),
		zap.String("gpkg", gpkg))
	return nil
}
