package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/osmtools/bridgematch/internal/classify"
	"github.com/osmtools/bridgematch/internal/milepoint"
	"github.com/osmtools/bridgematch/internal/pipeline"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Cross-validate the two association methods",
	Long: `Merges the hydrography disposition table against the mile-point
associations, bridge by bridge. Agreement between the methods is accepted
outright; disagreement goes to the higher-scoring method; a bridge only one
method could place is accepted only on that method's own score. The output is
the final per-bridge association table.`,
	RunE: runMerge,
}

func init() {
	f := mergeCmd.Flags()
	f.String("hydro", "", "hydrography dispositions.csv (required)")
	f.String("milepoint", "", "milepoint associations CSV (required)")
	f.String("ways", "", "OSM ways, WKT CSV or shapefile (default: inputs.road_shapefile)")
	f.String("out", "merged.csv", "output CSV path")
	_ = mergeCmd.MarkFlagRequired("hydro")
	_ = mergeCmd.MarkFlagRequired("milepoint")

	rootCmd.AddCommand(mergeCmd)
}

func runMerge(cmd *cobra.Command, _ []string) error {
	_, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hydroPath, _ := cmd.Flags().GetString("hydro")
	hydroRows, err := loadHydroRows(hydroPath)
	if err != nil {
		return err
	}

	mpPath, _ := cmd.Flags().GetString("milepoint")
	mpData, err := os.ReadFile(mpPath)
	if err != nil {
		return eris.Wrapf(err, "merge: read %s", mpPath)
	}
	var mpAssocs []milepoint.Association
	if err := csvutil.Unmarshal(mpData, &mpAssocs); err != nil {
		return eris.Wrapf(err, "merge: parse %s", mpPath)
	}

	index, err := loadWayIndex(flagOr(cmd, "ways", cfg.Inputs.RoadShapefile))
	if err != nil {
		return err
	}

	p := pipeline.New(cfg, nil, nil, index)
	merged, err := p.Reconcile(hydroRows, mpAssocs)
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("out")
	led, err := pipeline.WriteMerged(out, merged)
	if err != nil {
		return err
	}

	var automated, review int
	for _, m := range merged {
		switch m.Outcome.Disposition {
		case classify.AutomatedEdit:
			automated++
		case classify.ReviewRequired:
			review++
		}
	}
	zap.L().Info("merge complete",
		zap.Int("bridges", led.Total()),
		zap.Int("automated", automated),
		zap.Int("review", review),
		zap.String("out", out))
	return nil
}

func loadHydroRows(path string) ([]pipeline.Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "merge: read %s", path)
	}
	var rows []pipeline.Row
	if err := csvutil.Unmarshal(data, &rows); err != nil {
		return nil, eris.Wrapf(err, "merge: parse %s", path)
	}
	return rows, nil
}
