package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/osmtools/bridgematch/internal/milepoint"
)

var milepointCmd = &cobra.Command{
	Use:   "milepoint",
	Short: "Run the mile-point (linear-referencing) association method",
	Long: `Joins LRS-keyed bridges to the state routes covering their mile-point
measure, interpolates each bridge's point at the measure along the route
geometry, drops redundant twin-carriageway records, and picks the best route
per bridge by combined distance and road-name score. The output feeds the
merge command.`,
	RunE: runMilepoint,
}

func init() {
	f := milepointCmd.Flags()
	f.String("routes", "", "LRS routes CSV with WKT geometry (default: milepoint.route_csv)")
	f.String("bridges", "", "LRS bridge extract CSV (default: milepoint.bridge_csv)")
	f.String("out", "milepoint_associations.csv", "output CSV path")

	rootCmd.AddCommand(milepointCmd)
}

func runMilepoint(cmd *cobra.Command, _ []string) error {
	_, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	routes, err := milepoint.LoadRoutesCSV(flagOr(cmd, "routes", cfg.MilePoint.RouteCSV))
	if err != nil {
		return err
	}
	bridges, err := milepoint.LoadBridgesCSV(flagOr(cmd, "bridges", cfg.MilePoint.BridgeCSV))
	if err != nil {
		return err
	}

	cands := milepoint.Candidates(bridges, routes)
	assocs := milepoint.Associate(cands)

	out, _ := cmd.Flags().GetString("out")
	if err := writeCSVFile(out, assocs); err != nil {
		return err
	}

	zap.L().Info("milepoint complete",
		zap.Int("bridges", len(bridges)),
		zap.Int("candidates", len(cands)),
		zap.Int("associations", len(assocs)),
		zap.String("out", out))
	return nil
}

func writeCSVFile(path string, v any) error {
	b, err := csvutil.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "marshal %s", path)
	}
	return eris.Wrapf(os.WriteFile(path, b, 0o644), "write %s", path)
}
