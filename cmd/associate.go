package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/osmtools/bridgematch/internal/nbi"
	"github.com/osmtools/bridgematch/internal/pipeline"
	"github.com/osmtools/bridgematch/internal/roadnet"
	"github.com/osmtools/bridgematch/internal/spatialjoin"
	"github.com/osmtools/bridgematch/internal/store"
)

var associateCmd = &cobra.Command{
	Use:   "associate",
	Short: "Run the hydrography association method end-to-end",
	Long: `Loads the bridge inventory, applies the prefilter, resolves each bridge to
one OSM way via the stream-intersection join, projects it onto the way,
scores name similarity, and classifies every bridge into an editing
disposition. Outputs the disposition table, way-split points, and the
verified statistics ledger.

The spatial join comes either from a PostGIS host (join.database_url) or from
a pre-materialized join CSV (inputs.join_csv / --join).

Examples:
  # Join rows from a materialized CSV
  bridgematch associate --bridges ky_bridges.csv --join join_rows.csv --ways ways.csv

  # Join computed by PostGIS, ways from a state shapefile
  bridgematch associate --bridges ky_bridges.xlsx --ways roads.shp`,
	RunE: runAssociate,
}

func init() {
	f := associateCmd.Flags()
	f.String("bridges", "", "bridge inventory extract, .csv or .xlsx (default: inputs.bridge_csv)")
	f.String("join", "", "materialized spatial-join CSV (default: inputs.join_csv)")
	f.String("ways", "", "OSM ways, WKT CSV or shapefile (default: inputs.road_shapefile)")
	f.String("pairs", "", "nearby-bridge self-join CSV (computed in PostGIS when unset)")
	f.String("exclude-existing", "", "bridge ids already tagged in OSM (default: exclusions.existing_osm_bridge_csv)")
	f.String("exclude-freeway", "", "bridge ids near or on freeways (default: exclusions.freeway_csv)")
	f.String("exclude-parallel", "", "bridge ids on parallel opposite-direction spans (default: exclusions.parallel_bridge_csv)")
	f.String("exclude-tunnel", "", "bridge ids near tunnel=culvert (default: exclusions.tunnel_culvert_csv)")
	f.String("out", "", "output directory (default: inputs.output_dir)")
	f.Bool("no-store", false, "skip recording the run in the run-history database")

	rootCmd.AddCommand(associateCmd)
}

func runAssociate(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bridges, err := loadBridges(flagOr(cmd, "bridges", cfg.Inputs.BridgeCSV))
	if err != nil {
		return err
	}

	index, err := loadWayIndex(flagOr(cmd, "ways", cfg.Inputs.RoadShapefile))
	if err != nil {
		return err
	}

	source, closeSource, err := joinSource(ctx, flagOr(cmd, "join", cfg.Inputs.JoinCSV), bridges, index)
	if err != nil {
		return err
	}
	defer closeSource()

	excl, err := loadExclusions(cmd)
	if err != nil {
		return err
	}

	var pairs []spatialjoin.NearbyPair
	if path, _ := cmd.Flags().GetString("pairs"); path != "" {
		if pairs, err = spatialjoin.LoadNearbyPairs(path); err != nil {
			return err
		}
	} else if pg, ok := source.(*spatialjoin.PostGISSource); ok {
		if pairs, err = pg.NearbyPairs(ctx, cfg.Dedupe.RadiusM); err != nil {
			return err
		}
	}

	var st store.Store
	if noStore, _ := cmd.Flags().GetBool("no-store"); !noStore {
		sqlStore, err := store.NewSQLite(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer sqlStore.Close()
		if err := sqlStore.Migrate(ctx); err != nil {
			return err
		}
		st = sqlStore
	}

	p := pipeline.New(cfg, st, source, index)
	res, err := p.RunHydrography(ctx, bridges, pairs, excl)
	if err != nil {
		return err
	}

	outDir := flagOr(cmd, "out", cfg.Inputs.OutputDir)
	if err := res.WriteOutputs(outDir, index); err != nil {
		return err
	}

	zap.L().Info("associate complete",
		zap.String("run_id", res.RunID),
		zap.String("output_dir", outDir))
	return nil
}

// loadBridges picks the loader by extension; the state publishes both forms.
func loadBridges(path string) ([]nbi.BridgeRecord, error) {
	if path == "" {
		return nil, eris.New("associate: no bridge inventory configured")
	}
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return nbi.LoadXLSX(path)
	}
	return nbi.LoadCSV(path)
}

func loadWayIndex(path string) (*roadnet.Index, error) {
	if path == "" {
		return nil, eris.New("associate: no way source configured")
	}
	var (
		segments []roadnet.Segment
		err      error
	)
	if strings.HasSuffix(strings.ToLower(path), ".shp") {
		segments, err = roadnet.LoadShapefile(path, "osm_id", "name")
	} else {
		segments, err = roadnet.LoadWKTCSV(path)
	}
	if err != nil {
		return nil, err
	}
	return roadnet.NewIndex(segments), nil
}

// loadExclusions reads the configured OSM-tag exclusion lists; categories
// without a path stay empty.
func loadExclusions(cmd *cobra.Command) (pipeline.Exclusions, error) {
	var excl pipeline.Exclusions
	for _, src := range []struct {
		flag     string
		fallback string
		dst      *map[string]bool
	}{
		{"exclude-existing", cfg.Exclusions.ExistingOSMBridgeCSV, &excl.ExistingOSMBridge},
		{"exclude-freeway", cfg.Exclusions.FreewayCSV, &excl.Freeway},
		{"exclude-parallel", cfg.Exclusions.ParallelBridgeCSV, &excl.ParallelBridge},
		{"exclude-tunnel", cfg.Exclusions.TunnelCulvertCSV, &excl.TunnelCulvert},
	} {
		path := flagOr(cmd, src.flag, src.fallback)
		if path == "" {
			continue
		}
		ids, err := spatialjoin.LoadExclusionIDs(path)
		if err != nil {
			return pipeline.Exclusions{}, err
		}
		*src.dst = ids
	}
	return excl, nil
}

// joinSource prefers the PostGIS host when configured, loading the inventory
// and way tables before the first query; otherwise it reads the join CSV.
func joinSource(ctx context.Context, joinCSV string, bridges []nbi.BridgeRecord, index *roadnet.Index) (spatialjoin.Source, func(), error) {
	if cfg.Join.DatabaseURL != "" {
		if err := spatialjoin.ValidatePredicates(cfg.Join.Predicates); err != nil {
			return nil, nil, err
		}
		pool, err := pgxpool.New(ctx, cfg.Join.DatabaseURL)
		if err != nil {
			return nil, nil, eris.Wrap(err, "associate: connect postgis")
		}
		if _, err := spatialjoin.LoadBridgeTable(ctx, pool, "", bridges); err != nil {
			pool.Close()
			return nil, nil, err
		}
		var segments []roadnet.Segment
		index.Each(func(s roadnet.Segment) { segments = append(segments, s) })
		if _, err := spatialjoin.LoadWayTable(ctx, pool, "", segments); err != nil {
			pool.Close()
			return nil, nil, err
		}
		src := &spatialjoin.PostGISSource{
			Pool:       pool,
			BufferM:    cfg.Join.BufferM,
			Predicates: cfg.Join.Predicates,
		}
		return src, pool.Close, nil
	}
	if joinCSV == "" {
		return nil, nil, eris.New("associate: no join source configured")
	}
	return spatialjoin.CSVSource{Path: joinCSV}, func() {}, nil
}

func flagOr(cmd *cobra.Command, name, fallback string) string {
	if v, _ := cmd.Flags().GetString(name); v != "" {
		return v
	}
	return fallback
}
