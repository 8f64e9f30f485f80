package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/osmtools/bridgematch/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show recorded runs and their funnels",
	Long: `Lists pipeline runs from the run-history database. With --run, prints the
stored disposition funnel for that run instead.`,
	RunE: runStats,
}

func init() {
	f := statsCmd.Flags()
	f.String("run", "", "print the funnel for one run id")
	f.String("region", "", "filter runs by region")
	f.Int("limit", 20, "maximum runs to list")

	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	if runID, _ := cmd.Flags().GetString("run"); runID != "" {
		run, err := st.GetRun(ctx, runID)
		if err != nil {
			return err
		}
		entries, err := st.LedgerFor(ctx, runID)
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "run\t%s\nregion\t%s\nstatus\t%s\ntotal bridges\t%d\n\n",
			run.ID, run.Region, run.Status, run.TotalBridges)
		fmt.Fprintln(w, "CATEGORY\tCOUNT")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%d\n", e.Category, e.Count)
		}
		return nil
	}

	region, _ := cmd.Flags().GetString("region")
	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := st.ListRuns(ctx, store.RunFilter{Region: region, Limit: limit})
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "ID\tREGION\tSTATUS\tBRIDGES\tCREATED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.Region, r.Status, r.TotalBridges, r.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}
