package pipeline

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/osmtools/bridgematch/internal/classify"
	"github.com/osmtools/bridgematch/internal/geodesy"
	"github.com/osmtools/bridgematch/internal/ledger"
	"github.com/osmtools/bridgematch/internal/reconcile"
	"github.com/osmtools/bridgematch/internal/roadnet"
)

// SplitRow carries the two way-split points for one automated-edit bridge.
// An empty coordinate pair means the way ends before the half-length mark,
// which is common on short ways and not an error.
type SplitRow struct {
	BridgeID    string `csv:"bridge_id"`
	SegmentID   string `csv:"segment_id"`
	ForwardLat  string `csv:"forward_lat"`
	ForwardLon  string `csv:"forward_lon"`
	BackwardLat string `csv:"backward_lat"`
	BackwardLon string `csv:"backward_lon"`
}

// SplitRows computes way-split points at half the bridge length either side
// of the projected point, for every automated-edit row.
func SplitRows(rows []Row, index *roadnet.Index) []SplitRow {
	var out []SplitRow
	for _, r := range rows {
		if r.Outcome.Disposition != classify.AutomatedEdit {
			continue
		}
		anchor, ok := r.Point()
		if !ok {
			continue
		}
		seg, ok := index.Lookup(r.SegmentID)
		if !ok || seg.Line == nil {
			continue
		}
		sp := geodesy.SplitPointsOnLine(anchor, seg.Line, r.BridgeLengthM/2)
		row := SplitRow{BridgeID: r.BridgeID, SegmentID: r.SegmentID}
		if sp.Forward != nil {
			row.ForwardLat = formatCoord(sp.Forward.Lat)
			row.ForwardLon = formatCoord(sp.Forward.Lon)
		}
		if sp.Backward != nil {
			row.BackwardLat = formatCoord(sp.Backward.Lat)
			row.BackwardLon = formatCoord(sp.Backward.Lon)
		}
		out = append(out, row)
	}
	return out
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteOutputs materializes the run under dir: the disposition table, the
// funnel in both formats, and the split points for the editing set.
func (r *Result) WriteOutputs(dir string, index *roadnet.Index) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "pipeline: create output dir %s", dir)
	}

	if err := writeCSV(filepath.Join(dir, "dispositions.csv"), r.Rows); err != nil {
		return err
	}
	if err := writeCSV(filepath.Join(dir, "split_points.csv"), SplitRows(r.Rows, index)); err != nil {
		return err
	}

	// The ledger writers re-verify, so a mismatched funnel can never reach
	// disk alongside a disposition table.
	f, err := os.Create(filepath.Join(dir, "ledger.csv"))
	if err != nil {
		return eris.Wrap(err, "pipeline: create ledger.csv")
	}
	defer f.Close()
	if err := r.Ledger.WriteCSV(f); err != nil {
		return err
	}

	y, err := os.Create(filepath.Join(dir, "ledger.yaml"))
	if err != nil {
		return eris.Wrap(err, "pipeline: create ledger.yaml")
	}
	defer y.Close()
	if err := r.Ledger.WriteYAML(y); err != nil {
		return err
	}

	zap.L().Info("pipeline: outputs written", zap.String("dir", dir))
	return nil
}

// WriteMerged materializes the reconciled two-method table together with its
// funnel, written next to the table. The funnel is verified first; a merged
// table whose outcomes do not account for every bridge never reaches disk.
func WriteMerged(path string, merged []reconcile.Merged) (*ledger.Ledger, error) {
	led := ledger.New(len(merged))
	for _, m := range merged {
		led.AddOutcome(m.Outcome)
	}
	if err := led.Verify(); err != nil {
		return nil, err
	}

	if err := writeCSV(path, merged); err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(path, filepath.Ext(path))
	f, err := os.Create(base + "_ledger.csv")
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create merged ledger csv")
	}
	defer f.Close()
	if err := led.WriteCSV(f); err != nil {
		return nil, err
	}

	y, err := os.Create(base + "_ledger.yaml")
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create merged ledger yaml")
	}
	defer y.Close()
	if err := led.WriteYAML(y); err != nil {
		return nil, err
	}
	return led, nil
}

func writeCSV(path string, v any) error {
	b, err := csvutil.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "pipeline: marshal %s", filepath.Base(path))
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return eris.Wrapf(err, "pipeline: write %s", path)
	}
	return nil
}
