package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/osmtools/bridgematch/internal/classify"
	"github.com/osmtools/bridgematch/internal/config"
	"github.com/osmtools/bridgematch/internal/milepoint"
	"github.com/osmtools/bridgematch/internal/nbi"
	"github.com/osmtools/bridgematch/internal/reconcile"
	"github.com/osmtools/bridgematch/internal/roadnet"
	"github.com/osmtools/bridgematch/internal/spatialjoin"
	"github.com/osmtools/bridgematch/internal/store"
)

type fakeSource struct {
	rows []spatialjoin.JoinRow
}

func (s fakeSource) Rows(_ context.Context) ([]spatialjoin.JoinRow, error) {
	return s.rows, nil
}

func line(coords ...float64) *geom.LineString {
	return geom.NewLineStringFlat(geom.XY, coords)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Inputs.Region = "test"
	cfg.Match.AutomatedThreshold = 75
	cfg.Match.ReviewFloor = 60
	cfg.Pipeline.Workers = 4
	return cfg
}

func testIndex() *roadnet.Index {
	return roadnet.NewIndex([]roadnet.Segment{
		{ID: "way/7", Name: "Main Street", Line: line(0, 0, 1, 0)},
		{ID: "way/9", Name: "Xyzzy Qqq", Line: line(0, 0.001, 1, 0.001)},
	})
}

var testBridges = []nbi.BridgeRecord{
	{StructureNumber: "B1", Latitude: 0.0005, Longitude: 0.5,
		FacilityCarried: "Main St Bridge", FeatureIntersected: "Cedar Creek",
		StructureLengthFt: 328.1, SpanDesign: "Beam", OperationalStatus: "A"},
	// Same coordinates as B1: dropped by the inventory prefilter.
	{StructureNumber: "B4", Latitude: 0.0005, Longitude: 0.5,
		SpanDesign: "Beam", OperationalStatus: "A"},
	// Never appears in the spatial join.
	{StructureNumber: "B2", Latitude: 1, Longitude: 1,
		SpanDesign: "Beam", OperationalStatus: "A"},
	// Non-posted culvert: dropped by the inventory prefilter.
	{StructureNumber: "B3", Latitude: 2, Longitude: 2,
		SpanDesign: "Culvert", OperationalStatus: "A"},
	// Associates, but no name field resembles the way's.
	{StructureNumber: "B5", Latitude: 0.0004, Longitude: 0.3,
		FacilityCarried: "Totally Unrelated", FeatureIntersected: "Big Run",
		SpanDesign: "Beam", OperationalStatus: "A"},
	// Scores identically to B1 and loses the nearby-pair tie to it.
	{StructureNumber: "B6", Latitude: 0.0005, Longitude: 0.6,
		FacilityCarried: "Main St Bridge", FeatureIntersected: "Cedar Creek",
		StructureLengthFt: 328.1, SpanDesign: "Beam", OperationalStatus: "A"},
}

var testJoinRows = []spatialjoin.JoinRow{
	{BridgeID: "B1", SegmentID: "way/7", SegmentName: "Main Street",
		StreamID: "S1", StreamName: "Cedar Creek", BridgeStreamID: "S1",
		IntersectionWKT: "POINT (0.5 0.0005)"},
	{BridgeID: "B5", SegmentID: "way/9", SegmentName: "Xyzzy Qqq",
		StreamID: "S2", StreamName: "Zzz", BridgeStreamID: "S2",
		IntersectionWKT: "POINT (0.3 0.0004)"},
	{BridgeID: "B6", SegmentID: "way/7", SegmentName: "Main Street",
		StreamID: "S1", StreamName: "Cedar Creek", BridgeStreamID: "S1",
		IntersectionWKT: "POINT (0.6 0.0005)"},
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func rowFor(t *testing.T, rows []Row, id string) Row {
	t.Helper()
	for _, r := range rows {
		if r.BridgeID == id {
			return r
		}
	}
	t.Fatalf("no row for bridge %s", id)
	return Row{}
}

func TestRunHydrographyEndToEnd(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := New(testConfig(), st, fakeSource{rows: testJoinRows}, testIndex())

	pairs := []spatialjoin.NearbyPair{{BridgeID: "B1", BridgeID2: "B6"}}
	res, err := p.RunHydrography(ctx, testBridges, pairs, Exclusions{})
	require.NoError(t, err)

	// B3 and B4 were filtered before association, so four rows remain.
	require.Len(t, res.Rows, 4)

	b1 := rowFor(t, res.Rows, "B1")
	assert.Equal(t, classify.AutomatedEdit, b1.Outcome.Disposition)
	assert.Equal(t, "way/7", b1.SegmentID)
	assert.GreaterOrEqual(t, b1.Score, 75)
	require.True(t, b1.Projected())
	pt, ok := b1.Point()
	require.True(t, ok)
	assert.InDelta(t, 0.0, pt.Lat, 1e-9)
	assert.InDelta(t, 0.5, pt.Lon, 1e-9)
	assert.InDelta(t, 100.0, b1.BridgeLengthM, 0.01)
	require.NotNil(t, b1.AnchorLat)

	b2 := rowFor(t, res.Rows, "B2")
	assert.Equal(t, classify.NotApplicable, b2.Outcome.Disposition)
	assert.Empty(t, b2.SegmentID)
	assert.False(t, b2.Projected())

	b5 := rowFor(t, res.Rows, "B5")
	assert.Equal(t, classify.Excluded, b5.Outcome.Disposition)
	assert.Equal(t, classify.ReasonLowConfidence, b5.Outcome.Reason)

	// Equal scores: the pair's second-listed bridge is the one removed.
	b6 := rowFor(t, res.Rows, "B6")
	assert.Equal(t, classify.Excluded, b6.Outcome.Disposition)
	assert.Equal(t, classify.ReasonNearbyBridge, b6.Outcome.Reason)

	require.NoError(t, res.Ledger.Verify())
	assert.Equal(t, 6, res.Ledger.Total())

	// Run history was persisted.
	run, err := st.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.RunStatusComplete, run.Status)
	assert.Equal(t, 6, run.TotalBridges)
	saved, err := st.LedgerFor(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.Ledger.Entries(), saved)
}

func TestRunHydrographyTagExclusions(t *testing.T) {
	ctx := context.Background()
	p := New(testConfig(), nil, fakeSource{rows: testJoinRows}, testIndex())

	excl := Exclusions{
		ExistingOSMBridge: map[string]bool{"B5": true},
		Freeway:           map[string]bool{"B2": true},
	}
	res, err := p.RunHydrography(ctx, testBridges, nil, excl)
	require.NoError(t, err)

	// B5 and B2 never reach association; only B1 and B6 produce rows.
	require.Len(t, res.Rows, 2)
	for _, r := range res.Rows {
		assert.NotEqual(t, "B5", r.BridgeID)
		assert.NotEqual(t, "B2", r.BridgeID)
	}

	require.NoError(t, res.Ledger.Verify())
	assert.Equal(t, 6, res.Ledger.Total())
	counts := make(map[string]int)
	for _, e := range res.Ledger.Entries() {
		counts[e.Category] = e.Count
	}
	assert.Equal(t, 1, counts[string(classify.ReasonExistingOSMBridge)])
	assert.Equal(t, 1, counts[string(classify.ReasonFreeway)])
}

func TestExclusionsFirstCategoryWins(t *testing.T) {
	excl := Exclusions{
		Freeway:       map[string]bool{"B9": true},
		TunnelCulvert: map[string]bool{"B9": true},
	}
	reason, ok := excl.reasonFor("B9")
	require.True(t, ok)
	assert.Equal(t, classify.ReasonFreeway, reason)

	_, ok = excl.reasonFor("B1")
	assert.False(t, ok)
}

func TestRunHydrographyAbortsOnMalformedGeometry(t *testing.T) {
	rows := []spatialjoin.JoinRow{{
		BridgeID: "B1", SegmentID: "way/7", SegmentName: "Main Street",
		IntersectionWKT: "POINT (not a number)",
	}}
	p := New(testConfig(), nil, fakeSource{rows: rows}, testIndex())

	_, err := p.RunHydrography(context.Background(), testBridges, nil, Exclusions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "B1")
}

func TestWriteOutputs(t *testing.T) {
	ctx := context.Background()
	p := New(testConfig(), nil, fakeSource{rows: testJoinRows}, testIndex())

	res, err := p.RunHydrography(ctx, testBridges, nil, Exclusions{})
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, res.WriteOutputs(dir, testIndex()))

	for _, name := range []string{"dispositions.csv", "split_points.csv", "ledger.csv", "ledger.yaml"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	data, err := os.ReadFile(filepath.Join(dir, "dispositions.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "B1")
	assert.Contains(t, string(data), "Automated edit")
}

func TestSplitRowsHalfLengthEitherSide(t *testing.T) {
	ctx := context.Background()
	p := New(testConfig(), nil, fakeSource{rows: testJoinRows}, testIndex())
	res, err := p.RunHydrography(ctx, testBridges, nil, Exclusions{})
	require.NoError(t, err)

	splits := SplitRows(res.Rows, testIndex())
	// Without the dedupe pair both B1 and B6 are automated edits.
	require.Len(t, splits, 2)
	for _, s := range splits {
		assert.Equal(t, "way/7", s.SegmentID)
		assert.NotEmpty(t, s.ForwardLon)
		assert.NotEmpty(t, s.BackwardLon)
	}
}

func TestWriteMergedEmitsVerifiedFunnel(t *testing.T) {
	merged := []reconcile.Merged{
		{BridgeID: "B1", SegmentID: "way/7", Score: 90,
			Outcome: classify.Outcome{Disposition: classify.AutomatedEdit}},
		{BridgeID: "B2",
			Outcome: classify.Outcome{Disposition: classify.Excluded, Reason: classify.ReasonMethodDisagreement}},
	}

	out := filepath.Join(t.TempDir(), "merged.csv")
	led, err := WriteMerged(out, merged)
	require.NoError(t, err)
	require.NoError(t, led.Verify())
	assert.Equal(t, 2, led.Total())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "B1")

	base := strings.TrimSuffix(out, ".csv")
	funnel, err := os.ReadFile(base + "_ledger.csv")
	require.NoError(t, err)
	assert.Contains(t, string(funnel), string(classify.ReasonMethodDisagreement))
	assert.Contains(t, string(funnel), string(classify.AutomatedEdit))

	yamlOut, err := os.ReadFile(base + "_ledger.yaml")
	require.NoError(t, err)
	assert.Contains(t, string(yamlOut), "total_bridges: 2")
}

func TestReconcileAgreementUsesMilePointAnchor(t *testing.T) {
	p := New(testConfig(), nil, fakeSource{}, testIndex())

	lat, lon := 0.0005, 0.5
	hydro := []Row{{
		AnchorLat: &lat,
		AnchorLon: &lon,
	}}
	hydro[0].BridgeID = "B1"
	hydro[0].SegmentID = "way/7"
	hydro[0].SegmentName = "Main Street"
	hydro[0].Score = 100

	mpLat, mpLon := 0.0002, 0.51
	mp := []milepoint.Association{{
		BridgeID: "B1", LRSID: "056-KY-0001", RoadName: "Main Street",
		Lat: &mpLat, Lon: &mpLon, NameScore: 90,
	}}

	merged, err := p.Reconcile(hydro, mp)
	require.NoError(t, err)
	require.Len(t, merged, 1)

	m := merged[0]
	assert.Equal(t, "way/7", m.SegmentID)
	assert.Equal(t, classify.AutomatedEdit, m.Outcome.Disposition)
	// The mile-point measure point snapped onto the way is the anchor.
	require.NotNil(t, m.Lat)
	assert.InDelta(t, 0.0, *m.Lat, 1e-9)
	assert.InDelta(t, 0.51, *m.Lon, 1e-9)
}

func TestReconcileOnlyHydro(t *testing.T) {
	p := New(testConfig(), nil, fakeSource{}, testIndex())

	lat, lon := 0.0005, 0.5
	hydro := []Row{{AnchorLat: &lat, AnchorLon: &lon}}
	hydro[0].BridgeID = "B1"
	hydro[0].SegmentID = "way/7"
	hydro[0].Score = 68

	merged, err := p.Reconcile(hydro, nil)
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, classify.ReviewRequired, merged[0].Outcome.Disposition)
	assert.Equal(t, "way/7", merged[0].SegmentID)
	// Rule for a single method keeps the raw intersection anchor.
	assert.InDelta(t, 0.0005, *merged[0].Lat, 1e-9)
}
