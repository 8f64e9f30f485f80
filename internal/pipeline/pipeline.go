// Package pipeline orchestrates the full bridge-to-way association run:
// inventory filtering, spatial join, candidate resolution, projection, name
// scoring, classification, nearby-bridge arbitration, and the funnel ledger.
package pipeline

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/osmtools/bridgematch/internal/associate"
	"github.com/osmtools/bridgematch/internal/classify"
	"github.com/osmtools/bridgematch/internal/config"
	"github.com/osmtools/bridgematch/internal/dedupe"
	"github.com/osmtools/bridgematch/internal/geodesy"
	"github.com/osmtools/bridgematch/internal/ledger"
	"github.com/osmtools/bridgematch/internal/milepoint"
	"github.com/osmtools/bridgematch/internal/nbi"
	"github.com/osmtools/bridgematch/internal/project"
	"github.com/osmtools/bridgematch/internal/reconcile"
	"github.com/osmtools/bridgematch/internal/roadnet"
	"github.com/osmtools/bridgematch/internal/similarity"
	"github.com/osmtools/bridgematch/internal/spatialjoin"
	"github.com/osmtools/bridgematch/internal/store"
)

// Row is one bridge's final state after the hydrography method: projection
// sentinels, the resolved anchor, the best name score, and the disposition.
type Row struct {
	project.Result
	AnchorLat *float64 `csv:"final_lat"`
	AnchorLon *float64 `csv:"final_lon"`
	similarity.Best
	classify.Outcome
}

// Exclusions are the externally materialized OSM-tag exclusion lists, one id
// set per funnel category. The tag joins that produce them run on the GIS
// host; consuming them and accounting for every listed bridge is part of the
// funnel. A bridge on more than one list lands in the first category below.
type Exclusions struct {
	ExistingOSMBridge map[string]bool
	Freeway           map[string]bool
	ParallelBridge    map[string]bool
	TunnelCulvert     map[string]bool
}

func (e Exclusions) reasonFor(bridgeID string) (classify.Reason, bool) {
	switch {
	case e.ExistingOSMBridge[bridgeID]:
		return classify.ReasonExistingOSMBridge, true
	case e.Freeway[bridgeID]:
		return classify.ReasonFreeway, true
	case e.ParallelBridge[bridgeID]:
		return classify.ReasonParallelBridge, true
	case e.TunnelCulvert[bridgeID]:
		return classify.ReasonTunnelCulvert, true
	}
	return "", false
}

// Result is a completed hydrography run.
type Result struct {
	RunID  string
	Rows   []Row
	Ledger *ledger.Ledger
}

// Pipeline wires the stages together. Store may be nil when run history is
// not wanted.
type Pipeline struct {
	cfg    *config.Config
	store  store.Store
	source spatialjoin.Source
	index  *roadnet.Index
}

// New creates a Pipeline over one region's join source and way index.
func New(cfg *config.Config, st store.Store, source spatialjoin.Source, index *roadnet.Index) *Pipeline {
	return &Pipeline{cfg: cfg, store: st, source: source, index: index}
}

// RunHydrography executes the stream-intersection method over the raw
// inventory. pairs is the nearby-bridge self-join feeding the deduplicator;
// excl carries the OSM-tag exclusion lists. The returned ledger is verified;
// a funnel mismatch aborts the run.
func (p *Pipeline) RunHydrography(ctx context.Context, bridges []nbi.BridgeRecord, pairs []spatialjoin.NearbyPair, excl Exclusions) (*Result, error) {
	log := zap.L().With(zap.String("region", p.cfg.Inputs.Region))
	log.Info("pipeline: starting hydrography run", zap.Int("bridges", len(bridges)))

	th := classify.Thresholds{
		Automated:   p.cfg.Match.AutomatedThreshold,
		ReviewFloor: p.cfg.Match.ReviewFloor,
	}
	if err := th.Validate(); err != nil {
		return nil, err
	}

	runID, err := p.createRun(ctx)
	if err != nil {
		return nil, err
	}

	res, err := p.runHydrography(ctx, bridges, pairs, excl, th, log)
	if err != nil {
		p.failRun(ctx, runID, log)
		return nil, err
	}
	res.RunID = runID

	if err := p.completeRun(ctx, runID, res); err != nil {
		return nil, err
	}
	log.Info("pipeline: hydrography run complete", zap.Int("rows", len(res.Rows)))
	return res, nil
}

func (p *Pipeline) runHydrography(ctx context.Context, bridges []nbi.BridgeRecord, pairs []spatialjoin.NearbyPair, excl Exclusions, th classify.Thresholds, log *zap.Logger) (*Result, error) {
	led := ledger.New(len(bridges))

	kept, counts := nbi.Filter(bridges)
	led.Add(string(classify.ReasonDuplicateCoordinates), counts.DuplicateCoordinates)
	led.Add(string(classify.ReasonNonPostedCulvert), counts.NonPostedCulverts)
	log.Info("pipeline: inventory filtered",
		zap.Int("kept", len(kept)),
		zap.Int("duplicate_coordinates", counts.DuplicateCoordinates),
		zap.Int("non_posted_culverts", counts.NonPostedCulverts))

	kept = applyExclusions(kept, excl, led, log)

	byID := nbi.ByStructureNumber(kept)
	joinRows, err := p.source.Rows(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load join rows")
	}
	groups, err := associate.BuildGroups(joinRows, byID)
	if err != nil {
		return nil, err
	}
	associate.SortByBridgeID(groups)

	rows, err := p.resolveAll(ctx, groups, byID)
	if err != nil {
		return nil, err
	}

	// Bridges the spatial join never touched get an explicit null row.
	seen := make(map[string]bool, len(rows))
	for _, r := range rows {
		seen[r.BridgeID] = true
	}
	for _, b := range kept {
		if seen[b.StructureNumber] {
			continue
		}
		rows = append(rows, Row{
			Result:  project.Project(associate.Resolved{BridgeID: b.StructureNumber}, b, p.index),
			Outcome: classify.Outcome{Disposition: classify.NotApplicable},
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].BridgeID < rows[j].BridgeID })

	// Classify before arbitration so the deduplicator sees final scores.
	for i := range rows {
		if rows[i].Outcome.Disposition != "" {
			continue
		}
		rows[i].Outcome = classify.Classify(rows[i].SegmentID != "", rows[i].Score, rows[i].Projected(), th)
	}

	scores := make(map[string]int, len(rows))
	for _, r := range rows {
		scores[r.BridgeID] = r.Score
	}
	removed := dedupe.Removals(pairs, scores)
	for i := range rows {
		if !removed[rows[i].BridgeID] {
			continue
		}
		switch rows[i].Outcome.Disposition {
		case classify.AutomatedEdit, classify.ReviewRequired:
			rows[i].Outcome = classify.Outcome{
				Disposition: classify.Excluded,
				Reason:      classify.ReasonNearbyBridge,
			}
		}
	}

	for _, r := range rows {
		led.AddOutcome(r.Outcome)
	}
	if err := led.Verify(); err != nil {
		return nil, err
	}
	return &Result{Rows: rows, Ledger: led}, nil
}

// applyExclusions drops bridges named by the OSM-tag exclusion lists before
// any association runs, crediting each drop to its funnel category.
func applyExclusions(kept []nbi.BridgeRecord, excl Exclusions, led *ledger.Ledger, log *zap.Logger) []nbi.BridgeRecord {
	counts := make(map[classify.Reason]int)
	out := kept[:0]
	for _, b := range kept {
		reason, excluded := excl.reasonFor(b.StructureNumber)
		if !excluded {
			out = append(out, b)
			continue
		}
		led.Add(string(reason), 1)
		counts[reason]++
	}
	if len(counts) > 0 {
		log.Info("pipeline: tag exclusions applied",
			zap.Int("existing_osm_bridge", counts[classify.ReasonExistingOSMBridge]),
			zap.Int("freeway", counts[classify.ReasonFreeway]),
			zap.Int("parallel_bridge", counts[classify.ReasonParallelBridge]),
			zap.Int("tunnel_culvert", counts[classify.ReasonTunnelCulvert]))
	}
	return out
}

// resolveAll resolves, projects, and scores each bridge group on a bounded
// worker pool. Resolution failures are invariant violations and abort the
// whole run.
func (p *Pipeline) resolveAll(ctx context.Context, groups []associate.Group, byID map[string]nbi.BridgeRecord) ([]Row, error) {
	workers := p.cfg.Pipeline.Workers
	if workers <= 0 {
		workers = 1
	}

	rows := make([]Row, len(groups))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, grp := range groups {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := associate.Resolve(grp)
			if err != nil {
				return err
			}
			if err := associate.VerifySupport(res, grp); err != nil {
				return err
			}
			bridge := byID[grp.BridgeID]
			projected := project.Project(res, bridge, p.index)
			best := similarity.ScoreNames(
				bridge.FacilityCarried, bridge.FeatureIntersected,
				res.SegmentName, res.StreamName,
			).Max()
			rows[i] = Row{
				Result:    projected,
				AnchorLat: res.Lat,
				AnchorLon: res.Lon,
				Best:      best,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

// Reconcile cross-validates the hydrography rows against the mile-point
// method's associations and merges them per bridge.
func (p *Pipeline) Reconcile(hydroRows []Row, mpAssocs []milepoint.Association) ([]reconcile.Merged, error) {
	th := classify.Thresholds{
		Automated:   p.cfg.Match.AutomatedThreshold,
		ReviewFloor: p.cfg.Match.ReviewFloor,
	}
	if err := th.Validate(); err != nil {
		return nil, err
	}

	hydro := make(map[string]reconcile.MethodResult, len(hydroRows))
	ids := make(map[string]bool)
	for _, r := range hydroRows {
		hydro[r.BridgeID] = reconcile.MethodResult{
			BridgeID:    r.BridgeID,
			SegmentID:   r.SegmentID,
			SegmentName: r.SegmentName,
			Score:       r.Score,
			Lat:         r.AnchorLat,
			Lon:         r.AnchorLon,
		}
		ids[r.BridgeID] = true
	}

	mp := make(map[string]reconcile.MethodResult, len(mpAssocs))
	for _, a := range mpAssocs {
		m := reconcile.MethodResult{
			BridgeID:  a.BridgeID,
			SegmentID: a.LRSID,
			Score:     a.NameScore,
			Lat:       a.Lat,
			Lon:       a.Lon,
		}
		// The reconciler compares OSM way ids, so the route point is
		// snapped onto the nearest way first.
		if a.Lat != nil && a.Lon != nil {
			pt := geodesy.LatLon{Lat: *a.Lat, Lon: *a.Lon}
			if seg, proj, ok := milepoint.NearestWay(pt, p.index); ok {
				m.SegmentID = seg.ID
				m.SegmentName = seg.Name
				lat, lon := proj.Lat, proj.Lon
				m.Lat, m.Lon = &lat, &lon
			}
		}
		mp[a.BridgeID] = m
		ids[a.BridgeID] = true
	}

	ordered := make([]string, 0, len(ids))
	for id := range ids {
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)

	merged := make([]reconcile.Merged, 0, len(ordered))
	for _, id := range ordered {
		h := hydro[id]
		h.BridgeID = id
		m := mp[id]
		m.BridgeID = id
		merged = append(merged, reconcile.Merge(h, m, th))
	}
	return merged, nil
}

func (p *Pipeline) createRun(ctx context.Context) (string, error) {
	if p.store == nil {
		return "", nil
	}
	run, err := p.store.CreateRun(ctx, p.cfg.Inputs.Region)
	if err != nil {
		return "", eris.Wrap(err, "pipeline: create run")
	}
	return run.ID, nil
}

func (p *Pipeline) failRun(ctx context.Context, runID string, log *zap.Logger) {
	if p.store == nil || runID == "" {
		return
	}
	if err := p.store.UpdateRunStatus(ctx, runID, store.RunStatusFailed); err != nil {
		log.Warn("pipeline: failed to mark run failed", zap.Error(err))
	}
}

func (p *Pipeline) completeRun(ctx context.Context, runID string, res *Result) error {
	if p.store == nil || runID == "" {
		return nil
	}
	if err := p.store.SaveLedger(ctx, runID, res.Ledger.Entries()); err != nil {
		return eris.Wrap(err, "pipeline: save ledger")
	}
	if err := p.store.CompleteRun(ctx, runID, res.Ledger.Total()); err != nil {
		return eris.Wrap(err, "pipeline: complete run")
	}
	return nil
}
