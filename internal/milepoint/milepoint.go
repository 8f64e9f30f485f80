// Package milepoint implements the linear-referencing association method:
// a bridge carries a route id and a mile-point measure, the state road
// network carries per-segment begin/end measures, and the bridge's network
// position is interpolated at the measure along the covering segment's
// geometry. It is the second, independent method fed to the reconciler.
package milepoint

import (
	"math"
	"sort"
	"strings"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/osmtools/bridgematch/internal/geodesy"
	"github.com/osmtools/bridgematch/internal/roadnet"
	"github.com/osmtools/bridgematch/internal/similarity"
)

const metersPerMile = 1609.344

// maxOffRouteM rejects candidates whose route geometry sits further than this
// from the inventory point; the linear-reference data is stale in places.
const maxOffRouteM = 1000.0

// Route is one state LRS road segment with its measure range.
type Route struct {
	RouteUnique string  `csv:"rt_unique"`
	LRSID       string  `csv:"lrs_id"`
	BeginMP     float64 `csv:"begin_mp"`
	EndMP       float64 `csv:"end_mp"`
	RouteNumber string  `csv:"rt_number"`
	RoadName    string  `csv:"rd_name"`
	// Surveyed and drawn lengths in miles; their ratio corrects measure
	// offsets for geometry generalization.
	SurveyedLenMi float64 `csv:"dmi_len_mi"`
	GraphicLenMi  float64 `csv:"graphic_len_mi"`
	Line          *geom.LineString `csv:"-"`
}

// Bridge is one bridge record keyed into the LRS by route and measure.
type Bridge struct {
	BridgeID    string  `csv:"bridge_id"`
	RouteUnique string  `csv:"rt_unique"`
	RouteNumber string  `csv:"rt_number"`
	MilePoint   float64 `csv:"bridge_point"`
	Facility    string  `csv:"facility_carried_name"`
	Lat         float64 `csv:"latitude"`
	Lon         float64 `csv:"longitude"`
}

// Candidate pairs a bridge with one route whose measure range covers it,
// carrying the interpolated point and the arbitration scores.
type Candidate struct {
	Bridge    Bridge
	Route     Route
	Point     geodesy.LatLon
	DistanceM float64
	NameScore int
}

// Association is the method's final answer for one bridge.
type Association struct {
	BridgeID  string   `csv:"bridge_id"`
	LRSID     string   `csv:"lrs_id"`
	RoadName  string   `csv:"road_name"`
	Lat       *float64 `csv:"interpolated_lat"`
	Lon       *float64 `csv:"interpolated_lon"`
	NameScore int      `csv:"name_score"`
}

// Covers reports whether the route's measure range contains mp. Ranges run in
// either direction and are half-open at the end measure.
func (r Route) Covers(mp float64) bool {
	lo, hi := r.BeginMP, r.EndMP
	if lo > hi {
		lo, hi = hi, lo
	}
	return mp >= lo && mp < hi
}

// measureOffsetMi is the distance in miles from the route's begin measure to
// the bridge's measure, scaled by the drawn/surveyed length ratio so it can
// be walked along the drawn geometry.
func (r Route) measureOffsetMi(mp float64) float64 {
	off := math.Abs(mp - r.BeginMP)
	if r.SurveyedLenMi > 0 {
		off *= r.GraphicLenMi / r.SurveyedLenMi
	}
	return off
}

// Locate interpolates the bridge's point at its measure along the route
// geometry. ok is false when the measure walks past the end of the drawn
// line, an expected condition with stale linear-reference data.
func Locate(b Bridge, r Route) (geodesy.LatLon, bool) {
	if r.Line == nil || !r.Covers(b.MilePoint) {
		return geodesy.LatLon{}, false
	}
	p, _, ok := geodesy.InterpolateAlongLine(r.Line, r.measureOffsetMi(b.MilePoint)*metersPerMile)
	return p, ok
}

// DropTwinCarriageways removes the redundant half of divided-highway bridge
// pairs. The state inventories each carriageway separately: the bridge id
// carries an L or R marker and the opposite carriageway's route repeats the
// lrs id with a "-10" suffix. Only bridges whose id actually has such a twin
// route are dropped, keyed off the measure direction (increasing measures
// are the L carriageway's, decreasing the R's).
func DropTwinCarriageways(cands []Candidate) []Candidate {
	// lrs ids that appear alongside their own "-10" twin for the same bridge.
	twinned := make(map[string]bool)
	byBridge := make(map[string][]Candidate)
	for _, c := range cands {
		if strings.ContainsAny(c.Bridge.BridgeID, "LR") {
			byBridge[c.Bridge.BridgeID] = append(byBridge[c.Bridge.BridgeID], c)
		}
	}
	for _, group := range byBridge {
		for _, a := range group {
			for _, b := range group {
				if b.Route.LRSID == a.Route.LRSID+"-10" {
					twinned[a.Route.LRSID] = true
				}
			}
		}
	}

	out := cands[:0:0]
	for _, c := range cands {
		id, r := c.Bridge.BridgeID, c.Route
		drop := twinned[r.LRSID] &&
			((r.BeginMP < r.EndMP && strings.Contains(id, "L")) ||
				(r.BeginMP > r.EndMP && strings.Contains(id, "R")))
		if drop {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Candidates joins bridges to the routes covering their measure, locates each
// one, and filters out candidates interpolated implausibly far from the
// inventory point.
func Candidates(bridges []Bridge, routes []Route) []Candidate {
	byRoute := make(map[string][]Route)
	for _, r := range routes {
		byRoute[r.RouteNumber+"\x00"+r.RouteUnique] = append(byRoute[r.RouteNumber+"\x00"+r.RouteUnique], r)
	}

	var cands []Candidate
	skipped := 0
	for _, b := range bridges {
		for _, r := range byRoute[b.RouteNumber+"\x00"+b.RouteUnique] {
			if !r.Covers(b.MilePoint) {
				continue
			}
			p, ok := Locate(b, r)
			if !ok {
				skipped++
				continue
			}
			d, err := geodesy.HaversineM(p.Lon, p.Lat, b.Lon, b.Lat)
			if err != nil || d >= maxOffRouteM {
				skipped++
				continue
			}
			cands = append(cands, Candidate{
				Bridge:    b,
				Route:     r,
				Point:     p,
				DistanceM: d,
				NameScore: similarity.TokenSortRatio(r.RoadName, b.Facility),
			})
		}
	}
	if skipped > 0 {
		zap.L().Debug("milepoint candidates rejected", zap.Int("count", skipped))
	}
	return DropTwinCarriageways(cands)
}

// Associate picks one candidate per bridge: distance and name score are
// min-max scaled within the bridge's candidate set and summed, highest
// combined score wins, ties broken by lrs id for determinism.
func Associate(cands []Candidate) []Association {
	byBridge := make(map[string][]Candidate)
	var order []string
	for _, c := range cands {
		if _, seen := byBridge[c.Bridge.BridgeID]; !seen {
			order = append(order, c.Bridge.BridgeID)
		}
		byBridge[c.Bridge.BridgeID] = append(byBridge[c.Bridge.BridgeID], c)
	}
	sort.Strings(order)

	out := make([]Association, 0, len(order))
	for _, id := range order {
		best := pickBest(byBridge[id])
		lat, lon := best.Point.Lat, best.Point.Lon
		out = append(out, Association{
			BridgeID:  id,
			LRSID:     best.Route.LRSID,
			RoadName:  best.Route.RoadName,
			Lat:       &lat,
			Lon:       &lon,
			NameScore: best.NameScore,
		})
	}
	return out
}

func pickBest(group []Candidate) Candidate {
	if len(group) == 1 {
		return group[0]
	}
	minD, maxD := group[0].DistanceM, group[0].DistanceM
	minS, maxS := group[0].NameScore, group[0].NameScore
	for _, c := range group[1:] {
		minD, maxD = math.Min(minD, c.DistanceM), math.Max(maxD, c.DistanceM)
		minS, maxS = min(minS, c.NameScore), max(maxS, c.NameScore)
	}

	best, bestScore := group[0], math.Inf(-1)
	for _, c := range group {
		score := 0.0
		if maxD > minD {
			score += (maxD - c.DistanceM) / (maxD - minD)
		}
		if maxS > minS {
			score += float64(c.NameScore-minS) / float64(maxS-minS)
		}
		if score > bestScore || (score == bestScore && c.Route.LRSID < best.Route.LRSID) {
			best, bestScore = c, score
		}
	}
	return best
}

// NearestWay maps an interpolated route point onto the OSM network: the way
// whose projection of p is closest wins. ok is false on an empty index.
func NearestWay(p geodesy.LatLon, index *roadnet.Index) (roadnet.Segment, geodesy.LatLon, bool) {
	var (
		best     roadnet.Segment
		bestProj geodesy.LatLon
		bestD    = math.Inf(1)
		found    bool
	)
	index.Each(func(s roadnet.Segment) {
		if s.Line == nil {
			return
		}
		proj := geodesy.ProjectOntoLine(p, s.Line)
		d, err := geodesy.HaversineM(proj.Lon, proj.Lat, p.Lon, p.Lat)
		if err != nil {
			return
		}
		if d < bestD || (d == bestD && s.ID < best.ID) {
			best, bestProj, bestD, found = s, proj, d, true
		}
	})
	return best, bestProj, found
}
