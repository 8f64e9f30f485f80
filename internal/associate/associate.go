// Package associate turns raw spatial-join rows into one resolved
// network-segment association per bridge. This is the decision core of the
// pipeline: distance-to-intersection and stream-identity agreement are the two
// independent geometric signals, stream identity ranks first, and unresolved
// ties fail to a null association rather than guessing.
package associate

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/osmtools/bridgematch/internal/geodesy"
	"github.com/osmtools/bridgematch/internal/nbi"
	"github.com/osmtools/bridgematch/internal/spatialjoin"
)

// Candidate is one enriched join row: a (bridge, segment, stream) pairing with
// the derived flags the resolver decides on. ComboCount is the number of
// distinct segment ids associated with the bridge and is identical across all
// rows of one bridge group.
type Candidate struct {
	BridgeID        string   `csv:"bridge_id"`
	SegmentID       string   `csv:"segment_id"`
	SegmentName     string   `csv:"segment_name"`
	StreamID        string   `csv:"stream_id"`
	StreamName      string   `csv:"stream_name"`
	IntersectionLat *float64 `csv:"intersection_lat"`
	IntersectionLon *float64 `csv:"intersection_lon"`
	DistanceKm      float64  `csv:"distance_km"`
	IsMinDistance   bool     `csv:"is_min_distance"`
	IsStreamMatch   bool     `csv:"is_stream_match"`
	ComboCount      int      `csv:"combo_count"`
}

// Group is all candidate rows for one bridge.
type Group struct {
	BridgeID   string
	Candidates []Candidate
}

// BuildGroups enriches raw join rows and groups them by bridge:
// intersection WKT is parsed, bridge-to-intersection haversine distance
// computed, the per-group minimum flagged, stream identity checked, and the
// distinct-segment combo count attached. Bridges absent from the inventory
// map are dropped (they were filtered upstream). Group order follows first
// appearance in the input so chunked callers never split a group.
func BuildGroups(rows []spatialjoin.JoinRow, bridges map[string]nbi.BridgeRecord) ([]Group, error) {
	byBridge := make(map[string]*Group)
	var order []string

	for _, row := range rows {
		bridge, ok := bridges[row.BridgeID]
		if !ok {
			continue
		}

		pt, err := geodesy.ParseWKTPoint(row.IntersectionWKT)
		if err != nil {
			return nil, eris.Wrapf(err, "associate: bridge %s", row.BridgeID)
		}

		c := Candidate{
			BridgeID:      row.BridgeID,
			SegmentID:     row.SegmentID,
			SegmentName:   row.SegmentName,
			StreamID:      row.StreamID,
			StreamName:    row.StreamName,
			IsStreamMatch: row.StreamID != "" && row.StreamID == row.BridgeStreamID,
		}
		if pt != nil {
			lat, lon := pt.Lat, pt.Lon
			c.IntersectionLat = &lat
			c.IntersectionLon = &lon
			d, err := geodesy.HaversineKm(bridge.Longitude, bridge.Latitude, lon, lat)
			if err != nil {
				return nil, eris.Wrapf(err, "associate: bridge %s distance", row.BridgeID)
			}
			c.DistanceKm = d
		}

		g, ok := byBridge[row.BridgeID]
		if !ok {
			g = &Group{BridgeID: row.BridgeID}
			byBridge[row.BridgeID] = g
			order = append(order, row.BridgeID)
		}
		g.Candidates = append(g.Candidates, c)
	}

	groups := make([]Group, 0, len(order))
	for _, id := range order {
		g := byBridge[id]
		flagMinDistance(g.Candidates)
		attachComboCount(g.Candidates)
		groups = append(groups, *g)
	}
	return groups, nil
}

// flagMinDistance marks every row whose distance equals the group minimum.
// Rows without an intersection point never carry the flag.
func flagMinDistance(cands []Candidate) {
	min := 0.0
	found := false
	for _, c := range cands {
		if c.IntersectionLat == nil {
			continue
		}
		if !found || c.DistanceKm < min {
			min = c.DistanceKm
			found = true
		}
	}
	if !found {
		return
	}
	for i := range cands {
		cands[i].IsMinDistance = cands[i].IntersectionLat != nil && cands[i].DistanceKm == min
	}
}

func attachComboCount(cands []Candidate) {
	distinct := make(map[string]bool)
	for _, c := range cands {
		distinct[c.SegmentID] = true
	}
	for i := range cands {
		cands[i].ComboCount = len(distinct)
	}
}

// SortByBridgeID orders groups deterministically for output.
func SortByBridgeID(groups []Group) {
	sort.Slice(groups, func(i, j int) bool { return groups[i].BridgeID < groups[j].BridgeID })
}
