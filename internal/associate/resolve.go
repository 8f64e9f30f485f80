package associate

import (
	"github.com/rotisserie/eris"
)

// Resolved is the single association chosen for one bridge. An empty
// SegmentID means no association: the bridge either had no candidates or an
// unresolvable tie. Lat/Lon is the anchor point — the intersection coordinate
// of the winning row — and is nil exactly when the association is null or the
// chosen row carried no intersection geometry.
type Resolved struct {
	BridgeID    string   `csv:"bridge_id"`
	SegmentID   string   `csv:"final_segment_id"`
	SegmentName string   `csv:"final_segment_name"`
	StreamID    string   `csv:"final_stream_id"`
	StreamName  string   `csv:"final_stream_name"`
	Lat         *float64 `csv:"final_lat"`
	Lon         *float64 `csv:"final_lon"`
}

// HasAssociation reports whether a segment was chosen.
func (r Resolved) HasAssociation() bool { return r.SegmentID != "" }

// Resolve picks the winning association for one bridge group. Precedence,
// first match wins:
//
//  1. Exactly one distinct segment: that segment is the answer regardless of
//     stream identity; only the anchor point is arbitrated (single stream
//     match > min-distance stream match > first stream match > min-distance
//     row > first row).
//  2. Multiple segments, exactly one stream-match row: it wins outright.
//  3. Multiple segments, multiple stream matches: the min-distance row among
//     the stream matches wins; no such flag is an unresolved ambiguity and
//     the association fails to null.
//  4. Multiple segments, no stream match: a unique min-distance row wins;
//     anything else fails to null.
//
// A combo count that varies within the group is a logic defect upstream and
// aborts the run.
func Resolve(g Group) (Resolved, error) {
	res := Resolved{BridgeID: g.BridgeID}
	if len(g.Candidates) == 0 {
		return res, nil
	}

	combo := g.Candidates[0].ComboCount
	for _, c := range g.Candidates[1:] {
		if c.ComboCount != combo {
			return Resolved{}, eris.Errorf(
				"associate: bridge %s: combo count varies within group (%d vs %d)",
				g.BridgeID, combo, c.ComboCount)
		}
	}

	streamMatches := filter(g.Candidates, func(c Candidate) bool { return c.IsStreamMatch })
	minDist := filter(g.Candidates, func(c Candidate) bool { return c.IsMinDistance })

	if combo == 1 {
		first := g.Candidates[0]
		res.SegmentID = first.SegmentID
		res.SegmentName = first.SegmentName
		if len(minDist) > 0 {
			res.StreamID = minDist[0].StreamID
			res.StreamName = minDist[0].StreamName
		}

		var anchor Candidate
		switch {
		case len(streamMatches) == 1:
			anchor = streamMatches[0]
		case len(streamMatches) > 1:
			if both := filter(streamMatches, func(c Candidate) bool { return c.IsMinDistance }); len(both) > 0 {
				anchor = both[0]
			} else {
				anchor = streamMatches[0]
			}
		case len(minDist) > 0:
			anchor = minDist[0]
		default:
			anchor = first
		}
		res.Lat, res.Lon = anchor.IntersectionLat, anchor.IntersectionLon
		return res, nil
	}

	if len(streamMatches) == 1 {
		return fromCandidate(g.BridgeID, streamMatches[0]), nil
	}

	if len(streamMatches) > 1 {
		winners := filter(streamMatches, func(c Candidate) bool { return c.IsMinDistance })
		if len(winners) == 0 {
			// Unresolved ambiguity: a false positive here costs more than a
			// manual-review case downstream.
			return res, nil
		}
		return fromCandidate(g.BridgeID, winners[0]), nil
	}

	if len(minDist) == 1 {
		return fromCandidate(g.BridgeID, minDist[0]), nil
	}
	return res, nil
}

func fromCandidate(bridgeID string, c Candidate) Resolved {
	return Resolved{
		BridgeID:    bridgeID,
		SegmentID:   c.SegmentID,
		SegmentName: c.SegmentName,
		StreamID:    c.StreamID,
		StreamName:  c.StreamName,
		Lat:         c.IntersectionLat,
		Lon:         c.IntersectionLon,
	}
}

func filter(cands []Candidate, keep func(Candidate) bool) []Candidate {
	var out []Candidate
	for _, c := range cands {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// VerifySupport checks the resolver's output invariant: a non-null segment id
// must be backed by at least one candidate row with that id. A violation is a
// logic defect, never downgraded to a warning.
func VerifySupport(res Resolved, g Group) error {
	if !res.HasAssociation() {
		return nil
	}
	for _, c := range g.Candidates {
		if c.SegmentID == res.SegmentID {
			return nil
		}
	}
	return eris.Errorf("associate: bridge %s resolved to segment %s with no supporting candidate row",
		res.BridgeID, res.SegmentID)
}
