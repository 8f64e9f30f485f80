// Package project snaps resolved bridge associations onto their segment
// geometries. An unavailable projection is an expected, frequent outcome —
// recorded as an empty-string sentinel, never raised.
package project

import (
	"strconv"

	"github.com/osmtools/bridgematch/internal/associate"
	"github.com/osmtools/bridgematch/internal/geodesy"
	"github.com/osmtools/bridgematch/internal/nbi"
	"github.com/osmtools/bridgematch/internal/roadnet"
)

// Result is the persisted per-bridge projection row. ProjectedLat/Lon hold
// the empty string when no projection could be computed; BridgeLengthM is
// unit-converted regardless.
type Result struct {
	BridgeID           string  `csv:"bridge_id"`
	SegmentID          string  `csv:"final_segment_id"`
	SegmentName        string  `csv:"final_segment_name"`
	StreamID           string  `csv:"final_stream_id"`
	StreamName         string  `csv:"final_stream_name"`
	FacilityCarried    string  `csv:"facility_carried_name"`
	FeatureIntersected string  `csv:"feature_intersected_name"`
	BridgeLengthM      float64 `csv:"bridge_length_m"`
	ProjectedLat       string  `csv:"projected_lat"`
	ProjectedLon       string  `csv:"projected_lon"`
}

// Projected reports whether the row carries a network position.
func (r Result) Projected() bool { return r.ProjectedLat != "" && r.ProjectedLon != "" }

// Point returns the projected coordinate when present.
func (r Result) Point() (geodesy.LatLon, bool) {
	if !r.Projected() {
		return geodesy.LatLon{}, false
	}
	lat, errLat := strconv.ParseFloat(r.ProjectedLat, 64)
	lon, errLon := strconv.ParseFloat(r.ProjectedLon, 64)
	if errLat != nil || errLon != nil {
		return geodesy.LatLon{}, false
	}
	return geodesy.LatLon{Lat: lat, Lon: lon}, true
}

// Project projects the bridge's inventory point onto its resolved segment.
// Null association, missing segment geometry, or an unusable bridge point all
// yield the sentinel row.
func Project(res associate.Resolved, bridge nbi.BridgeRecord, index *roadnet.Index) Result {
	out := Result{
		BridgeID:           res.BridgeID,
		SegmentID:          res.SegmentID,
		SegmentName:        res.SegmentName,
		StreamID:           res.StreamID,
		StreamName:         res.StreamName,
		FacilityCarried:    bridge.FacilityCarried,
		FeatureIntersected: bridge.FeatureIntersected,
		BridgeLengthM:      bridge.LengthMeters(),
	}

	if !res.HasAssociation() {
		return out
	}
	seg, ok := index.Lookup(res.SegmentID)
	if !ok || seg.Line == nil || seg.Line.NumCoords() == 0 {
		return out
	}
	if bridge.Latitude == 0 && bridge.Longitude == 0 {
		return out
	}

	pt := geodesy.ProjectOntoLine(geodesy.LatLon{Lat: bridge.Latitude, Lon: bridge.Longitude}, seg.Line)
	out.ProjectedLat = strconv.FormatFloat(pt.Lat, 'f', -1, 64)
	out.ProjectedLon = strconv.FormatFloat(pt.Lon, 'f', -1, 64)
	return out
}
