package geodesy

import "github.com/twpayne/go-geom"

// SplitPoints holds the forward and backward way-split coordinates for one
// bridge. Either point is nil when the way ends before the requested distance.
type SplitPoints struct {
	Forward  *LatLon
	Backward *LatLon
}

// SplitPointsOnLine computes the two points at ±halfLengthM along the line
// from the point on the line nearest to anchor. The downstream way-splitting
// tool inserts nodes at these coordinates and tags the span between them.
func SplitPointsOnLine(anchor LatLon, line *geom.LineString, halfLengthM float64) SplitPoints {
	at := DistanceAlongLine(anchor, line)

	var sp SplitPoints
	if fwd, _, ok := InterpolateAlongLine(line, at+halfLengthM); ok {
		sp.Forward = &fwd
	}
	if back, _, ok := InterpolateAlongLine(line, at-halfLengthM); ok {
		sp.Backward = &back
	}
	return sp
}
