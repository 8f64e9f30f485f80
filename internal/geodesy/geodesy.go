// Package geodesy provides the pure geometric primitives the association
// pipeline is built on: great-circle distance, WKT point parsing, perpendicular
// projection onto a way, and interpolation along a way.
package geodesy

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// earthRadiusKm is the mean Earth radius used for all great-circle math.
const earthRadiusKm = 6371.0

// LatLon is a geographic coordinate in decimal degrees.
type LatLon struct {
	Lat float64
	Lon float64
}

// HaversineKm returns the great-circle distance in kilometers between two
// points given in decimal degrees. Non-finite inputs are rejected rather than
// silently producing NaN distances.
func HaversineKm(lon1, lat1, lon2, lat2 float64) (float64, error) {
	for _, v := range []float64{lon1, lat1, lon2, lat2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, eris.New("geodesy: haversine input must be finite")
		}
	}

	rLon1 := lon1 * math.Pi / 180
	rLat1 := lat1 * math.Pi / 180
	rLon2 := lon2 * math.Pi / 180
	rLat2 := lat2 * math.Pi / 180

	dLon := rLon2 - rLon1
	dLat := rLat2 - rLat1

	a := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Pow(math.Sin(dLon/2), 2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c, nil
}

// HaversineM is HaversineKm in meters.
func HaversineM(lon1, lat1, lon2, lat2 float64) (float64, error) {
	km, err := HaversineKm(lon1, lat1, lon2, lat2)
	if err != nil {
		return 0, err
	}
	return km * 1000, nil
}

// ParseWKTPoint parses a "POINT (lon lat)" string. Empty or whitespace-only
// input returns nil with no error: upstream joins legitimately emit rows with
// no intersection geometry. Anything else that fails to parse as a point is a
// malformed-geometry error.
func ParseWKTPoint(s string) (*LatLon, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, eris.Wrapf(err, "geodesy: malformed geometry %q", s)
	}
	pt, ok := g.(*geom.Point)
	if !ok {
		return nil, eris.Errorf("geodesy: malformed geometry %q: not a point", s)
	}

	return &LatLon{Lat: pt.Y(), Lon: pt.X()}, nil
}

// ProjectOntoLine returns the perpendicular projection of p onto line, clamped
// to the line's extent. The projection is computed per segment in a local
// equirectangular frame so longitude is scaled by cos(latitude); the segment
// whose foot point is nearest to p wins.
func ProjectOntoLine(p LatLon, line *geom.LineString) LatLon {
	n := line.NumCoords()
	if n == 0 {
		return p
	}
	if n == 1 {
		c := line.Coord(0)
		return LatLon{Lat: c[1], Lon: c[0]}
	}

	cosLat := math.Cos(p.Lat * math.Pi / 180)

	best := LatLon{Lat: line.Coord(0)[1], Lon: line.Coord(0)[0]}
	bestDist := math.Inf(1)

	for i := 0; i < n-1; i++ {
		a := line.Coord(i)
		b := line.Coord(i + 1)

		ax, ay := a[0]*cosLat, a[1]
		bx, by := b[0]*cosLat, b[1]
		px, py := p.Lon*cosLat, p.Lat

		dx, dy := bx-ax, by-ay
		segLen2 := dx*dx + dy*dy

		var t float64
		if segLen2 > 0 {
			t = ((px-ax)*dx + (py-ay)*dy) / segLen2
		}
		// Clamp so the foot point never extrapolates past the endpoints.
		if t < 0 {
			t = 0
		} else if t > 1 {
			t = 1
		}

		fx, fy := ax+t*dx, ay+t*dy
		d2 := (px-fx)*(px-fx) + (py-fy)*(py-fy)
		if d2 < bestDist {
			bestDist = d2
			best = LatLon{Lat: fy, Lon: fx / cosLat}
		}
	}

	return best
}

// LineLengthM returns the geodesic length of a line in meters, summing
// vertex-to-vertex haversine distances.
func LineLengthM(line *geom.LineString) float64 {
	var total float64
	for i := 0; i < line.NumCoords()-1; i++ {
		a, b := line.Coord(i), line.Coord(i+1)
		d, err := HaversineM(a[0], a[1], b[0], b[1])
		if err != nil {
			continue
		}
		total += d
	}
	return total
}

// InterpolateAlongLine walks the line's vertices accumulating geodesic segment
// lengths and returns the point at the given distance from the line's start,
// plus the index of the vertex segment it landed on. The ok result is false
// when the distance exceeds the line's total length or is negative; that is an
// expected condition for bridges longer than their carrying way, not an error.
func InterpolateAlongLine(line *geom.LineString, distanceM float64) (LatLon, int, bool) {
	if distanceM < 0 || line.NumCoords() < 2 {
		return LatLon{}, 0, false
	}

	var walked float64
	for i := 0; i < line.NumCoords()-1; i++ {
		a, b := line.Coord(i), line.Coord(i+1)
		segLen, err := HaversineM(a[0], a[1], b[0], b[1])
		if err != nil {
			return LatLon{}, 0, false
		}
		if walked+segLen >= distanceM {
			var frac float64
			if segLen > 0 {
				frac = (distanceM - walked) / segLen
			}
			return LatLon{
				Lat: a[1] + frac*(b[1]-a[1]),
				Lon: a[0] + frac*(b[0]-a[0]),
			}, i, true
		}
		walked += segLen
	}

	return LatLon{}, 0, false
}

// DistanceAlongLine returns the geodesic distance in meters from the start of
// the line to the point on the line nearest to p.
func DistanceAlongLine(p LatLon, line *geom.LineString) float64 {
	foot := ProjectOntoLine(p, line)

	var walked float64
	bestAt := 0.0
	bestDist := math.Inf(1)

	cosLat := math.Cos(p.Lat * math.Pi / 180)
	for i := 0; i < line.NumCoords()-1; i++ {
		a, b := line.Coord(i), line.Coord(i+1)

		// Locate the foot point within this segment, if it lies here.
		ax, ay := a[0]*cosLat, a[1]
		bx, by := b[0]*cosLat, b[1]
		fx, fy := foot.Lon*cosLat, foot.Lat

		dx, dy := bx-ax, by-ay
		segLen2 := dx*dx + dy*dy
		var t float64
		if segLen2 > 0 {
			t = ((fx-ax)*dx + (fy-ay)*dy) / segLen2
		}
		if t < 0 {
			t = 0
		} else if t > 1 {
			t = 1
		}
		cx, cy := ax+t*dx, ay+t*dy
		d2 := (fx-cx)*(fx-cx) + (fy-cy)*(fy-cy)

		segLen, err := HaversineM(a[0], a[1], b[0], b[1])
		if err != nil {
			continue
		}
		if d2 < bestDist {
			bestDist = d2
			bestAt = walked + t*segLen
		}
		walked += segLen
	}

	return bestAt
}
