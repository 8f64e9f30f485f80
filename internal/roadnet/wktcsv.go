package roadnet

import (
	"os"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// wktRow is the CSV shape for WKT-encoded segment exports (the format the
// external GIS conversion step writes).
type wktRow struct {
	SegmentID   string `csv:"segment_id"`
	SegmentName string `csv:"segment_name"`
	WKT         string `csv:"wkt"`
}

// LoadWKTCSV reads segments from a CSV with a LINESTRING wkt column. A row
// whose geometry fails to parse is a malformed-input error; the file path and
// offending id are surfaced.
func LoadWKTCSV(path string) ([]Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "roadnet: read segment csv %s", path)
	}

	var rows []wktRow
	if err := csvutil.Unmarshal(data, &rows); err != nil {
		return nil, eris.Wrapf(err, "roadnet: parse segment csv %s", path)
	}

	segments := make([]Segment, 0, len(rows))
	for _, r := range rows {
		g, err := wkt.Unmarshal(r.WKT)
		if err != nil {
			return nil, eris.Wrapf(err, "roadnet: segment %s in %s: malformed geometry", r.SegmentID, path)
		}
		line, ok := g.(*geom.LineString)
		if !ok {
			return nil, eris.Errorf("roadnet: segment %s in %s: geometry is not a linestring", r.SegmentID, path)
		}
		segments = append(segments, Segment{ID: r.SegmentID, Name: r.SegmentName, Line: line})
	}
	return segments, nil
}
