package roadnet

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// LoadShapefile reads road segments from a shapefile. idField and nameField
// are attribute names (case-insensitive). PolyLine parts are concatenated into
// a single line per record; records without usable geometry are skipped and
// counted, not fatal.
func LoadShapefile(path, idField, nameField string) ([]Segment, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "roadnet: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}

	idIdx, ok := fieldIdx[strings.ToLower(idField)]
	if !ok {
		return nil, eris.Errorf("roadnet: shapefile %s missing id field %q", path, idField)
	}
	nameIdx, hasName := fieldIdx[strings.ToLower(nameField)]

	var segments []Segment
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()

		pl, ok := shape.(*shp.PolyLine)
		if !ok || pl == nil || len(pl.Points) < 2 {
			skipped++
			continue
		}

		id := strings.TrimSpace(strings.TrimRight(reader.Attribute(idIdx), "\x00"))
		if id == "" {
			skipped++
			continue
		}

		var name string
		if hasName {
			name = strings.TrimSpace(strings.TrimRight(reader.Attribute(nameIdx), "\x00"))
		}

		flat := make([]float64, 0, len(pl.Points)*2)
		for _, p := range pl.Points {
			flat = append(flat, p.X, p.Y)
		}

		segments = append(segments, Segment{
			ID:   id,
			Name: name,
			Line: geom.NewLineStringFlat(geom.XY, flat).SetSRID(4326),
		})
	}

	if skipped > 0 {
		zap.L().Debug("roadnet: skipped shapefile records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}

	return segments, nil
}
