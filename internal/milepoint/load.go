package milepoint

import (
	"os"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
)

type routeRow struct {
	Route
	WKT string `csv:"wkt"`
}

// LoadRoutesCSV reads LRS routes with their drawn geometry as WKT
// linestrings. A malformed geometry aborts the load with the lrs id in the
// error.
func LoadRoutesCSV(path string) ([]Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "milepoint: read routes %s", path)
	}

	var rows []routeRow
	if err := csvutil.Unmarshal(data, &rows); err != nil {
		return nil, eris.Wrapf(err, "milepoint: parse routes %s", path)
	}

	routes := make([]Route, 0, len(rows))
	for _, row := range rows {
		g, err := wkt.Unmarshal(strings.TrimSpace(row.WKT))
		if err != nil {
			return nil, eris.Wrapf(err, "milepoint: route %s geometry", row.LRSID)
		}
		line, ok := g.(*geom.LineString)
		if !ok {
			return nil, eris.Errorf("milepoint: route %s geometry is %T, want linestring", row.LRSID, g)
		}
		r := row.Route
		r.Line = line
		routes = append(routes, r)
	}
	return routes, nil
}

// LoadBridgesCSV reads the LRS-keyed bridge extract.
func LoadBridgesCSV(path string) ([]Bridge, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "milepoint: read bridges %s", path)
	}

	var bridges []Bridge
	if err := csvutil.Unmarshal(data, &bridges); err != nil {
		return nil, eris.Wrapf(err, "milepoint: parse bridges %s", path)
	}
	for i := range bridges {
		bridges[i].BridgeID = strings.TrimSpace(bridges[i].BridgeID)
	}
	return bridges, nil
}
