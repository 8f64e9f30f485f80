package spatialjoin

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Pool is the minimal pgx pool surface the PostGIS source needs; pgxmock
// satisfies it in tests.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostGISSource runs the buffer join inside PostGIS instead of a desktop GIS
// host. The bridge and way tables are populated by LoadBridgeTable and
// LoadWayTable; the stream table is maintained out of band. All geom columns
// are SRID 4326.
type PostGISSource struct {
	Pool        Pool
	BufferM     float64
	Predicates  []string
	BridgeTable string
	WayTable    string
	StreamTable string
}

// predicateSQL maps a predicate name to its PostGIS function over the
// buffered bridge geometry and the way geometry.
func predicateSQL(pred string) string {
	fn := map[string]string{
		"intersects": "ST_Intersects",
		"contains":   "ST_Contains",
		"equals":     "ST_Equals",
		"touches":    "ST_Touches",
		"overlaps":   "ST_Overlaps",
		"within":     "ST_Within",
		"crosses":    "ST_Crosses",
	}[strings.ToLower(pred)]
	return fmt.Sprintf("%s(buf.geom, w.geom)", fn)
}

// Rows implements Source: for every bridge, every way whose geometry matches
// any predicate against the buffered bridge point, together with the stream
// the way crosses nearest to that bridge and the bridge's own nearest stream.
func (s PostGISSource) Rows(ctx context.Context) ([]JoinRow, error) {
	if err := ValidatePredicates(s.Predicates); err != nil {
		return nil, err
	}
	if len(s.Predicates) == 0 {
		s.Predicates = []string{"intersects"}
	}
	if s.BridgeTable == "" {
		s.BridgeTable = "bridges"
	}
	if s.WayTable == "" {
		s.WayTable = "osm_ways"
	}
	if s.StreamTable == "" {
		s.StreamTable = "streams"
	}

	conds := make([]string, len(s.Predicates))
	for i, p := range s.Predicates {
		conds[i] = predicateSQL(p)
	}

	query := fmt.Sprintf(`
		WITH buf AS (
			SELECT b.bridge_id, b.stream_id AS bridge_stream_id,
			       ST_Buffer(b.geom::geography, $1)::geometry AS geom
			FROM %s b
		)
		SELECT buf.bridge_id, w.segment_id, w.segment_name,
		       st.stream_id, st.stream_name, buf.bridge_stream_id,
		       ST_AsText(ST_ClosestPoint(ST_Intersection(w.geom, st.geom), buf.geom)) AS intersection_wkt
		FROM buf
		JOIN %s w ON %s
		LEFT JOIN %s st ON ST_Intersects(w.geom, st.geom)`,
		s.BridgeTable, s.WayTable, strings.Join(conds, " OR "), s.StreamTable,
	)

	rows, err := s.Pool.Query(ctx, query, s.BufferM)
	if err != nil {
		return nil, eris.Wrap(err, "spatialjoin: buffer join query")
	}
	defer rows.Close()

	var out []JoinRow
	for rows.Next() {
		var r JoinRow
		var streamID, streamName, bridgeStreamID, wkt *string
		if err := rows.Scan(&r.BridgeID, &r.SegmentID, &r.SegmentName,
			&streamID, &streamName, &bridgeStreamID, &wkt); err != nil {
			return nil, eris.Wrap(err, "spatialjoin: scan join row")
		}
		if streamID != nil {
			r.StreamID = *streamID
		}
		if streamName != nil {
			r.StreamName = *streamName
		}
		if bridgeStreamID != nil {
			r.BridgeStreamID = *bridgeStreamID
		}
		if wkt != nil {
			r.IntersectionWKT = *wkt
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "spatialjoin: iterate join rows")
	}
	return out, nil
}

// NearbyPairs runs the radius self-join over the bridge table, feeding the
// proximity deduplicator. The id ordering in the WHERE clause drops
// self-pairs and emits each pair once, already canonical.
func (s PostGISSource) NearbyPairs(ctx context.Context, radiusM float64) ([]NearbyPair, error) {
	table := s.BridgeTable
	if table == "" {
		table = "bridges"
	}

	query := fmt.Sprintf(`
		SELECT a.bridge_id, b.bridge_id
		FROM %s a
		JOIN %s b ON a.bridge_id < b.bridge_id
		 AND ST_DWithin(a.geom::geography, b.geom::geography, $1)`,
		table, table,
	)

	rows, err := s.Pool.Query(ctx, query, radiusM)
	if err != nil {
		return nil, eris.Wrap(err, "spatialjoin: nearby self-join query")
	}
	defer rows.Close()

	var out []NearbyPair
	for rows.Next() {
		var p NearbyPair
		if err := rows.Scan(&p.BridgeID, &p.BridgeID2); err != nil {
			return nil, eris.Wrap(err, "spatialjoin: scan nearby pair")
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "spatialjoin: iterate nearby pairs")
	}
	return out, nil
}
