package spatialjoin

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/wkt"
	"go.uber.org/zap"

	"github.com/osmtools/bridgematch/internal/nbi"
	"github.com/osmtools/bridgematch/internal/roadnet"
)

// CopyPool is the pgx surface the table loaders need; pgxmock satisfies it in
// tests.
type CopyPool interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// LoadBridgeTable replaces the PostGIS bridge table with the filtered
// inventory, using the COPY protocol. The table's geom column is expected to
// be generated from the coordinate columns.
func LoadBridgeTable(ctx context.Context, pool CopyPool, table string, bridges []nbi.BridgeRecord) (int64, error) {
	if table == "" {
		table = "bridges"
	}
	if _, err := pool.Exec(ctx, "TRUNCATE "+pgx.Identifier{table}.Sanitize()); err != nil {
		return 0, eris.Wrapf(err, "spatialjoin: truncate %s", table)
	}

	rows := make([][]any, 0, len(bridges))
	for _, b := range bridges {
		rows = append(rows, []any{b.StructureNumber, b.Latitude, b.Longitude})
	}
	n, err := pool.CopyFrom(ctx, pgx.Identifier{table},
		[]string{"bridge_id", "latitude", "longitude"}, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "spatialjoin: COPY into %s", table)
	}
	zap.L().Info("spatialjoin: bridge table loaded",
		zap.String("table", table), zap.Int64("rows", n))
	return n, nil
}

// LoadWayTable replaces the PostGIS way table with the filtered road network,
// geometries encoded as WKT for the table's parsing trigger. Segments without
// geometry are skipped.
func LoadWayTable(ctx context.Context, pool CopyPool, table string, segments []roadnet.Segment) (int64, error) {
	if table == "" {
		table = "osm_ways"
	}
	if _, err := pool.Exec(ctx, "TRUNCATE "+pgx.Identifier{table}.Sanitize()); err != nil {
		return 0, eris.Wrapf(err, "spatialjoin: truncate %s", table)
	}

	rows := make([][]any, 0, len(segments))
	for _, s := range segments {
		if s.Line == nil {
			continue
		}
		text, err := wkt.Marshal(s.Line)
		if err != nil {
			return 0, eris.Wrapf(err, "spatialjoin: encode segment %s", s.ID)
		}
		rows = append(rows, []any{s.ID, s.Name, text})
	}
	n, err := pool.CopyFrom(ctx, pgx.Identifier{table},
		[]string{"segment_id", "segment_name", "wkt"}, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "spatialjoin: COPY into %s", table)
	}
	zap.L().Info("spatialjoin: way table loaded",
		zap.String("table", table), zap.Int64("rows", n))
	return n, nil
}
