package spatialjoin

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/osmtools/bridgematch/internal/nbi"
	"github.com/osmtools/bridgematch/internal/roadnet"
)

func lineString(coords ...float64) *geom.LineString {
	return geom.NewLineStringFlat(geom.XY, coords)
}

func TestPostGISSourceRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s1, cedar := "S1", "Cedar Creek"
	wkt := "POINT (0.5 0.0005)"
	rows := pgxmock.NewRows([]string{
		"bridge_id", "segment_id", "segment_name",
		"stream_id", "stream_name", "bridge_stream_id", "intersection_wkt",
	}).
		AddRow("B1", "way/7", "Main Street", &s1, &cedar, &s1, &wkt).
		AddRow("B2", "way/9", "Oak Road", nil, nil, nil, nil)

	mock.ExpectQuery("ST_Buffer").WithArgs(30.0).WillReturnRows(rows)

	src := PostGISSource{Pool: mock, BufferM: 30.0, Predicates: []string{"intersects", "crosses"}}
	got, err := src.Rows(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "B1", got[0].BridgeID)
	assert.Equal(t, "Cedar Creek", got[0].StreamName)
	assert.Equal(t, wkt, got[0].IntersectionWKT)

	// NULL stream columns come back as empty strings.
	assert.Equal(t, "B2", got[1].BridgeID)
	assert.Empty(t, got[1].StreamID)
	assert.Empty(t, got[1].IntersectionWKT)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostGISSourceRejectsBadPredicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	src := PostGISSource{Pool: mock, Predicates: []string{"near"}}
	_, err = src.Rows(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "near")
}

func TestPostGISNearbyPairs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"bridge_id", "bridge_id"}).
		AddRow("B1", "B6").
		AddRow("B2", "B5")
	mock.ExpectQuery("ST_DWithin").WithArgs(30.0).WillReturnRows(rows)

	src := PostGISSource{Pool: mock}
	got, err := src.NearbyPairs(context.Background(), 30.0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, NearbyPair{BridgeID: "B1", BridgeID2: "B6"}, got[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadBridgeTable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`TRUNCATE "bridges"`).WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"bridges"}, []string{"bridge_id", "latitude", "longitude"}).
		WillReturnResult(2)

	bridges := []nbi.BridgeRecord{
		{StructureNumber: "B1", Latitude: 0.0005, Longitude: 0.5},
		{StructureNumber: "B2", Latitude: 1, Longitude: 1},
	}
	n, err := LoadBridgeTable(context.Background(), mock, "", bridges)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadWayTableSkipsNilGeometry(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`TRUNCATE "osm_ways"`).WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"osm_ways"}, []string{"segment_id", "segment_name", "wkt"}).
		WillReturnResult(1)

	segments := []roadnet.Segment{
		{ID: "way/7", Name: "Main Street", Line: lineString(0, 0, 1, 0)},
		{ID: "way/8", Name: "No Geometry"},
	}
	n, err := LoadWayTable(context.Background(), mock, "", segments)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, mock.ExpectationsWereMet())
}
