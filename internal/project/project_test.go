package project

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/osmtools/bridgematch/internal/associate"
	"github.com/osmtools/bridgematch/internal/nbi"
	"github.com/osmtools/bridgematch/internal/roadnet"
)

func testIndex() *roadnet.Index {
	return roadnet.NewIndex([]roadnet.Segment{
		{ID: "10", Name: "Main Street",
			Line: geom.NewLineStringFlat(geom.XY, []float64{-85.0, 38.0, -84.0, 38.0})},
	})
}

func TestProject(t *testing.T) {
	bridge := nbi.BridgeRecord{
		StructureNumber:   "B1",
		Latitude:          38.01,
		Longitude:         -84.5,
		StructureLengthFt: 328.1,
	}
	res := associate.Resolved{BridgeID: "B1", SegmentID: "10", SegmentName: "Main Street"}

	out := Project(res, bridge, testIndex())
	require.True(t, out.Projected())

	pt, ok := out.Point()
	require.True(t, ok)
	assert.InDelta(t, 38.0, pt.Lat, 1e-6)
	assert.InDelta(t, -84.5, pt.Lon, 1e-6)
	assert.Equal(t, 100.0, out.BridgeLengthM)
}

func TestProject_NullAssociation(t *testing.T) {
	bridge := nbi.BridgeRecord{StructureNumber: "B1", Latitude: 38, Longitude: -84.5, StructureLengthFt: 32.81}

	out := Project(associate.Resolved{BridgeID: "B1"}, bridge, testIndex())
	assert.False(t, out.Projected())
	assert.Empty(t, out.ProjectedLat)
	assert.Empty(t, out.ProjectedLon)
	// Length conversion happens regardless of projection success.
	assert.Equal(t, 10.0, out.BridgeLengthM)
}

func TestProject_MissingSegmentGeometry(t *testing.T) {
	bridge := nbi.BridgeRecord{StructureNumber: "B1", Latitude: 38, Longitude: -84.5}
	res := associate.Resolved{BridgeID: "B1", SegmentID: "999"}

	out := Project(res, bridge, testIndex())
	assert.False(t, out.Projected())
	assert.Equal(t, "999", out.SegmentID, "association fields survive even without a projection")
}

func TestProject_UnusableBridgePoint(t *testing.T) {
	bridge := nbi.BridgeRecord{StructureNumber: "B1"}
	res := associate.Resolved{BridgeID: "B1", SegmentID: "10"}

	out := Project(res, bridge, testIndex())
	assert.False(t, out.Projected())
}
