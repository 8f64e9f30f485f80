package associate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osmtools/bridgematch/internal/nbi"
	"github.com/osmtools/bridgematch/internal/spatialjoin"
)

func TestBuildGroups(t *testing.T) {
	bridges := map[string]nbi.BridgeRecord{
		"B1": {StructureNumber: "B1", Latitude: 38.0, Longitude: -85.0},
		"B2": {StructureNumber: "B2", Latitude: 37.5, Longitude: -84.0},
	}

	rows := []spatialjoin.JoinRow{
		{BridgeID: "B1", SegmentID: "10", StreamID: "S1", BridgeStreamID: "S1",
			IntersectionWKT: "POINT (-85.0 38.001)"},
		{BridgeID: "B1", SegmentID: "11", StreamID: "S2", BridgeStreamID: "S1",
			IntersectionWKT: "POINT (-85.0 38.1)"},
		{BridgeID: "B2", SegmentID: "10", StreamID: "", BridgeStreamID: "",
			IntersectionWKT: "POINT (-84.0 37.5)"},
		// Bridge filtered upstream: the row is dropped, not an error.
		{BridgeID: "B9", SegmentID: "10", IntersectionWKT: "POINT (0 0)"},
	}

	groups, err := BuildGroups(rows, bridges)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	g1 := groups[0]
	require.Equal(t, "B1", g1.BridgeID)
	require.Len(t, g1.Candidates, 2)

	// Both rows carry the distinct-segment count for the whole group.
	assert.Equal(t, 2, g1.Candidates[0].ComboCount)
	assert.Equal(t, 2, g1.Candidates[1].ComboCount)

	// The nearer intersection carries the min-distance flag.
	assert.True(t, g1.Candidates[0].IsMinDistance)
	assert.False(t, g1.Candidates[1].IsMinDistance)
	assert.Less(t, g1.Candidates[0].DistanceKm, g1.Candidates[1].DistanceKm)

	// Stream identity: intersection stream equals the bridge's nearest stream.
	assert.True(t, g1.Candidates[0].IsStreamMatch)
	assert.False(t, g1.Candidates[1].IsStreamMatch)

	// Empty stream ids never count as a match.
	g2 := groups[1]
	require.Len(t, g2.Candidates, 1)
	assert.False(t, g2.Candidates[0].IsStreamMatch)
	assert.Equal(t, 1, g2.Candidates[0].ComboCount)
}

func TestBuildGroups_MalformedWKTAborts(t *testing.T) {
	bridges := map[string]nbi.BridgeRecord{"B1": {StructureNumber: "B1"}}
	rows := []spatialjoin.JoinRow{
		{BridgeID: "B1", SegmentID: "10", IntersectionWKT: "POINT (x y)"},
	}

	_, err := BuildGroups(rows, bridges)
	assert.Error(t, err)
}

func TestBuildGroups_MissingIntersectionGeometry(t *testing.T) {
	bridges := map[string]nbi.BridgeRecord{"B1": {StructureNumber: "B1", Latitude: 38, Longitude: -85}}
	rows := []spatialjoin.JoinRow{
		{BridgeID: "B1", SegmentID: "10", IntersectionWKT: ""},
		{BridgeID: "B1", SegmentID: "11", IntersectionWKT: "POINT (-85.0 38.0)"},
	}

	groups, err := BuildGroups(rows, bridges)
	require.NoError(t, err)
	require.Len(t, groups, 1)

	// The geometry-less row never carries the min-distance flag.
	assert.Nil(t, groups[0].Candidates[0].IntersectionLat)
	assert.False(t, groups[0].Candidates[0].IsMinDistance)
	assert.True(t, groups[0].Candidates[1].IsMinDistance)
}
