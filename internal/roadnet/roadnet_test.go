package roadnet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func TestIndexLookup(t *testing.T) {
	line := geom.NewLineStringFlat(geom.XY, []float64{0, 0, 1, 0})
	ix := NewIndex([]Segment{
		{ID: "way/7", Name: "Main Street", Line: line},
		{ID: "way/7", Name: "Main Street Updated", Line: line},
		{ID: "way/9", Name: "Oak Road", Line: line},
	})

	assert.Equal(t, 2, ix.Len())

	s, ok := ix.Lookup("way/7")
	require.True(t, ok)
	// Later duplicates win.
	assert.Equal(t, "Main Street Updated", s.Name)

	_, ok = ix.Lookup("way/404")
	assert.False(t, ok)
}

func TestIndexEach(t *testing.T) {
	ix := NewIndex([]Segment{{ID: "a"}, {ID: "b"}})
	seen := map[string]bool{}
	ix.Each(func(s Segment) { seen[s.ID] = true })
	assert.Equal(t, map[string]bool{"a": true, "b": true}, seen)
}

func TestLoadWKTCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ways.csv")
	csv := `segment_id,segment_name,wkt
way/7,Main Street,"LINESTRING (0 0, 1 0)"
way/9,Oak Road,"LINESTRING (0 1, 1 1, 2 1)"
`
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	segments, err := LoadWKTCSV(path)
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, "way/7", segments[0].ID)
	assert.Equal(t, "Main Street", segments[0].Name)
	assert.Equal(t, 2, segments[0].Line.NumCoords())
	assert.Equal(t, 3, segments[1].Line.NumCoords())
}

func TestLoadWKTCSVMalformedGeometry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ways.csv")
	csv := `segment_id,segment_name,wkt
way/7,Main Street,LINESTRING (bogus)
`
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	_, err := LoadWKTCSV(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "way/7")
}

func TestLoadWKTCSVRejectsNonLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ways.csv")
	csv := `segment_id,segment_name,wkt
way/7,Main Street,POINT (0 0)
`
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	_, err := LoadWKTCSV(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a linestring")
}
