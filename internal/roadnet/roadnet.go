// Package roadnet models road-network segments (OSM ways and state LRS
// routes) and loads their geometries from shapefiles or WKT-bearing CSVs.
package roadnet

import (
	"github.com/twpayne/go-geom"
)

// Segment is one edge of the road network graph, identified by a stable id.
type Segment struct {
	ID   string
	Name string
	Line *geom.LineString
}

// Index is an in-memory segment-id to geometry lookup. The projection engine
// treats a missing id as "projection unavailable", not an error, so Lookup
// reports presence explicitly.
type Index struct {
	segments map[string]Segment
}

// NewIndex builds an index from a segment slice. Later duplicates of an id
// overwrite earlier ones.
func NewIndex(segments []Segment) *Index {
	m := make(map[string]Segment, len(segments))
	for _, s := range segments {
		m[s.ID] = s
	}
	return &Index{segments: m}
}

// Lookup returns the segment for id.
func (ix *Index) Lookup(id string) (Segment, bool) {
	s, ok := ix.segments[id]
	return s, ok
}

// Len returns the number of indexed segments.
func (ix *Index) Len() int { return len(ix.segments) }

// Each calls fn for every indexed segment, in no particular order.
func (ix *Index) Each(fn func(Segment)) {
	for _, s := range ix.segments {
		fn(s)
	}
}
