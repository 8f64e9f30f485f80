// Package spatialjoin defines the contract with the external geometric join
// primitive. The join is a black box: it returns the cartesian set of
// (bridge, way, stream) pairs matching a buffer plus predicates, with no false
// negatives but possible false positives. The resolver downstream is
// responsible for being robust to the false positives.
package spatialjoin

import (
	"context"
	"os"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
)

// Predicate names mirror the spatial relations the external join supports.
var validPredicates = map[string]bool{
	"intersects": true,
	"contains":   true,
	"equals":     true,
	"touches":    true,
	"overlaps":   true,
	"within":     true,
	"crosses":    true,
}

// ValidatePredicates rejects predicate names outside the supported set before
// any query is issued.
func ValidatePredicates(preds []string) error {
	for _, p := range preds {
		if !validPredicates[strings.ToLower(p)] {
			return eris.Errorf("spatialjoin: unsupported predicate %q", p)
		}
	}
	return nil
}

// JoinRow is one raw candidate pair from the join. StreamID is the waterway
// crossed at the intersection point; BridgeStreamID is the waterway nearest to
// the bridge point itself. The two agreeing is the stream-identity signal the
// resolver prefers.
type JoinRow struct {
	BridgeID        string `csv:"bridge_id"`
	SegmentID       string `csv:"segment_id"`
	SegmentName     string `csv:"segment_name"`
	StreamID        string `csv:"stream_id"`
	StreamName      string `csv:"stream_name"`
	BridgeStreamID  string `csv:"bridge_stream_id"`
	IntersectionWKT string `csv:"intersection_wkt"`
}

// Source produces join rows for one pipeline run.
type Source interface {
	Rows(ctx context.Context) ([]JoinRow, error)
}

// CSVSource reads join rows materialized by an external GIS host.
type CSVSource struct {
	Path string
}

// Rows implements Source.
func (s CSVSource) Rows(_ context.Context) ([]JoinRow, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "spatialjoin: read join csv %s", s.Path)
	}

	var rows []JoinRow
	if err := csvutil.Unmarshal(data, &rows); err != nil {
		return nil, eris.Wrapf(err, "spatialjoin: parse join csv %s", s.Path)
	}
	for i := range rows {
		rows[i].BridgeID = strings.TrimSpace(rows[i].BridgeID)
	}
	return rows, nil
}

// exclusionRow is one line of an externally materialized exclusion list: a
// bridge id matched by an OSM tag join (existing bridge tag, freeway,
// parallel carriageway, tunnel=culvert).
type exclusionRow struct {
	BridgeID string `csv:"bridge_id"`
}

// LoadExclusionIDs reads a one-column bridge-id exclusion list. Ids are
// trimmed; blank rows are dropped.
func LoadExclusionIDs(path string) (map[string]bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "spatialjoin: read exclusion list %s", path)
	}

	var rows []exclusionRow
	if err := csvutil.Unmarshal(data, &rows); err != nil {
		return nil, eris.Wrapf(err, "spatialjoin: parse exclusion list %s", path)
	}

	ids := make(map[string]bool, len(rows))
	for _, r := range rows {
		id := strings.TrimSpace(r.BridgeID)
		if id != "" {
			ids[id] = true
		}
	}
	return ids, nil
}

// NearbyPair is one row of a radius self-join over bridge points, used by the
// proximity deduplicator. Self-pairs are filtered at the source.
type NearbyPair struct {
	BridgeID  string `csv:"bridge_id"`
	BridgeID2 string `csv:"bridge_id_2"`
}

// LoadNearbyPairs reads a self-join CSV, dropping self-pairs.
func LoadNearbyPairs(path string) ([]NearbyPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "spatialjoin: read nearby join %s", path)
	}

	var rows []NearbyPair
	if err := csvutil.Unmarshal(data, &rows); err != nil {
		return nil, eris.Wrapf(err, "spatialjoin: parse nearby join %s", path)
	}

	out := rows[:0]
	for _, r := range rows {
		if r.BridgeID != r.BridgeID2 {
			out = append(out, r)
		}
	}
	return out, nil
}
