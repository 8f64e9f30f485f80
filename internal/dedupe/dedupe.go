// Package dedupe arbitrates pairs of bridges that landed within a fixed
// radius of each other: one of each conflicting pair is dropped, keyed on
// similarity score with a deterministic fallback.
package dedupe

import (
	"sort"

	"go.uber.org/zap"

	"github.com/osmtools/bridgematch/internal/spatialjoin"
)

// Removals folds the nearby-pair stream into the set of bridge ids to drop.
//
// Pairs are first put into a canonical order so the result is identical for
// any input ordering. For each pair whose endpoints are both still alive, the
// lower-scoring bridge is removed; an exact tie removes the second-listed
// bridge (arbitrary but fixed). A bridge missing from the score table failed
// an earlier stage: the pair is logged and skipped, never a crash.
func Removals(pairs []spatialjoin.NearbyPair, scores map[string]int) map[string]bool {
	ordered := make([]spatialjoin.NearbyPair, len(pairs))
	copy(ordered, pairs)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].BridgeID != ordered[j].BridgeID {
			return ordered[i].BridgeID < ordered[j].BridgeID
		}
		return ordered[i].BridgeID2 < ordered[j].BridgeID2
	})

	removed := make(map[string]bool)
	for _, p := range ordered {
		if p.BridgeID == p.BridgeID2 || removed[p.BridgeID] || removed[p.BridgeID2] {
			continue
		}

		s1, ok1 := scores[p.BridgeID]
		s2, ok2 := scores[p.BridgeID2]
		if !ok1 || !ok2 {
			zap.L().Warn("dedupe: bridge missing from similarity table, skipping pair",
				zap.String("bridge_id", p.BridgeID),
				zap.String("bridge_id_2", p.BridgeID2),
			)
			continue
		}

		if s1 > s2 {
			removed[p.BridgeID2] = true
		} else if s2 > s1 {
			removed[p.BridgeID] = true
		} else {
			removed[p.BridgeID2] = true
		}
	}
	return removed
}
