package similarity

// Comparison labels identify which name pairing produced a score. The label
// travels with the score so downstream review tooling can show which field
// actually matched.
const (
	SourceSegmentFacility = "segment_name~facility_carried"
	SourceStreamFeature   = "stream_name~feature_intersected"
	SourceSegmentFeature  = "segment_name~feature_intersected"
	SourceStreamFacility  = "stream_name~facility_carried"
)

// Best is a score tagged with the comparison that produced it.
type Best struct {
	Score  int    `csv:"similarity_score"`
	Source string `csv:"similarity_source_column"`
}

// NameScores holds the four pairwise scores between a bridge's two name
// fields and its candidate segment's two name fields.
type NameScores struct {
	SegmentFacility int
	StreamFeature   int
	SegmentFeature  int
	StreamFacility  int
}

// ScoreNames computes all four pairings.
func ScoreNames(facilityCarried, featureIntersected, segmentName, streamName string) NameScores {
	return NameScores{
		SegmentFacility: TokenSortRatio(segmentName, facilityCarried),
		StreamFeature:   TokenSortRatio(streamName, featureIntersected),
		SegmentFeature:  TokenSortRatio(segmentName, featureIntersected),
		StreamFacility:  TokenSortRatio(streamName, facilityCarried),
	}
}

// Max returns the highest score and its source label. Pairings are checked in
// declaration order, so equal scores resolve to the first listed source.
func (ns NameScores) Max() Best {
	best := Best{Score: ns.SegmentFacility, Source: SourceSegmentFacility}
	if ns.StreamFeature > best.Score {
		best = Best{Score: ns.StreamFeature, Source: SourceStreamFeature}
	}
	if ns.SegmentFeature > best.Score {
		best = Best{Score: ns.SegmentFeature, Source: SourceSegmentFeature}
	}
	if ns.StreamFacility > best.Score {
		best = Best{Score: ns.StreamFacility, Source: SourceStreamFacility}
	}
	return best
}

// Alias is one spelling of an entity name, tagged with the column it came from.
type Alias struct {
	Label string
	Value string
}

// BestOfAliases scores target against every alias and returns the maximum with
// its source label. Equal scores resolve to the earlier alias.
func BestOfAliases(target string, aliases []Alias) Best {
	var best Best
	for i, a := range aliases {
		s := TokenSortRatio(target, a.Value)
		if i == 0 || s > best.Score {
			best = Best{Score: s, Source: a.Label}
		}
	}
	return best
}

// ScorePair is one row of a batched scoring request.
type ScorePair struct {
	A string
	B string
}

// ScoreBatch scores a table of name pairs. It is defined to produce exactly
// the same values, row for row, as calling TokenSortRatio per row; callers may
// rely on that equivalence when swapping between the two.
func ScoreBatch(pairs []ScorePair) []int {
	out := make([]int, len(pairs))
	for i, p := range pairs {
		out[i] = TokenSortRatio(p.A, p.B)
	}
	return out
}
