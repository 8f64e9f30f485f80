// Package classify converts a resolved association plus its similarity score
// into the terminal editorial disposition.
package classify

import "github.com/rotisserie/eris"

// Disposition is the final editorial classification of a bridge.
type Disposition string

const (
	NotApplicable  Disposition = "Not to be edited"
	AutomatedEdit  Disposition = "Automated edit"
	ReviewRequired Disposition = "Review required"
	Excluded       Disposition = "Excluded"
)

// Reason is the closed set of exclusion reasons. The order here is the
// ledger's funnel order.
type Reason string

const (
	ReasonDuplicateCoordinates Reason = "duplicate coordinates"
	ReasonNonPostedCulvert     Reason = "non-posted culvert"
	ReasonExistingOSMBridge    Reason = "bridge already in OSM"
	ReasonFreeway              Reason = "near or on freeway"
	ReasonParallelBridge       Reason = "parallel opposite-direction bridge"
	ReasonTunnelCulvert        Reason = "near tunnel=culvert"
	ReasonNearbyBridge         Reason = "nearby bridge conflict"
	ReasonUnsnapped            Reason = "projection unavailable"
	ReasonMethodDisagreement   Reason = "cross-method disagreement"
	ReasonLowConfidence        Reason = "low confidence with ambiguity"
)

// Outcome pairs a disposition with its exclusion reason when applicable.
type Outcome struct {
	Disposition Disposition `csv:"disposition"`
	Reason      Reason      `csv:"exclusion_reason,omitempty"`
}

// Thresholds are the configurable similarity cutoffs. Different deployments
// calibrate them empirically, so they are injected, never hardcoded.
type Thresholds struct {
	Automated   int
	ReviewFloor int
}

// Validate rejects threshold pairs that would make the review band empty or
// inverted.
func (t Thresholds) Validate() error {
	if t.ReviewFloor < 0 || t.Automated > 100 || t.ReviewFloor > t.Automated {
		return eris.Errorf("classify: invalid thresholds automated=%d review_floor=%d",
			t.Automated, t.ReviewFloor)
	}
	return nil
}

// Classify buckets one bridge:
//
//	no association            -> NotApplicable
//	score >= automated        -> AutomatedEdit (Excluded(unsnapped) without a projection)
//	review floor <= score     -> ReviewRequired
//	otherwise                 -> Excluded(low confidence)
//
// projected reports whether a network position was obtained; an automated edit
// must never fall back to the unprojected inventory point.
func Classify(hasAssociation bool, score int, projected bool, th Thresholds) Outcome {
	if !hasAssociation {
		return Outcome{Disposition: NotApplicable}
	}
	switch {
	case score >= th.Automated:
		if !projected {
			return Outcome{Disposition: Excluded, Reason: ReasonUnsnapped}
		}
		return Outcome{Disposition: AutomatedEdit}
	case score >= th.ReviewFloor:
		return Outcome{Disposition: ReviewRequired}
	default:
		return Outcome{Disposition: Excluded, Reason: ReasonLowConfidence}
	}
}
