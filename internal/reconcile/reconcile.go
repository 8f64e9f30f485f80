// Package reconcile merges the associations produced independently by the
// hydrography (stream-intersection) method and the mile-point
// (linear-referencing) method into one final association per bridge. Each
// method has systematic blind spots, so neither is trusted alone.
package reconcile

import (
	"github.com/osmtools/bridgematch/internal/classify"
)

// MethodResult is one method's answer for one bridge. An empty SegmentID
// means the method produced no association. Lat/Lon is the method's own
// anchor point: the raw intersection point for hydrography, the projected
// route point for mile-point.
type MethodResult struct {
	BridgeID    string
	SegmentID   string
	SegmentName string
	Score       int
	Lat         *float64
	Lon         *float64
}

func (m MethodResult) hasAssociation() bool { return m.SegmentID != "" }

// Merged is the reconciled output row for one bridge.
type Merged struct {
	BridgeID    string           `csv:"bridge_id"`
	SegmentID   string           `csv:"final_segment_id"`
	SegmentName string           `csv:"final_segment_name"`
	Score       int              `csv:"similarity_score"`
	Lat         *float64         `csv:"final_lat"`
	Lon         *float64         `csv:"final_lon"`
	Outcome     classify.Outcome `csv:",inline"`
}

// Merge applies the cross-validation protocol, first matching rule wins.
// hydro is method A, milePoint is method B:
//
//  1. Only A associates, score clears the automated threshold: accept A.
//  2. Only A associates, score in the review band: accept A, flag review.
//  3. Both agree on the segment, automated band: accept with B's point (the
//     linear-referencing point is the more precise when both agree).
//  4. Both agree, review band: as 3 with the review flag.
//  5. They disagree: the strictly higher score wins if it clears a band;
//     exact ties go to B.
//  6. Otherwise NotApplicable (both null) or Excluded.
func Merge(hydro, milePoint MethodResult, th classify.Thresholds) Merged {
	out := Merged{BridgeID: hydro.BridgeID}
	if out.BridgeID == "" {
		out.BridgeID = milePoint.BridgeID
	}

	switch {
	case hydro.hasAssociation() && !milePoint.hasAssociation():
		if band := bandOf(hydro.Score, th); band != noBand {
			return accept(out, hydro, hydro, band)
		}

	case hydro.hasAssociation() && milePoint.hasAssociation() && hydro.SegmentID == milePoint.SegmentID:
		if band := bandOf(hydro.Score, th); band != noBand {
			return accept(out, hydro, milePoint, band)
		}

	case hydro.hasAssociation() && milePoint.hasAssociation():
		// Disagreement: strictly higher score wins, ties to mile-point.
		winner := milePoint
		if hydro.Score > milePoint.Score {
			winner = hydro
		}
		if band := bandOf(winner.Score, th); band != noBand {
			return accept(out, winner, winner, band)
		}
		out.Outcome = classify.Outcome{
			Disposition: classify.Excluded,
			Reason:      classify.ReasonMethodDisagreement,
		}
		return out
	}

	if !hydro.hasAssociation() && !milePoint.hasAssociation() {
		out.Outcome = classify.Outcome{Disposition: classify.NotApplicable}
		return out
	}
	out.Outcome = classify.Outcome{
		Disposition: classify.Excluded,
		Reason:      classify.ReasonLowConfidence,
	}
	return out
}

type band int

const (
	noBand band = iota
	reviewBand
	automatedBand
)

func bandOf(score int, th classify.Thresholds) band {
	switch {
	case score >= th.Automated:
		return automatedBand
	case score >= th.ReviewFloor:
		return reviewBand
	default:
		return noBand
	}
}

// accept fills the merged row from the winning method, taking the anchor
// point from pointSrc (which differs from the winner only in the agreement
// case, where mile-point's projected point is preferred).
func accept(out Merged, winner, pointSrc MethodResult, b band) Merged {
	out.SegmentID = winner.SegmentID
	out.SegmentName = winner.SegmentName
	out.Score = winner.Score
	out.Lat = pointSrc.Lat
	out.Lon = pointSrc.Lon
	if b == automatedBand {
		out.Outcome = classify.Outcome{Disposition: classify.AutomatedEdit}
	} else {
		out.Outcome = classify.Outcome{Disposition: classify.ReviewRequired}
	}
	return out
}
