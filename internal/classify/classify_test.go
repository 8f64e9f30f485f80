package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var th = Thresholds{Automated: 75, ReviewFloor: 60}

func TestClassify_Bands(t *testing.T) {
	tests := []struct {
		name      string
		hasAssoc  bool
		score     int
		projected bool
		want      Outcome
	}{
		{"no association", false, 99, true, Outcome{Disposition: NotApplicable}},
		{"high confidence", true, 90, true, Outcome{Disposition: AutomatedEdit}},
		{"at automated threshold", true, 75, true, Outcome{Disposition: AutomatedEdit}},
		{"review band", true, 74, true, Outcome{Disposition: ReviewRequired}},
		{"at review floor", true, 60, true, Outcome{Disposition: ReviewRequired}},
		{"below floor", true, 59, true, Outcome{Disposition: Excluded, Reason: ReasonLowConfidence}},
		{"high confidence, unsnapped", true, 90, false, Outcome{Disposition: Excluded, Reason: ReasonUnsnapped}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.hasAssoc, tt.score, tt.projected, th))
		})
	}
}

func TestClassify_ThresholdMonotonicity(t *testing.T) {
	// Raising the automated threshold may only move bridges from AutomatedEdit
	// to ReviewRequired, never the other way.
	for score := 0; score <= 100; score++ {
		low := Classify(true, score, true, Thresholds{Automated: 70, ReviewFloor: 60})
		high := Classify(true, score, true, Thresholds{Automated: 85, ReviewFloor: 60})

		if high.Disposition == AutomatedEdit {
			assert.Equal(t, AutomatedEdit, low.Disposition, "score %d", score)
		}
		if low.Disposition == ReviewRequired {
			assert.NotEqual(t, AutomatedEdit, high.Disposition, "score %d", score)
		}
	}
}

func TestThresholds_Validate(t *testing.T) {
	assert.NoError(t, Thresholds{Automated: 75, ReviewFloor: 60}.Validate())
	assert.Error(t, Thresholds{Automated: 60, ReviewFloor: 75}.Validate())
	assert.Error(t, Thresholds{Automated: 101, ReviewFloor: 60}.Validate())
	assert.Error(t, Thresholds{Automated: 75, ReviewFloor: -1}.Validate())
}
