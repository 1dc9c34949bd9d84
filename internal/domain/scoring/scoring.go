// Package scoring computes calibration scores for interval estimates.
//
// A player answers a numeric question with a lower and an upper bound. The
// score rewards intervals that are narrow in log space, centered on the true
// answer and actually contain it. Every function here is pure and safe for
// concurrent use.
package scoring

import "math"

const (
	// MinScore and MaxScore bound every score.
	MinScore float64 = 0
	MaxScore float64 = 100

	// positiveFloor replaces non-positive inputs before the log transform.
	positiveFloor = 1e-15
	// degenerateSpread is the half-width, in log space, given to zero-width intervals.
	degenerateSpread = 1e-10
	// outsideWeight scales the penalty for answers outside the interval.
	outsideWeight = 5
	// calibrationOffset shifts the penalty so tight centered intervals reach MaxScore.
	calibrationOffset = 1.1
	// widthDivisor normalizes the log width in the base penalty.
	widthDivisor = 4
	// centerWeight scales the squared distance from the interval midpoint.
	centerWeight = 2
)

// Input is a single interval estimate against a known answer.
type Input struct {
	LowerBound    float64 `json:"lowerBound"`
	UpperBound    float64 `json:"upperBound"`
	CorrectAnswer float64 `json:"correctAnswer"`
}

// Result is the score for an Input along with the terms that produced it.
type Result struct {
	Score          float64 `json:"score"`
	Captured       bool    `json:"captured"`
	Width          float64 `json:"logWidth"`
	Position       float64 `json:"position"`
	BasePenalty    float64 `json:"basePenalty"`
	OutsidePenalty float64 `json:"outsidePenalty"`
	// Inverted is set when the floored lower bound exceeds the upper bound.
	// Such an estimate scores MinScore and carries no penalty terms.
	Inverted bool `json:"inverted,omitempty"`
}

// Score returns the calibration score of [lower, upper] for answer, in [0, 100].
func Score(lower, upper, answer float64) float64 {
	return Evaluate(Input{LowerBound: lower, UpperBound: upper, CorrectAnswer: answer}).Score
}

// Evaluate scores in and reports the intermediate penalty terms. Bounds that
// are out of order once floored score MinScore; every reported term stays
// finite for finite inputs.
func Evaluate(in Input) Result {
	logLower := math.Log(floor(in.LowerBound))
	logUpper := math.Log(floor(in.UpperBound))
	logAnswer := math.Log(floor(in.CorrectAnswer))

	width := logUpper - logLower
	if width < 0 {
		return Result{
			Score:    MinScore,
			Captured: Captured(in.LowerBound, in.UpperBound, in.CorrectAnswer),
			Width:    width,
			Position: (logAnswer - logLower) / width,
			Inverted: true,
		}
	}
	if width == 0 {
		logLower -= degenerateSpread
		logUpper += degenerateSpread
		width = logUpper - logLower
	}

	position := (logAnswer - logLower) / width
	midpoint := (logLower + logUpper) / 2
	deviation := (logAnswer - midpoint) / width

	base := math.Log(width/widthDivisor) + centerWeight*deviation*deviation

	var outside float64
	if position < 0 || position > 1 {
		outside = outsideWeight * math.Min(math.Abs(position), math.Abs(position-1))
	}

	return Result{
		Score:          toScore(base + outside),
		Captured:       Captured(in.LowerBound, in.UpperBound, in.CorrectAnswer),
		Width:          width,
		Position:       position,
		BasePenalty:    base,
		OutsidePenalty: outside,
	}
}

// Captured reports whether answer lies within the closed interval [lower, upper].
func Captured(lower, upper, answer float64) bool {
	return answer >= lower && answer <= upper
}

func floor(v float64) float64 {
	if v <= 0 {
		return positiveFloor
	}
	return v
}

// toScore maps a penalty onto [MinScore, MaxScore].
func toScore(penalty float64) float64 {
	raw := MaxScore * math.Exp(-penalty-calibrationOffset)
	if math.IsNaN(raw) {
		return MinScore
	}
	return math.Max(MinScore, math.Min(MaxScore, raw))
}
