package scoring_test

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	scoring "github.com/foursigma/foursigma/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestScore(t *testing.T) {
	Convey("Given well-calibrated intervals", t, func() {
		Convey("When the interval is tight and centered on the answer", func() {
			Convey("Then Everest at 8849m inside [8000, 9000] scores high", func() {
				So(scoring.Score(8000, 9000, 8849), ShouldBeGreaterThan, 70)
			})

			Convey("Then [50, 200] around 100 scores above 90", func() {
				score := scoring.Score(50, 200, 100)
				So(score, ShouldBeGreaterThan, 90)
				So(score, ShouldAlmostEqual, 96.05, 0.05)
			})

			Convey("Then geometric-midpoint intervals of modest ratio score above 90", func() {
				for _, answer := range []float64{0.5, 37, 8849, 384400, 1e9} {
					for _, ratio := range []float64{1.1, 1.5, 2} {
						So(scoring.Score(answer/ratio, answer*ratio, answer), ShouldBeGreaterThan, 90)
					}
				}
			})
		})

		Convey("When the interval is exactly the answer", func() {
			score := scoring.Score(100, 100, 100)

			Convey("Then the score is finite and at the top of the range", func() {
				So(math.IsNaN(score), ShouldBeFalse)
				So(math.IsInf(score, 0), ShouldBeFalse)
				So(score, ShouldEqual, scoring.MaxScore)
			})
		})
	})

	Convey("Given answers outside the interval", t, func() {
		Convey("Then the Moon at 384400km against [1, 2] scores zero", func() {
			So(scoring.Score(1, 2, 384400), ShouldEqual, 0.0)
		})

		Convey("Then an answer 100x above the upper bound approaches zero", func() {
			So(scoring.Score(10, 20, 2000), ShouldBeLessThan, 1)
		})

		Convey("Then a zero-width guess that misses scores zero", func() {
			So(scoring.Score(100, 100, 101), ShouldEqual, 0.0)
		})

		Convey("Then moving the answer further away never raises the score", func() {
			previous := scoring.Score(50, 200, 200)
			for answer := 210.0; answer < 5000; answer *= 1.2 {
				current := scoring.Score(50, 200, answer)
				So(current, ShouldBeLessThanOrEqualTo, previous)
				previous = current
			}

			previous = scoring.Score(50, 200, 50)
			for answer := 45.0; answer > 0.01; answer /= 1.2 {
				current := scoring.Score(50, 200, answer)
				So(current, ShouldBeLessThanOrEqualTo, previous)
				previous = current
			}
		})

		Convey("Then the outside penalty is strictly positive", func() {
			result := scoring.Evaluate(scoring.Input{LowerBound: 50, UpperBound: 200, CorrectAnswer: 400})
			So(result.Captured, ShouldBeFalse)
			So(result.Position, ShouldBeGreaterThan, 1)
			So(result.OutsidePenalty, ShouldAlmostEqual, 5*(result.Position-1), 1e-12)
		})
	})

	Convey("Given a centered interval that keeps widening", t, func() {
		const answer = 1000.0

		Convey("Then the score never increases", func() {
			previous := scoring.Score(answer, answer, answer)
			for ratio := 1.01; ratio < 1e6; ratio *= 1.3 {
				current := scoring.Score(answer/ratio, answer*ratio, answer)
				So(current, ShouldBeLessThanOrEqualTo, previous+1e-9)
				previous = current
			}
			So(previous, ShouldBeLessThan, 10)
		})
	})

	Convey("Given non-positive and malformed inputs", t, func() {
		Convey("Then [0, 0] against 37 is finite and bounded", func() {
			score := scoring.Score(0, 0, 37)
			So(math.IsNaN(score), ShouldBeFalse)
			So(score, ShouldBeBetweenOrEqual, 0, 100)
		})

		Convey("Then negative bounds are floored rather than rejected", func() {
			So(scoring.Score(-5, -1, 10), ShouldEqual, scoring.Score(0, 0, 10))
			So(scoring.Score(-5, 10, 3), ShouldBeBetweenOrEqual, 0, 100)
		})

		Convey("Then swapped bounds score at the bottom of the range", func() {
			So(scoring.Score(200, 50, 100), ShouldEqual, scoring.MinScore)
		})

		Convey("Then NaN and infinite inputs still produce a bounded number", func() {
			cases := [][3]float64{
				{math.NaN(), 10, 5},
				{1, math.Inf(1), 5},
				{math.Inf(-1), 10, 5},
				{math.Inf(1), math.Inf(1), math.Inf(1)},
				{1, 10, math.Inf(1)},
			}
			for _, c := range cases {
				score := scoring.Score(c[0], c[1], c[2])
				So(math.IsNaN(score), ShouldBeFalse)
				So(score, ShouldBeBetweenOrEqual, 0, 100)
			}
		})
	})

	Convey("Given arbitrary finite triples", t, func() {
		rng := rand.New(rand.NewSource(7)) //nolint:gosec // deterministic inputs

		Convey("Then every score is within [0, 100] and repeatable", func() {
			for i := 0; i < 5000; i++ {
				a := (rng.Float64() - 0.3) * math.Pow(10, float64(rng.Intn(12)-3))
				b := (rng.Float64() - 0.3) * math.Pow(10, float64(rng.Intn(12)-3))
				c := (rng.Float64() - 0.3) * math.Pow(10, float64(rng.Intn(12)-3))

				score := scoring.Score(a, b, c)
				So(score, ShouldBeBetweenOrEqual, 0, 100)
				So(scoring.Score(a, b, c), ShouldEqual, score)
			}
		})
	})
}

func TestEvaluate(t *testing.T) {
	Convey("Given an interval that captures the answer", t, func() {
		result := scoring.Evaluate(scoring.Input{LowerBound: 50, UpperBound: 200, CorrectAnswer: 100})

		Convey("Then the breakdown reflects a centered capture", func() {
			So(result.Captured, ShouldBeTrue)
			So(result.Width, ShouldAlmostEqual, math.Log(4), 1e-12)
			So(result.Position, ShouldAlmostEqual, 0.5, 1e-12)
			So(result.OutsidePenalty, ShouldEqual, 0.0)
			So(result.BasePenalty, ShouldAlmostEqual, math.Log(math.Log(4)/4), 1e-12)
			So(result.Score, ShouldEqual, scoring.Score(50, 200, 100))
		})
	})

	Convey("Given bounds that are out of order once floored", t, func() {
		cases := []scoring.Input{
			{LowerBound: 200, UpperBound: 50, CorrectAnswer: 100},
			{LowerBound: 0, UpperBound: 1e-16, CorrectAnswer: 10},
			{LowerBound: -1, UpperBound: 5e-16, CorrectAnswer: 10},
		}

		Convey("Then they score MinScore with a finite breakdown", func() {
			for _, in := range cases {
				result := scoring.Evaluate(in)
				So(result.Inverted, ShouldBeTrue)
				So(result.Score, ShouldEqual, scoring.MinScore)
				So(result.Captured, ShouldBeFalse)
				So(result.Width, ShouldBeLessThan, 0)
				for _, v := range []float64{result.Width, result.Position, result.BasePenalty, result.OutsidePenalty} {
					So(math.IsNaN(v) || math.IsInf(v, 0), ShouldBeFalse)
				}
				_, err := json.Marshal(result)
				So(err, ShouldBeNil)
			}
		})

		Convey("Then an in-order interval is not marked inverted", func() {
			So(scoring.Evaluate(scoring.Input{LowerBound: 50, UpperBound: 200, CorrectAnswer: 100}).Inverted, ShouldBeFalse)
			So(scoring.Evaluate(scoring.Input{LowerBound: -1, UpperBound: 0, CorrectAnswer: 10}).Inverted, ShouldBeFalse)
		})
	})

	Convey("Given the bounds themselves as answers", t, func() {
		So(scoring.Captured(50, 200, 50), ShouldBeTrue)
		So(scoring.Captured(50, 200, 200), ShouldBeTrue)
		So(scoring.Captured(50, 200, 49.999), ShouldBeFalse)
		So(scoring.Captured(200, 50, 100), ShouldBeFalse)
	})
}
