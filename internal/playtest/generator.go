package playtest

import (
	"math"
	"math/rand/v2"
)

// Strategy is how a simulated player sizes its intervals.
type Strategy int

// Guessing strategies, from confident and right to confident and wrong.
const (
	StrategySharp Strategy = iota
	StrategyCalibrated
	StrategyCautious
	StrategyOverconfident
	StrategyWild
)

func (s Strategy) String() string {
	switch s {
	case StrategySharp:
		return "sharp"
	case StrategyCalibrated:
		return "calibrated"
	case StrategyCautious:
		return "cautious"
	case StrategyOverconfident:
		return "overconfident"
	case StrategyWild:
		return "wild"
	default:
		return "unknown"
	}
}

// generator produces intervals for one player. It is not safe for
// concurrent use; each player owns one.
type generator struct {
	rng *rand.Rand
}

func newGenerator(seed uint64, player int) *generator {
	s := seed + uint64(player) //nolint:gosec // G115: player is a small non-negative index

	return &generator{rng: rand.New(rand.NewPCG(s, s^0x6a09e667f3bcc908))} //nolint:gosec // not security sensitive
}

// strategy picks a strategy, with calibrated players the most common.
func (g *generator) strategy() Strategy {
	switch n := g.rng.IntN(8); {
	case n < 3:
		return StrategyCalibrated
	case n < 5:
		return StrategySharp
	default:
		return Strategy(n - 3)
	}
}

// guess returns an interval for answer. The centre is the answer shifted by
// a log-normal error; the half-width ratio depends on the strategy.
func (g *generator) guess(s Strategy, answer float64) (lower, upper float64) {
	var spread, ratio float64
	switch s {
	case StrategySharp:
		spread, ratio = 0.03, g.between(1.05, 1.3)
	case StrategyCalibrated:
		spread, ratio = 0.2, g.between(1.5, 3)
	case StrategyCautious:
		spread, ratio = 0.3, g.between(10, 100)
	case StrategyOverconfident:
		spread, ratio = 0.6, g.between(1.01, 1.1)
	default:
		lower = answer * g.between(2, 10)
		return lower, lower * 2
	}
	centre := answer * math.Exp(g.rng.NormFloat64()*spread)
	return centre / ratio, centre * ratio
}

func (g *generator) between(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}
