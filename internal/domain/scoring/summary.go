package scoring

// Band names a range of scores.
type Band string

const (
	BandExcellent Band = "excellent"
	BandGood      Band = "good"
	BandFair      Band = "fair"
	BandPoor      Band = "poor"
)

// Lower edges of each band, inclusive.
const (
	excellentFrom = 90
	goodFrom      = 70
	fairFrom      = 50
)

// Bucket places score into its band.
func Bucket(score float64) Band {
	switch {
	case score >= excellentFrom:
		return BandExcellent
	case score >= goodFrom:
		return BandGood
	case score >= fairFrom:
		return BandFair
	default:
		return BandPoor
	}
}

// Distribution counts scores per band.
type Distribution struct {
	Excellent int `json:"excellent"`
	Good      int `json:"good"`
	Fair      int `json:"fair"`
	Poor      int `json:"poor"`
}

// Summary aggregates a player's scores.
type Summary struct {
	TotalAttempts int          `json:"totalAttempts"`
	AverageScore  float64      `json:"averageScore"`
	Distribution  Distribution `json:"scoreDistribution"`
}

// Summarize aggregates scores. An empty slice yields a zero Summary.
func Summarize(scores []float64) Summary {
	var s Summary
	if len(scores) == 0 {
		return s
	}

	var total float64
	for _, score := range scores {
		total += score
		switch Bucket(score) {
		case BandExcellent:
			s.Distribution.Excellent++
		case BandGood:
			s.Distribution.Good++
		case BandFair:
			s.Distribution.Fair++
		default:
			s.Distribution.Poor++
		}
	}
	s.TotalAttempts = len(scores)
	s.AverageScore = total / float64(len(scores))
	return s
}
