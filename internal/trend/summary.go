package trend

import "gonum.org/v1/gonum/stat"

// Direction labels the overall movement of error rates.
type Direction string

const (
	Improving    Direction = "improving"
	Worsening    Direction = "worsening"
	NoChange     Direction = "no significant change"
	Insufficient Direction = "insufficient data"
)

// MinBuckets is the smallest number of buckets a comparison is made on.
const MinBuckets = 4

// Summary describes the trend of errors per game across buckets.
type Summary struct {
	Buckets int `json:"buckets" yaml:"buckets"`
	Games   int `json:"games" yaml:"games"`

	// ErrorsPerGame describes mistakes plus blunders per game, one value
	// per bucket.
	ErrorsPerGame Stats `json:"errors_per_game" yaml:"errors_per_game"`

	// Slope is the change in errors per game per day, fitted by weighted
	// least squares with each bucket weighted by its game count.
	Slope     float64 `json:"slope" yaml:"slope"`
	Intercept float64 `json:"intercept" yaml:"intercept"`

	// EarlyLate compares the first half of the buckets with the second.
	EarlyLate  MannWhitney `json:"early_late" yaml:"early_late"`
	EffectSize float64     `json:"effect_size" yaml:"effect_size"`
	Effect     string      `json:"effect" yaml:"effect"`
	Direction  Direction   `json:"direction" yaml:"direction"`
}

// Summarize fits the error trend of aggregates ordered by start.
func Summarize(aggs []Aggregate) Summary {
	s := Summary{Buckets: len(aggs), Direction: Insufficient}
	if len(aggs) == 0 {
		return s
	}

	xs := make([]float64, len(aggs))
	ys := make([]float64, len(aggs))
	ws := make([]float64, len(aggs))
	origin := aggs[0].Start
	for i, a := range aggs {
		s.Games += a.Games
		xs[i] = a.Start.Sub(origin).Hours() / 24
		ys[i] = a.ErrorsPerGame()
		ws[i] = float64(a.Games)
	}
	s.ErrorsPerGame = Describe(ys)

	if len(aggs) >= 2 && xs[len(xs)-1] > 0 {
		s.Intercept, s.Slope = stat.LinearRegression(xs, ys, ws, false)
	}

	if len(aggs) < MinBuckets {
		return s
	}
	early, late := ys[:len(ys)/2], ys[len(ys)/2:]
	s.EarlyLate = MannWhitneyU(early, late)
	s.EffectSize = CohensD(late, early)
	s.Effect = EffectLabel(s.EffectSize)
	switch {
	case !s.EarlyLate.Significant:
		s.Direction = NoChange
	case stat.Mean(late, nil) < stat.Mean(early, nil):
		s.Direction = Improving
	default:
		s.Direction = Worsening
	}
	return s
}
