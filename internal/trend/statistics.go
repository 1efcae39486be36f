package trend

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// MannWhitney is the result of a two-sided Mann-Whitney U test.
type MannWhitney struct {
	U           float64 `json:"u" yaml:"u"`
	Z           float64 `json:"z" yaml:"z"`
	PValue      float64 `json:"p_value" yaml:"p_value"`
	Significant bool    `json:"significant" yaml:"significant"`
}

// MannWhitneyU tests whether two samples come from different
// distributions, using the normal approximation. Tied values share the
// average of their ranks.
func MannWhitneyU(a, b []float64) MannWhitney {
	if len(a) == 0 || len(b) == 0 {
		return MannWhitney{PValue: 1}
	}
	n1, n2 := float64(len(a)), float64(len(b))

	type ranked struct {
		v     float64
		first bool
	}
	all := make([]ranked, 0, len(a)+len(b))
	for _, v := range a {
		all = append(all, ranked{v, true})
	}
	for _, v := range b {
		all = append(all, ranked{v, false})
	}
	slices.SortFunc(all, func(x, y ranked) int {
		switch {
		case x.v < y.v:
			return -1
		case x.v > y.v:
			return 1
		}
		return 0
	})

	var rankSum float64
	for i := 0; i < len(all); {
		j := i
		for j < len(all) && all[j].v == all[i].v {
			j++
		}
		rank := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			if all[k].first {
				rankSum += rank
			}
		}
		i = j
	}

	u1 := rankSum - n1*(n1+1)/2
	u := math.Min(u1, n1*n2-u1)
	mu := n1 * n2 / 2
	sigma := math.Sqrt(n1 * n2 * (n1 + n2 + 1) / 12)

	var z float64
	if sigma > 0 {
		z = (u - mu) / sigma
	}
	p := 2 * normalCDF(-math.Abs(z))
	return MannWhitney{U: u, Z: z, PValue: p, Significant: p < 0.05}
}

func normalCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// CohensD returns the standardized mean difference of a and b.
func CohensD(a, b []float64) float64 {
	if len(a) < 2 || len(b) < 2 {
		return 0
	}
	n1, n2 := float64(len(a)), float64(len(b))
	v1, v2 := stat.Variance(a, nil), stat.Variance(b, nil)
	pooled := math.Sqrt(((n1-1)*v1 + (n2-1)*v2) / (n1 + n2 - 2))
	if pooled == 0 {
		return 0
	}
	return (stat.Mean(a, nil) - stat.Mean(b, nil)) / pooled
}

// EffectLabel names the magnitude of a Cohen's d.
func EffectLabel(d float64) string {
	switch d = math.Abs(d); {
	case d < 0.2:
		return "negligible"
	case d < 0.5:
		return "small"
	case d < 0.8:
		return "medium"
	default:
		return "large"
	}
}

// Stats are descriptive statistics of a sample.
type Stats struct {
	N      int     `json:"n" yaml:"n"`
	Mean   float64 `json:"mean" yaml:"mean"`
	Median float64 `json:"median" yaml:"median"`
	StdDev float64 `json:"std_dev" yaml:"std_dev"`
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
}

// Describe computes descriptive statistics.
func Describe(sample []float64) Stats {
	if len(sample) == 0 {
		return Stats{}
	}
	sorted := slices.Clone(sample)
	slices.Sort(sorted)

	s := Stats{
		N:      len(sample),
		Mean:   stat.Mean(sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
	}
	if len(sorted) > 1 {
		s.StdDev = stat.StdDev(sorted, nil)
	}
	return s
}
