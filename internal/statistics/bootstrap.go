// Package statistics summarises score distributions across trials.
package statistics

import (
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// ConfidenceInterval holds the result of a bootstrap confidence interval computation.
type ConfidenceInterval struct {
	Lower           float64 `json:"lower"`
	Upper           float64 `json:"upper"`
	Mean            float64 `json:"mean"`
	ConfidenceLevel float64 `json:"confidence_level"`
	NumBootstraps   int     `json:"num_bootstraps"`
}

// DefaultBootstrapIterations is the number of bootstrap resamples.
const DefaultBootstrapIterations = 10000

// BootstrapCI computes a percentile bootstrap interval for the mean of
// scores. Fewer than 2 scores give a degenerate interval at the mean.
func BootstrapCI(scores []float64, confidenceLevel float64, seed uint64) ConfidenceInterval {
	n := len(scores)
	m := Mean(scores)
	if n < 2 {
		return ConfidenceInterval{Lower: m, Upper: m, Mean: m, ConfidenceLevel: confidenceLevel}
	}

	rng := rand.New(rand.NewPCG(seed, seed+1))
	iters := DefaultBootstrapIterations
	bootMeans := make([]float64, iters)
	sample := make([]float64, n)
	for i := range iters {
		for j := range n {
			sample[j] = scores[rng.IntN(n)]
		}
		bootMeans[i] = stat.Mean(sample, nil)
	}
	slices.Sort(bootMeans)

	alpha := 1.0 - confidenceLevel
	return ConfidenceInterval{
		Lower:           stat.Quantile(alpha/2, stat.Empirical, bootMeans, nil),
		Upper:           stat.Quantile(1-alpha/2, stat.Empirical, bootMeans, nil),
		Mean:            m,
		ConfidenceLevel: confidenceLevel,
		NumBootstraps:   iters,
	}
}

// PairedDifferenceCI bootstraps the mean of post[i]-pre[i]. The slices must
// have equal length; extra elements of the longer one are ignored.
func PairedDifferenceCI(pre, post []float64, confidenceLevel float64, seed uint64) ConfidenceInterval {
	n := min(len(pre), len(post))
	diffs := make([]float64, n)
	for i := range n {
		diffs[i] = post[i] - pre[i]
	}
	return BootstrapCI(diffs, confidenceLevel, seed)
}

// IsSignificant returns true if the confidence interval does not contain zero.
func IsSignificant(ci ConfidenceInterval) bool {
	return ci.Lower > 0 || ci.Upper < 0
}

// NormalizedGain computes Hake's normalized gain:
//
//	g = (post - pre) / (1 - pre)
//
// Returns 0 if pre >= 1 or pre == post, and 1 if post >= 1.
func NormalizedGain(pre, post float64) float64 {
	if pre >= 1.0 {
		return 0.0
	}
	if post >= 1.0 {
		return 1.0
	}
	if math.Abs(post-pre) < 1e-12 {
		return 0.0
	}
	return (post - pre) / (1.0 - pre)
}

// Mean is stat.Mean with 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	return stat.Mean(values, nil)
}
