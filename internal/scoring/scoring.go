// Package scoring turns similarity matrices into scalar classification
// metrics by searching for the best decision threshold.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Metric selects the quantity the threshold search maximises.
type Metric string

const (
	MetricF1          Metric = "F1"
	MetricBalAcc      Metric = "BalAcc"
	MetricCohensKappa Metric = "CohensKappa"
)

// ErrUnknownMetric is returned by ParseMetric for unsupported names.
var ErrUnknownMetric = errors.New("unknown metric")

// Epsilon keeps precision, sensitivity and specificity finite when a
// confusion cell is zero.
const Epsilon = 1e-10

// Threshold bounds. Cosine-like similarities live in this range.
const (
	MinThreshold = -1.0
	MaxThreshold = 1.0
)

func (m Metric) String() string {
	return string(m)
}

// ParseMetric converts a configuration value to a Metric.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "f1":
		return MetricF1, nil
	case "balacc", "balanced_accuracy":
		return MetricBalAcc, nil
	case "cohenskappa", "cohens_kappa", "kappa":
		return MetricCohensKappa, nil
	default:
		return "", fmt.Errorf("%w %q: must be F1, BalAcc or CohensKappa", ErrUnknownMetric, s)
	}
}

// Confusion holds the four cells of a binary confusion matrix.
type Confusion struct {
	TP, TN, FP, FN float64
}

// Precision is tp / (tp + fp), stabilised by Epsilon.
func (c Confusion) Precision() float64 {
	return (c.TP + Epsilon) / (c.TP + c.FP + Epsilon)
}

// Sensitivity (recall) is tp / (tp + fn), stabilised by Epsilon.
func (c Confusion) Sensitivity() float64 {
	return (c.TP + Epsilon) / (c.TP + c.FN + Epsilon)
}

// Specificity is tn / (tn + fp), stabilised by Epsilon.
func (c Confusion) Specificity() float64 {
	return (c.TN + Epsilon) / (c.TN + c.FP + Epsilon)
}

// F1 is the harmonic mean of precision and sensitivity.
func (c Confusion) F1() float64 {
	p, s := c.Precision(), c.Sensitivity()
	return 2 * p * s / (p + s)
}

// BalancedAccuracy is the mean of sensitivity and specificity.
func (c Confusion) BalancedAccuracy() float64 {
	return (c.Sensitivity() + c.Specificity()) / 2
}

// CohensKappa is observed agreement corrected for chance agreement. It is 0
// when chance agreement is total.
func (c Confusion) CohensKappa() float64 {
	total := c.TP + c.TN + c.FP + c.FN
	if total == 0 {
		return 0
	}
	observed := (c.TP + c.TN) / total
	pYes := ((c.TP + c.FP) / total) * ((c.TP + c.FN) / total)
	pNo := ((c.FN + c.TN) / total) * ((c.FP + c.TN) / total)
	chance := pYes + pNo
	if chance >= 1 {
		return 0
	}
	return (observed - chance) / (1 - chance)
}

// Eval computes metric m on c.
func (m Metric) Eval(c Confusion) float64 {
	switch m {
	case MetricF1:
		return c.F1()
	case MetricCohensKappa:
		return c.CohensKappa()
	default:
		return c.BalancedAccuracy()
	}
}

// Scorer finds the threshold maximising its metric.
type Scorer struct {
	Metric Metric
}

// NewScorer validates the metric name and returns a Scorer.
func NewScorer(metric string) (*Scorer, error) {
	m, err := ParseMetric(metric)
	if err != nil {
		return nil, err
	}
	return &Scorer{Metric: m}, nil
}

type cell struct {
	sim float64
	pos bool
}

// Result is the outcome of a threshold search.
type Result struct {
	Score     float64
	Threshold float64
	Confusion Confusion
}

// Score returns the best value of the metric over all thresholds. sims and
// labels must have the same shape; NaN similarities are skipped.
func (s *Scorer) Score(sims [][]float64, labels [][]bool) (float64, error) {
	res, err := s.Search(sims, labels)
	if err != nil {
		return 0, err
	}
	return res.Score, nil
}

// Search runs the threshold search and reports the chosen threshold.
//
// The metric only changes where the threshold crosses an observed similarity,
// so the candidates are the mean similarity, the midpoints between consecutive
// distinct values and both bounds. One pass over the sorted cells evaluates
// them all. A cell is predicted positive when sim > threshold.
func (s *Scorer) Search(sims [][]float64, labels [][]bool) (Result, error) {
	cells, err := flatten(sims, labels)
	if err != nil {
		return Result{}, err
	}
	if len(cells) == 0 {
		return Result{}, errors.New("no scorable cells")
	}

	slices.SortFunc(cells, func(a, b cell) int {
		switch {
		case a.sim < b.sim:
			return -1
		case a.sim > b.sim:
			return 1
		default:
			return 0
		}
	})

	var numPos, numNeg float64
	values := make([]float64, len(cells))
	for i, c := range cells {
		values[i] = c.sim
		if c.pos {
			numPos++
		} else {
			numNeg++
		}
	}

	candidates := thresholdCandidates(values)

	// Walk candidates in ascending order. idx counts the cells at or below
	// the current threshold; those are predicted negative.
	best := Result{Score: math.Inf(-1)}
	idx := 0
	var belowPos, belowNeg float64
	for _, thr := range candidates {
		for idx < len(cells) && cells[idx].sim <= thr {
			if cells[idx].pos {
				belowPos++
			} else {
				belowNeg++
			}
			idx++
		}
		conf := Confusion{
			TP: numPos - belowPos,
			FN: belowPos,
			FP: numNeg - belowNeg,
			TN: belowNeg,
		}
		v := s.Metric.Eval(conf)
		if v > best.Score {
			best = Result{Score: v, Threshold: thr, Confusion: conf}
		}
	}
	return best, nil
}

func thresholdCandidates(sorted []float64) []float64 {
	clamp := func(v float64) float64 {
		return math.Max(MinThreshold, math.Min(MaxThreshold, v))
	}
	out := []float64{MinThreshold, MaxThreshold, clamp(stat.Mean(sorted, nil))}
	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1] {
			out = append(out, clamp((sorted[i]+sorted[i-1])/2))
		}
	}
	// values below the lower bound are always predicted positive
	out = append(out, clamp(sorted[0]-Epsilon), clamp(sorted[len(sorted)-1]))
	slices.Sort(out)
	return slices.Compact(out)
}

func flatten(sims [][]float64, labels [][]bool) ([]cell, error) {
	if len(sims) != len(labels) {
		return nil, fmt.Errorf("shape mismatch: %d similarity rows, %d label rows", len(sims), len(labels))
	}
	var cells []cell
	for i := range sims {
		if len(sims[i]) != len(labels[i]) {
			return nil, fmt.Errorf("shape mismatch in row %d: %d similarities, %d labels", i, len(sims[i]), len(labels[i]))
		}
		for j, v := range sims[i] {
			if math.IsNaN(v) {
				continue
			}
			cells = append(cells, cell{sim: v, pos: labels[i][j]})
		}
	}
	return cells, nil
}

// PairAccuracy scores rows laid out as numRelata relata followed by numLures
// lures. Every relatum/lure pair is a two-alternative question answered
// correctly when the relatum is more similar.
func PairAccuracy(sims [][]float64, numRelata, numLures int) (float64, error) {
	if numRelata < 1 || numLures < 1 {
		return 0, fmt.Errorf("pair accuracy needs at least one relatum and one lure, got %d and %d", numRelata, numLures)
	}
	var correct, total int
	for i, row := range sims {
		if len(row) < numRelata+numLures {
			return 0, fmt.Errorf("row %d has %d columns, need %d", i, len(row), numRelata+numLures)
		}
		for r := range numRelata {
			for l := range numLures {
				if math.IsNaN(row[r]) || math.IsNaN(row[numRelata+l]) {
					continue
				}
				if row[r] > row[numRelata+l] {
					correct++
				}
				total++
			}
		}
	}
	if total == 0 {
		return 0, errors.New("no scorable pairs")
	}
	return float64(correct) / float64(total), nil
}
