package evaluation

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/phueb/twoprocess/internal/dataset"
)

// Downsample draws min(R, MaxEvalRows) rows without replacement (all rows
// when the task does not cap them) and keeps the first MaxEvalCols
// candidates of each. ColWords is the sorted set of kept candidates. The
// draw is seeded with Config.Seed unless Config.Resample is set.
func (h *Harness) Downsample(probes []string, candidates [][]string) (*EvalData, error) {
	if len(probes) != len(candidates) {
		return nil, fmt.Errorf("downsample: %d probes but %d candidate rows", len(probes), len(candidates))
	}
	n := len(probes)
	if h.task.CapsRows() && h.cfg.MaxEvalRows > 0 {
		n = min(n, h.cfg.MaxEvalRows)
	}

	var rng *rand.Rand
	if h.cfg.Resample {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	} else {
		rng = rand.New(rand.NewPCG(h.cfg.Seed, h.cfg.Seed))
	}

	data := &EvalData{
		RowWords:   make([]string, 0, n),
		Candidates: make([][]string, 0, n),
	}
	colSet := map[string]struct{}{}
	for _, i := range rng.Perm(len(probes))[:n] {
		row := candidates[i]
		if h.cfg.MaxEvalCols > 0 && len(row) > h.cfg.MaxEvalCols {
			row = row[:h.cfg.MaxEvalCols]
		}
		data.RowWords = append(data.RowWords, probes[i])
		data.Candidates = append(data.Candidates, slices.Clone(row))
		for _, w := range row {
			colSet[w] = struct{}{}
		}
	}
	data.ColWords = make([]string, 0, len(colSet))
	for w := range colSet {
		data.ColWords = append(data.ColWords, w)
	}
	slices.Sort(data.ColWords)
	return data, nil
}

// CalcPosProb is the fraction of candidate cells whose word is a relatum of
// the row's probe.
func CalcPosProb(data *EvalData, rel *dataset.Relations) float64 {
	var pos, total int
	for i, row := range data.Candidates {
		for _, c := range row {
			if rel.IsRelated(data.RowWords[i], c) {
				pos++
			}
			total++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(pos) / float64(total)
}
