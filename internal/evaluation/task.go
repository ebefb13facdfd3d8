package evaluation

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/phueb/twoprocess/internal/dataset"
	"github.com/phueb/twoprocess/internal/scoring"
)

// Task names.
const (
	TaskMatching       = "matching"
	TaskIdentification = "identification"
)

// Task builds the full candidate matrix for a relation set and scores
// checkpoint similarities.
type Task interface {
	Name() string

	// MakeAllEvalData returns one row per eligible probe and that probe's
	// candidate words, before downsampling.
	MakeAllEvalData(rel *dataset.Relations, vocab []string) (probes []string, candidates [][]string, err error)

	// CapsRows reports whether downsampling limits the number of rows.
	CapsRows() bool

	Score(s *scoring.Scorer, sims [][]float64, labels [][]bool) (float64, error)
}

// Matching pairs every probe with every relatum in the task. Cells are
// positive when the relatum belongs to the probe.
type Matching struct{}

func (Matching) Name() string   { return TaskMatching }
func (Matching) CapsRows() bool { return true }

func (Matching) MakeAllEvalData(rel *dataset.Relations, _ []string) ([]string, [][]string, error) {
	probes := rel.Probes()
	if len(probes) == 0 {
		return nil, nil, errors.New("matching: no probes")
	}
	cols := rel.AllRelata()
	candidates := make([][]string, len(probes))
	for i := range probes {
		candidates[i] = slices.Clone(cols)
	}
	return probes, candidates, nil
}

func (Matching) Score(s *scoring.Scorer, sims [][]float64, labels [][]bool) (float64, error) {
	return s.Score(sims, labels)
}

// Identification lays out every row as NumRelata relata followed by
// NumLures lures and scores two-alternative choices between them.
type Identification struct {
	NumRelata int
	NumLures  int
	Seed      uint64
}

func (Identification) Name() string   { return TaskIdentification }
func (Identification) CapsRows() bool { return false }

// MakeAllEvalData keeps probes with at least NumRelata relata. Lures are
// drawn from the other probes' relata, then from vocab, never from the
// probe's own relata.
func (t Identification) MakeAllEvalData(rel *dataset.Relations, vocab []string) ([]string, [][]string, error) {
	if t.NumRelata < 1 || t.NumLures < 1 {
		return nil, nil, fmt.Errorf("identification needs num_relata and num_lures >= 1, got %d and %d", t.NumRelata, t.NumLures)
	}
	rng := rand.New(rand.NewPCG(t.Seed, t.Seed))
	pool := rel.AllRelata()

	var probes []string
	var candidates [][]string
	for _, p := range rel.Probes() {
		relata := rel.Relata(p)
		if len(relata) < t.NumRelata {
			continue
		}
		rng.Shuffle(len(relata), func(i, j int) { relata[i], relata[j] = relata[j], relata[i] })
		lures := drawLures(rng, p, rel, pool, vocab, t.NumLures)
		if len(lures) < t.NumLures {
			continue
		}
		row := append(relata[:t.NumRelata:t.NumRelata], lures...)
		probes = append(probes, p)
		candidates = append(candidates, row)
	}
	if len(probes) == 0 {
		return nil, nil, fmt.Errorf("identification: no probe has %d relata and %d lures", t.NumRelata, t.NumLures)
	}
	return probes, candidates, nil
}

func drawLures(rng *rand.Rand, probe string, rel *dataset.Relations, pool, vocab []string, n int) []string {
	var lures []string
	taken := map[string]struct{}{}
	for _, src := range [][]string{pool, vocab} {
		for _, i := range rng.Perm(len(src)) {
			if len(lures) == n {
				return lures
			}
			w := src[i]
			if w == probe || rel.IsRelated(probe, w) {
				continue
			}
			if _, dup := taken[w]; dup {
				continue
			}
			taken[w] = struct{}{}
			lures = append(lures, w)
		}
	}
	return lures
}

func (t Identification) Score(_ *scoring.Scorer, sims [][]float64, _ [][]bool) (float64, error) {
	return scoring.PairAccuracy(sims, t.NumRelata, t.NumLures)
}
