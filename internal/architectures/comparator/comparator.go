// Package comparator is an expert architecture that learns a diagonal
// bilinear similarity between unit-normalised probe and candidate vectors
// with logistic loss.
//
// For a probe vector p and candidate vector c the logit is
//
//	z = Σ_d w_d·p_d·c_d + b
//
// and the reported similarity is tanh(z/2), which lies in (-1, 1). The
// transformed vector of a probe is p ⊙ sqrt(|w|).
package comparator

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/phueb/twoprocess/internal/embeddings"
	"github.com/phueb/twoprocess/internal/evaluation"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Name is the architecture name used in paths and configuration.
const Name = "comparator"

// Params are the comparator hyperparameters read from a trial.
type Params struct {
	NumEpochs    int     `mapstructure:"num_epochs"`
	LearningRate float64 `mapstructure:"learning_rate"`
	PropNegative float64 `mapstructure:"prop_negative"`
	Seed         uint64  `mapstructure:"seed"`
}

// DefaultParams are used for names absent from the grid.
func DefaultParams() Params {
	return Params{NumEpochs: 100, LearningRate: 0.1, PropNegative: 1.0}
}

// Comparator implements evaluation.Architecture.
type Comparator struct{}

// New returns the comparator architecture.
func New() *Comparator { return &Comparator{} }

func (*Comparator) Name() string { return Name }

func trialParams(trial *evaluation.Trial) (Params, error) {
	p := DefaultParams()
	if err := trial.Params.Decode(&p); err != nil {
		return p, fmt.Errorf("comparator params: %w", err)
	}
	if p.NumEpochs < 1 {
		return p, fmt.Errorf("comparator: num_epochs must be >= 1, got %d", p.NumEpochs)
	}
	if p.LearningRate <= 0 {
		return p, fmt.Errorf("comparator: learning_rate must be > 0, got %g", p.LearningRate)
	}
	if p.PropNegative < 0 || p.PropNegative > 1 {
		return p, fmt.Errorf("comparator: prop_negative must be in [0, 1], got %g", p.PropNegative)
	}
	return p, nil
}

// InitResults spreads the checkpoints evenly over num_epochs.
func (*Comparator) InitResults(h *evaluation.Harness, trial *evaluation.Trial, base *evaluation.ResultsData) (*evaluation.ResultsData, error) {
	p, err := trialParams(trial)
	if err != nil {
		return nil, err
	}
	base.EpochsPerEval = max(1, p.NumEpochs/h.Config().NumEvals)
	base.Extra = p
	return base, nil
}

type pair struct {
	row, col int
	label    float64
}

// Fold is the vectorised data of one held-out fold.
type Fold struct {
	Fold      int
	Train     []pair
	TestRows  []int
	probes    *mat.Dense
	cands     *mat.Dense
	candIndex [][]int
}

// NumTrain returns the number of training pairs.
func (f *Fold) NumTrain() int { return len(f.Train) }

// NumPositive returns the number of positive training pairs.
func (f *Fold) NumPositive() int {
	n := 0
	for _, p := range f.Train {
		if p.label == 1 {
			n++
		}
	}
	return n
}

// SplitAndVectorize holds out rows with index%num_folds == fold. Negative
// training pairs are kept with probability prop_negative. With shuffled set
// the training labels are permuted.
func (*Comparator) SplitAndVectorize(h *evaluation.Harness, trial *evaluation.Trial, emb *embeddings.Embeddings, fold int, shuffled bool) (evaluation.FoldData, error) {
	p, ok := trial.Results.Extra.(Params)
	if !ok {
		return nil, fmt.Errorf("comparator: results not initialised")
	}
	data := h.Data()

	probes, err := emb.Matrix(data.RowWords)
	if err != nil {
		return nil, err
	}
	embeddings.NormalizeRows(probes)
	cands, err := emb.Matrix(data.ColWords)
	if err != nil {
		return nil, err
	}
	embeddings.NormalizeRows(cands)

	colIdx := make(map[string]int, len(data.ColWords))
	for j, w := range data.ColWords {
		colIdx[w] = j
	}
	candIndex := make([][]int, len(data.Candidates))
	for i, row := range data.Candidates {
		candIndex[i] = make([]int, len(row))
		for j, w := range row {
			candIndex[i][j] = colIdx[w]
		}
	}

	rng := foldRand(p.Seed, trial.ID(), fold)
	f := &Fold{Fold: fold, probes: probes, cands: cands, candIndex: candIndex}
	numFolds := h.Config().NumFolds
	for i, probe := range data.RowWords {
		if i%numFolds == fold {
			f.TestRows = append(f.TestRows, i)
			continue
		}
		for j, c := range data.Candidates[i] {
			if h.IsPositive(probe, c) {
				f.Train = append(f.Train, pair{row: i, col: j, label: 1})
			} else if rng.Float64() < p.PropNegative {
				f.Train = append(f.Train, pair{row: i, col: j, label: 0})
			}
		}
	}
	if shuffled {
		rng.Shuffle(len(f.Train), func(a, b int) {
			f.Train[a].label, f.Train[b].label = f.Train[b].label, f.Train[a].label
		})
	}
	return f, nil
}

// Model holds the diagonal weights and bias.
type Model struct {
	W []float64
	B float64
}

// BuildModel starts from the identity comparator (cosine similarity).
func (*Comparator) BuildModel(_ *evaluation.Harness, _ *evaluation.Trial, emb *embeddings.Embeddings) (evaluation.Model, error) {
	w := make([]float64, emb.Dim())
	for i := range w {
		w[i] = 1
	}
	return &Model{W: w}, nil
}

// Logit returns z for the unit vectors p and c.
func (m *Model) Logit(p, c []float64) float64 {
	z := m.B
	for d, w := range m.W {
		z += w * p[d] * c[d]
	}
	return z
}

// Sim maps a logit to (-1, 1).
func Sim(z float64) float64 {
	return math.Tanh(z / 2)
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// TrainFold runs SGD over the training pairs and snapshots the held-out
// rows at every checkpoint, the first before any update.
func (*Comparator) TrainFold(ctx context.Context, h *evaluation.Harness, trial *evaluation.Trial, _ *embeddings.Embeddings, model evaluation.Model, data evaluation.FoldData, fold int) error {
	m, ok := model.(*Model)
	if !ok {
		return fmt.Errorf("comparator: unexpected model %T", model)
	}
	f, ok := data.(*Fold)
	if !ok {
		return fmt.Errorf("comparator: unexpected fold data %T", data)
	}
	p := trial.Results.Extra.(Params)
	res := trial.Results
	numEvals := len(res.EvalSims)
	rng := foldRand(p.Seed^0x5bd1e995, trial.ID(), fold)

	order := make([]int, len(f.Train))
	for i := range order {
		order[i] = i
	}
	grad := make([]float64, len(m.W))
	for epoch := 0; epoch < numEvals*res.EpochsPerEval; epoch++ {
		if epoch%res.EpochsPerEval == 0 {
			snapshot(m, f, res, epoch/res.EpochsPerEval)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rng.Shuffle(len(order), func(a, b int) { order[a], order[b] = order[b], order[a] })
		for _, i := range order {
			pr := f.Train[i]
			pv := f.probes.RawRowView(pr.row)
			cv := f.cands.RawRowView(f.candIndex[pr.row][pr.col])
			g := sigmoid(m.Logit(pv, cv)) - pr.label
			floats.MulTo(grad, pv, cv)
			floats.AddScaled(m.W, -p.LearningRate*g, grad)
			m.B -= p.LearningRate * g
		}
	}
	return nil
}

func snapshot(m *Model, f *Fold, res *evaluation.ResultsData, k int) {
	scale := make([]float64, len(m.W))
	for d, w := range m.W {
		scale[d] = math.Sqrt(math.Abs(w))
	}
	row := make([]float64, len(m.W))
	for _, i := range f.TestRows {
		pv := f.probes.RawRowView(i)
		for j, c := range f.candIndex[i] {
			res.EvalSims[k].Set(i, j, Sim(m.Logit(pv, f.cands.RawRowView(c))))
		}
		floats.MulTo(row, pv, scale)
		res.EmbedMats[k].SetRow(i, row)
	}
}

func foldRand(seed uint64, trialID, fold int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(trialID)<<32|uint64(fold)))
}
