package evaluation

import (
	"fmt"
	"math"

	"github.com/phueb/twoprocess/internal/params"
	"gonum.org/v1/gonum/mat"
)

// EvalData is the downsampled candidate matrix. Row i pairs RowWords[i] with
// every word of Candidates[i]; all candidate rows have the same length.
type EvalData struct {
	RowWords   []string
	ColWords   []string
	Candidates [][]string
}

// Dims returns the candidate matrix shape.
func (d *EvalData) Dims() (rows, cols int) {
	if len(d.Candidates) == 0 {
		return 0, 0
	}
	return len(d.Candidates), len(d.Candidates[0])
}

func (d *EvalData) validate() error {
	if len(d.RowWords) == 0 {
		return fmt.Errorf("evaluation data has no rows")
	}
	if len(d.RowWords) != len(d.Candidates) {
		return fmt.Errorf("evaluation data has %d row words but %d candidate rows", len(d.RowWords), len(d.Candidates))
	}
	_, cols := d.Dims()
	if cols == 0 {
		return fmt.Errorf("evaluation data has no candidate columns")
	}
	for i, row := range d.Candidates {
		if len(row) != cols {
			return fmt.Errorf("candidate row %d (%s) has %d columns, expected %d", i, d.RowWords[i], len(row), cols)
		}
	}
	return nil
}

// ResultsData holds one trial's checkpoint snapshots. EvalSims[k] has the
// candidate matrix shape and starts as NaN; EmbedMats[k] has one row per row
// word and one column per embedding dimension.
type ResultsData struct {
	TrialID   int
	EvalSims  []*mat.Dense
	EmbedMats []*mat.Dense

	// EpochsPerEval converts a checkpoint index to an epoch count. It is set
	// by the architecture in InitResults.
	EpochsPerEval int

	// Extra carries architecture-specific state across folds.
	Extra any
}

// NewResultsData allocates numEvals NaN similarity matrices shaped like data
// and numEvals zero embedding matrices.
func NewResultsData(trialID, numEvals int, data *EvalData, embedSize int) *ResultsData {
	rows, cols := data.Dims()
	rd := &ResultsData{
		TrialID:       trialID,
		EvalSims:      make([]*mat.Dense, numEvals),
		EmbedMats:     make([]*mat.Dense, numEvals),
		EpochsPerEval: 1,
	}
	nan := make([]float64, rows*cols)
	for i := range nan {
		nan[i] = math.NaN()
	}
	for k := range numEvals {
		rd.EvalSims[k] = mat.NewDense(rows, cols, append([]float64(nil), nan...))
		rd.EmbedMats[k] = mat.NewDense(len(data.RowWords), embedSize, nil)
	}
	return rd
}

// Filled reports whether checkpoint k has no NaN cell left.
func (r *ResultsData) Filled(k int) bool {
	for _, v := range r.EvalSims[k].RawMatrix().Data {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}

// Trial is one grid point. Results is written only by the worker running
// the trial.
type Trial struct {
	Params  params.TrialParams
	Row     []any
	Results *ResultsData
}

// ID is the trial's position in the grid.
func (t *Trial) ID() int {
	return t.Params.ID
}
