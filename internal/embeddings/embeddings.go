// Package embeddings holds word vectors and the embedders that produce them.
package embeddings

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrUnknownEmbedder is returned when an embedder kind or random type is not
// recognised.
var ErrUnknownEmbedder = errors.New("unknown embedder")

// Embeddings is a word→vector mapping with sorted vocabulary. Vectors share
// one dimensionality.
type Embeddings struct {
	// Location is the directory transformed vectors are persisted under.
	Location string

	words []string
	index map[string]int
	mat   *mat.Dense
}

// New builds embeddings from a word→vector map.
func New(w2e map[string][]float64) (*Embeddings, error) {
	if len(w2e) == 0 {
		return nil, errors.New("embeddings: no vectors")
	}
	words := make([]string, 0, len(w2e))
	for w := range w2e {
		words = append(words, w)
	}
	slices.Sort(words)

	dim := len(w2e[words[0]])
	if dim == 0 {
		return nil, errors.New("embeddings: zero-length vector")
	}
	data := make([]float64, 0, len(words)*dim)
	for _, w := range words {
		v := w2e[w]
		if len(v) != dim {
			return nil, fmt.Errorf("embeddings: %q has %d dimensions, expected %d", w, len(v), dim)
		}
		data = append(data, v...)
	}
	return fromDense(words, mat.NewDense(len(words), dim, data)), nil
}

func fromDense(words []string, m *mat.Dense) *Embeddings {
	index := make(map[string]int, len(words))
	for i, w := range words {
		index[w] = i
	}
	return &Embeddings{words: words, index: index, mat: m}
}

// Words returns the sorted vocabulary.
func (e *Embeddings) Words() []string {
	return slices.Clone(e.words)
}

// Len returns the vocabulary size.
func (e *Embeddings) Len() int {
	return len(e.words)
}

// Dim returns the vector dimensionality.
func (e *Embeddings) Dim() int {
	_, c := e.mat.Dims()
	return c
}

// Has reports whether w has a vector.
func (e *Embeddings) Has(w string) bool {
	_, ok := e.index[w]
	return ok
}

// Vector returns a copy of the vector for w.
func (e *Embeddings) Vector(w string) ([]float64, bool) {
	i, ok := e.index[w]
	if !ok {
		return nil, false
	}
	return mat.Row(nil, i, e.mat), true
}

// VocabSet returns the vocabulary as a set.
func (e *Embeddings) VocabSet() map[string]struct{} {
	out := make(map[string]struct{}, len(e.words))
	for _, w := range e.words {
		out[w] = struct{}{}
	}
	return out
}

// Clone returns a deep copy. Each trial worker owns one.
func (e *Embeddings) Clone() *Embeddings {
	m := mat.DenseCopyOf(e.mat)
	out := fromDense(slices.Clone(e.words), m)
	out.Location = e.Location
	return out
}

// Standardize rescales every dimension to zero mean and unit variance across
// the vocabulary. Constant dimensions are only centred.
func (e *Embeddings) Standardize() {
	r, c := e.mat.Dims()
	col := make([]float64, r)
	for j := range c {
		mat.Col(col, j, e.mat)
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		floats.AddConst(-mean, col)
		floats.Scale(1/std, col)
		e.mat.SetCol(j, col)
	}
}

// Matrix returns the rows for words in order. Unknown words are an error.
func (e *Embeddings) Matrix(words []string) (*mat.Dense, error) {
	out := mat.NewDense(len(words), e.Dim(), nil)
	for i, w := range words {
		j, ok := e.index[w]
		if !ok {
			return nil, fmt.Errorf("embeddings: no vector for %q", w)
		}
		out.SetRow(i, e.mat.RawRowView(j))
	}
	return out, nil
}

// Sims returns cosine similarities between rowWords and colWords.
func (e *Embeddings) Sims(rowWords, colWords []string) (*mat.Dense, error) {
	a, err := e.Matrix(rowWords)
	if err != nil {
		return nil, err
	}
	b, err := e.Matrix(colWords)
	if err != nil {
		return nil, err
	}
	NormalizeRows(a)
	NormalizeRows(b)
	var out mat.Dense
	out.Mul(a, b.T())
	return &out, nil
}

// NormalizeRows scales every row of m to unit L2 norm. Zero rows are left
// unchanged.
func NormalizeRows(m *mat.Dense) {
	r, _ := m.Dims()
	for i := range r {
		row := m.RawRowView(i)
		if n := floats.Norm(row, 2); n > 0 {
			floats.Scale(1/n, row)
		}
	}
}
