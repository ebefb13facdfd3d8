package embeddings

import (
	"bufio"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/phueb/twoprocess/internal/dataset"
)

// Embedder kinds.
const (
	KindText   = "text"
	KindRandom = "random"
)

// Random control distributions.
const (
	RandomNormal  = "normal"
	RandomUniform = "uniform"
)

// Precision is the number of decimals written by Save.
const Precision = 5

// FileName is the name of a saved vectors file.
const FileName = "embeddings.txt"

// Spec selects and parameterises an embedder.
type Spec struct {
	Kind       string `yaml:"kind" json:"kind"`
	Path       string `yaml:"path,omitempty" json:"path,omitempty"`
	RandomType string `yaml:"random_type,omitempty" json:"random_type,omitempty"`
	EmbedSize  int    `yaml:"embed_size,omitempty" json:"embed_size,omitempty"`
	Seed       uint64 `yaml:"seed,omitempty" json:"seed,omitempty"`
}

// Name identifies the embedder in artifact paths and cache keys.
func (s Spec) Name() string {
	switch s.Kind {
	case KindRandom:
		return "random_" + s.RandomType
	default:
		base := filepath.Base(s.Path)
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
}

// Validate rejects unknown kinds before any work is dispatched.
func (s Spec) Validate() error {
	switch s.Kind {
	case KindText:
		if s.Path == "" {
			return fmt.Errorf("%w: text embedder needs a path", ErrUnknownEmbedder)
		}
	case KindRandom:
		if s.RandomType != RandomNormal && s.RandomType != RandomUniform {
			return fmt.Errorf("%w: random_type %q (want normal or uniform)", ErrUnknownEmbedder, s.RandomType)
		}
		if s.EmbedSize < 1 {
			return fmt.Errorf("random embedder needs embed_size >= 1, got %d", s.EmbedSize)
		}
	default:
		return fmt.Errorf("%w %q", ErrUnknownEmbedder, s.Kind)
	}
	return nil
}

// Build produces embeddings for vocab. Text vectors are restricted to vocab
// when vocab is non-empty.
func (s Spec) Build(vocab []string) (*Embeddings, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	switch s.Kind {
	case KindRandom:
		return NewRandom(vocab, s.EmbedSize, s.RandomType, s.Seed)
	default:
		emb, err := Load(s.Path)
		if err != nil {
			return nil, err
		}
		if len(vocab) == 0 {
			return emb, nil
		}
		return emb.Restrict(vocab)
	}
}

// NewRandom is the random control embedder: every word gets an independent
// draw from N(0, 1) or U(-1, 1).
func NewRandom(vocab []string, embedSize int, randomType string, seed uint64) (*Embeddings, error) {
	var draw func(r *rand.Rand) float64
	switch randomType {
	case RandomNormal:
		draw = func(r *rand.Rand) float64 { return r.NormFloat64() }
	case RandomUniform:
		draw = func(r *rand.Rand) float64 { return r.Float64()*2 - 1 }
	default:
		return nil, fmt.Errorf("%w: random_type %q", ErrUnknownEmbedder, randomType)
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	w2e := make(map[string][]float64, len(vocab))
	for _, w := range vocab {
		v := make([]float64, embedSize)
		for i := range v {
			v[i] = draw(rng)
		}
		w2e[w] = v
	}
	return New(w2e)
}

// Restrict keeps only the words of vocab that have vectors.
func (e *Embeddings) Restrict(vocab []string) (*Embeddings, error) {
	w2e := make(map[string][]float64, len(vocab))
	for _, w := range vocab {
		if v, ok := e.Vector(w); ok {
			w2e[w] = v
		}
	}
	if len(w2e) == 0 {
		return nil, fmt.Errorf("embeddings: none of %d vocab words has a vector", len(vocab))
	}
	out, err := New(w2e)
	if err != nil {
		return nil, err
	}
	out.Location = e.Location
	return out, nil
}

// Load reads a "word v1 v2 ..." vectors file. Location is set to the file's
// directory.
func Load(path string) (*Embeddings, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: embeddings file %s does not exist", dataset.ErrMissingPrerequisite, path)
		}
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	w2e := map[string][]float64{}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("%s line %d: word without vector", path, line)
		}
		v := make([]float64, len(fields)-1)
		for i, s := range fields[1:] {
			v[i], err = strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: %w", path, line, err)
			}
		}
		w2e[fields[0]] = v
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	emb, err := New(w2e)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	emb.Location = filepath.Dir(path)
	return emb, nil
}

// Save writes vectors in sorted word order, rounded to Precision decimals.
func (e *Embeddings) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for i, word := range e.words {
		w.WriteString(word) //nolint:errcheck
		for _, v := range e.mat.RawRowView(i) {
			w.WriteByte(' ') //nolint:errcheck
			w.WriteString(strconv.FormatFloat(v, 'f', Precision, 64)) //nolint:errcheck
		}
		w.WriteByte('\n') //nolint:errcheck
	}
	if err := w.Flush(); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return f.Close()
}
