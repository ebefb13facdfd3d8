package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/phueb/twoprocess/internal/dataset"
	"github.com/phueb/twoprocess/internal/embeddings"
	"github.com/phueb/twoprocess/internal/evaluation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	cfg := New()
	assert.Equal(t, DefaultTasksDir, cfg.Paths.Tasks)
	assert.Equal(t, embeddings.KindRandom, cfg.Embedder.Kind)
	assert.Equal(t, DefaultNumFolds, cfg.Eval.NumFolds)
	assert.Equal(t, uint64(DefaultSeed), cfg.Eval.Seed)
	assert.True(t, cfg.SaveScores())
	assert.False(t, cfg.Debug())
	assert.NoError(t, cfg.Validate())
}

func TestParse_MergesOntoDefaults(t *testing.T) {
	t.Setenv(EnvTasksDir, "")
	cfg, err := Parse([]byte(`
name: syn-test
corpus:
  name: childes
  num_vocab: 8192
embedder:
  kind: text
  path: /data/glove.txt
task:
  evaluator: identification
  data_name1: nouns
  data_name2: hypernyms
  num_lures: 2
architecture:
  name: comparator
  params:
    num_epochs: [10, 20]
    learning_rate: 0.1
eval:
  num_folds: 2
  debug: true
  resample: false
`))
	require.NoError(t, err)

	assert.Equal(t, "syn-test", cfg.Name)
	assert.Equal(t, 8192, cfg.Corpus.NumVocab)
	// switching kind drops the random defaults
	assert.Equal(t, embeddings.Spec{Kind: embeddings.KindText, Path: "/data/glove.txt"}, cfg.Embedder)
	assert.Equal(t, evaluation.TaskIdentification, cfg.Task.Evaluator)
	assert.Equal(t, DefaultNumRelata, cfg.Task.NumRelata)
	assert.Equal(t, 2, cfg.Task.NumLures)
	assert.Equal(t, []any{10, 20}, cfg.Architecture.Params["num_epochs"])
	assert.Equal(t, []any{0.1}, cfg.Architecture.Params["learning_rate"])
	assert.Equal(t, 2, cfg.Eval.NumFolds)
	assert.Equal(t, DefaultNumEvals, cfg.Eval.NumEvals)
	assert.True(t, cfg.Debug())
	assert.False(t, cfg.EvaluationConfig().Resample)
	assert.Equal(t, "nouns_hypernyms", cfg.Task.DataName())
	require.NoError(t, cfg.Validate())
}

func TestParse_EnvOverridesPaths(t *testing.T) {
	t.Setenv(EnvTasksDir, "/env/tasks")
	t.Setenv(EnvCorporaDir, "/env/corpora")
	t.Setenv(EnvRunsDir, "")

	cfg, err := Parse([]byte("paths:\n  tasks: file-tasks\n  runs: file-runs\n"))
	require.NoError(t, err)
	assert.Equal(t, "/env/tasks", cfg.Paths.Tasks)
	assert.Equal(t, "/env/corpora", cfg.Paths.Corpora)
	assert.Equal(t, "file-runs", cfg.Paths.Runs)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, dataset.ErrMissingPrerequisite)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("eval: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	t.Setenv(EnvTasksDir, "")
	t.Setenv(EnvCorporaDir, "")
	t.Setenv(EnvRunsDir, "")

	cfg := New()
	cfg.Name = "round-trip"
	cfg.Architecture.Params["num_epochs"] = []any{5, 10}
	cfg.Eval.Workers = 3
	path := filepath.Join(t.TempDir(), "exp", DefaultFileName)
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := New()
	cfg.Corpus.Name = ""
	cfg.Eval.Metric = "accuracy"
	cfg.Eval.NumFolds = 0
	cfg.Embedder.Kind = "word2vec"
	cfg.Remote.AccountURL = "https://acct.blob.core.windows.net"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"corpus.name", "eval.metric", "eval.num_folds", "embedder", "remote.container"} {
		assert.Contains(t, err.Error(), want)
	}
	assert.ErrorIs(t, err, embeddings.ErrUnknownEmbedder)
}

func TestValidate_IdentificationColumnCap(t *testing.T) {
	cfg := New()
	cfg.Task.Evaluator = evaluation.TaskIdentification
	cfg.Task.NumRelata = 1
	cfg.Task.NumLures = 4
	cfg.Eval.MaxEvalCols = 5
	assert.NoError(t, cfg.Validate())

	cfg.Eval.MaxEvalCols = 4
	assert.ErrorContains(t, cfg.Validate(), "eval.max_eval_cols")

	cfg.Task.Evaluator = evaluation.TaskMatching
	assert.NoError(t, cfg.Validate())
}

func TestWorkers(t *testing.T) {
	cfg := New()
	cfg.Eval.Workers = 7
	assert.Equal(t, 7, cfg.Workers())

	cfg.Eval.Workers = 0
	n := cfg.Workers()
	assert.GreaterOrEqual(t, n, 1)
	assert.LessOrEqual(t, n, MaxDefaultWorkers)
	assert.Equal(t, n, cfg.EvaluationConfig().NumWorkers)
}

func TestPaths(t *testing.T) {
	cfg := New()
	cfg.Paths.Tasks = "tasks"
	cfg.Paths.Corpora = "corpora"
	cfg.Paths.Runs = "runs"
	cfg.Corpus.Name = "c"
	cfg.Corpus.NumVocab = 10
	cfg.Name = "my exp"

	assert.Equal(t, filepath.Join("tasks", "nouns", "cohyponyms", "c_10.txt"), cfg.TaskPath())
	assert.Equal(t, filepath.Join("corpora", "c_10_vocab.txt"), cfg.VocabPath())
	assert.Equal(t, filepath.Join("runs", "my_exp"), cfg.RunDir())

	cfg.Task.Path = "/explicit/task.csv"
	assert.Equal(t, "/explicit/task.csv", cfg.TaskPath())
}
