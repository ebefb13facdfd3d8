package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phueb/twoprocess/internal/config"
	"github.com/phueb/twoprocess/internal/embeddings"
	"github.com/phueb/twoprocess/internal/evaluation"
	"github.com/phueb/twoprocess/internal/params"
	"github.com/phueb/twoprocess/internal/reporting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeExperiment lays out a runnable experiment in a temp dir and returns
// the path of its experiment.yaml.
func writeExperiment(t *testing.T) (string, *config.Experiment) {
	t.Helper()
	t.Setenv(config.EnvTasksDir, "")
	t.Setenv(config.EnvCorporaDir, "")
	t.Setenv(config.EnvRunsDir, "")
	dir := t.TempDir()

	w2e := map[string][]float64{}
	var task strings.Builder
	for k := range 4 {
		probe := fmt.Sprintf("p%d", k)
		v := make([]float64, 4)
		v[k] = 1
		w2e[probe] = v
		task.WriteString(probe)
		for r := range 2 {
			word := fmt.Sprintf("r%d%d", k, r)
			rv := make([]float64, 4)
			rv[k] = 1
			rv[(k+1)%4] = 0.1 * float64(r+1)
			w2e[word] = rv
			task.WriteString(" " + word)
		}
		task.WriteString("\n")
	}
	emb, err := embeddings.New(w2e)
	require.NoError(t, err)

	cfg := config.New()
	cfg.Name = "cli"
	cfg.Paths = config.PathsConfig{
		Tasks:   filepath.Join(dir, "tasks"),
		Corpora: filepath.Join(dir, "corpora"),
		Runs:    filepath.Join(dir, "runs"),
		Cache:   filepath.Join(dir, "cache"),
	}
	cfg.Corpus = config.CorpusConfig{Name: "toy", NumVocab: 12}
	cfg.Embedder = embeddings.Spec{Kind: embeddings.KindText, Path: filepath.Join(dir, "toy.txt")}
	cfg.Task = config.TaskConfig{Evaluator: evaluation.TaskMatching, DataName1: "syn"}
	cfg.Architecture.Params = params.Group{"num_epochs": {4}, "learning_rate": {0.1, 0.2}}
	cfg.Eval.NumFolds = 2
	cfg.Eval.NumEvals = 2
	cfg.Eval.Workers = 2

	require.NoError(t, emb.Save(cfg.Embedder.Path))
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.TaskPath()), 0o755))
	require.NoError(t, os.WriteFile(cfg.TaskPath(), []byte(task.String()), 0o644))
	require.NoError(t, os.MkdirAll(cfg.Paths.Corpora, 0o755))
	require.NoError(t, os.WriteFile(cfg.VocabPath(), []byte(strings.Join(emb.Words(), "\n")+"\n"), 0o644))

	path := filepath.Join(dir, config.DefaultFileName)
	require.NoError(t, cfg.Save(path))
	return path, cfg
}

func TestRunCommand(t *testing.T) {
	path, _ := writeExperiment(t)
	outDir := filepath.Join(t.TempDir(), "scores")

	out, err := executeArgs(t, "run", path, "--no-cache", "--interpret", "-o", outDir)
	require.NoError(t, err, out)

	assert.Contains(t, out, "Running cli")
	assert.Contains(t, out, "Novice score: 1.000")
	assert.Contains(t, out, "Training expert on 2 trial(s)")
	assert.Contains(t, out, "learning_rate")
	for _, name := range []string{reporting.NoviceScoresFile, reporting.ExpertScoresFile, reporting.OutcomeFile} {
		assert.FileExists(t, filepath.Join(outDir, name))
		assert.Contains(t, out, "Saved "+filepath.Join(outDir, name))
	}
	assert.NoFileExists(t, filepath.Join(outDir, reporting.ControlScoresFile))
}

func TestRunCommand_DefaultOutputAndControl(t *testing.T) {
	path, cfg := writeExperiment(t)

	out, err := executeArgs(t, "run", path, "--shuffled-control", "--quiet")
	require.NoError(t, err, out)
	assert.NotContains(t, out, "Novice score")
	assert.Contains(t, out, "Novice 1.000")

	dir := filepath.Join(cfg.RunDir(), cfg.Embedder.Name(), "comparator", "matching", "syn")
	assert.FileExists(t, filepath.Join(dir, reporting.ExpertScoresFile))
	assert.FileExists(t, filepath.Join(dir, reporting.ControlScoresFile))
}

func TestRunCommand_DebugTrial(t *testing.T) {
	path, _ := writeExperiment(t)

	_, err := executeArgs(t, "run", path, "--debug-trial", "--no-cache")
	assert.ErrorIs(t, err, evaluation.ErrDebugExit)
	assert.Equal(t, ExitInterrupted, exitCode(err))
}

func TestRunCommand_MissingFile(t *testing.T) {
	_, err := executeArgs(t, "run", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitError, exitCode(err))
}

func TestGridCommand(t *testing.T) {
	path, _ := writeExperiment(t)

	out, err := executeArgs(t, "grid", path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Contains(t, lines[0], "trial")
	assert.Contains(t, lines[0], "learning_rate")
	assert.Contains(t, lines[0], "num_epochs")
	assert.Contains(t, out, "2 trial(s)")
}

func TestValidateCommand(t *testing.T) {
	path, cfg := writeExperiment(t)

	out, err := executeArgs(t, "validate", path)
	require.NoError(t, err, out)
	assert.Contains(t, out, "is valid")

	require.NoError(t, os.Remove(cfg.TaskPath()))
	out, err = executeArgs(t, "validate", path)
	assert.ErrorContains(t, err, "is not runnable")
	assert.Contains(t, out, "missing: "+cfg.TaskPath())
}

func TestInitCommand(t *testing.T) {
	t.Setenv(config.EnvTasksDir, "")
	t.Setenv(config.EnvCorporaDir, "")
	t.Setenv(config.EnvRunsDir, "")
	dir := filepath.Join(t.TempDir(), "nouns")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	out, err := executeArgs(t, "init", dir)
	require.NoError(t, err)
	path := filepath.Join(dir, config.DefaultFileName)
	assert.Contains(t, out, "Created "+path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "nouns", cfg.Name)
	assert.NoError(t, cfg.Validate())
	assert.Contains(t, cfg.Architecture.Params, "num_epochs")

	_, err = executeArgs(t, "init", dir)
	assert.ErrorContains(t, err, "already exists")

	_, err = executeArgs(t, "init", dir, "--force")
	assert.NoError(t, err)
}

func TestCacheClearCommand(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "entry.json"), []byte("{}"), 0o644))

	out, err := executeArgs(t, "cache", "clear", "--cache-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Cache cleared: "+dir)
	assert.NoFileExists(t, filepath.Join(dir, "entry.json"))
}
