// Package config loads experiment.yaml files: which embedder to evaluate, on
// which task, with which architecture and parameter grid.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/phueb/twoprocess/internal/dataset"
	"github.com/phueb/twoprocess/internal/embeddings"
	"github.com/phueb/twoprocess/internal/evaluation"
	"github.com/phueb/twoprocess/internal/params"
	"github.com/phueb/twoprocess/internal/scoring"
	"github.com/shirou/gopsutil/v3/cpu"
	"gopkg.in/yaml.v3"
)

// Default values for experiment configuration. New() is the only place that
// should reference them.
const (
	DefaultFileName = "experiment.yaml"

	DefaultTasksDir   = "tasks/"
	DefaultCorporaDir = "corpora/"
	DefaultRunsDir    = "runs/"
	DefaultCacheDir   = ".twoprocess-cache"

	DefaultCorpusName = "childes-20191206"
	DefaultNumVocab   = 4096

	DefaultEmbedderKind = embeddings.KindRandom
	DefaultRandomType   = embeddings.RandomNormal
	DefaultEmbedSize    = 30

	DefaultEvaluator    = evaluation.TaskMatching
	DefaultDataName1    = "nouns"
	DefaultDataName2    = "cohyponyms"
	DefaultNumRelata    = 1
	DefaultNumLures     = 4
	DefaultArchitecture = "comparator"

	DefaultNumFolds    = 4
	DefaultNumEvals    = 10
	DefaultMetric      = string(scoring.MetricBalAcc)
	DefaultMaxEvalRows = 600
	DefaultMaxEvalCols = 600
	DefaultSeed        = 42

	// MaxDefaultWorkers caps the worker count derived from the CPU count.
	MaxDefaultWorkers = 4
)

// Environment variables that override the configured directories.
const (
	EnvTasksDir   = "TASKS_DIR"
	EnvCorporaDir = "CORPORA_DIR"
	EnvRunsDir    = "RUNS_DIR"
)

// CorpusConfig names the corpus the embeddings were derived from.
type CorpusConfig struct {
	Name     string `yaml:"name,omitempty"`
	NumVocab int    `yaml:"num_vocab,omitempty"`
}

// PathsConfig holds the data and output directories.
type PathsConfig struct {
	Tasks   string `yaml:"tasks,omitempty"`
	Corpora string `yaml:"corpora,omitempty"`
	Runs    string `yaml:"runs,omitempty"`
	Cache   string `yaml:"cache,omitempty"`
}

// TaskConfig selects the evaluator and the task data.
type TaskConfig struct {
	Evaluator string `yaml:"evaluator,omitempty"`
	DataName1 string `yaml:"data_name1,omitempty"`
	DataName2 string `yaml:"data_name2,omitempty"`
	Suffix    string `yaml:"suffix,omitempty"`
	// Path overrides the task file derived from the data names.
	Path      string `yaml:"path,omitempty"`
	NumRelata int    `yaml:"num_relata,omitempty"`
	NumLures  int    `yaml:"num_lures,omitempty"`
}

// DataName joins the data names and the suffix, e.g. "nouns_cohyponyms".
func (t TaskConfig) DataName() string {
	name := t.DataName1
	if t.DataName2 != "" {
		name += "_" + t.DataName2
	}
	return name + t.Suffix
}

// ArchitectureConfig names the expert architecture and its parameter grid.
type ArchitectureConfig struct {
	Name   string       `yaml:"name,omitempty"`
	Params params.Group `yaml:"params,omitempty"`
}

// EvalConfig holds the harness settings.
type EvalConfig struct {
	NumFolds        int    `yaml:"num_folds,omitempty"`
	Workers         int    `yaml:"workers,omitempty"`
	NumEvals        int    `yaml:"num_evals,omitempty"`
	Metric          string `yaml:"metric,omitempty"`
	MaxEvalRows     int    `yaml:"max_eval_rows,omitempty"`
	MaxEvalCols     int    `yaml:"max_eval_cols,omitempty"`
	Resample        *bool  `yaml:"resample,omitempty"`
	Seed            uint64 `yaml:"seed,omitempty"`
	Debug           *bool  `yaml:"debug,omitempty"`
	Verbose         *bool  `yaml:"verbose,omitempty"`
	ShuffledControl *bool  `yaml:"shuffled_control,omitempty"`
	SaveScores      *bool  `yaml:"save_scores,omitempty"`
	Compress        *bool  `yaml:"compress,omitempty"`
	Cache           *bool  `yaml:"cache,omitempty"`
}

// RemoteConfig points at an Azure Blob container mirroring the runs dir.
// Empty AccountURL disables the mirror.
type RemoteConfig struct {
	AccountURL string `yaml:"account_url,omitempty"`
	Container  string `yaml:"container,omitempty"`
	Prefix     string `yaml:"prefix,omitempty"`
}

// Enabled reports whether a mirror is configured.
func (r RemoteConfig) Enabled() bool { return r.AccountURL != "" }

// Experiment is the top-level configuration loaded from experiment.yaml.
type Experiment struct {
	Name         string             `yaml:"name,omitempty"`
	Corpus       CorpusConfig       `yaml:"corpus,omitempty"`
	Paths        PathsConfig        `yaml:"paths,omitempty"`
	Embedder     embeddings.Spec    `yaml:"embedder,omitempty"`
	Task         TaskConfig         `yaml:"task,omitempty"`
	Architecture ArchitectureConfig `yaml:"architecture,omitempty"`
	EvalParams   params.Group       `yaml:"eval_params,omitempty"`
	Eval         EvalConfig         `yaml:"eval,omitempty"`
	Remote       RemoteConfig       `yaml:"remote,omitempty"`
}

// New returns an Experiment with all defaults populated. Workers is 0 and
// resolved from the CPU count by Workers().
func New() *Experiment {
	return &Experiment{
		Name: "default",
		Corpus: CorpusConfig{
			Name:     DefaultCorpusName,
			NumVocab: DefaultNumVocab,
		},
		Paths: PathsConfig{
			Tasks:   DefaultTasksDir,
			Corpora: DefaultCorporaDir,
			Runs:    DefaultRunsDir,
			Cache:   DefaultCacheDir,
		},
		Embedder: embeddings.Spec{
			Kind:       DefaultEmbedderKind,
			RandomType: DefaultRandomType,
			EmbedSize:  DefaultEmbedSize,
		},
		Task: TaskConfig{
			Evaluator: DefaultEvaluator,
			DataName1: DefaultDataName1,
			DataName2: DefaultDataName2,
			NumRelata: DefaultNumRelata,
			NumLures:  DefaultNumLures,
		},
		Architecture: ArchitectureConfig{
			Name:   DefaultArchitecture,
			Params: params.Group{},
		},
		EvalParams: params.Group{},
		Eval: EvalConfig{
			NumFolds:        DefaultNumFolds,
			NumEvals:        DefaultNumEvals,
			Metric:          DefaultMetric,
			MaxEvalRows:     DefaultMaxEvalRows,
			MaxEvalCols:     DefaultMaxEvalCols,
			Resample:        boolPtr(false),
			Seed:            DefaultSeed,
			Debug:           boolPtr(false),
			Verbose:         boolPtr(false),
			ShuffledControl: boolPtr(false),
			SaveScores:      boolPtr(true),
			Compress:        boolPtr(false),
			Cache:           boolPtr(true),
		},
	}
}

// Load reads the experiment file at path, merges it onto the defaults and
// applies the directory environment overrides.
func Load(path string) (*Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: experiment file %s", dataset.ErrMissingPrerequisite, path)
		}
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Parse merges raw YAML onto the defaults.
func Parse(data []byte) (*Experiment, error) {
	var fileCfg Experiment
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, err
	}
	cfg := New()
	mergeConfig(cfg, &fileCfg)
	cfg.applyEnv(os.LookupEnv)
	return cfg, nil
}

// Save writes the experiment as YAML.
func (e *Experiment) Save(path string) error {
	data, err := yaml.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling experiment: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func (e *Experiment) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvTasksDir); ok && v != "" {
		e.Paths.Tasks = v
	}
	if v, ok := lookup(EnvCorporaDir); ok && v != "" {
		e.Paths.Corpora = v
	}
	if v, ok := lookup(EnvRunsDir); ok && v != "" {
		e.Paths.Runs = v
	}
}

// Validate checks ranges and names that can be checked without the
// architecture registry.
func (e *Experiment) Validate() error {
	var errs []error
	if e.Corpus.Name == "" {
		errs = append(errs, errors.New("corpus.name is required"))
	}
	if e.Corpus.NumVocab < 1 {
		errs = append(errs, fmt.Errorf("corpus.num_vocab must be >= 1, got %d", e.Corpus.NumVocab))
	}
	if err := e.Embedder.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("embedder: %w", err))
	}
	if e.Task.DataName1 == "" && e.Task.Path == "" {
		errs = append(errs, errors.New("task needs data_name1 or path"))
	}
	if e.Task.Evaluator == evaluation.TaskIdentification && (e.Task.NumRelata < 1 || e.Task.NumLures < 1) {
		errs = append(errs, errors.New("identification needs num_relata and num_lures >= 1"))
	}
	if e.Task.Evaluator == evaluation.TaskIdentification && e.Eval.MaxEvalCols < e.Task.NumRelata+e.Task.NumLures {
		errs = append(errs, fmt.Errorf("eval.max_eval_cols (%d) must be >= task.num_relata + task.num_lures (%d) for identification",
			e.Eval.MaxEvalCols, e.Task.NumRelata+e.Task.NumLures))
	}
	if e.Architecture.Name == "" {
		errs = append(errs, errors.New("architecture.name is required"))
	}
	if _, err := scoring.ParseMetric(e.Eval.Metric); err != nil {
		errs = append(errs, fmt.Errorf("eval.metric: %w", err))
	}
	if e.Eval.NumFolds < 1 {
		errs = append(errs, fmt.Errorf("eval.num_folds must be >= 1, got %d", e.Eval.NumFolds))
	}
	if e.Eval.NumEvals < 1 {
		errs = append(errs, fmt.Errorf("eval.num_evals must be >= 1, got %d", e.Eval.NumEvals))
	}
	if e.Eval.Workers < 0 {
		errs = append(errs, fmt.Errorf("eval.workers must be >= 0, got %d", e.Eval.Workers))
	}
	if e.Eval.MaxEvalRows < 1 || e.Eval.MaxEvalCols < 1 {
		errs = append(errs, errors.New("eval.max_eval_rows and eval.max_eval_cols must be >= 1"))
	}
	if e.Remote.Enabled() && e.Remote.Container == "" {
		errs = append(errs, errors.New("remote.container is required with remote.account_url"))
	}
	return errors.Join(errs...)
}

// Workers returns eval.workers, or the physical core count capped at
// MaxDefaultWorkers when it is 0.
func (e *Experiment) Workers() int {
	if e.Eval.Workers > 0 {
		return e.Eval.Workers
	}
	n, err := cpu.Counts(false)
	if err != nil || n < 1 {
		return 1
	}
	return min(n, MaxDefaultWorkers)
}

// EvaluationConfig converts the eval section to the harness configuration.
func (e *Experiment) EvaluationConfig() evaluation.Config {
	return evaluation.Config{
		NumFolds:    e.Eval.NumFolds,
		NumWorkers:  e.Workers(),
		NumEvals:    e.Eval.NumEvals,
		Metric:      e.Eval.Metric,
		MaxEvalRows: e.Eval.MaxEvalRows,
		MaxEvalCols: e.Eval.MaxEvalCols,
		Resample:    isTrue(e.Eval.Resample),
		Seed:        e.Eval.Seed,
		Debug:       isTrue(e.Eval.Debug),
	}
}

// Metadata returns the corpus values attached to every trial.
func (e *Experiment) Metadata() params.Metadata {
	return params.Metadata{CorpusName: e.Corpus.Name, NumVocab: e.Corpus.NumVocab}
}

// TaskPath returns the task file, either explicit or derived from the data
// names under the tasks dir.
func (e *Experiment) TaskPath() string {
	if e.Task.Path != "" {
		return e.Task.Path
	}
	return dataset.TaskPath(e.Paths.Tasks, e.Task.DataName1, e.Task.DataName2, e.Corpus.Name, e.Corpus.NumVocab)
}

// VocabPath returns the corpus vocabulary file.
func (e *Experiment) VocabPath() string {
	return dataset.VocabPath(e.Paths.Corpora, e.Corpus.Name, e.Corpus.NumVocab)
}

// FreqPath is the corpus word-frequency file.
func (e *Experiment) FreqPath() string {
	return dataset.FreqPath(e.Paths.Corpora, e.Corpus.Name)
}

// RunDir returns <runs>/<name>, the root of this experiment's outputs.
func (e *Experiment) RunDir() string {
	return filepath.Join(e.Paths.Runs, sanitize(e.Name))
}

func (e *Experiment) Debug() bool           { return isTrue(e.Eval.Debug) }
func (e *Experiment) Verbose() bool         { return isTrue(e.Eval.Verbose) }
func (e *Experiment) ShuffledControl() bool { return isTrue(e.Eval.ShuffledControl) }
func (e *Experiment) SaveScores() bool      { return isTrue(e.Eval.SaveScores) }
func (e *Experiment) Compress() bool        { return isTrue(e.Eval.Compress) }
func (e *Experiment) CacheEnabled() bool    { return isTrue(e.Eval.Cache) }

func sanitize(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "default"
	}
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ' ' {
			return '_'
		}
		return r
	}, name)
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *Experiment) {
	if src.Name != "" {
		dst.Name = src.Name
	}

	// Corpus
	if src.Corpus.Name != "" {
		dst.Corpus.Name = src.Corpus.Name
	}
	if src.Corpus.NumVocab != 0 {
		dst.Corpus.NumVocab = src.Corpus.NumVocab
	}

	// Paths
	if src.Paths.Tasks != "" {
		dst.Paths.Tasks = src.Paths.Tasks
	}
	if src.Paths.Corpora != "" {
		dst.Paths.Corpora = src.Paths.Corpora
	}
	if src.Paths.Runs != "" {
		dst.Paths.Runs = src.Paths.Runs
	}
	if src.Paths.Cache != "" {
		dst.Paths.Cache = src.Paths.Cache
	}

	// Embedder: a text embedder replaces the random defaults wholesale.
	if src.Embedder.Kind != "" && src.Embedder.Kind != dst.Embedder.Kind {
		dst.Embedder = embeddings.Spec{Kind: src.Embedder.Kind}
	}
	if src.Embedder.Path != "" {
		dst.Embedder.Path = src.Embedder.Path
	}
	if src.Embedder.RandomType != "" {
		dst.Embedder.RandomType = src.Embedder.RandomType
	}
	if src.Embedder.EmbedSize != 0 {
		dst.Embedder.EmbedSize = src.Embedder.EmbedSize
	}
	if src.Embedder.Seed != 0 {
		dst.Embedder.Seed = src.Embedder.Seed
	}

	// Task
	if src.Task.Evaluator != "" {
		dst.Task.Evaluator = src.Task.Evaluator
	}
	if src.Task.DataName1 != "" {
		dst.Task.DataName1 = src.Task.DataName1
	}
	if src.Task.DataName2 != "" {
		dst.Task.DataName2 = src.Task.DataName2
	}
	if src.Task.Suffix != "" {
		dst.Task.Suffix = src.Task.Suffix
	}
	if src.Task.Path != "" {
		dst.Task.Path = src.Task.Path
	}
	if src.Task.NumRelata != 0 {
		dst.Task.NumRelata = src.Task.NumRelata
	}
	if src.Task.NumLures != 0 {
		dst.Task.NumLures = src.Task.NumLures
	}

	// Architecture
	if src.Architecture.Name != "" {
		dst.Architecture.Name = src.Architecture.Name
	}
	for k, v := range src.Architecture.Params {
		dst.Architecture.Params[k] = v
	}
	for k, v := range src.EvalParams {
		dst.EvalParams[k] = v
	}

	// Eval
	if src.Eval.NumFolds != 0 {
		dst.Eval.NumFolds = src.Eval.NumFolds
	}
	if src.Eval.Workers != 0 {
		dst.Eval.Workers = src.Eval.Workers
	}
	if src.Eval.NumEvals != 0 {
		dst.Eval.NumEvals = src.Eval.NumEvals
	}
	if src.Eval.Metric != "" {
		dst.Eval.Metric = src.Eval.Metric
	}
	if src.Eval.MaxEvalRows != 0 {
		dst.Eval.MaxEvalRows = src.Eval.MaxEvalRows
	}
	if src.Eval.MaxEvalCols != 0 {
		dst.Eval.MaxEvalCols = src.Eval.MaxEvalCols
	}
	if src.Eval.Resample != nil {
		dst.Eval.Resample = src.Eval.Resample
	}
	if src.Eval.Seed != 0 {
		dst.Eval.Seed = src.Eval.Seed
	}
	if src.Eval.Debug != nil {
		dst.Eval.Debug = src.Eval.Debug
	}
	if src.Eval.Verbose != nil {
		dst.Eval.Verbose = src.Eval.Verbose
	}
	if src.Eval.ShuffledControl != nil {
		dst.Eval.ShuffledControl = src.Eval.ShuffledControl
	}
	if src.Eval.SaveScores != nil {
		dst.Eval.SaveScores = src.Eval.SaveScores
	}
	if src.Eval.Compress != nil {
		dst.Eval.Compress = src.Eval.Compress
	}
	if src.Eval.Cache != nil {
		dst.Eval.Cache = src.Eval.Cache
	}

	// Remote
	if src.Remote.AccountURL != "" {
		dst.Remote.AccountURL = src.Remote.AccountURL
	}
	if src.Remote.Container != "" {
		dst.Remote.Container = src.Remote.Container
	}
	if src.Remote.Prefix != "" {
		dst.Remote.Prefix = src.Remote.Prefix
	}
}

func isTrue(b *bool) bool { return b != nil && *b }

func boolPtr(b bool) *bool { return &b }
