// Package evaluation drives an embedding architecture through a lexical
// relation task: novice scoring of raw similarities, then expert training
// over cross-validation folds for every point of a hyperparameter grid.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/phueb/twoprocess/internal/cache"
	"github.com/phueb/twoprocess/internal/dataset"
	"github.com/phueb/twoprocess/internal/embeddings"
	"github.com/phueb/twoprocess/internal/models"
	"github.com/phueb/twoprocess/internal/params"
	"github.com/phueb/twoprocess/internal/scoring"
	"github.com/phueb/twoprocess/internal/store"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrInterrupted is returned when the context is cancelled while trials
	// are running. No rows are returned with it.
	ErrInterrupted = errors.New("interrupt occurred during parallel training, closed worker pool")

	// ErrDebugExit is returned after a debug run of the first trial. Scores
	// are not returned.
	ErrDebugExit = errors.New("exited debugging mode without saving scores, turn off debug to train all trials")

	// ErrNotPrepared is returned when scoring is attempted before Prepare.
	ErrNotPrepared = errors.New("evaluation data not prepared")
)

// Config holds the evaluation settings threaded through the harness.
type Config struct {
	NumFolds    int
	NumWorkers  int
	NumEvals    int
	Metric      string
	MaxEvalRows int
	MaxEvalCols int
	Resample    bool
	Seed        uint64
	Debug       bool
}

// DefaultConfig mirrors the defaults of the experiment file.
func DefaultConfig() Config {
	return Config{
		NumFolds:    4,
		NumWorkers:  4,
		NumEvals:    10,
		Metric:      string(scoring.MetricBalAcc),
		MaxEvalRows: 600,
		MaxEvalCols: 600,
		Seed:        42,
	}
}

func (c Config) validate() error {
	if c.NumFolds < 1 {
		return fmt.Errorf("num_folds must be >= 1, got %d", c.NumFolds)
	}
	if c.NumWorkers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.NumWorkers)
	}
	if c.NumEvals < 1 {
		return fmt.Errorf("num_evals must be >= 1, got %d", c.NumEvals)
	}
	return nil
}

// Persister stores the per-checkpoint transformed embedding matrices of a
// trial.
type Persister interface {
	SaveEmbedMats(ctx context.Context, key store.Key, mats []*mat.Dense) error
}

// RowCache short-circuits trials whose rows were computed before.
type RowCache interface {
	Get(key string) ([]models.ScoreRow, bool)
	Put(key string, rows []models.ScoreRow) error
}

// TrialEvent reports a finished trial.
type TrialEvent struct {
	TrialID   int
	Process   models.Process
	BestScore float64
	BestEpoch int
	Cached    bool
}

// Harness evaluates one architecture on one task across the parameter grid.
type Harness struct {
	arch     Architecture
	task     Task
	cfg      Config
	scorer   *scoring.Scorer
	header   []string
	trials   []*Trial
	dataName string
	logger   *slog.Logger
	store    Persister

	cache      RowCache
	cacheScope string

	onTrial func(TrialEvent)
	eventMu sync.Mutex

	data    *EvalData
	rel     *dataset.Relations
	labels  [][]bool
	posProb float64
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// WithStore overrides where embedding matrices are persisted. By default
// they are written under the embeddings' Location.
func WithStore(p Persister) Option {
	return func(h *Harness) { h.store = p }
}

// WithDataName sets the data name used in artifact paths.
func WithDataName(name string) Option {
	return func(h *Harness) { h.dataName = name }
}

// WithCache enables the row cache. scope must identify everything outside
// the trial parameters that affects scores, such as the embedder and data.
func WithCache(c RowCache, scope string) Option {
	return func(h *Harness) {
		h.cache = c
		h.cacheScope = scope
	}
}

// WithTrialListener registers a callback for finished trials. Calls are
// serialized.
func WithTrialListener(fn func(TrialEvent)) Option {
	return func(h *Harness) { h.onTrial = fn }
}

// New expands the grid and creates one Trial per grid point. Configuration
// errors surface here, before any worker starts.
func New(arch Architecture, task Task, archParams, evalParams params.Group, meta params.Metadata, cfg Config, opts ...Option) (*Harness, error) {
	if arch == nil {
		return nil, errors.New("architecture is required")
	}
	if task == nil {
		return nil, errors.New("task is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	scorer, err := scoring.NewScorer(cfg.Metric)
	if err != nil {
		return nil, err
	}
	grid, err := params.Expand(archParams, evalParams, meta)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		arch:     arch,
		task:     task,
		cfg:      cfg,
		scorer:   scorer,
		header:   params.Header(archParams, evalParams),
		dataName: task.Name(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.trials = make([]*Trial, len(grid))
	for i, tp := range grid {
		h.trials[i] = &Trial{Params: tp, Row: tp.Values(h.header)}
	}
	return h, nil
}

// FullName is <arch>_<task>_<data>.
func (h *Harness) FullName() string {
	return fmt.Sprintf("%s_%s_%s", h.arch.Name(), h.task.Name(), h.dataName)
}

// Header returns the sorted hyperparameter names of every score row.
func (h *Harness) Header() []string { return append([]string(nil), h.header...) }

// Trials returns the trials in grid order.
func (h *Harness) Trials() []*Trial { return h.trials }

// Config returns the evaluation settings.
func (h *Harness) Config() Config { return h.cfg }

// Data returns the downsampled evaluation data, or nil before Prepare.
func (h *Harness) Data() *EvalData { return h.data }

// PosProb returns the fraction of candidate cells that are true relata.
func (h *Harness) PosProb() float64 { return h.posProb }

// Task returns the evaluation task.
func (h *Harness) Task() Task { return h.task }

// Logger returns the logger architectures should log through.
func (h *Harness) Logger() *slog.Logger { return h.logger }

// IsPositive reports whether candidate is a relatum of probe.
func (h *Harness) IsPositive(probe, candidate string) bool {
	return h.rel != nil && h.rel.IsRelated(probe, candidate)
}

// Prepare builds and downsamples the candidate matrix and computes the
// positive-pair rate, which is only reported.
func (h *Harness) Prepare(rel *dataset.Relations, vocab []string) error {
	probes, candidates, err := h.task.MakeAllEvalData(rel, vocab)
	if err != nil {
		return err
	}
	data, err := h.Downsample(probes, candidates)
	if err != nil {
		return err
	}
	return h.SetEvalData(data, rel)
}

// SetEvalData installs an already downsampled candidate matrix.
func (h *Harness) SetEvalData(data *EvalData, rel *dataset.Relations) error {
	if err := data.validate(); err != nil {
		return err
	}
	h.data = data
	h.rel = rel
	h.labels = make([][]bool, len(data.Candidates))
	for i, row := range data.Candidates {
		h.labels[i] = make([]bool, len(row))
		for j, c := range row {
			h.labels[i][j] = rel.IsRelated(data.RowWords[i], c)
		}
	}
	h.posProb = CalcPosProb(data, rel)
	rows, cols := data.Dims()
	h.logger.Info("prepared evaluation data",
		"name", h.FullName(), "rows", rows, "cols", cols, "col_words", len(data.ColWords), "pos_prob", h.posProb)
	return nil
}

// ToEvalSims maps a row-word × col-word similarity matrix onto the
// candidate matrix.
func (h *Harness) ToEvalSims(sims mat.Matrix) (*mat.Dense, error) {
	if h.data == nil {
		return nil, ErrNotPrepared
	}
	r, c := sims.Dims()
	if r != len(h.data.RowWords) || c != len(h.data.ColWords) {
		return nil, fmt.Errorf("similarity matrix is %dx%d, expected %dx%d", r, c, len(h.data.RowWords), len(h.data.ColWords))
	}
	colIdx := make(map[string]int, len(h.data.ColWords))
	for j, w := range h.data.ColWords {
		colIdx[w] = j
	}
	rows, cols := h.data.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i, row := range h.data.Candidates {
		for j, w := range row {
			out.Set(i, j, sims.At(i, colIdx[w]))
		}
	}
	return out, nil
}

// Score scores one candidate-shaped similarity matrix with the task.
func (h *Harness) Score(evalSims *mat.Dense) (float64, error) {
	if h.data == nil {
		return 0, ErrNotPrepared
	}
	r, _ := evalSims.Dims()
	sims := make([][]float64, r)
	for i := range r {
		sims[i] = mat.Row(nil, i, evalSims)
	}
	return h.task.Score(h.scorer, sims, h.labels)
}

// NoviceSims computes raw cosine similarities between row and col words.
func (h *Harness) NoviceSims(emb *embeddings.Embeddings) (*mat.Dense, error) {
	if h.data == nil {
		return nil, ErrNotPrepared
	}
	return emb.Sims(h.data.RowWords, h.data.ColWords)
}

// ScoreNovice scores untrained similarities. Hyperparameter and epoch
// fields of the row are NA.
func (h *Harness) ScoreNovice(sims mat.Matrix) (models.ScoreRow, error) {
	evalSims, err := h.ToEvalSims(sims)
	if err != nil {
		return models.ScoreRow{}, err
	}
	score, err := h.Score(evalSims)
	if err != nil {
		return models.ScoreRow{}, err
	}
	h.logger.Info("novice score", "name", h.FullName(), "metric", h.scorer.Metric, "score", score)
	return models.NoviceRow(score, len(h.header)), nil
}

// TrainAndScoreExpert runs every trial on a bounded pool of workers and
// returns all rows in trial order. Each worker gets its own copy of emb.
// Cancelling ctx stops outstanding trials at their next fold and yields
// ErrInterrupted with no rows. In debug mode only the first trial runs,
// inline, and ErrDebugExit is returned.
func (h *Harness) TrainAndScoreExpert(ctx context.Context, emb *embeddings.Embeddings, shuffled bool) ([]models.ScoreRow, error) {
	if h.data == nil {
		return nil, ErrNotPrepared
	}
	h.logger.Info("training expert", "name", h.FullName(), "trials", len(h.trials), "workers", h.cfg.NumWorkers, "shuffled", shuffled)

	if h.cfg.Debug {
		if _, err := h.doTrial(ctx, h.trials[0], emb.Clone(), shuffled); err != nil {
			return nil, err
		}
		return nil, ErrDebugExit
	}

	perTrial := make([][]models.ScoreRow, len(h.trials))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.cfg.NumWorkers)
	for i, trial := range h.trials {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			rows, err := h.doTrial(gctx, trial, emb.Clone(), shuffled)
			if err != nil {
				return fmt.Errorf("trial %d: %w", trial.ID(), err)
			}
			perTrial[i] = rows
			return nil
		})
	}
	err := g.Wait()
	if ctx.Err() != nil {
		h.logger.Warn("interrupted, closed worker pool", "name", h.FullName())
		return nil, fmt.Errorf("%w: %w", ErrInterrupted, context.Cause(ctx))
	}
	if err != nil {
		return nil, err
	}

	var rows []models.ScoreRow
	for _, r := range perTrial {
		rows = append(rows, r...)
	}
	return rows, nil
}

func (h *Harness) doTrial(ctx context.Context, trial *Trial, emb *embeddings.Embeddings, shuffled bool) ([]models.ScoreRow, error) {
	process := models.ProcessExpert
	if shuffled {
		process = models.ProcessControl
	}
	log := h.logger.With("trial", trial.ID(), "process", process)

	key := ""
	if h.cache != nil {
		key = h.cacheKey(trial, shuffled)
		if rows, ok := h.cache.Get(key); ok {
			// The key hashes parameter values, so the rows may come from a
			// grid where this assignment had another position.
			for i := range rows {
				rows[i].TrialID = trial.ID()
				rows[i].Values = append([]any(nil), trial.Row...)
			}
			log.Info("using cached trial rows", "rows", len(rows))
			h.emit(summarize(trial.ID(), process, rows, true))
			return rows, nil
		}
	}

	results, err := h.arch.InitResults(h, trial, NewResultsData(trial.ID(), h.cfg.NumEvals, h.data, emb.Dim()))
	if err != nil {
		return nil, fmt.Errorf("init results: %w", err)
	}
	trial.Results = results

	if trial.Params.Bool("standardize") {
		log.Debug("standardizing embeddings")
		emb.Standardize()
	}

	testTrainer, hasTestTrainer := h.arch.(TestFoldTrainer)
	for fold := range h.cfg.NumFolds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log.Debug("fold", "fold", fold+1, "num_folds", h.cfg.NumFolds)
		data, err := h.arch.SplitAndVectorize(h, trial, emb, fold, shuffled)
		if err != nil {
			return nil, fmt.Errorf("fold %d: split: %w", fold, err)
		}
		model, err := h.arch.BuildModel(h, trial, emb)
		if err != nil {
			return nil, fmt.Errorf("fold %d: build model: %w", fold, err)
		}
		if err := h.arch.TrainFold(ctx, h, trial, emb, model, data, fold); err != nil {
			return nil, fmt.Errorf("fold %d: train: %w", fold, err)
		}
		if hasTestTrainer {
			if err := testTrainer.TrainTestFold(ctx, h, trial, model, data, fold); err != nil {
				return nil, fmt.Errorf("fold %d: train test fold: %w", fold, err)
			}
		}
	}

	p := h.store
	if p == nil {
		p = store.NewLocal(emb.Location)
	}
	skey := store.Key{Architecture: h.arch.Name(), Evaluation: h.task.Name(), Data: h.dataName, Process: string(process)}
	if err := p.SaveEmbedMats(ctx, skey, results.EmbedMats); err != nil {
		return nil, fmt.Errorf("persist embedding matrices: %w", err)
	}

	rows, err := h.scoresAtEvalSteps(trial)
	if err != nil {
		return nil, err
	}
	ev := summarize(trial.ID(), process, rows, false)
	log.Info("expert score", "best", ev.BestScore, "epoch", ev.BestEpoch)
	if h.cache != nil && !h.cfg.Debug {
		if err := h.cache.Put(key, rows); err != nil {
			log.Warn("caching trial rows failed", "error", err)
		}
	}
	h.emit(ev)
	return rows, nil
}

func (h *Harness) scoresAtEvalSteps(trial *Trial) ([]models.ScoreRow, error) {
	rows := make([]models.ScoreRow, 0, len(trial.Results.EvalSims))
	for k, evalSims := range trial.Results.EvalSims {
		score, err := h.Score(evalSims)
		if err != nil {
			return nil, fmt.Errorf("scoring checkpoint %d: %w", k, err)
		}
		epochs := k * trial.Results.EpochsPerEval
		h.logger.Debug("checkpoint score", "trial", trial.ID(), "epoch", epochs, "score", score)
		rows = append(rows, models.ScoreRow{
			Score:     score,
			Values:    append([]any(nil), trial.Row...),
			NumEpochs: epochs,
			TrialID:   trial.ID(),
		})
	}
	return rows, nil
}

func summarize(trialID int, process models.Process, rows []models.ScoreRow, cached bool) TrialEvent {
	ev := TrialEvent{TrialID: trialID, Process: process, Cached: cached}
	for _, r := range rows {
		if r.Score > ev.BestScore {
			ev.BestScore = r.Score
			ev.BestEpoch = r.Epochs()
		}
	}
	return ev
}

func (h *Harness) emit(ev TrialEvent) {
	if h.onTrial == nil {
		return
	}
	h.eventMu.Lock()
	defer h.eventMu.Unlock()
	h.onTrial(ev)
}

func (h *Harness) cacheKey(trial *Trial, shuffled bool) string {
	key, err := cache.CacheKey(cache.KeyInput{
		Name:     h.FullName(),
		Scope:    h.cacheScope,
		Params:   trial.Params.Map(),
		Config: struct {
			NumFolds, NumEvals, MaxEvalRows, MaxEvalCols int
			Metric                                       string
			Resample                                     bool
			Seed                                         uint64
		}{h.cfg.NumFolds, h.cfg.NumEvals, h.cfg.MaxEvalRows, h.cfg.MaxEvalCols, h.cfg.Metric, h.cfg.Resample, h.cfg.Seed},
		Shuffled: shuffled,
	})
	if err != nil {
		h.logger.Warn("computing cache key failed", "trial", trial.ID(), "error", err)
		return fmt.Sprintf("trial-%d-%t", trial.ID(), shuffled)
	}
	return key
}
