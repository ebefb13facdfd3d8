// Package orchestration runs a configured experiment end to end: load the
// prerequisites, build the embeddings, score the novice, train the expert
// and, optionally, the shuffled-label control.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phueb/twoprocess/internal/cache"
	"github.com/phueb/twoprocess/internal/config"
	"github.com/phueb/twoprocess/internal/dataset"
	"github.com/phueb/twoprocess/internal/embeddings"
	"github.com/phueb/twoprocess/internal/evaluation"
	"github.com/phueb/twoprocess/internal/models"
	"github.com/phueb/twoprocess/internal/statistics"
	"github.com/phueb/twoprocess/internal/store"
	"gonum.org/v1/gonum/stat"
)

// ConfidenceLevel of the bootstrap intervals in the outcome digest.
const ConfidenceLevel = 0.95

// Runner orchestrates one experiment.
type Runner struct {
	cfg    *config.Experiment
	logger *slog.Logger

	cache  *cache.Cache
	mirror store.Uploader

	progressMu sync.Mutex
	listeners  []ProgressListener
}

// ProgressListener receives progress updates
type ProgressListener func(event ProgressEvent)

// EventType represents the type of progress event
type EventType string

const (
	EventExperimentStart    EventType = "experiment_start"
	EventExperimentComplete EventType = "experiment_complete"
	EventNoviceScored       EventType = "novice_scored"
	EventPhaseStart         EventType = "phase_start"
	EventTrialComplete      EventType = "trial_complete"
)

// ProgressEvent represents a progress update
type ProgressEvent struct {
	EventType   EventType
	Name        string
	Process     models.Process
	TrialID     int
	TotalTrials int
	Score       float64
	NumEpochs   int
	Cached      bool
	DurationMs  int64
	Details     map[string]any
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the logger passed down to the harness and store.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// WithCache enables the trial cache regardless of eval.cache.
func WithCache(c *cache.Cache) RunnerOption {
	return func(r *Runner) { r.cache = c }
}

// WithMirror replaces the blob mirror built from the remote section.
func WithMirror(u store.Uploader) RunnerOption {
	return func(r *Runner) { r.mirror = u }
}

// NewRunner creates a runner for cfg.
func NewRunner(cfg *config.Experiment, opts ...RunnerOption) *Runner {
	r := &Runner{cfg: cfg, logger: slog.Default()}
	for _, o := range opts {
		o(r)
	}
	if r.cache == nil && cfg.CacheEnabled() {
		r.cache = cache.New(cfg.Paths.Cache)
	}
	return r
}

// OnProgress registers a progress listener
func (r *Runner) OnProgress(listener ProgressListener) {
	r.progressMu.Lock()
	defer r.progressMu.Unlock()
	r.listeners = append(r.listeners, listener)
}

func (r *Runner) notifyProgress(event ProgressEvent) {
	r.progressMu.Lock()
	listeners := make([]ProgressListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.progressMu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// ArtifactRoot is the directory embedding matrices are written under.
func (r *Runner) ArtifactRoot() string {
	return filepath.Join(r.cfg.RunDir(), r.cfg.Embedder.Name())
}

// Prepared holds everything loaded before training starts.
type Prepared struct {
	Harness    *evaluation.Harness
	Embeddings *embeddings.Embeddings
	Relations  *dataset.Relations

	// MedianProbeFreq is -1 when the corpus has no frequency file.
	MedianProbeFreq float64
}

// Prepare resolves names, loads the prerequisites and builds the harness.
// Every configuration error surfaces here.
func (r *Runner) Prepare() (*Prepared, error) {
	cfg := r.cfg
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid experiment: %w", err)
	}
	arch, err := NewArchitecture(cfg.Architecture.Name)
	if err != nil {
		return nil, err
	}
	task, err := NewTask(cfg.Task, cfg.Eval.Seed)
	if err != nil {
		return nil, err
	}

	vocab, err := dataset.LoadVocab(cfg.VocabPath())
	if err != nil {
		return nil, fmt.Errorf("loading vocab: %w", err)
	}
	rel, err := dataset.LoadTask(cfg.TaskPath())
	if err != nil {
		return nil, fmt.Errorf("loading task: %w", err)
	}
	emb, err := cfg.Embedder.Build(vocab)
	if err != nil {
		return nil, fmt.Errorf("building %s embeddings: %w", cfg.Embedder.Name(), err)
	}
	emb.Location = r.ArtifactRoot()

	inVocab := rel.Filter(emb.VocabSet())
	r.logger.Info("loaded task", "path", cfg.TaskPath(), "probes", rel.Len(), "in_vocab", inVocab.Len())
	if inVocab.Len() == 0 {
		return nil, fmt.Errorf("no probe of %s has relata in the %s vocabulary", cfg.TaskPath(), cfg.Embedder.Name())
	}
	probeFreq, err := r.medianProbeFreq(inVocab)
	if err != nil {
		return nil, err
	}

	storeOpts := []store.Option{store.WithLogger(r.logger)}
	if cfg.Compress() {
		storeOpts = append(storeOpts, store.WithCompression())
	}
	mirror, err := r.resolveMirror()
	if err != nil {
		return nil, err
	}
	if mirror != nil {
		storeOpts = append(storeOpts, store.WithMirror(mirror))
	}

	opts := []evaluation.Option{
		evaluation.WithLogger(r.logger),
		evaluation.WithStore(store.NewLocal(emb.Location, storeOpts...)),
		evaluation.WithDataName(cfg.Task.DataName()),
		evaluation.WithTrialListener(r.onTrial),
	}
	if r.cache != nil {
		scopeFiles := []string{cfg.TaskPath(), cfg.VocabPath()}
		if cfg.Embedder.Kind == embeddings.KindText {
			scopeFiles = append(scopeFiles, cfg.Embedder.Path)
		}
		scope, err := cache.Scope(fmt.Sprintf("%+v", cfg.Embedder), scopeFiles...)
		if err != nil {
			return nil, fmt.Errorf("computing cache scope: %w", err)
		}
		opts = append(opts, evaluation.WithCache(r.cache, scope))
	}

	h, err := evaluation.New(arch, task, cfg.Architecture.Params, cfg.EvalParams, cfg.Metadata(), cfg.EvaluationConfig(), opts...)
	if err != nil {
		return nil, err
	}
	if err := h.Prepare(inVocab, emb.Words()); err != nil {
		return nil, err
	}
	return &Prepared{Harness: h, Embeddings: emb, Relations: inVocab, MedianProbeFreq: probeFreq}, nil
}

// medianProbeFreq returns the median corpus frequency of the probes, or -1
// when the corpus has no frequency file.
func (r *Runner) medianProbeFreq(rel *dataset.Relations) (float64, error) {
	path := r.cfg.FreqPath()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		r.logger.Debug("no frequency file", "path", path)
		return -1, nil
	}
	w2f, err := dataset.LoadFrequencies(path)
	if err != nil {
		return 0, fmt.Errorf("loading frequencies: %w", err)
	}
	probes := rel.Probes()
	freqs := make([]float64, len(probes))
	for i, p := range probes {
		freqs[i] = float64(w2f[p])
	}
	slices.Sort(freqs)
	return stat.Quantile(0.5, stat.Empirical, freqs, nil), nil
}

func (r *Runner) resolveMirror() (store.Uploader, error) {
	if r.mirror != nil || !r.cfg.Remote.Enabled() {
		return r.mirror, nil
	}
	m, err := store.NewBlobMirror(r.cfg.Remote.AccountURL, r.cfg.Remote.Container, r.cfg.Remote.Prefix)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *Runner) onTrial(ev evaluation.TrialEvent) {
	r.notifyProgress(ProgressEvent{
		EventType: EventTrialComplete,
		Process:   ev.Process,
		TrialID:   ev.TrialID,
		Score:     ev.BestScore,
		NumEpochs: ev.BestEpoch,
		Cached:    ev.Cached,
	})
}

// Run executes the experiment. Interrupts and debug runs return the
// harness sentinel errors unchanged so callers can match them.
func (r *Runner) Run(ctx context.Context) (*models.EvaluationOutcome, error) {
	startTime := time.Now()

	p, err := r.Prepare()
	if err != nil {
		return nil, err
	}
	h := p.Harness
	r.notifyProgress(ProgressEvent{
		EventType:   EventExperimentStart,
		Name:        h.FullName(),
		TotalTrials: len(h.Trials()),
		Details: map[string]any{
			"rows":     len(h.Data().RowWords),
			"cols":     len(h.Data().ColWords),
			"pos_prob": h.PosProb(),
		},
	})

	sims, err := h.NoviceSims(p.Embeddings)
	if err != nil {
		return nil, err
	}
	novice, err := h.ScoreNovice(sims)
	if err != nil {
		return nil, err
	}
	r.notifyProgress(ProgressEvent{EventType: EventNoviceScored, Name: h.FullName(), Process: models.ProcessNovice, Score: novice.Score})

	r.notifyProgress(ProgressEvent{EventType: EventPhaseStart, Process: models.ProcessExpert, TotalTrials: len(h.Trials())})
	expert, err := h.TrainAndScoreExpert(ctx, p.Embeddings, false)
	if err != nil {
		return nil, err
	}

	var control []models.ScoreRow
	if r.cfg.ShuffledControl() {
		r.notifyProgress(ProgressEvent{EventType: EventPhaseStart, Process: models.ProcessControl, TotalTrials: len(h.Trials())})
		control, err = h.TrainAndScoreExpert(ctx, p.Embeddings, true)
		if err != nil {
			return nil, err
		}
	}

	outcome := r.buildOutcome(h, novice, expert, control, startTime)
	if p.MedianProbeFreq >= 0 {
		outcome.Metadata["median_probe_freq"] = p.MedianProbeFreq
	}
	r.notifyProgress(ProgressEvent{
		EventType:  EventExperimentComplete,
		Name:       h.FullName(),
		Score:      outcome.Digest.MeanBest,
		DurationMs: outcome.Digest.DurationMs,
	})
	return outcome, nil
}

func (r *Runner) buildOutcome(h *evaluation.Harness, novice models.ScoreRow, expert, control []models.ScoreRow, startTime time.Time) *models.EvaluationOutcome {
	cfg := r.cfg
	ecfg := h.Config()

	bests := models.BestPerTrial(expert, models.ProcessExpert)
	scores := make([]float64, len(bests))
	for i, b := range bests {
		scores[i] = b.Score
	}
	meanBest := statistics.Mean(scores)

	digest := models.OutcomeDigest{
		NumTrials:      len(h.Trials()),
		NumRows:        len(expert),
		NoviceScore:    novice.Score,
		BestExpert:     bestOf(bests),
		BestControl:    bestOf(models.BestPerTrial(control, models.ProcessControl)),
		TrialBests:     bests,
		MeanBest:       meanBest,
		NormalizedGain: statistics.NormalizedGain(novice.Score, meanBest),
		DurationMs:     time.Since(startTime).Milliseconds(),
	}
	if len(scores) >= 2 {
		ci := statistics.BootstrapCI(scores, ConfidenceLevel, ecfg.Seed)
		pre := make([]float64, len(scores))
		for i := range pre {
			pre[i] = novice.Score
		}
		gain := statistics.PairedDifferenceCI(pre, scores, ConfidenceLevel, ecfg.Seed)
		digest.BootstrapCI = &ci
		digest.GainCI = &gain
		digest.IsSignificant = statistics.IsSignificant(gain)
	}

	return &models.EvaluationOutcome{
		RunID:        uuid.NewString(),
		Name:         cfg.Name,
		Architecture: cfg.Architecture.Name,
		Task:         h.Task().Name(),
		DataName:     cfg.Task.DataName(),
		Embedder:     cfg.Embedder.Name(),
		Timestamp:    startTime,
		Setup: models.OutcomeSetup{
			Metric:      ecfg.Metric,
			NumFolds:    ecfg.NumFolds,
			NumEvals:    ecfg.NumEvals,
			Workers:     ecfg.NumWorkers,
			MaxEvalRows: ecfg.MaxEvalRows,
			MaxEvalCols: ecfg.MaxEvalCols,
			NumRows:     len(h.Data().RowWords),
			NumCols:     len(h.Data().ColWords),
			Seed:        ecfg.Seed,
			Resample:    ecfg.Resample,
		},
		Header:  h.Header(),
		PosProb: h.PosProb(),
		Novice:  novice,
		Expert:  expert,
		Control: control,
		Digest:  digest,
		Metadata: map[string]any{
			"corpus_name": cfg.Corpus.Name,
			"num_vocab":   cfg.Corpus.NumVocab,
			"artifacts":   r.ArtifactRoot(),
		},
	}
}

func bestOf(bests []models.TrialBest) *models.TrialBest {
	if len(bests) == 0 {
		return nil
	}
	best := bests[0]
	for _, b := range bests[1:] {
		if b.Score > best.Score {
			best = b
		}
	}
	return &best
}
