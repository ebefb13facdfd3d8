package models

import (
	"time"

	"github.com/phueb/twoprocess/internal/statistics"
)

// Process tags the label condition the expert was trained under.
type Process string

const (
	ProcessNovice  Process = "novice"
	ProcessExpert  Process = "expert"
	ProcessControl Process = "control"
)

// EvaluationOutcome is the complete result of one experiment run.
type EvaluationOutcome struct {
	RunID        string         `json:"run_id"`
	Name         string         `json:"name"`
	Architecture string         `json:"architecture"`
	Task         string         `json:"task"`
	DataName     string         `json:"data_name"`
	Embedder     string         `json:"embedder"`
	Timestamp    time.Time      `json:"timestamp"`
	Setup        OutcomeSetup   `json:"config"`
	Header       []string       `json:"header"`
	PosProb      float64        `json:"pos_prob"`
	Novice       ScoreRow       `json:"novice"`
	Expert       []ScoreRow     `json:"expert"`
	Control      []ScoreRow     `json:"control,omitempty"`
	Digest       OutcomeDigest  `json:"summary"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// OutcomeSetup echoes the evaluation settings that shaped the scores.
type OutcomeSetup struct {
	Metric      string `json:"metric"`
	NumFolds    int    `json:"num_folds"`
	NumEvals    int    `json:"num_evals"`
	Workers     int    `json:"workers"`
	MaxEvalRows int    `json:"max_eval_rows"`
	MaxEvalCols int    `json:"max_eval_cols"`
	NumRows     int    `json:"num_rows"`
	NumCols     int    `json:"num_cols"`
	Seed        uint64 `json:"seed"`
	Resample    bool   `json:"resample"`
}

// TrialBest is the best checkpoint of one trial.
type TrialBest struct {
	TrialID   int     `json:"trial_id"`
	Process   Process `json:"process"`
	Score     float64 `json:"score"`
	NumEpochs int     `json:"num_epochs"`
	Values    []any   `json:"values"`
}

// OutcomeDigest summarises expert rows against the novice baseline.
type OutcomeDigest struct {
	NumTrials      int                            `json:"num_trials"`
	NumRows        int                            `json:"num_rows"`
	NoviceScore    float64                        `json:"novice_score"`
	BestExpert     *TrialBest                     `json:"best_expert,omitempty"`
	BestControl    *TrialBest                     `json:"best_control,omitempty"`
	TrialBests     []TrialBest                    `json:"trial_bests"`
	MeanBest       float64                        `json:"mean_best"`
	NormalizedGain float64                        `json:"normalized_gain"`
	BootstrapCI    *statistics.ConfidenceInterval `json:"bootstrap_ci,omitempty"`
	GainCI         *statistics.ConfidenceInterval `json:"gain_ci,omitempty"`
	IsSignificant  bool                           `json:"is_significant"`
	DurationMs     int64                          `json:"duration_ms"`
}

// BestPerTrial returns, per trial ID, the row with the highest score. The
// earliest checkpoint wins ties. Order follows first appearance in rows.
func BestPerTrial(rows []ScoreRow, process Process) []TrialBest {
	idx := map[int]int{}
	var out []TrialBest
	for _, r := range rows {
		if r.IsNovice() {
			continue
		}
		i, seen := idx[r.TrialID]
		if !seen {
			idx[r.TrialID] = len(out)
			out = append(out, TrialBest{TrialID: r.TrialID, Process: process, Score: r.Score, NumEpochs: r.Epochs(), Values: r.Values})
			continue
		}
		if r.Score > out[i].Score {
			out[i].Score = r.Score
			out[i].NumEpochs = r.Epochs()
		}
	}
	return out
}
