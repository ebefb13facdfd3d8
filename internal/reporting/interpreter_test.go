package reporting

import (
	"strings"
	"testing"

	"github.com/phueb/twoprocess/internal/models"
	"github.com/phueb/twoprocess/internal/statistics"
	"github.com/stretchr/testify/assert"
)

func TestInterpretScore(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		want  string
	}{
		{"excellent high", 0.95, "Excellent (>90%)"},
		{"excellent boundary", 0.91, "Excellent (>90%)"},
		{"good high", 0.90, "Good (75-90%)"},
		{"good low", 0.75, "Good (75-90%)"},
		{"above chance", 0.60, "Above Chance (55-75%)"},
		{"chance", 0.50, "Near Chance (<=55%)"},
		{"below chance", 0.30, "Near Chance (<=55%)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InterpretScore(tt.score))
		})
	}
}

func TestInterpretGain(t *testing.T) {
	assert.Contains(t, InterpretGain(1), "whole gap")
	assert.Contains(t, InterpretGain(0.6), "most of the gap (60%)")
	assert.Contains(t, InterpretGain(0.2), "part of the gap (20%)")
	assert.Contains(t, InterpretGain(0), "did not improve")
	assert.Contains(t, InterpretGain(-0.5), "worse")
}

func TestInterpretControl(t *testing.T) {
	assert.Contains(t, InterpretControl(0.9, 0.6), "beats the shuffled-label control by 0.30")
	assert.Contains(t, InterpretControl(0.7, 0.68), "score alike")
	assert.Contains(t, InterpretControl(0.5, 0.8), "control beats the expert")
}

func TestFormatSummaryReport(t *testing.T) {
	ci := statistics.ConfidenceInterval{Lower: 0.7, Upper: 0.9, Mean: 0.8, ConfidenceLevel: 0.95}
	outcome := &models.EvaluationOutcome{
		Digest: models.OutcomeDigest{
			NumTrials:      2,
			NoviceScore:    0.6,
			BestExpert:     &models.TrialBest{TrialID: 1, Score: 0.92, NumEpochs: 40},
			BestControl:    &models.TrialBest{TrialID: 0, Score: 0.55},
			MeanBest:       0.8,
			NormalizedGain: 0.5,
			BootstrapCI:    &ci,
			GainCI:         &ci,
			IsSignificant:  true,
			DurationMs:     1500,
		},
	}
	report := FormatSummaryReport(outcome)

	assert.True(t, strings.HasPrefix(report, "=== Interpretation ==="))
	assert.Contains(t, report, "Novice Score:  0.600")
	assert.Contains(t, report, "Best Expert:   0.920 at epoch 40, trial 1")
	assert.Contains(t, report, "[0.700, 0.900]")
	assert.Contains(t, report, "is significant")
	assert.Contains(t, report, "beats the shuffled-label control")
	assert.Contains(t, report, "1.5s")
}

func TestFormatSummaryReport_Minimal(t *testing.T) {
	report := FormatSummaryReport(&models.EvaluationOutcome{Digest: models.OutcomeDigest{NoviceScore: 0.5}})
	assert.NotContains(t, report, "Best Expert")
	assert.NotContains(t, report, "CI:")
	assert.NotContains(t, report, "Control:")
}
