package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/phueb/twoprocess/internal/models"
)

// InterpretScore returns a plain-language label for a balanced-accuracy-like
// score where 0.5 is chance.
func InterpretScore(score float64) string {
	pct := score * 100
	switch {
	case pct > 90:
		return "Excellent (>90%)"
	case pct >= 75:
		return "Good (75-90%)"
	case pct > 55:
		return "Above Chance (55-75%)"
	default:
		return "Near Chance (<=55%)"
	}
}

// InterpretGain explains the normalized gain of the expert over the novice.
func InterpretGain(gain float64) string {
	pct := gain * 100
	switch {
	case gain >= 1:
		return "Training closed the whole gap to a perfect score."
	case pct >= 50:
		return fmt.Sprintf("Training closed most of the gap to a perfect score (%.0f%%).", pct)
	case pct > 0:
		return fmt.Sprintf("Training closed part of the gap to a perfect score (%.0f%%).", pct)
	case pct == 0:
		return "Training did not improve on raw similarities."
	default:
		return fmt.Sprintf("Training made things worse than raw similarities (%.0f%%).", pct)
	}
}

// InterpretControl compares the expert with the shuffled-label control.
func InterpretControl(expert, control float64) string {
	diff := expert - control
	switch {
	case diff > 0.05:
		return fmt.Sprintf("Expert beats the shuffled-label control by %.2f; the relation is learned from the labels.", diff)
	case diff >= -0.05:
		return "Expert and shuffled-label control score alike; gains come from training itself, not the labels."
	default:
		return fmt.Sprintf("Shuffled-label control beats the expert by %.2f; check the training setup.", -diff)
	}
}

// FormatSummaryReport produces a plain-language report from an EvaluationOutcome.
func FormatSummaryReport(outcome *models.EvaluationOutcome) string {
	var b strings.Builder

	d := outcome.Digest
	duration := time.Duration(d.DurationMs) * time.Millisecond

	b.WriteString("=== Interpretation ===\n\n")

	b.WriteString(fmt.Sprintf("Novice Score:  %.3f (%s)\n", d.NoviceScore, InterpretScore(d.NoviceScore)))
	if d.BestExpert != nil {
		b.WriteString(fmt.Sprintf("Best Expert:   %.3f at epoch %d, trial %d (%s)\n",
			d.BestExpert.Score, d.BestExpert.NumEpochs, d.BestExpert.TrialID, InterpretScore(d.BestExpert.Score)))
	}
	b.WriteString(fmt.Sprintf("Mean Best:     %.3f over %d trial(s)\n", d.MeanBest, d.NumTrials))
	if d.BootstrapCI != nil {
		b.WriteString(fmt.Sprintf("%.0f%% CI:        [%.3f, %.3f]\n", d.BootstrapCI.ConfidenceLevel*100, d.BootstrapCI.Lower, d.BootstrapCI.Upper))
	}
	b.WriteString(fmt.Sprintf("Gain:          %s\n", InterpretGain(d.NormalizedGain)))
	if d.GainCI != nil {
		if d.IsSignificant {
			b.WriteString("               The difference from the novice is significant.\n")
		} else {
			b.WriteString("               The difference from the novice is not significant.\n")
		}
	}
	if d.BestControl != nil && d.BestExpert != nil {
		b.WriteString(fmt.Sprintf("Control:       %s\n", InterpretControl(d.BestExpert.Score, d.BestControl.Score)))
	}
	b.WriteString(fmt.Sprintf("Duration:      %v\n", duration))

	return b.String()
}
