package reporting

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/phueb/twoprocess/internal/models"
)

// Output file names written by SaveOutcome.
const (
	NoviceScoresFile  = "novice_scores.csv"
	ExpertScoresFile  = "expert_scores.csv"
	ControlScoresFile = "control_scores.csv"
	OutcomeFile       = "outcome.json"
)

// ScoresHeader is the CSV header: score, the parameter names, num_epochs.
func ScoresHeader(names []string) []string {
	out := make([]string, 0, len(names)+2)
	out = append(out, "score")
	out = append(out, names...)
	return append(out, "num_epochs")
}

// WriteScoresCSV writes the header and one record per row.
func WriteScoresCSV(w io.Writer, names []string, rows []models.ScoreRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ScoresHeader(names)); err != nil {
		return err
	}
	for i, r := range rows {
		if len(r.Values) != len(names) {
			return fmt.Errorf("row %d has %d values for %d header names", i, len(r.Values), len(names))
		}
		if err := cw.Write(r.Record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteOutcomeJSON writes the outcome as indented JSON.
func WriteOutcomeJSON(w io.Writer, outcome *models.EvaluationOutcome) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(outcome)
}

// SaveOutcome writes the score CSVs and outcome.json into dir and returns
// the paths written. The control file is skipped when there are no control
// rows.
func SaveOutcome(dir string, outcome *models.EvaluationOutcome) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}

	var written []string
	files := []struct {
		name string
		rows []models.ScoreRow
	}{
		{NoviceScoresFile, []models.ScoreRow{outcome.Novice}},
		{ExpertScoresFile, outcome.Expert},
		{ControlScoresFile, outcome.Control},
	}
	for _, f := range files {
		if len(f.rows) == 0 {
			continue
		}
		path := filepath.Join(dir, f.name)
		if err := writeFile(path, func(w io.Writer) error { return WriteScoresCSV(w, outcome.Header, f.rows) }); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	path := filepath.Join(dir, OutcomeFile)
	if err := writeFile(path, func(w io.Writer) error { return WriteOutcomeJSON(w, outcome) }); err != nil {
		return written, err
	}
	return append(written, path), nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close() //nolint:errcheck
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
