package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// NA marks a field that does not apply, such as hyperparameters of a novice
// row. It renders as "NA" in CSV and null in JSON.
type NA struct{}

func (NA) String() string { return "NA" }

// MarshalJSON renders NA as null.
func (NA) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// IsNA reports whether v is the not-applicable marker.
func IsNA(v any) bool {
	_, ok := v.(NA)
	return ok
}

// ScoreRow is one (score, header values..., num_epochs) record. Values are
// aligned with the harness header. NumEpochs is NA for novice rows.
type ScoreRow struct {
	Score     float64 `json:"score"`
	Values    []any   `json:"values"`
	NumEpochs any     `json:"num_epochs"`
	TrialID   int     `json:"trial_id"`
}

// NoviceRow builds a row whose hyperparameters and epoch are NA.
func NoviceRow(score float64, numFields int) ScoreRow {
	vals := make([]any, numFields)
	for i := range vals {
		vals[i] = NA{}
	}
	return ScoreRow{Score: score, Values: vals, NumEpochs: NA{}, TrialID: -1}
}

// IsNovice reports whether the row came from novice scoring.
func (r ScoreRow) IsNovice() bool {
	return IsNA(r.NumEpochs)
}

// Epochs returns the epoch count, or -1 for a novice row.
func (r ScoreRow) Epochs() int {
	switch v := r.NumEpochs.(type) {
	case int:
		return v
	case float64:
		return int(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return -1
		}
		return int(n)
	default:
		return -1
	}
}

// Record renders the row as CSV fields: score, values..., num_epochs.
func (r ScoreRow) Record() []string {
	out := make([]string, 0, len(r.Values)+2)
	out = append(out, formatFloat(r.Score))
	for _, v := range r.Values {
		out = append(out, FormatValue(v))
	}
	return append(out, FormatValue(r.NumEpochs))
}

// FormatValue renders a header value for CSV and tables.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case NA:
		return x.String()
	case float64:
		return formatFloat(x)
	case float32:
		return formatFloat(float64(x))
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return "NA"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
