package reporting

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/phueb/twoprocess/internal/models"
)

// WriteTrialTable prints one line per trial: its best score, the epoch it
// was reached at and the trial's parameter values.
func WriteTrialTable(w io.Writer, header []string, bests []models.TrialBest) {
	cols := append([]string{"trial", "process", "best", "epoch"}, header...)
	rows := make([][]string, len(bests))
	for i, b := range bests {
		row := []string{
			fmt.Sprint(b.TrialID),
			string(b.Process),
			fmt.Sprintf("%.3f", b.Score),
			fmt.Sprint(b.NumEpochs),
		}
		for _, v := range b.Values {
			row = append(row, models.FormatValue(v))
		}
		rows[i] = row
	}

	WriteTable(w, cols, rows)
}

// WriteTable prints cols and rows left-aligned by display width. The last
// column is not padded.
func WriteTable(w io.Writer, cols []string, rows [][]string) {
	widths := make([]int, len(cols))
	for j, c := range cols {
		widths[j] = runewidth.StringWidth(c)
	}
	for _, row := range rows {
		for j, cell := range row {
			if j < len(widths) {
				widths[j] = max(widths[j], runewidth.StringWidth(cell))
			}
		}
	}

	writeRow(w, cols, widths)
	sep := make([]string, len(cols))
	for j := range cols {
		sep[j] = strings.Repeat("─", widths[j])
	}
	writeRow(w, sep, widths)
	for _, row := range rows {
		writeRow(w, row, widths)
	}
}

func writeRow(w io.Writer, cells []string, widths []int) {
	padded := make([]string, len(cells))
	for j, c := range cells {
		if j == len(cells)-1 || j >= len(widths) {
			padded[j] = c
			continue
		}
		padded[j] = padRight(c, widths[j])
	}
	fmt.Fprintln(w, strings.Join(padded, "  ")) //nolint:errcheck
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}
