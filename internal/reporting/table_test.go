package reporting

import (
	"bytes"
	"strings"
	"testing"

	"github.com/phueb/twoprocess/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTrialTable(t *testing.T) {
	var buf bytes.Buffer
	WriteTrialTable(&buf, []string{"learning_rate"}, []models.TrialBest{
		{TrialID: 0, Process: models.ProcessExpert, Score: 0.8123, NumEpochs: 10, Values: []any{0.1}},
		{TrialID: 11, Process: models.ProcessControl, Score: 0.5, NumEpochs: 0, Values: []any{0.25}},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "trial  process  best   epoch  learning_rate", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "─────"))
	assert.Equal(t, "0      expert   0.812  10     0.1", lines[2])
	assert.Equal(t, "11     control  0.500  0      0.25", lines[3])
}

func TestPadRight_WideRunes(t *testing.T) {
	assert.Equal(t, "日本  ", padRight("日本", 6))
	assert.Equal(t, "toolong", padRight("toolong", 3))
}
