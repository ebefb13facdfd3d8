package dataset

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRelations_Text(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "nyms/syn/childes_4096.txt", "happy glad cheerful\nbig large\nlonely\n\nsmall little tiny little\n")

	rel, err := LoadRelations(path)
	require.NoError(t, err)
	assert.Equal(t, 3, rel.Len())
	assert.Equal(t, []string{"happy", "big", "small"}, rel.Probes())
	assert.Equal(t, []string{"little", "tiny"}, rel.Relata("small"))
	assert.Equal(t, []string{"cheerful", "glad", "large", "little", "tiny"}, rel.AllRelata())
}

func TestLoadRelations_NoPairs(t *testing.T) {
	path := writeFile(t, t.TempDir(), "task.txt", "alone\n")
	_, err := LoadRelations(path)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMissingPrerequisite)
}

func TestLoadRelations_Missing(t *testing.T) {
	_, err := LoadRelations(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, ErrMissingPrerequisite)
	assert.Contains(t, err.Error(), "preprocessing")
}

func TestLoadTask_DispatchesOnExtension(t *testing.T) {
	dir := t.TempDir()
	csvPath := writeFile(t, dir, "syn.CSV", "probe,relatum\nbig,large\nbig,huge\n")
	rel, err := LoadTask(csvPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"large", "huge"}, rel.Relata("big"))

	txtPath := writeFile(t, dir, "syn.txt", "big large huge\n")
	rel, err = LoadTask(txtPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"large", "huge"}, rel.Relata("big"))
}

func TestRelations_Filter(t *testing.T) {
	rel := NewRelations()
	rel.Add("happy", "glad", "jubilant")
	rel.Add("big", "enormous")
	rel.Add("oov", "glad")

	vocab := map[string]struct{}{"happy": {}, "glad": {}, "big": {}}
	got := rel.Filter(vocab)
	assert.Equal(t, []string{"happy"}, got.Probes())
	assert.Equal(t, []string{"glad"}, got.Relata("happy"))
}

func TestPaths(t *testing.T) {
	assert.Equal(t, filepath.Join("tasks", "nyms", "syn", "childes_4096.txt"), TaskPath("tasks", "nyms", "syn", "childes", 4096))
	assert.Equal(t, filepath.Join("tasks", "cohyponyms", "childes_4096.txt"), TaskPath("tasks", "cohyponyms", "", "childes", 4096))
	assert.Equal(t, filepath.Join("corpora", "childes_4096_vocab.txt"), VocabPath("corpora", "childes", 4096))
	assert.Equal(t, filepath.Join("corpora", "childes_w2freq.txt"), FreqPath("corpora", "childes"))
}

func TestLoadVocab(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "c_3_vocab.txt", "the\n dog \n\ncat\n")
	vocab, err := LoadVocab(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"the", "dog", "cat"}, vocab)

	empty := writeFile(t, dir, "empty.txt", "\n\n")
	_, err = LoadVocab(empty)
	assert.Error(t, err)

	_, err = LoadVocab(filepath.Join(dir, "nope.txt"))
	assert.ErrorIs(t, err, ErrMissingPrerequisite)
}

func TestLoadFrequencies(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "c_w2freq.txt", "the 120\ndog 7\n\n")
	freqs, err := LoadFrequencies(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"the": 120, "dog": 7}, freqs)

	bad := writeFile(t, dir, "bad.txt", "the many\n")
	_, err = LoadFrequencies(bad)
	assert.Error(t, err)

	short := writeFile(t, dir, "short.txt", "the\n")
	_, err = LoadFrequencies(short)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}
