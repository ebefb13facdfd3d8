package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/phueb/twoprocess/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseInput() KeyInput {
	return KeyInput{
		Name:   "comparator_matching_nyms_syn",
		Scope:  "scope",
		Params: map[string]any{"num_epochs": 100, "standardize": true},
		Config: map[string]any{"num_folds": 4},
	}
}

func TestCacheKey_Stable(t *testing.T) {
	a, err := CacheKey(baseInput())
	require.NoError(t, err)
	b, err := CacheKey(baseInput())
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestCacheKey_ChangesWithInputs(t *testing.T) {
	base, err := CacheKey(baseInput())
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*KeyInput)
	}{
		{"param", func(in *KeyInput) { in.Params = map[string]any{"num_epochs": 200, "standardize": true} }},
		{"shuffled", func(in *KeyInput) { in.Shuffled = true }},
		{"scope", func(in *KeyInput) { in.Scope = "other" }},
		{"config", func(in *KeyInput) { in.Config = map[string]any{"num_folds": 5} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := baseInput()
			tt.mutate(&in)
			got, err := CacheKey(in)
			require.NoError(t, err)
			assert.NotEqual(t, base, got)
		})
	}
}

func TestCacheKey_NoHashCollision(t *testing.T) {
	a, err := CacheKey(KeyInput{Name: "ab", Scope: "c"})
	require.NoError(t, err)
	b, err := CacheKey(KeyInput{Name: "a", Scope: "bc"})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestScope_TracksFileContent(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "task.txt")
	require.NoError(t, os.WriteFile(p, []byte("happy glad\n"), 0o644))

	s1, err := Scope("glove", p)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(p, []byte("happy cheerful\n"), 0o644))
	s2, err := Scope("glove", p)
	require.NoError(t, err)
	assert.NotEqual(t, s1, s2)

	missing, err := Scope("glove", filepath.Join(dir, "missing.txt"))
	require.NoError(t, err)
	assert.NotEmpty(t, missing)
}

func TestCache_GetPut(t *testing.T) {
	c := New(t.TempDir())
	rows := []models.ScoreRow{
		{Score: 0.8, Values: []any{"srn", 100}, NumEpochs: 10, TrialID: 3},
	}

	_, ok := c.Get("k")
	assert.False(t, ok)

	require.NoError(t, c.Put("k", rows))
	got, ok := c.Get("k")
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, 0.8, got[0].Score)
	assert.Equal(t, 10, got[0].Epochs())
	assert.Equal(t, 3, got[0].TrialID)
	assert.Equal(t, []string{"0.8", "srn", "100", "10"}, got[0].Record())
}

func TestCache_EmptyDir(t *testing.T) {
	c := New("")
	require.NoError(t, c.Put("k", nil))
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.NoError(t, c.Clear())
}

func TestCache_Clear(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c := New(dir)
	require.NoError(t, c.Put("k", []models.ScoreRow{{Score: 1}}))
	require.NoError(t, c.Clear())
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	err = c.Clear()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-cache files")
}

func TestCache_ConcurrentOperations(t *testing.T) {
	c := New(t.TempDir())
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%5)
			assert.NoError(t, c.Put(key, []models.ScoreRow{{Score: float64(i)}}))
			c.Get(key)
		}()
	}
	wg.Wait()
}
