package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/phueb/twoprocess/internal/models"
)

// Cache stores the score rows of finished trials on disk.
type Cache struct {
	dir string
	mu  sync.Mutex
}

// New creates a new cache instance with the specified directory
func New(dir string) *Cache {
	return &Cache{dir: dir}
}

// KeyInput is everything that determines a trial's rows.
type KeyInput struct {
	Name     string
	Scope    string
	Params   map[string]any
	Config   any
	Shuffled bool
}

// CacheKey hashes a trial's identity. Params are hashed in sorted key order.
func CacheKey(in KeyInput) (string, error) {
	h := sha256.New()

	if err := writeString(h, in.Name); err != nil {
		return "", err
	}
	if err := writeString(h, in.Scope); err != nil {
		return "", err
	}

	names := make([]string, 0, len(in.Params))
	for k := range in.Params {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if err := writeString(h, fmt.Sprintf("%s=%v", k, in.Params[k])); err != nil {
			return "", err
		}
	}

	configJSON, err := json.Marshal(in.Config)
	if err != nil {
		return "", fmt.Errorf("marshaling config: %w", err)
	}
	if _, err := h.Write(configJSON); err != nil {
		return "", err
	}
	if err := writeString(h, fmt.Sprint(in.Shuffled)); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Scope digests input files so a changed embeddings or task file
// invalidates cached rows. Missing files contribute their path.
func Scope(label string, files ...string) (string, error) {
	h := sha256.New()
	if err := writeString(h, label); err != nil {
		return "", err
	}
	sorted := append([]string(nil), files...)
	sort.Strings(sorted)
	for _, f := range sorted {
		if err := hashFile(h, f); err != nil {
			if os.IsNotExist(err) {
				if err := writeString(h, f); err != nil {
					return "", err
				}
				continue
			}
			return "", fmt.Errorf("hashing %s: %w", f, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Get retrieves cached rows if they exist
func (c *Cache) Get(key string) ([]models.ScoreRow, bool) {
	if c.dir == "" {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.cachePath(key))
	if err != nil {
		return nil, false
	}

	var rows []models.ScoreRow
	if err := json.Unmarshal(data, &rows); err != nil {
		// Invalid cache entry, treat as miss
		return nil, false
	}
	return rows, true
}

// Put stores a trial's rows in the cache
func (c *Cache) Put(key string, rows []models.ScoreRow) error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling rows: %w", err)
	}

	if err := os.WriteFile(c.cachePath(key), data, 0644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}
	return nil
}

// Clear removes all cached results
func (c *Cache) Clear() error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := os.Stat(c.dir); os.IsNotExist(err) {
		return nil
	}

	// Only remove directories that hold nothing but cache files
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("reading cache directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			return fmt.Errorf("cache directory contains subdirectories - refusing to delete for safety")
		}
		if filepath.Ext(entry.Name()) != ".json" {
			return fmt.Errorf("cache directory contains non-cache files - refusing to delete for safety")
		}
	}

	return os.RemoveAll(c.dir)
}

func (c *Cache) cachePath(key string) string {
	return filepath.Join(c.dir, key+".json")
}

func writeString(w io.Writer, s string) error {
	// null byte delimiter prevents collisions between adjacent fields
	_, err := w.Write([]byte(s + "\x00"))
	return err
}

func hashFile(h io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	_, err = io.Copy(h, f)
	return err
}
