// Package dataset loads the offline prerequisites of an evaluation: the
// corpus vocabulary, word frequencies and probe→relata task files.
package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// ErrMissingPrerequisite marks a file that an offline preprocessing step
// should have produced.
var ErrMissingPrerequisite = errors.New("missing prerequisite")

func requireFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s does not exist, run the preprocessing step that creates it", ErrMissingPrerequisite, path)
		}
		return err
	}
	return nil
}

// Relations maps each probe to the words in a true relation with it.
type Relations struct {
	probes []string
	relata map[string][]string
	lookup map[string]map[string]struct{}
}

// NewRelations returns an empty mapping.
func NewRelations() *Relations {
	return &Relations{
		relata: map[string][]string{},
		lookup: map[string]map[string]struct{}{},
	}
}

// Add records relatum as a true relation of probe. Duplicates are ignored.
func (r *Relations) Add(probe string, relata ...string) {
	if _, ok := r.lookup[probe]; !ok {
		r.probes = append(r.probes, probe)
		r.lookup[probe] = map[string]struct{}{}
	}
	for _, w := range relata {
		if _, dup := r.lookup[probe][w]; dup {
			continue
		}
		r.lookup[probe][w] = struct{}{}
		r.relata[probe] = append(r.relata[probe], w)
	}
}

// Probes returns probes in insertion order.
func (r *Relations) Probes() []string {
	return slices.Clone(r.probes)
}

// Relata returns the relata of probe in insertion order.
func (r *Relations) Relata(probe string) []string {
	return slices.Clone(r.relata[probe])
}

// IsRelated reports whether candidate is a true relatum of probe.
func (r *Relations) IsRelated(probe, candidate string) bool {
	_, ok := r.lookup[probe][candidate]
	return ok
}

// Len returns the number of probes.
func (r *Relations) Len() int {
	return len(r.probes)
}

// AllRelata returns the sorted set of every relatum.
func (r *Relations) AllRelata() []string {
	seen := map[string]struct{}{}
	for _, rel := range r.relata {
		for _, w := range rel {
			seen[w] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for w := range seen {
		out = append(out, w)
	}
	slices.Sort(out)
	return out
}

// Filter keeps only probes and relata present in vocab.
func (r *Relations) Filter(vocab map[string]struct{}) *Relations {
	out := NewRelations()
	for _, p := range r.probes {
		if _, ok := vocab[p]; !ok {
			continue
		}
		var kept []string
		for _, w := range r.relata[p] {
			if _, ok := vocab[w]; ok {
				kept = append(kept, w)
			}
		}
		if len(kept) > 0 {
			out.Add(p, kept...)
		}
	}
	return out
}

// TaskPath returns <tasksDir>/<dataName1>[/<dataName2>]/<corpus>_<numVocab>.txt.
func TaskPath(tasksDir, dataName1, dataName2, corpus string, numVocab int) string {
	dir := filepath.Join(tasksDir, dataName1)
	if dataName2 != "" {
		dir = filepath.Join(dir, dataName2)
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%d.txt", corpus, numVocab))
}

// LoadRelations reads a task file where every line is "probe relatum...".
// A .csv extension is delegated to LoadRelationsCSV.
func LoadRelations(path string) (*Relations, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return LoadRelationsCSV(path)
	}
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	rel := NewRelations()
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		rel.Add(fields[0], fields[1:]...)
	}
	if rel.Len() == 0 {
		return nil, fmt.Errorf("task file %s has no probe with relata", path)
	}
	return rel, nil
}

// VocabPath returns <corporaDir>/<corpus>_<numVocab>_vocab.txt.
func VocabPath(corporaDir, corpus string, numVocab int) string {
	return filepath.Join(corporaDir, fmt.Sprintf("%s_%d_vocab.txt", corpus, numVocab))
}

// LoadVocab reads one word per line.
func LoadVocab(path string) ([]string, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	vocab := make([]string, 0, len(lines))
	for _, line := range lines {
		if w := strings.TrimSpace(line); w != "" {
			vocab = append(vocab, w)
		}
	}
	if len(vocab) == 0 {
		return nil, fmt.Errorf("vocab file %s is empty", path)
	}
	return vocab, nil
}

// LoadTask reads a task file, dispatching on its extension: ".csv" files go
// through LoadRelationsCSV, everything else through LoadRelations.
func LoadTask(path string) (*Relations, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return LoadRelationsCSV(path)
	}
	return LoadRelations(path)
}

// FreqPath returns <corporaDir>/<corpus>_w2freq.txt.
func FreqPath(corporaDir, corpus string) string {
	return filepath.Join(corporaDir, fmt.Sprintf("%s_w2freq.txt", corpus))
}

// LoadFrequencies reads "word count" lines.
func LoadFrequencies(path string) (map[string]int, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	freqs := make(map[string]int, len(lines))
	for i, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, fmt.Errorf("%s line %d: expected \"word count\", got %q", path, i+1, line)
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, i+1, err)
		}
		freqs[fields[0]] = n
	}
	return freqs, nil
}

func readLines(path string) ([]string, error) {
	if err := requireFile(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return lines, nil
}
