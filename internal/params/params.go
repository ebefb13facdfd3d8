// Package params expands hyperparameter groups into the deterministic grid of
// concrete trial assignments.
package params

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"
)

// PrivatePrefix marks bookkeeping entries that never become grid dimensions.
const PrivatePrefix = "_"

// Metadata keys merged into every assignment.
const (
	KeyCorpusName = "corpus_name"
	KeyNumVocab   = "num_vocab"
)

var (
	// ErrEmptyOptions is returned when a parameter has no candidate values. The
	// product of option counts would be zero, which is always a configuration bug.
	ErrEmptyOptions = errors.New("parameter has no options")

	// ErrGridInvariant is returned when the enumerated grid does not match the
	// product of option counts or contains a repeated combination.
	ErrGridInvariant = errors.New("parameter grid invariant violated")
)

// Group maps a hyperparameter name to its candidate values.
type Group map[string][]any

// UnmarshalYAML accepts both sequences and scalars; a scalar becomes a
// single-option list.
func (g *Group) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	out := make(Group, len(raw))
	for k, v := range raw {
		if list, ok := v.([]any); ok {
			out[k] = list
			continue
		}
		out[k] = []any{v}
	}
	*g = out
	return nil
}

// Names returns the sorted public names of the group.
func (g Group) Names() []string {
	names := make([]string, 0, len(g))
	for k := range g {
		if strings.HasPrefix(k, PrivatePrefix) {
			continue
		}
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// Metadata is the fixed corpus information merged into every trial.
type Metadata struct {
	CorpusName string
	NumVocab   int
}

func (m Metadata) group() Group {
	return Group{
		KeyCorpusName: {m.CorpusName},
		KeyNumVocab:   {m.NumVocab},
	}
}

// TrialParams is one concrete assignment of the grid.
type TrialParams struct {
	ID     int
	values map[string]any
}

// NewTrialParams builds an assignment directly, mostly useful for tests and
// single-trial runs.
func NewTrialParams(id int, values map[string]any) TrialParams {
	cp := make(map[string]any, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return TrialParams{ID: id, values: cp}
}

// Get returns the value assigned to name.
func (p TrialParams) Get(name string) (any, bool) {
	v, ok := p.values[name]
	return v, ok
}

// Bool returns the named value as a bool. Missing or non-bool values are false.
func (p TrialParams) Bool(name string) bool {
	b, _ := p.values[name].(bool)
	return b
}

// Int returns the named value as an int, accepting any numeric YAML decoding.
func (p TrialParams) Int(name string) (int, bool) {
	switch v := p.values[name].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// Values returns the values for the given names in order.
func (p TrialParams) Values(names []string) []any {
	out := make([]any, len(names))
	for i, n := range names {
		out[i] = p.values[n]
	}
	return out
}

// Map returns a copy of all assigned values.
func (p TrialParams) Map() map[string]any {
	out := make(map[string]any, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// Decode copies the assignment into a struct tagged with `mapstructure`.
func (p TrialParams) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(p.values); err != nil {
		return fmt.Errorf("decoding trial %d params: %w", p.ID, err)
	}
	return nil
}

func (p TrialParams) String() string {
	names := make([]string, 0, len(p.values))
	for k := range p.values {
		names = append(names, k)
	}
	slices.Sort(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("%s=%v", n, p.values[n])
	}
	return fmt.Sprintf("trial %d {%s}", p.ID, strings.Join(parts, " "))
}

// Header returns the sorted public parameter names of both groups. These are the
// hyperparameter columns of every score row.
func Header(arch, eval Group) []string {
	seen := map[string]bool{}
	var names []string
	for _, g := range []Group{arch, eval} {
		for _, n := range g.Names() {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	slices.Sort(names)
	return names
}

// Expand returns every assignment of the cross product of arch, eval and meta.
// Names are visited in sorted order and the first name varies slowest, so the
// same configuration always yields the same trial IDs. When a name appears in
// more than one group the later group wins (arch < eval < meta).
func Expand(arch, eval Group, meta Metadata) ([]TrialParams, error) {
	merged := Group{}
	for _, g := range []Group{arch, eval, meta.group()} {
		for k, v := range g {
			merged[k] = v
		}
	}

	names := merged.Names()
	lengths := make([]int, len(names))
	total := 1
	for i, n := range names {
		lengths[i] = len(merged[n])
		if lengths[i] == 0 {
			return nil, fmt.Errorf("%w: %q", ErrEmptyOptions, n)
		}
		total *= lengths[i]
	}

	combos := odometer(lengths, total)
	out := make([]TrialParams, len(combos))
	for id, idx := range combos {
		values := make(map[string]any, len(names))
		for i, n := range names {
			values[n] = merged[n][idx[i]]
		}
		out[id] = TrialParams{ID: id, values: values}
	}
	if err := checkAssignments(out, names, total); err != nil {
		return nil, err
	}
	return out, nil
}

// odometer enumerates mixed-radix index vectors, last position fastest.
func odometer(lengths []int, total int) [][]int {
	combos := make([][]int, 0, total)
	cur := make([]int, len(lengths))
	for range total {
		combos = append(combos, slices.Clone(cur))
		for pos := len(cur) - 1; pos >= 0; pos-- {
			cur[pos]++
			if cur[pos] < lengths[pos] {
				break
			}
			cur[pos] = 0
		}
	}
	return combos
}

// checkAssignments verifies the grid has total assignments and that no two
// of them carry the same values. Repeated options such as lr: [0.1, 0.1]
// fail here.
func checkAssignments(assignments []TrialParams, names []string, total int) error {
	if len(assignments) != total {
		return fmt.Errorf("%w: %d assignments, expected %d", ErrGridInvariant, len(assignments), total)
	}
	seen := make(map[string]int, len(assignments))
	for _, a := range assignments {
		k := fmt.Sprint(a.Values(names))
		if first, dup := seen[k]; dup {
			return fmt.Errorf("%w: trials %d and %d share the values %s", ErrGridInvariant, first, a.ID, k)
		}
		seen[k] = a.ID
	}
	return nil
}
