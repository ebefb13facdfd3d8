package orchestration

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/phueb/twoprocess/internal/architectures/comparator"
	"github.com/phueb/twoprocess/internal/config"
	"github.com/phueb/twoprocess/internal/evaluation"
)

var (
	// ErrUnknownArchitecture is returned for architecture names with no
	// registered factory.
	ErrUnknownArchitecture = errors.New("unknown architecture")

	// ErrUnknownTask is returned for evaluator names other than matching and
	// identification.
	ErrUnknownTask = errors.New("unknown task")
)

// ArchitectureFactory builds a fresh architecture.
type ArchitectureFactory func() evaluation.Architecture

var architectures = map[string]ArchitectureFactory{
	comparator.Name: func() evaluation.Architecture { return comparator.New() },
}

// NewArchitecture looks up name in the registry.
func NewArchitecture(name string) (evaluation.Architecture, error) {
	f, ok := architectures[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %v)", ErrUnknownArchitecture, name, ArchitectureNames())
	}
	return f(), nil
}

// ArchitectureNames lists the registered architectures in sorted order.
func ArchitectureNames() []string {
	return slices.Sorted(maps.Keys(architectures))
}

// TaskNames lists the evaluators.
func TaskNames() []string {
	return []string{evaluation.TaskIdentification, evaluation.TaskMatching}
}

// NewTask builds the evaluator named in tc. seed drives lure sampling.
func NewTask(tc config.TaskConfig, seed uint64) (evaluation.Task, error) {
	switch tc.Evaluator {
	case evaluation.TaskMatching:
		return evaluation.Matching{}, nil
	case evaluation.TaskIdentification:
		return evaluation.Identification{NumRelata: tc.NumRelata, NumLures: tc.NumLures, Seed: seed}, nil
	default:
		return nil, fmt.Errorf("%w %q (available: %v)", ErrUnknownTask, tc.Evaluator, TaskNames())
	}
}
