// Package wizard collects an experiment configuration interactively.
package wizard

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/phueb/twoprocess/internal/config"
	"github.com/phueb/twoprocess/internal/embeddings"
	"github.com/phueb/twoprocess/internal/evaluation"
	"github.com/phueb/twoprocess/internal/params"
	"github.com/phueb/twoprocess/internal/scoring"
	"golang.org/x/term"
)

// Answers holds the raw fields collected by the wizard.
type Answers struct {
	Name          string
	CorpusName    string
	NumVocab      string
	EmbedderKind  string
	EmbedderPath  string
	Evaluator     string
	DataName1     string
	DataName2     string
	Architecture  string
	Metric        string
	NumEpochs     string
	LearningRates string
}

// RunExperimentWizard runs an interactive huh form and returns the
// experiment it describes. If initialName is non-empty, it pre-populates the
// name field.
func RunExperimentWizard(in io.Reader, out io.Writer, initialName string, architectures []string) (*config.Experiment, error) {
	a := Answers{
		Name:          initialName,
		CorpusName:    config.DefaultCorpusName,
		NumVocab:      strconv.Itoa(config.DefaultNumVocab),
		EmbedderKind:  config.DefaultEmbedderKind,
		Evaluator:     config.DefaultEvaluator,
		DataName1:     config.DefaultDataName1,
		DataName2:     config.DefaultDataName2,
		Metric:        config.DefaultMetric,
		NumEpochs:     "100",
		LearningRates: "0.1",
	}
	if len(architectures) > 0 {
		a.Architecture = architectures[0]
	}

	archOptions := make([]huh.Option[string], len(architectures))
	for i, name := range architectures {
		archOptions[i] = huh.NewOption(name, name)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Experiment name").
				Placeholder("nouns-cohyponyms").
				Value(&a.Name).
				Validate(required("experiment name")),
			huh.NewInput().
				Title("Corpus name").
				Value(&a.CorpusName).
				Validate(required("corpus name")),
			huh.NewInput().
				Title("Vocabulary size").
				Value(&a.NumVocab).
				Validate(positiveInt),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Embedder").
				Options(
					huh.NewOption("random control", embeddings.KindRandom),
					huh.NewOption("text vectors file", embeddings.KindText),
				).
				Value(&a.EmbedderKind),
			huh.NewInput().
				Title("Vectors file").
				Description("Only used by the text embedder").
				Placeholder("vectors/glove.txt").
				Value(&a.EmbedderPath),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Evaluator").
				Options(
					huh.NewOption("matching", evaluation.TaskMatching),
					huh.NewOption("identification", evaluation.TaskIdentification),
				).
				Value(&a.Evaluator),
			huh.NewInput().
				Title("Data name").
				Description("Task directory under the tasks path").
				Value(&a.DataName1).
				Validate(required("data name")),
			huh.NewInput().
				Title("Relation").
				Description("Optional subdirectory, e.g. cohyponyms").
				Value(&a.DataName2),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Architecture").
				Options(archOptions...).
				Value(&a.Architecture),
			huh.NewSelect[string]().
				Title("Metric").
				Options(
					huh.NewOption("balanced accuracy", string(scoring.MetricBalAcc)),
					huh.NewOption("F1", string(scoring.MetricF1)),
					huh.NewOption("Cohen's kappa", string(scoring.MetricCohensKappa)),
				).
				Value(&a.Metric),
			huh.NewInput().
				Title("Epochs").
				Description("Comma-separated grid values").
				Value(&a.NumEpochs).
				Validate(func(s string) error { _, err := parseList(s); return err }),
			huh.NewInput().
				Title("Learning rates").
				Description("Comma-separated grid values").
				Value(&a.LearningRates).
				Validate(func(s string) error { _, err := parseList(s); return err }),
		),
	).
		WithInput(in).
		WithOutput(out)

	// Use accessible mode for non-TTY input (e.g., tests, piped input).
	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("wizard failed: %w", err)
	}
	return a.Experiment()
}

// Experiment converts the answers onto the configuration defaults.
func (a Answers) Experiment() (*config.Experiment, error) {
	cfg := config.New()
	cfg.Name = strings.TrimSpace(a.Name)
	cfg.Corpus.Name = strings.TrimSpace(a.CorpusName)

	n, err := strconv.Atoi(strings.TrimSpace(a.NumVocab))
	if err != nil {
		return nil, fmt.Errorf("vocabulary size: %w", err)
	}
	cfg.Corpus.NumVocab = n

	if a.EmbedderKind == embeddings.KindText {
		cfg.Embedder = embeddings.Spec{Kind: embeddings.KindText, Path: strings.TrimSpace(a.EmbedderPath)}
	}

	cfg.Task.Evaluator = a.Evaluator
	cfg.Task.DataName1 = strings.TrimSpace(a.DataName1)
	cfg.Task.DataName2 = strings.TrimSpace(a.DataName2)
	cfg.Architecture.Name = a.Architecture
	cfg.Eval.Metric = a.Metric

	grid := params.Group{}
	for name, raw := range map[string]string{"num_epochs": a.NumEpochs, "learning_rate": a.LearningRates} {
		values, err := parseList(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if len(values) > 0 {
			grid[name] = values
		}
	}
	cfg.Architecture.Params = grid

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func positiveInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return fmt.Errorf("must be a positive integer")
	}
	return nil
}

// parseList turns "10, 20" into []any{10, 20}. Integers stay integers so
// the grid matches what a YAML file would produce.
func parseList(s string) ([]any, error) {
	var out []any
	for _, part := range splitAndTrim(s) {
		if n, err := strconv.Atoi(part); err == nil {
			out = append(out, n)
			continue
		}
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", part)
		}
		out = append(out, f)
	}
	return out, nil
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
