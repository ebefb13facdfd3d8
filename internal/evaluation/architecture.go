package evaluation

import (
	"context"

	"github.com/phueb/twoprocess/internal/embeddings"
)

//go:generate go tool mockgen -source=architecture.go -destination=architecture_mocks_test.go -package=evaluation

// FoldData is the train/test split an architecture produced for one fold.
type FoldData any

// Model is an architecture's trainable state for one fold.
type Model any

// Architecture adapts embeddings to a task. Every method runs inside one
// trial's worker; implementations must not share mutable state across
// trials.
type Architecture interface {
	Name() string

	// InitResults may resize or annotate the freshly allocated results and
	// must set EpochsPerEval.
	InitResults(h *Harness, trial *Trial, base *ResultsData) (*ResultsData, error)

	// SplitAndVectorize builds the data for the given held-out fold.
	SplitAndVectorize(h *Harness, trial *Trial, emb *embeddings.Embeddings, fold int, shuffled bool) (FoldData, error)

	BuildModel(h *Harness, trial *Trial, emb *embeddings.Embeddings) (Model, error)

	// TrainFold trains on the training partition and fills trial.Results
	// for the held-out rows at every checkpoint.
	TrainFold(ctx context.Context, h *Harness, trial *Trial, emb *embeddings.Embeddings, model Model, data FoldData, fold int) error
}

// TestFoldTrainer is implemented by architectures that also train on the
// held-out fold after TrainFold.
type TestFoldTrainer interface {
	TrainTestFold(ctx context.Context, h *Harness, trial *Trial, model Model, data FoldData, fold int) error
}
