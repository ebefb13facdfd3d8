package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"

	"github.com/phueb/twoprocess/internal/config"
	"github.com/phueb/twoprocess/internal/models"
	"github.com/phueb/twoprocess/internal/orchestration"
	"github.com/phueb/twoprocess/internal/reporting"
	"github.com/phueb/twoprocess/internal/spinner"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type runOptions struct {
	workers         int
	debugTrial      bool
	shuffledControl bool
	noCache         bool
	outputDir       string
	interpret       bool
	quiet           bool
}

func newRunCommand() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [experiment.yaml]",
		Short: "Run an experiment",
		Long: `Run an experiment: score the novice, train the expert for every trial of
the parameter grid and write the score files.

Interrupting with Ctrl-C stops outstanding trials at their next fold and
exits with status 1 without writing scores. --debug-trial runs only the first
trial, in-process, and also exits with status 1.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runCommandE(ctx, cmd, experimentPath(args), opts)
		},
	}

	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Number of concurrent trials (default: eval.workers or the CPU count, max 4)")
	cmd.Flags().BoolVar(&opts.debugTrial, "debug-trial", false, "Run only the first trial without the worker pool and save nothing")
	cmd.Flags().BoolVar(&opts.shuffledControl, "shuffled-control", false, "Also train on shuffled labels")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "Ignore and do not write cached trial rows")
	cmd.Flags().StringVarP(&opts.outputDir, "output", "o", "", "Directory for score files (default: next to the artifacts)")
	cmd.Flags().BoolVar(&opts.interpret, "interpret", false, "Print a plain-language interpretation of the results")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Only print the summary")

	return cmd
}

func runCommandE(ctx context.Context, cmd *cobra.Command, path string, opts runOptions) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	applyRunFlags(cfg, opts)

	out := cmd.OutOrStdout()
	runner := orchestration.NewRunner(cfg, orchestration.WithLogger(slog.Default()))
	if !opts.quiet {
		if isTerminal(out) {
			sp := spinner.Start(out, fmt.Sprintf("Loading %s and building %s data", cfg.Embedder.Name(), cfg.Task.DataName()))
			defer sp.Stop()
			runner.OnProgress(func(ev orchestration.ProgressEvent) {
				if ev.EventType == orchestration.EventExperimentStart {
					sp.Stop()
				}
			})
		}
		runner.OnProgress(progressPrinter(out))
	}

	outcome, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(out) //nolint:errcheck
	bests := slices.Concat(outcome.Digest.TrialBests, models.BestPerTrial(outcome.Control, models.ProcessControl))
	reporting.WriteTrialTable(out, outcome.Header, bests)
	fmt.Fprintln(out) //nolint:errcheck

	if opts.interpret {
		fmt.Fprint(out, reporting.FormatSummaryReport(outcome)) //nolint:errcheck
	} else {
		fmt.Fprintf(out, "Novice %.3f, mean best expert %.3f\n", outcome.Digest.NoviceScore, outcome.Digest.MeanBest) //nolint:errcheck
	}

	if !cfg.SaveScores() {
		return nil
	}
	dir := opts.outputDir
	if dir == "" {
		dir = filepath.Join(runner.ArtifactRoot(), outcome.Architecture, outcome.Task, outcome.DataName)
	}
	written, err := reporting.SaveOutcome(dir, outcome)
	if err != nil {
		return fmt.Errorf("saving scores: %w", err)
	}
	for _, p := range written {
		fmt.Fprintf(out, "Saved %s\n", p) //nolint:errcheck
	}
	return nil
}

func applyRunFlags(cfg *config.Experiment, opts runOptions) {
	if opts.workers > 0 {
		cfg.Eval.Workers = opts.workers
	}
	if opts.debugTrial {
		on := true
		cfg.Eval.Debug = &on
	}
	if opts.shuffledControl {
		on := true
		cfg.Eval.ShuffledControl = &on
	}
	if opts.noCache {
		off := false
		cfg.Eval.Cache = &off
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func progressPrinter(w io.Writer) orchestration.ProgressListener {
	return func(ev orchestration.ProgressEvent) {
		switch ev.EventType {
		case orchestration.EventExperimentStart:
			fmt.Fprintf(w, "Running %s: %d trial(s), %v rows × %v cols, pos_prob %.3f\n", //nolint:errcheck
				ev.Name, ev.TotalTrials, ev.Details["rows"], ev.Details["cols"], ev.Details["pos_prob"])
		case orchestration.EventNoviceScored:
			fmt.Fprintf(w, "Novice score: %.3f\n", ev.Score) //nolint:errcheck
		case orchestration.EventPhaseStart:
			fmt.Fprintf(w, "Training %s on %d trial(s)\n", ev.Process, ev.TotalTrials) //nolint:errcheck
		case orchestration.EventTrialComplete:
			cached := ""
			if ev.Cached {
				cached = " (cached)"
			}
			fmt.Fprintf(w, "  trial %d %s: best %.3f at epoch %d%s\n", ev.TrialID, ev.Process, ev.Score, ev.NumEpochs, cached) //nolint:errcheck
		}
	}
}
