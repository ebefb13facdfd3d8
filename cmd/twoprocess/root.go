package main

import (
	"log/slog"

	"github.com/phueb/twoprocess/internal/config"
	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "twoprocess",
		Short: "twoprocess - evaluate word embeddings on lexical relation tasks",
		Long: `twoprocess evaluates word embeddings on lexical relation tasks such as
synonym matching and hypernym identification.

Every experiment scores raw cosine similarities (the novice) and then trains
an expert architecture across cross-validation folds for every point of a
hyperparameter grid.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newGridCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newInitCommand())
	cmd.AddCommand(newCacheCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}

func experimentPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return config.DefaultFileName
}
