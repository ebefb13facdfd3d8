package main

import (
	"fmt"

	"github.com/phueb/twoprocess/internal/validation"
	"github.com/spf13/cobra"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [experiment.yaml]",
		Short: "Check an experiment file without running it",
		Long: `Check an experiment file against the schema, validate the merged
configuration and report missing task, vocabulary or vectors files.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := experimentPath(args)
			report, err := validation.ValidateExperimentFile(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range report.SchemaErrors {
				fmt.Fprintf(out, "schema: %s\n", e) //nolint:errcheck
			}
			for _, e := range report.ConfigErrors {
				fmt.Fprintf(out, "config: %s\n", e) //nolint:errcheck
			}
			for _, p := range report.MissingFiles {
				fmt.Fprintf(out, "missing: %s\n", p) //nolint:errcheck
			}
			if !report.OK() {
				return fmt.Errorf("%s is not runnable", path)
			}
			fmt.Fprintf(out, "✓ %s is valid\n", path) //nolint:errcheck
			return nil
		},
	}
}
