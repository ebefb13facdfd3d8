package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/phueb/twoprocess/internal/config"
	"github.com/phueb/twoprocess/internal/orchestration"
	"github.com/phueb/twoprocess/internal/params"
	"github.com/phueb/twoprocess/internal/wizard"
	"github.com/spf13/cobra"
)

func newInitCommand() *cobra.Command {
	var (
		interactive bool
		force       bool
	)

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create an experiment.yaml",
		Long: `Create an experiment.yaml with the default settings in the given
directory, or the current directory if none is given.

Use --interactive to run a guided wizard instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return initCommandE(cmd, args, interactive, force)
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Run the guided experiment wizard")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing experiment.yaml")

	return cmd
}

func initCommandE(cmd *cobra.Command, args []string, interactive, force bool) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	path := filepath.Join(dir, config.DefaultFileName)
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", path, err)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", dir, err)
	}
	name := filepath.Base(absDir)

	var cfg *config.Experiment
	if interactive {
		cfg, err = wizard.RunExperimentWizard(cmd.InOrStdin(), cmd.OutOrStdout(), name, orchestration.ArchitectureNames())
		if err != nil {
			return err
		}
	} else {
		cfg = config.New()
		cfg.Name = name
		cfg.Architecture.Params = params.Group{
			"num_epochs":    {50, 100},
			"learning_rate": {0.1},
		}
	}

	if err := cfg.Save(path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path) //nolint:errcheck
	return nil
}
