package main

import (
	"fmt"

	"github.com/phueb/twoprocess/internal/config"
	"github.com/phueb/twoprocess/internal/models"
	"github.com/phueb/twoprocess/internal/params"
	"github.com/phueb/twoprocess/internal/reporting"
	"github.com/spf13/cobra"
)

func newGridCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "grid [experiment.yaml]",
		Short: "List the trials of an experiment's parameter grid",
		Long: `Expand the architecture and evaluation parameter groups of an experiment
into trials and print them in run order.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(experimentPath(args))
			if err != nil {
				return err
			}
			grid, err := params.Expand(cfg.Architecture.Params, cfg.EvalParams, cfg.Metadata())
			if err != nil {
				return err
			}
			header := params.Header(cfg.Architecture.Params, cfg.EvalParams)

			rows := make([][]string, len(grid))
			for i, tp := range grid {
				row := []string{fmt.Sprint(tp.ID)}
				for _, v := range tp.Values(header) {
					row = append(row, models.FormatValue(v))
				}
				rows[i] = row
			}
			out := cmd.OutOrStdout()
			reporting.WriteTable(out, append([]string{"trial"}, header...), rows)
			fmt.Fprintf(out, "\n%d trial(s)\n", len(grid)) //nolint:errcheck
			return nil
		},
	}
}
