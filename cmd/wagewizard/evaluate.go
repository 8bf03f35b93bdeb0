package main

import (
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/wagewizard/training"
)

func (c *cli) evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Recompute held-out metrics from the published artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := training.New(c.cfg).Evaluate(cmd.Context())
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	return cmd
}
