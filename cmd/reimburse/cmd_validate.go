package main

import (
	"github.com/spf13/cobra"
)

func newValidateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [candidates.json|-]",
		Short: "Validate a JSON array of candidate claims and print the accepted claims",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			a, err := buildApp(cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.Close()
			return writeJSON(cmd.OutOrStdout(), a.Auditor.ValidateCandidates(b))
		},
	}
}
