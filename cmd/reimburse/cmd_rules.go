package main

import (
	"github.com/spf13/cobra"

	"github.com/theduckverse/refundhunter-backend/internal/rules"
)

func newRulesCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Print the effective rules as YAML, a starting point for --rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := rules.Default()
			if opts.rulesFile != "" {
				loaded, err := rules.Load(opts.rulesFile)
				if err != nil {
					return err
				}
				r = loaded
			}
			b, err := r.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
}
