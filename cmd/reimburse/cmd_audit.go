package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newAuditCmd(opts *globalOptions) *cobra.Command {
	var (
		force bool
		xlsx  string
	)
	cmd := &cobra.Command{
		Use:   "audit <file>",
		Short: "Audit one adjustment export and print the claims as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			rep, err := a.Auditor.AuditFile(cmd.Context(), args[0], force)
			if err != nil {
				return err
			}
			if xlsx != "" {
				b, err := a.Exporter.ClaimsXLSX(rep.Result)
				if err != nil {
					return err
				}
				if err := os.WriteFile(xlsx, b, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", xlsx, err)
				}
			}
			return writeJSON(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "audit again even if this content was audited before")
	cmd.Flags().StringVar(&xlsx, "xlsx", "", "also write the claims to this XLSX file")
	return cmd
}
