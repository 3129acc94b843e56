package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/theduckverse/refundhunter-backend/internal/audit"
	"github.com/theduckverse/refundhunter-backend/internal/ingest"
)

type batchLine struct {
	Path   string      `json:"path"`
	RunID  string      `json:"runId,omitempty"`
	Status string      `json:"status,omitempty"`
	Claims int         `json:"claims"`
	Total  json.Number `json:"totalEstimatedValue,omitempty"`
	Reused bool        `json:"reused,omitempty"`
	Error  string      `json:"error,omitempty"`
}

func newBatchCmd(opts *globalOptions) *cobra.Command {
	var (
		concurrency   int
		force         bool
		includeHidden bool
		exts          []string
	)
	cmd := &cobra.Command{
		Use:   "batch <dir>",
		Short: "Audit every supported file under a directory, one JSON line per file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.Close()

			paths, stats, err := ingest.DiscoverFiles(args[0], exts, !includeHidden)
			if err != nil {
				return err
			}
			outcomes, err := a.Auditor.AuditFiles(cmd.Context(), paths, concurrency, force)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			failed := 0
			for _, o := range outcomes {
				line := batchLine{Path: o.Path}
				if o.Err != nil {
					failed++
					line.Error = o.Err.Error()
				} else {
					line.RunID = o.Report.RunID.String()
					line.Status = string(o.Report.Status)
					line.Claims = len(o.Report.Result.Claims)
					line.Total = audit.FormatMoney(o.Report.Result.TotalEstimatedValue)
					line.Reused = o.Report.Reused
				}
				if err := enc.Encode(line); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed (scanned %d)", failed, len(outcomes), stats.Scanned)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&concurrency, "concurrency", 4, "files audited in parallel")
	f.BoolVar(&force, "force", false, "audit again even if a file's content was audited before")
	f.BoolVar(&includeHidden, "include-hidden", false, "include dotfiles and dot-directories")
	f.StringSliceVar(&exts, "ext", nil, "extensions to include (default csv,tsv,txt,xlsx)")
	return cmd
}
