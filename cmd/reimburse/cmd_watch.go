package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/theduckverse/refundhunter-backend/internal/async"
	"github.com/theduckverse/refundhunter-backend/internal/ingest"
)

func newWatchCmd(opts *globalOptions) *cobra.Command {
	var (
		workers     int
		initialScan bool
		debounce    time.Duration
		force       bool
	)
	cmd := &cobra.Command{
		Use:   "watch <dir>...",
		Short: "Audit adjustment files as they appear in drop folders",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd, opts, false)
			if err != nil {
				return err
			}
			defer a.Close()
			logger := slog.Default()

			ctx := cmd.Context()
			paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
				Roots:       args,
				InitialScan: initialScan,
				Debounce:    debounce,
				Logger:      logger,
			})
			if err != nil {
				return err
			}

			q := async.NewProcessorQueue(a.Auditor, logger, async.WithWorkers(workers))
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				q.Shutdown(shutdownCtx)
			}()

			logger.Info("watching", "roots", args, "workers", workers)
			for {
				select {
				case p, ok := <-paths:
					if !ok {
						return nil
					}
					if err := q.Enqueue(ctx, async.Job{Path: p, Force: force}); err != nil {
						logger.Warn("enqueue failed", "path", p, "error", err)
					}
				case err, ok := <-errs:
					if !ok {
						errs = nil
						continue
					}
					logger.Warn("watcher error", "error", err)
				case <-ctx.Done():
					return nil
				}
			}
		},
	}
	f := cmd.Flags()
	f.IntVar(&workers, "workers", 4, "files audited in parallel")
	f.BoolVar(&initialScan, "initial-scan", true, "audit files already present at startup")
	f.DurationVar(&debounce, "debounce", 500*time.Millisecond, "quiet period before a changed file is audited")
	f.BoolVar(&force, "force", false, "audit rewritten files even if their content was audited before")
	return cmd
}
