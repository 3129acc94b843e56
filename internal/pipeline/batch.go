package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// FileOutcome pairs one input path with its report or failure.
type FileOutcome struct {
	Path   string
	Report *Report
	Err    error
}

// AuditFiles audits paths with at most concurrency files in flight. A failing
// file does not stop the others; outcomes keep the order of paths.
func (a *Auditor) AuditFiles(ctx context.Context, paths []string, concurrency int, force bool) ([]FileOutcome, error) {
	start := time.Now()
	if concurrency <= 0 {
		concurrency = 4
	}
	out := make([]FileOutcome, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				out[i] = FileOutcome{Path: p, Err: err}
				return err
			}
			rep, err := a.AuditFile(gctx, p, force)
			out[i] = FileOutcome{Path: p, Report: rep, Err: err}
			return nil
		})
	}
	err := g.Wait()

	failed := 0
	for _, o := range out {
		if o.Err != nil {
			failed++
		}
	}
	a.logger.Info("audit.batch.done",
		"files", len(paths),
		"failed", failed,
		"concurrency", concurrency,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, err
}
