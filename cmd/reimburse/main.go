// reimburse audits inventory adjustment exports for reimbursable losses.
//
// Usage:
//
//	reimburse audit <file> [--force] [--xlsx claims.xlsx]
//	reimburse batch <dir> [--concurrency 4] [--force]
//	reimburse validate [candidates.json|-]
//	reimburse watch <dir>... [--workers 4] [--initial-scan]
//	reimburse runs [--limit 20]
//	reimburse rules
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
