package async

import (
	"context"
	"time"
)

// Job is one file audit request.
type Job struct {
	Path        string
	Force       bool // audit even if the content was already audited
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// FileProcessor is implemented by pipeline.Auditor.
type FileProcessor interface {
	ProcessFile(ctx context.Context, path string, force bool) error
}
