package async

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theduckverse/refundhunter-backend/internal/common"
)

type recordingProcessor struct {
	mu     sync.Mutex
	paths  []string
	forced map[string]bool
	reqIDs []string
	fail   string
}

func (r *recordingProcessor) ProcessFile(ctx context.Context, path string, force bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	r.forced[path] = force
	r.reqIDs = append(r.reqIDs, common.RequestIDFromContext(ctx))
	if path == r.fail {
		return errors.New("boom")
	}
	return nil
}

func TestProcessorQueue_ProcessesAllJobs(t *testing.T) {
	proc := &recordingProcessor{forced: map[string]bool{}, fail: "b.csv"}
	var mu sync.Mutex
	var failed []string
	q := NewProcessorQueue(proc, nil,
		WithWorkers(2),
		WithQueueSize(1),
		WithProcessTimeout(time.Second),
		WithOnDone(func(j Job, err error) {
			if err != nil {
				mu.Lock()
				failed = append(failed, j.Path)
				mu.Unlock()
			}
		}),
	)

	ctx := context.Background()
	for _, p := range []string{"a.csv", "b.csv", "c.csv"} {
		require.NoError(t, q.Enqueue(ctx, Job{Path: p, Force: p == "c.csv"}))
	}
	q.Shutdown(ctx)

	sort.Strings(proc.paths)
	assert.Equal(t, []string{"a.csv", "b.csv", "c.csv"}, proc.paths)
	assert.True(t, proc.forced["c.csv"])
	assert.False(t, proc.forced["a.csv"])
	for _, id := range proc.reqIDs {
		assert.NotEmpty(t, id)
	}
	assert.Equal(t, []string{"b.csv"}, failed)
}

func TestProcessorQueue_EnqueueAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(&recordingProcessor{forced: map[string]bool{}}, nil)
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), Job{Path: "late.csv"})
	require.ErrorIs(t, err, ErrQueueClosed)
}
