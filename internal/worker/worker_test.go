package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitReturnsReceipt(t *testing.T) {
	pool := NewPool(8, 1, func(context.Context, Job) error { return nil })

	receipt, err := pool.Submit("m1", "evaluate")
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.JobID)
	assert.Equal(t, "m1", receipt.ModelID)
	assert.Equal(t, "processing", receipt.Status)
}

func TestSubmitRejectsWhenFull(t *testing.T) {
	pool := NewPool(1, 1, func(context.Context, Job) error { return nil })

	_, err := pool.Submit("m1", "evaluate")
	require.NoError(t, err)
	_, err = pool.Submit("m2", "evaluate")
	assert.ErrorIs(t, err, ErrQueueFull, "queue of one holds exactly one unstarted job")
}

func TestPoolProcessesJobs(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}

	pool := NewPool(16, 2, func(_ context.Context, job Job) error {
		mu.Lock()
		seen[job.ModelID] = true
		mu.Unlock()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = pool.Run(ctx)
		close(done)
	}()

	for _, id := range []string{"m1", "m2", "m3"} {
		_, err := pool.Submit(id, "evaluate")
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestPoolStopsOnCancel(t *testing.T) {
	pool := NewPool(8, 2, func(context.Context, Job) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pool.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
