// Package worker runs governance pipelines in the background. Callers
// get a receipt immediately; the evaluation itself happens on the pool.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/modelgate/modelgate/telemetry"
)

// ErrQueueFull is returned when the job queue cannot accept more work
var ErrQueueFull = errors.New("job queue is full")

// Job is one unit of background work
type Job struct {
	ID          string
	ModelID     string
	Kind        string
	SubmittedAt time.Time
}

// Receipt acknowledges a submitted job
type Receipt struct {
	JobID   string `json:"job_id"`
	ModelID string `json:"model_id"`
	Status  string `json:"status"`
}

// Handler processes one job
type Handler func(ctx context.Context, job Job) error

// Pool is a fixed-size worker pool over a bounded queue. Submission
// never blocks; a full queue is the caller's problem to retry.
type Pool struct {
	jobs    chan Job
	workers int
	handler Handler
	logger  *telemetry.Logger
	wg      sync.WaitGroup
}

// NewPool creates a pool with the given queue depth and worker count
func NewPool(queueSize, workers int, handler Handler) *Pool {
	if queueSize <= 0 {
		queueSize = 256
	}
	if workers <= 0 {
		workers = 4
	}
	return &Pool{
		jobs:    make(chan Job, queueSize),
		workers: workers,
		handler: handler,
		logger:  telemetry.NewLogger("worker-pool"),
	}
}

// Submit enqueues a job and returns its receipt without waiting for the
// work to run.
func (p *Pool) Submit(modelID, kind string) (Receipt, error) {
	job := Job{
		ID:          uuid.NewString(),
		ModelID:     modelID,
		Kind:        kind,
		SubmittedAt: time.Now().UTC(),
	}

	select {
	case p.jobs <- job:
		return Receipt{JobID: job.ID, ModelID: modelID, Status: "processing"}, nil
	default:
		return Receipt{}, ErrQueueFull
	}
}

// Run processes jobs until the context is canceled, then drains nothing
// further and waits for in-flight jobs to finish.
func (p *Pool) Run(ctx context.Context) error {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work(ctx)
	}
	<-ctx.Done()
	p.wg.Wait()
	return ctx.Err()
}

func (p *Pool) work(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-p.jobs:
			p.run(ctx, job)
		}
	}
}

func (p *Pool) run(ctx context.Context, job Job) {
	start := time.Now()
	err := p.handler(ctx, job)

	event := p.logger.WithContext(ctx).Info()
	if err != nil {
		event = p.logger.WithContext(ctx).Error().Err(err)
	}
	event.
		Str("job_id", job.ID).
		Str("model_id", job.ModelID).
		Str("kind", job.Kind).
		Dur("duration", time.Since(start)).
		Dur("queue_wait", start.Sub(job.SubmittedAt)).
		Msg("job processed")
}
