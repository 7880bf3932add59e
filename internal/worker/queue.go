package worker

import (
	"context"
	"sync"

	"github.com/as36198/linkd/internal/log"
)

// Queue runs background jobs one at a time. The store is single-writer,
// so serializing here keeps scheduled jobs from contending with each
// other when schedules overlap.
type Queue struct {
	jobs   chan Job
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// Job represents a unit of background work
type Job struct {
	Name    string
	Handler func(context.Context) error
	Result  chan error
}

// NewQueue creates a new job queue
func NewQueue() *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		jobs:   make(chan Job, 16),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start starts the queue worker
func (q *Queue) Start() {
	q.wg.Add(1)
	go q.worker()
	log.Info("Background job queue started")
}

// Stop stops the queue and waits for the running job to finish
func (q *Queue) Stop() {
	q.cancel()
	q.wg.Wait()
}

// Submit enqueues a job, dropping it when the queue is full so a slow
// job cannot back scheduled work up without bound
func (q *Queue) Submit(job Job) error {
	select {
	case q.jobs <- job:
		return nil
	case <-q.ctx.Done():
		return q.ctx.Err()
	default:
		log.Warn("Job queue full, dropping job", "job", job.Name)
		return context.DeadlineExceeded
	}
}

// worker is the single worker goroutine
func (q *Queue) worker() {
	defer q.wg.Done()

	for {
		select {
		case <-q.ctx.Done():
			return
		case job := <-q.jobs:
			log.Debug("Executing job", "job", job.Name)

			err := job.Handler(q.ctx)
			if err != nil {
				log.Error("Job failed", "job", job.Name, "error", err)
			}
			if job.Result != nil {
				job.Result <- err
			}
		}
	}
}
