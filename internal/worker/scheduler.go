package worker

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/as36198/linkd/internal/log"
)

// Scheduler runs recurring maintenance jobs on cron schedules. Jobs
// are handed to the queue so at most one runs at a time.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	queue   *Queue
	running bool
}

// NewScheduler creates a new scheduler
func NewScheduler() *Scheduler {
	return &Scheduler{
		cron:  cron.New(),
		queue: NewQueue(),
	}
}

// Schedule registers a recurring job under a standard 5-field cron
// expression
func (s *Scheduler) Schedule(spec, name string, handler func(context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		if err := s.queue.Submit(Job{Name: name, Handler: handler}); err != nil {
			log.Warn("Could not enqueue scheduled job", "job", name, "error", err)
		}
	})
	if err != nil {
		return err
	}

	log.Info("Job scheduled", "job", name, "schedule", spec)
	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true

	log.Info("Starting background scheduler")
	s.queue.Start()
	s.cron.Start()
}

// Stop gracefully stops the scheduler, waiting for a running job
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false

	log.Info("Stopping background scheduler")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.queue.Stop()
}
