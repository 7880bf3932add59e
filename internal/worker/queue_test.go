package worker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestQueue_RunsJobs(t *testing.T) {
	queue := NewQueue()
	queue.Start()
	defer queue.Stop()

	result := make(chan error, 1)
	err := queue.Submit(Job{
		Name:    "test",
		Handler: func(ctx context.Context) error { return nil },
		Result:  result,
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	select {
	case err := <-result:
		if err != nil {
			t.Errorf("Expected the job to succeed, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for the job")
	}
}

func TestQueue_ReportsJobError(t *testing.T) {
	queue := NewQueue()
	queue.Start()
	defer queue.Stop()

	boom := errors.New("boom")
	result := make(chan error, 1)
	if err := queue.Submit(Job{Name: "failing", Handler: func(ctx context.Context) error { return boom }, Result: result}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	select {
	case err := <-result:
		if !errors.Is(err, boom) {
			t.Errorf("Expected the job error, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for the job")
	}
}

func TestQueue_SerializesJobs(t *testing.T) {
	queue := NewQueue()
	queue.Start()
	defer queue.Stop()

	var order []int
	done := make(chan error, 1)

	blocker := make(chan struct{})
	queue.Submit(Job{Name: "first", Handler: func(ctx context.Context) error {
		<-blocker
		order = append(order, 1)
		return nil
	}})
	queue.Submit(Job{Name: "second", Handler: func(ctx context.Context) error {
		order = append(order, 2)
		return nil
	}, Result: done})

	close(blocker)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for the jobs")
	}

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("Expected the jobs to run in order, got %v", order)
	}
}

func TestQueue_DropsWhenFull(t *testing.T) {
	// Never started, so nothing drains the channel
	queue := NewQueue()
	defer queue.Stop()

	noop := func(ctx context.Context) error { return nil }
	for i := 0; i < cap(queue.jobs); i++ {
		if err := queue.Submit(Job{Name: "filler", Handler: noop}); err != nil {
			t.Fatalf("Submit %d failed: %v", i, err)
		}
	}

	if err := queue.Submit(Job{Name: "overflow", Handler: noop}); err == nil {
		t.Error("Expected the overflowing job to be dropped")
	}
}

func TestScheduler_RunsScheduledJob(t *testing.T) {
	scheduler := NewScheduler()

	ran := make(chan struct{}, 1)
	err := scheduler.Schedule("@every 1s", "tick", func(ctx context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}

	scheduler.Start()
	defer scheduler.Stop()

	select {
	case <-ran:
	case <-time.After(10 * time.Second):
		t.Fatal("Timed out waiting for the scheduled job")
	}
}

func TestScheduler_RejectsBadSpec(t *testing.T) {
	scheduler := NewScheduler()

	err := scheduler.Schedule("not a cron spec", "broken", func(ctx context.Context) error { return nil })
	if err == nil {
		t.Error("Expected an invalid schedule to be rejected")
	}
}
