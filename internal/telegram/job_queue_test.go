package telegram

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/ya95-png/instarelay/internal/limiter"
	"github.com/ya95-png/instarelay/internal/metrics"
)

func newTestCollector() *metrics.Collector {
	return metrics.NewCollectorWithRegistry(prometheus.NewRegistry())
}

// fakeExecutor records executed jobs and failure notifications.
type fakeExecutor struct {
	mu       sync.Mutex
	executed []*Job
	failures []error
	execFn   func(*Job) error
}

func (f *fakeExecutor) executeJob(job *Job) error {
	f.mu.Lock()
	f.executed = append(f.executed, job)
	fn := f.execFn
	f.mu.Unlock()
	if fn != nil {
		return fn(job)
	}
	return nil
}

func (f *fakeExecutor) notifyJobFailure(chatID int64, err error) {
	f.mu.Lock()
	f.failures = append(f.failures, err)
	f.mu.Unlock()
}

func (f *fakeExecutor) executedJobs() []*Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Job(nil), f.executed...)
}

func (f *fakeExecutor) failureCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.failures)
}

func waitForJobs(t *testing.T, exec *fakeExecutor, n int) []*Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		jobs := exec.executedJobs()
		if len(jobs) >= n {
			return jobs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d executed jobs, got %d", n, len(exec.executedJobs()))
	return nil
}

func TestJobQueueProcessesInOrder(t *testing.T) {
	exec := &fakeExecutor{}
	pending := limiter.NewPendingTracker(100)
	queue := NewJobQueue(exec, pending, newTestCollector(), 16, 0, 0)

	if err := queue.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	for i := 0; i < 5; i++ {
		job := &Job{Kind: JobResolve, ChatID: 1, UserID: 1, Payload: fmt.Sprintf("job-%d", i)}
		if err := queue.Enqueue(job); err != nil {
			t.Fatalf("Enqueue() error: %v", err)
		}
	}

	if err := queue.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}

	jobs := exec.executedJobs()
	if len(jobs) != 5 {
		t.Fatalf("executed %d jobs, want 5", len(jobs))
	}
	for i, job := range jobs {
		want := fmt.Sprintf("job-%d", i)
		if job.Payload != want {
			t.Errorf("job %d payload = %q, want %q", i, job.Payload, want)
		}
	}
}

func TestJobQueueReleasesPendingSlot(t *testing.T) {
	exec := &fakeExecutor{}
	pending := limiter.NewPendingTracker(1)
	queue := NewJobQueue(exec, pending, newTestCollector(), 4, 0, 0)

	if err := queue.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	if !pending.TryAdmit(7) {
		t.Fatal("TryAdmit should succeed on empty tracker")
	}
	if err := queue.Enqueue(&Job{Kind: JobDownload, ChatID: 7, UserID: 7, Payload: "ABC"}); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	if err := queue.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}

	if !pending.TryAdmit(7) {
		t.Error("pending slot was not released after the job finished")
	}
}

func TestJobQueueReleasesPendingSlotOnPanic(t *testing.T) {
	exec := &fakeExecutor{execFn: func(*Job) error {
		panic("executor blew up")
	}}
	pending := limiter.NewPendingTracker(1)
	queue := NewJobQueue(exec, pending, newTestCollector(), 4, 0, 0)

	if err := queue.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	pending.TryAdmit(7)
	if err := queue.Enqueue(&Job{Kind: JobDownload, ChatID: 7, UserID: 7, Payload: "ABC"}); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	if err := queue.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}

	if !pending.TryAdmit(7) {
		t.Error("pending slot was not released after the panic")
	}
	if exec.failureCount() != 1 {
		t.Errorf("failure notifications = %d, want 1", exec.failureCount())
	}
}

func TestJobQueueNotifiesOnError(t *testing.T) {
	exec := &fakeExecutor{execFn: func(*Job) error {
		return errors.New("download exploded")
	}}
	pending := limiter.NewPendingTracker(10)
	queue := NewJobQueue(exec, pending, newTestCollector(), 4, 0, 0)

	if err := queue.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := queue.Enqueue(&Job{Kind: JobInfo, ChatID: 3, UserID: 3, Payload: "XYZ"}); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	if err := queue.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}

	if exec.failureCount() != 1 {
		t.Errorf("failure notifications = %d, want 1", exec.failureCount())
	}
}

func TestJobQueueRejectsWhenFull(t *testing.T) {
	block := make(chan struct{})
	exec := &fakeExecutor{execFn: func(*Job) error {
		<-block
		return nil
	}}
	pending := limiter.NewPendingTracker(100)
	queue := NewJobQueue(exec, pending, newTestCollector(), 1, 0, 0)

	if err := queue.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	// First job occupies the worker, second fills the buffer.
	if err := queue.Enqueue(&Job{Kind: JobResolve, ChatID: 1, UserID: 1}); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}
	waitForJobs(t, exec, 1)
	if err := queue.Enqueue(&Job{Kind: JobResolve, ChatID: 2, UserID: 2}); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	if err := queue.Enqueue(&Job{Kind: JobResolve, ChatID: 3, UserID: 3}); err == nil {
		t.Error("Enqueue should fail when the queue is full")
	}

	close(block)
	if err := queue.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
}

func TestJobQueueCoolsDownBetweenJobs(t *testing.T) {
	var mu sync.Mutex
	var times []time.Time
	exec := &fakeExecutor{execFn: func(*Job) error {
		mu.Lock()
		times = append(times, time.Now())
		mu.Unlock()
		return nil
	}}
	pending := limiter.NewPendingTracker(100)
	cooldown := 60 * time.Millisecond
	queue := NewJobQueue(exec, pending, newTestCollector(), 4, cooldown, cooldown)

	if err := queue.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := queue.Enqueue(&Job{Kind: JobResolve, ChatID: 1, UserID: 1}); err != nil {
			t.Fatalf("Enqueue() error: %v", err)
		}
	}
	if err := queue.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(times) != 3 {
		t.Fatalf("executed %d jobs, want 3", len(times))
	}
	for i := 1; i < len(times); i++ {
		if gap := times[i].Sub(times[i-1]); gap < cooldown {
			t.Errorf("gap between job %d and %d was %v, want >= %v", i-1, i, gap, cooldown)
		}
	}
}

func TestJobQueueLifecycleErrors(t *testing.T) {
	queue := NewJobQueue(&fakeExecutor{}, limiter.NewPendingTracker(1), newTestCollector(), 4, 0, 0)

	if err := queue.Enqueue(&Job{}); err == nil {
		t.Error("Enqueue before Start should fail")
	}
	if err := queue.Stop(); err == nil {
		t.Error("Stop before Start should fail")
	}

	if err := queue.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := queue.Start(); err == nil {
		t.Error("second Start should fail")
	}
	if err := queue.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
}
