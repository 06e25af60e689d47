package telegram

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ya95-png/instarelay/internal/limiter"
	"github.com/ya95-png/instarelay/internal/logger"
	"github.com/ya95-png/instarelay/internal/metrics"
)

// jobExecutor runs a job and reports unrecoverable failures to the user.
// The Bot implements it; tests substitute a fake.
type jobExecutor interface {
	executeJob(job *Job) error
	notifyJobFailure(chatID int64, err error)
}

// JobQueue serializes Instagram work through a single consumer. Jobs run
// strictly in submission order and the worker sleeps a randomized cool-down
// between jobs. Instagram throttles aggressive clients, so the queue trades
// throughput for not getting the account blocked.
type JobQueue struct {
	jobs     chan *Job
	executor jobExecutor
	pending  *limiter.PendingTracker
	metrics  *metrics.Collector

	cooldownMin time.Duration
	cooldownMax time.Duration

	wg      sync.WaitGroup
	mu      sync.RWMutex
	started bool
}

// NewJobQueue creates a queue with the given buffer size and cool-down range.
func NewJobQueue(executor jobExecutor, pending *limiter.PendingTracker, collector *metrics.Collector, queueSize int, cooldownMin, cooldownMax time.Duration) *JobQueue {
	return &JobQueue{
		jobs:        make(chan *Job, queueSize),
		executor:    executor,
		pending:     pending,
		metrics:     collector,
		cooldownMin: cooldownMin,
		cooldownMax: cooldownMax,
	}
}

// Start launches the single worker goroutine.
func (q *JobQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		return fmt.Errorf("job queue already started")
	}

	logger.Info("Starting job queue", map[string]interface{}{
		"queue_size":   cap(q.jobs),
		"cooldown_min": q.cooldownMin.String(),
		"cooldown_max": q.cooldownMax.String(),
	})

	q.wg.Add(1)
	go q.worker()

	q.started = true
	return nil
}

// Stop closes the queue and waits for the worker to drain it.
func (q *JobQueue) Stop() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.started {
		return fmt.Errorf("job queue not started")
	}

	close(q.jobs)

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.InfoMsg("Job queue stopped")
	case <-time.After(30 * time.Second):
		logger.Warn("Job queue shutdown timed out", nil)
		return fmt.Errorf("job queue shutdown timed out")
	}

	q.started = false
	return nil
}

// Enqueue submits a job without blocking. The caller must have reserved the
// user's pending slot already; on error the caller releases it.
func (q *JobQueue) Enqueue(job *Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if !q.started {
		return fmt.Errorf("job queue not started")
	}

	select {
	case q.jobs <- job:
		q.metrics.SetJobQueueDepth(len(q.jobs))
		logger.Debug("Job queued", map[string]interface{}{
			"kind":        job.Kind.String(),
			"chat_id":     job.ChatID,
			"queue_depth": len(q.jobs),
		})
		return nil
	default:
		logger.Warn("Job queue full, rejecting job", map[string]interface{}{
			"kind":    job.Kind.String(),
			"chat_id": job.ChatID,
		})
		return fmt.Errorf("job queue full")
	}
}

// Depth returns the number of jobs currently waiting.
func (q *JobQueue) Depth() int {
	return len(q.jobs)
}

func (q *JobQueue) worker() {
	defer q.wg.Done()

	for job := range q.jobs {
		q.metrics.SetJobQueueDepth(len(q.jobs))
		q.process(job)
		q.coolDown()
	}
}

// process runs one job to a terminal state. The pending slot is released on
// every exit path, including a panic inside the executor; a panic also
// triggers a best-effort failure notification to the chat.
func (q *JobQueue) process(job *Job) {
	start := time.Now()

	defer q.pending.Release(job.UserID)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", map[string]interface{}{
				"kind":    job.Kind.String(),
				"chat_id": job.ChatID,
				"panic":   r,
			})
			q.metrics.RecordJob(job.Kind.String(), "panic", time.Since(start))
			q.executor.notifyJobFailure(job.ChatID, fmt.Errorf("internal error: %v", r))
		}
	}()

	logger.Debug("Processing job", map[string]interface{}{
		"kind":    job.Kind.String(),
		"chat_id": job.ChatID,
	})

	if err := q.executor.executeJob(job); err != nil {
		logger.Error("Job failed", map[string]interface{}{
			"kind":    job.Kind.String(),
			"chat_id": job.ChatID,
			"error":   err.Error(),
		})
		q.metrics.RecordJob(job.Kind.String(), "error", time.Since(start))
		q.executor.notifyJobFailure(job.ChatID, err)
		return
	}

	q.metrics.RecordJob(job.Kind.String(), "ok", time.Since(start))
	logger.Debug("Job processed", map[string]interface{}{
		"kind":     job.Kind.String(),
		"chat_id":  job.ChatID,
		"duration": time.Since(start).String(),
	})
}

// coolDown sleeps a randomized delay between jobs. This is the anti-throttle
// mechanic and runs after failures too.
func (q *JobQueue) coolDown() {
	if q.cooldownMax <= 0 {
		return
	}
	delay := q.cooldownMin
	if spread := q.cooldownMax - q.cooldownMin; spread > 0 {
		delay += time.Duration(rand.Int63n(int64(spread) + 1))
	}
	time.Sleep(delay)
}
