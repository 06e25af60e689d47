package telegram

import (
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/ya95-png/instarelay/internal/logger"
	"github.com/ya95-png/instarelay/internal/metrics"
)

// updateDispatcher routes one inbound update to its handler. The Bot
// implements it; tests substitute a fake.
type updateDispatcher interface {
	dispatchUpdate(update tgbotapi.Update) error
}

// UpdateQueue absorbs inbound Telegram updates so the webhook handler can
// acknowledge immediately. A single consumer dispatches updates one at a
// time; a panic or error in one update never stops the loop.
type UpdateQueue struct {
	updates    chan tgbotapi.Update
	dispatcher updateDispatcher
	metrics    *metrics.Collector

	wg      sync.WaitGroup
	mu      sync.RWMutex
	started bool
}

// NewUpdateQueue creates an ingress queue with the given buffer size.
func NewUpdateQueue(dispatcher updateDispatcher, collector *metrics.Collector, queueSize int) *UpdateQueue {
	return &UpdateQueue{
		updates:    make(chan tgbotapi.Update, queueSize),
		dispatcher: dispatcher,
		metrics:    collector,
	}
}

// Start launches the consumer goroutine.
func (q *UpdateQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		return fmt.Errorf("update queue already started")
	}

	q.wg.Add(1)
	go q.consumer()

	q.started = true
	logger.Info("Update ingress queue started", map[string]interface{}{
		"queue_size": cap(q.updates),
	})
	return nil
}

// Stop closes the queue; the consumer drains remaining updates and exits.
func (q *UpdateQueue) Stop() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.started {
		return fmt.Errorf("update queue not started")
	}

	close(q.updates)

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.InfoMsg("Update ingress queue stopped")
	case <-time.After(10 * time.Second):
		logger.Warn("Update ingress queue shutdown timed out", nil)
		return fmt.Errorf("update queue shutdown timed out")
	}

	q.started = false
	return nil
}

// Enqueue submits an update without blocking. A full queue drops the update
// with a warning rather than stalling the HTTP handler.
func (q *UpdateQueue) Enqueue(update tgbotapi.Update) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if !q.started {
		return fmt.Errorf("update queue not started")
	}

	select {
	case q.updates <- update:
		return nil
	default:
		q.metrics.RecordUpdateDropped()
		logger.Warn("Update queue full, dropping update", map[string]interface{}{
			"update_id": update.UpdateID,
		})
		return fmt.Errorf("update queue full")
	}
}

// Len returns the number of updates waiting in the queue.
func (q *UpdateQueue) Len() int {
	return len(q.updates)
}

func (q *UpdateQueue) consumer() {
	defer q.wg.Done()

	for update := range q.updates {
		q.dispatch(update)
	}
}

// dispatch hands one update to the dispatcher, containing any panic or
// error so the consumer loop survives malformed updates.
func (q *UpdateQueue) dispatch(update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic while dispatching update", map[string]interface{}{
				"update_id": update.UpdateID,
				"panic":     r,
			})
		}
	}()

	if err := q.dispatcher.dispatchUpdate(update); err != nil {
		logger.Error("Error dispatching update", map[string]interface{}{
			"update_id": update.UpdateID,
			"error":     err.Error(),
		})
	}
}
