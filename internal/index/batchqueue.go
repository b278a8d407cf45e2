package index

import (
	"sync"
	"time"

	apperrors "github.com/turnsearch/turnsearch/internal/pkg/errors"
	"github.com/turnsearch/turnsearch/internal/pkg/logger"
)

// QueueConfig configures the time-or-size triggered batch queue (§4.10).
type QueueConfig struct {
	BatchSize       int
	FlushIntervalMS int
	MaxQueueSize    int
}

// FlushFunc is invoked with a snapshot of queued documents when the queue
// flushes, either because batch_size was reached, the periodic flusher fired,
// or the queue is draining on stop.
type FlushFunc func(docs []*Document)

// Queue is the time-or-size triggered batch queue described in §4.10. It
// owns no goroutine until Start is called; Add may be used standalone for
// size-triggered flushing in tests.
type Queue struct {
	cfg   QueueConfig
	flush FlushFunc
	log   *logger.Logger

	mu      sync.Mutex
	pending []*Document

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewQueue builds a batch queue. flush is called synchronously from the
// goroutine that triggered the flush (Add, the periodic ticker, or Stop).
func NewQueue(cfg QueueConfig, flush FlushFunc, log *logger.Logger) *Queue {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	return &Queue{cfg: cfg, flush: flush, log: log}
}

// Add enqueues doc, flushing immediately if the queue reaches batch_size.
// Returns QueueFull if enqueuing would push the length strictly above
// max_queue_size.
func (q *Queue) Add(doc *Document) error {
	q.mu.Lock()
	if q.cfg.MaxQueueSize > 0 && len(q.pending)+1 > q.cfg.MaxQueueSize {
		size := len(q.pending)
		q.mu.Unlock()
		return apperrors.QueueFullError(size, q.cfg.MaxQueueSize)
	}
	q.pending = append(q.pending, doc)
	shouldFlush := len(q.pending) >= q.cfg.BatchSize
	q.mu.Unlock()

	if shouldFlush {
		q.flushNow()
	}
	return nil
}

// Size reports the current queue length.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// flushNow drains the queue and invokes the flush callback with the snapshot.
// A flush with an empty queue is a no-op. Callback panics are logged and
// swallowed: the batch is lost, matching §4.10's "exceptions are logged and
// swallowed".
func (q *Queue) flushNow() {
	q.mu.Lock()
	if len(q.pending) == 0 {
		q.mu.Unlock()
		return
	}
	snapshot := q.pending
	q.pending = nil
	q.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			if q.log != nil {
				q.log.Warn("batch queue flush callback panicked, batch dropped", "panic", r)
			}
		}
	}()
	q.flush(snapshot)
}

// Start launches the periodic flusher. It returns immediately; call Stop to
// drain and terminate it.
func (q *Queue) Start() {
	q.stopCh = make(chan struct{})
	q.doneCh = make(chan struct{})

	interval := time.Duration(q.cfg.FlushIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}

	go func() {
		defer close(q.doneCh)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				q.flushNow()
			case <-q.stopCh:
				return
			}
		}
	}()
}

// Stop cancels the periodic flusher, performs one final drain, then returns.
func (q *Queue) Stop() {
	if q.stopCh != nil {
		close(q.stopCh)
		<-q.doneCh
	}
	q.flushNow()
}
