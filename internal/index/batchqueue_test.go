package index

import (
	"sync"
	"testing"
	"time"
)

func TestQueueFlushesAtBatchSize(t *testing.T) {
	var mu sync.Mutex
	var flushed [][]*Document

	q := NewQueue(QueueConfig{BatchSize: 2, MaxQueueSize: 10}, func(docs []*Document) {
		mu.Lock()
		defer mu.Unlock()
		flushed = append(flushed, docs)
	}, nil)

	if err := q.Add(&Document{ID: "1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Size() != 1 {
		t.Fatalf("expected size 1, got %d", q.Size())
	}
	if err := q.Add(&Document{ID: "2"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(flushed) != 1 || len(flushed[0]) != 2 {
		t.Fatalf("expected one flush of 2 docs, got %+v", flushed)
	}
	if q.Size() != 0 {
		t.Fatalf("expected queue drained after flush, got size %d", q.Size())
	}
}

func TestQueueRejectsOverMaxQueueSize(t *testing.T) {
	q := NewQueue(QueueConfig{BatchSize: 100, MaxQueueSize: 1}, func(docs []*Document) {}, nil)

	if err := q.Add(&Document{ID: "1"}); err != nil {
		t.Fatalf("unexpected error on first add: %v", err)
	}
	if err := q.Add(&Document{ID: "2"}); err == nil {
		t.Fatal("expected QueueFull error on second add")
	}
}

func TestQueueFlushNowIsNoOpWhenEmpty(t *testing.T) {
	calls := 0
	q := NewQueue(QueueConfig{BatchSize: 10}, func(docs []*Document) { calls++ }, nil)
	q.flushNow()
	if calls != 0 {
		t.Fatalf("expected no flush callback for empty queue, got %d calls", calls)
	}
}

func TestQueueStopDrainsRemainingDocuments(t *testing.T) {
	var mu sync.Mutex
	var flushed []*Document

	q := NewQueue(QueueConfig{BatchSize: 100, FlushIntervalMS: 50}, func(docs []*Document) {
		mu.Lock()
		defer mu.Unlock()
		flushed = append(flushed, docs...)
	}, nil)

	q.Start()
	_ = q.Add(&Document{ID: "1"})
	_ = q.Add(&Document{ID: "2"})
	q.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(flushed) != 2 {
		t.Fatalf("expected final drain to flush 2 docs, got %d", len(flushed))
	}
}

func TestQueuePeriodicFlusherFiresOnInterval(t *testing.T) {
	var mu sync.Mutex
	var flushed []*Document

	q := NewQueue(QueueConfig{BatchSize: 100, FlushIntervalMS: 20}, func(docs []*Document) {
		mu.Lock()
		defer mu.Unlock()
		flushed = append(flushed, docs...)
	}, nil)

	q.Start()
	defer q.Stop()
	_ = q.Add(&Document{ID: "1"})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(flushed)
		mu.Unlock()
		if n == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected periodic flusher to flush the pending document")
}

func TestQueueFlushCallbackPanicIsSwallowed(t *testing.T) {
	q := NewQueue(QueueConfig{BatchSize: 1}, func(docs []*Document) {
		panic("boom")
	}, nil)

	if err := q.Add(&Document{ID: "1"}); err != nil {
		t.Fatalf("Add should not propagate a panicking callback's failure: %v", err)
	}
}
