package consumer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/turnsearch/turnsearch/internal/bus"
	"github.com/turnsearch/turnsearch/internal/config"
	"github.com/turnsearch/turnsearch/internal/index"
	"github.com/turnsearch/turnsearch/internal/pkg/logger"
)

func TestParseDocumentBuildsTurnDocument(t *testing.T) {
	payload := map[string]any{
		"id":                "turn-1",
		"tenant_id":         "tenant-a",
		"user_content":      "hello",
		"assistant_content": "hi there",
	}
	doc, err := ParseDocument(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ID != "turn-1" || doc.TenantID != "tenant-a" {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if doc.Content != "User: hello\n\nAssistant: hi there" {
		t.Fatalf("unexpected content: %q", doc.Content)
	}
}

func TestParseDocumentRejectsMissingMandatoryFields(t *testing.T) {
	cases := []map[string]any{
		{"tenant_id": "t1", "user_content": "hi"},
		{"id": "turn-1", "user_content": "hi"},
		{"id": "turn-1", "tenant_id": "t1"},
	}
	for _, payload := range cases {
		if _, err := ParseDocument(payload); err == nil {
			t.Fatalf("expected parse error for payload %+v", payload)
		}
	}
}

func TestConsumerEnqueuesParsedDocumentAndAcks(t *testing.T) {
	b := bus.NewMemoryBus()
	defer b.Close()

	var mu sync.Mutex
	var indexed []*index.Document
	queue := index.NewQueue(index.QueueConfig{BatchSize: 1, MaxQueueSize: 10}, func(docs []*index.Document) {
		mu.Lock()
		defer mu.Unlock()
		indexed = append(indexed, docs...)
	}, logger.Default())

	c := NewConsumer(b, queue, config.BusConfig{KafkaGroup: "g1", ServiceID: "s1", HeartbeatMS: 10000}, logger.Default())
	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Stop(ctx)

	err := b.Publish(ctx, bus.TopicTurnFinalized, bus.Event{
		ID:      "e1",
		Payload: map[string]any{"id": "turn-1", "tenant_id": "t1", "user_content": "hello"},
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(indexed)
		mu.Unlock()
		if n == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected document to be enqueued and flushed")
}

func TestConsumerThrottlesRatherThanDropsUnderLoad(t *testing.T) {
	b := bus.NewMemoryBus()
	defer b.Close()

	var mu sync.Mutex
	var indexed []*index.Document
	queue := index.NewQueue(index.QueueConfig{BatchSize: 1, MaxQueueSize: 100}, func(docs []*index.Document) {
		mu.Lock()
		defer mu.Unlock()
		indexed = append(indexed, docs...)
	}, logger.Default())

	// A deliberately tight per-tenant rate: every message must wait for a
	// token, but none may be dropped as a result.
	c := NewConsumer(b, queue, config.BusConfig{KafkaGroup: "g1", ServiceID: "s1", HeartbeatMS: 10000, IngestRatePerSec: 20}, logger.Default())
	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Stop(ctx)

	const total = 5
	for i := 0; i < total; i++ {
		err := b.Publish(ctx, bus.TopicTurnFinalized, bus.Event{
			ID:      "e",
			Payload: map[string]any{"id": "turn-" + string(rune('a'+i)), "tenant_id": "t1", "user_content": "hello"},
		})
		if err != nil {
			t.Fatalf("publish failed: %v", err)
		}
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(indexed)
		mu.Unlock()
		if n == total {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	mu.Lock()
	n := len(indexed)
	mu.Unlock()
	t.Fatalf("expected all %d throttled messages to eventually be enqueued, got %d", total, n)
}

func TestConsumerDropsMalformedMessageWithoutEnqueueing(t *testing.T) {
	b := bus.NewMemoryBus()
	defer b.Close()

	queue := index.NewQueue(index.QueueConfig{BatchSize: 1, MaxQueueSize: 10}, func(docs []*index.Document) {
		t.Fatal("flush should not be called for a malformed message")
	}, logger.Default())

	c := NewConsumer(b, queue, config.BusConfig{KafkaGroup: "g1", ServiceID: "s1", HeartbeatMS: 10000}, logger.Default())
	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer c.Stop(ctx)

	if err := b.Publish(ctx, bus.TopicTurnFinalized, bus.Event{ID: "e1", Payload: map[string]any{"id": "turn-1"}}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if queue.Size() != 0 {
		t.Fatalf("expected queue to remain empty, got size %d", queue.Size())
	}
}
