// Package consumer implements the turn-finalized Event Consumer (§4.11):
// durable stream subscription, parsing into turn documents, batch-queue
// enqueueing, acknowledgement, and best-effort lifecycle side channels.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/turnsearch/turnsearch/internal/bus"
	"github.com/turnsearch/turnsearch/internal/config"
	"github.com/turnsearch/turnsearch/internal/index"
	"github.com/turnsearch/turnsearch/internal/pkg/middleware"

	apperrors "github.com/turnsearch/turnsearch/internal/pkg/errors"
	"github.com/turnsearch/turnsearch/internal/pkg/logger"
)

// TurnMessage is the wire shape of a finalized-turn stream message, decoded
// from an Event's Payload and translated into an index.Document via the
// turn-content rules in §3.1.
type TurnMessage struct {
	ID            string   `json:"id"`
	TenantID      string   `json:"tenant_id"`
	SessionID     string   `json:"session_id"`
	User          string   `json:"user_content"`
	Assistant     string   `json:"assistant_content"`
	Reasoning     string   `json:"reasoning_preview"`
	SequenceIndex int      `json:"sequence_index"`
	ToolCalls     []string `json:"tool_calls"`
	FilesTouched  []string `json:"files_touched"`
	InputTokens   int      `json:"input_tokens"`
	OutputTokens  int      `json:"output_tokens"`
	Timestamp     int64    `json:"timestamp"`
}

// ParseDocument decodes an event payload into a turn Document, enforcing the
// mandatory-field rule from §4.11 step 1: non-empty id, non-empty tenant_id,
// and at least one of user/assistant/reasoning non-empty.
func ParseDocument(payload any) (*index.Document, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.ParseErrorNew("marshaling turn message payload", err)
	}

	var msg TurnMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, apperrors.ParseErrorNew("decoding turn message", err)
	}

	doc := index.NewTurnDocument(msg.ID, msg.TenantID, msg.SessionID,
		index.TurnFields{User: msg.User, Assistant: msg.Assistant, Reasoning: msg.Reasoning},
		msg.SequenceIndex, msg.ToolCalls, msg.FilesTouched, msg.InputTokens, msg.OutputTokens, msg.Timestamp)

	if err := doc.Validate(); err != nil {
		return nil, apperrors.ParseErrorNew("turn message failed validation", err)
	}
	return doc, nil
}

// Consumer wires a Bus subscription to a batch queue, emitting the
// lifecycle side channels required by §4.11.
type Consumer struct {
	b       bus.Bus
	queue   *index.Queue
	cfg     config.BusConfig
	log     *logger.Logger
	limiter *middleware.RateLimiter

	stopHeartbeat chan struct{}
	heartbeatWg   sync.WaitGroup
}

// NewConsumer builds an event consumer over an already-subscribable bus and
// a batch queue that the caller has started. Per-tenant ingestion is
// throttled by a token-bucket limiter sized from cfg.IngestRatePerSec.
func NewConsumer(b bus.Bus, queue *index.Queue, cfg config.BusConfig, log *logger.Logger) *Consumer {
	rps := float64(cfg.IngestRatePerSec)
	if rps <= 0 {
		rps = 200
	}
	limiterCfg := middleware.DefaultRateLimiterConfig()
	limiterCfg.RequestsPerSecond = rps
	limiterCfg.Burst = int(rps * 2)

	return &Consumer{b: b, queue: queue, cfg: cfg, log: log, limiter: middleware.NewRateLimiter(limiterCfg)}
}

// Start subscribes to the finalized-turn topic, publishes consumer_ready,
// and launches the heartbeat loop. It returns once the subscription is
// registered; message handling continues asynchronously via the bus.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.b.Subscribe(ctx, bus.TopicTurnFinalized, c.handle); err != nil {
		return err
	}

	c.publishBestEffort(ctx, bus.TopicConsumerReady, map[string]any{
		"group_id":   c.cfg.KafkaGroup,
		"service_id": c.cfg.ServiceID,
	})

	c.stopHeartbeat = make(chan struct{})
	interval := time.Duration(c.cfg.HeartbeatMS) * time.Millisecond
	if interval <= 0 {
		interval = 30 * time.Second
	}
	c.heartbeatWg.Add(1)
	go c.heartbeatLoop(ctx, interval)

	return nil
}

func (c *Consumer) heartbeatLoop(ctx context.Context, interval time.Duration) {
	defer c.heartbeatWg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.publishBestEffort(ctx, bus.TopicConsumerHeartbeat, map[string]any{
				"group_id":   c.cfg.KafkaGroup,
				"service_id": c.cfg.ServiceID,
			})
		case <-c.stopHeartbeat:
			return
		}
	}
}

// Stop cancels the heartbeat, drains the batch queue, publishes
// consumer_disconnected, then returns.
func (c *Consumer) Stop(ctx context.Context) {
	if c.stopHeartbeat != nil {
		close(c.stopHeartbeat)
		c.heartbeatWg.Wait()
	}

	c.queue.Stop()

	c.publishBestEffort(ctx, bus.TopicConsumerDisconnected, map[string]any{
		"group_id":   c.cfg.KafkaGroup,
		"service_id": c.cfg.ServiceID,
	})
}

// handle parses one stream message, enqueues it, and acknowledges. Malformed
// messages are logged and dropped with no retry (§4.11 step 1).
func (c *Consumer) handle(ctx context.Context, event bus.Event) error {
	doc, err := ParseDocument(event.Payload)
	if err != nil {
		c.log.Warn("dropping malformed turn message", "error", err, "event_id", event.ID)
		return nil
	}

	// Backpressure, not drop: a bursty tenant waits for a token instead of
	// having a validly-parsed turn discarded (§7 only sanctions dropping on
	// ParseError; QueueFull must NACK/retry, never silently vanish).
	if err := c.limiter.Wait(ctx, doc.TenantID); err != nil {
		c.log.Warn("ingestion throttle wait aborted", "tenant_id", doc.TenantID, "document_id", doc.ID, "error", err)
		return err
	}

	if err := c.queue.Add(doc); err != nil {
		c.log.Warn("batch queue rejected turn document", "error", err, "document_id", doc.ID)
		return err
	}

	return nil
}

// publishBestEffort publishes a side-channel event, logging rather than
// propagating any failure (§4.11).
func (c *Consumer) publishBestEffort(ctx context.Context, topic string, payload map[string]any) {
	event := bus.Event{
		ID:        fmt.Sprintf("%s-%d", topic, time.Now().UnixNano()),
		Type:      topic,
		Source:    c.cfg.ServiceID,
		Timestamp: time.Now().Unix(),
		Payload:   payload,
	}
	if err := c.b.Publish(ctx, topic, event); err != nil {
		c.log.Warn("side-channel publish failed", "topic", topic, "error", err)
	}
}
