// Package backfill bulk-reindexes turns already stored in a FalkorDB-backed
// conversation graph, as an alternative entry point to the live event
// consumer for turns that predate it or that were missed during an outage.
package backfill

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/turnsearch/turnsearch/internal/index"
	"github.com/turnsearch/turnsearch/internal/pkg/logger"
)

// RawTurn is a single row of a turn graph query, before conversion into an
// index.Document.
type RawTurn struct {
	TurnID           string
	SessionID        string
	TenantID         string
	UserContent      string
	AssistantPreview string
	ReasoningPreview string
	SequenceIndex    int
	FilesTouched     any
	ToolCallsCount   int
	InputTokens      int
	OutputTokens     int
	Timestamp        int64
}

// Config configures a Backfiller.
type Config struct {
	GraphName string
	BatchSize int
	DryRun    bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{GraphName: "memory", BatchSize: 32}
}

// Backfiller queries a FalkorDB turn graph in pages and reindexes each page
// through the same Indexer the live consumer uses.
type Backfiller struct {
	redis   *redis.Client
	indexer *index.Indexer
	cfg     Config
	log     *logger.Logger
}

// NewBackfiller builds a Backfiller.
func NewBackfiller(redisClient *redis.Client, indexer *index.Indexer, cfg Config, log *logger.Logger) *Backfiller {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.GraphName == "" {
		cfg.GraphName = "memory"
	}
	return &Backfiller{redis: redisClient, indexer: indexer, cfg: cfg, log: log}
}

// Connect verifies the FalkorDB connection is reachable.
func (b *Backfiller) Connect(ctx context.Context) error {
	return b.redis.Ping(ctx).Err()
}

// Disconnect closes the underlying Redis connection.
func (b *Backfiller) Disconnect() error {
	return b.redis.Close()
}

// QueryTurns runs a Cypher query against the turn graph, returning up to
// limit turns starting at skip, ordered by timestamp.
func (b *Backfiller) QueryTurns(ctx context.Context, limit, skip int) ([]RawTurn, error) {
	cypher := fmt.Sprintf(
		"MATCH (t:Turn) RETURN t.turn_id, t.session_id, t.tenant_id, t.user_content, "+
			"t.assistant_preview, t.reasoning_preview, t.sequence_index, t.files_touched, "+
			"t.tool_calls_count, t.input_tokens, t.output_tokens, t.timestamp "+
			"ORDER BY t.timestamp SKIP %d LIMIT %d", skip, limit,
	)

	raw, err := b.redis.Do(ctx, "GRAPH.QUERY", b.cfg.GraphName, cypher).Result()
	if err != nil {
		return nil, fmt.Errorf("querying turn graph: %w", err)
	}
	return parseGraphRows(raw)
}

// Backfill pages through the turn graph and reindexes every turn found, up
// to limit turns total (0 means no limit). In dry-run mode turns are parsed
// and counted but never indexed.
func (b *Backfiller) Backfill(ctx context.Context, limit int) (total, indexed int, err error) {
	skip := 0
	for {
		batchLimit := b.cfg.BatchSize
		if limit > 0 {
			remaining := limit - total
			if remaining <= 0 {
				break
			}
			if batchLimit > remaining {
				batchLimit = remaining
			}
		}

		rows, err := b.QueryTurns(ctx, batchLimit, skip)
		if err != nil {
			return total, indexed, err
		}
		if len(rows) == 0 {
			break
		}

		docs := make([]*index.Document, 0, len(rows))
		for _, row := range rows {
			doc, convErr := TurnToDocument(row)
			if convErr != nil {
				if b.log != nil {
					b.log.Warn("backfill: skipping unparseable turn", "turn_id", row.TurnID, "error", convErr)
				}
				continue
			}
			docs = append(docs, doc)
		}

		total += len(rows)
		skip += len(rows)

		if !b.cfg.DryRun && len(docs) > 0 {
			indexed += b.indexer.IndexDocuments(ctx, docs)
		}

		if len(rows) < batchLimit {
			break
		}
	}
	return total, indexed, nil
}

// TurnToDocument converts a raw graph row into an index.Document, mirroring
// the turn-content rules in §3.1. Returns an error for a turn missing its id
// or carrying no content in any of user/assistant/reasoning.
func TurnToDocument(raw RawTurn) (*index.Document, error) {
	if raw.TurnID == "" {
		return nil, fmt.Errorf("backfill: turn missing turn_id")
	}

	content := index.BuildTurnContent(index.TurnFields{
		User:      raw.UserContent,
		Assistant: raw.AssistantPreview,
		Reasoning: raw.ReasoningPreview,
	})
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("backfill: turn %s has no content", raw.TurnID)
	}

	tenantID := raw.TenantID
	if tenantID == "" {
		tenantID = "default"
	}

	metadata := map[string]any{
		"type":             "turn",
		"sequence_index":   raw.SequenceIndex,
		"files_touched":    parseFilesTouched(raw.FilesTouched),
		"tool_calls_count": raw.ToolCallsCount,
		"has_code":         index.HasFencedCode(content),
		"has_reasoning":    strings.TrimSpace(raw.ReasoningPreview) != "",
		"input_tokens":     raw.InputTokens,
		"output_tokens":    raw.OutputTokens,
		"timestamp":        raw.Timestamp,
		"backfilled":       true,
	}

	return &index.Document{
		ID:        raw.TurnID,
		Content:   content,
		TenantID:  tenantID,
		SessionID: raw.SessionID,
		Metadata:  metadata,
	}, nil
}

// parseFilesTouched normalizes the graph store's files_touched cell, which
// may arrive as a native list, a JSON array string, a Python list-literal
// string (the graph predates a proper list column), or an unparseable
// string — the last two are historical data-quality issues the backfill
// script tolerates rather than fails on.
func parseFilesTouched(v any) []string {
	switch t := v.(type) {
	case nil:
		return []string{}
	case []string:
		return t
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, toString(e))
		}
		return out
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return []string{}
		}
		var parsed []string
		if err := json.Unmarshal([]byte(s), &parsed); err == nil {
			return parsed
		}
		if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
			inner := strings.Trim(s, "[]")
			parts := strings.Split(inner, ",")
			out := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.Trim(strings.TrimSpace(p), `'"`)
				if p != "" {
					out = append(out, p)
				}
			}
			return out
		}
		return []string{}
	default:
		return []string{}
	}
}

func parseGraphRows(raw any) ([]RawTurn, error) {
	result, ok := raw.([]interface{})
	if !ok || len(result) < 2 {
		return nil, nil
	}
	header, ok := result[0].([]interface{})
	if !ok {
		return nil, fmt.Errorf("backfill: unexpected graph query header shape")
	}
	rows, ok := result[1].([]interface{})
	if !ok {
		return nil, fmt.Errorf("backfill: unexpected graph query rows shape")
	}

	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = toString(h)
	}

	turns := make([]RawTurn, 0, len(rows))
	for _, r := range rows {
		cells, ok := r.([]interface{})
		if !ok {
			continue
		}
		fields := make(map[string]any, len(cols))
		for i, c := range cols {
			if i < len(cells) {
				fields[c] = cells[i]
			}
		}
		turns = append(turns, rawTurnFromFields(fields))
	}
	return turns, nil
}

func rawTurnFromFields(f map[string]any) RawTurn {
	return RawTurn{
		TurnID:           toString(f["t.turn_id"]),
		SessionID:        toString(f["t.session_id"]),
		TenantID:         toString(f["t.tenant_id"]),
		UserContent:      toString(f["t.user_content"]),
		AssistantPreview: toString(f["t.assistant_preview"]),
		ReasoningPreview: toString(f["t.reasoning_preview"]),
		SequenceIndex:    toInt(f["t.sequence_index"]),
		FilesTouched:     f["t.files_touched"],
		ToolCallsCount:   toInt(f["t.tool_calls_count"]),
		InputTokens:      toInt(f["t.input_tokens"]),
		OutputTokens:     toInt(f["t.output_tokens"]),
		Timestamp:        toInt64(f["t.timestamp"]),
	}
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func toInt(v any) int {
	switch t := v.(type) {
	case int64:
		return int(t)
	case int:
		return t
	case string:
		n, _ := strconv.Atoi(t)
		return n
	default:
		return 0
	}
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	default:
		return 0
	}
}
