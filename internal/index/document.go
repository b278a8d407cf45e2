// Package index builds and queues conversational-turn documents for upsert
// into the vector store (§3.1, §4.9, §4.10).
package index

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Document is the indexing unit (§3.1): content plus tenant/session scoping
// and free-form metadata.
type Document struct {
	ID        string
	Content   string
	TenantID  string
	SessionID string
	Metadata  map[string]any
}

// TurnFields are the raw per-role inputs used to build a turn document's
// content via BuildTurnContent.
type TurnFields struct {
	User      string
	Assistant string
	Reasoning string
}

// BuildTurnContent concatenates the non-empty role fields in the fixed order
// user, assistant, reasoning, using literal role prefixes and a blank-line
// separator (§3.1).
func BuildTurnContent(f TurnFields) string {
	var parts []string
	if u := strings.TrimSpace(f.User); u != "" {
		parts = append(parts, "User: "+u)
	}
	if a := strings.TrimSpace(f.Assistant); a != "" {
		parts = append(parts, "Assistant: "+a)
	}
	if r := strings.TrimSpace(f.Reasoning); r != "" {
		parts = append(parts, "Reasoning: "+r)
	}
	return strings.Join(parts, "\n\n")
}

// HasFencedCode reports whether content contains a fenced code marker,
// backing the has_code metadata flag.
func HasFencedCode(content string) bool {
	return strings.Contains(content, "```")
}

// NewTurnDocument builds a turn Document (§3.1) from its role fields and the
// surrounding turn metadata. sequenceIndex is the turn's position within its
// session.
func NewTurnDocument(id, tenantID, sessionID string, fields TurnFields, sequenceIndex int, toolCalls, filesTouched []string, inputTokens, outputTokens int, timestamp int64) *Document {
	content := BuildTurnContent(fields)

	metadata := map[string]any{
		"type":           "turn",
		"sequence_index": sequenceIndex,
		"tool_calls":     toolCalls,
		"files_touched":  filesTouched,
		"has_code":       HasFencedCode(content),
		"has_reasoning":  strings.TrimSpace(fields.Reasoning) != "",
		"input_tokens":   inputTokens,
		"output_tokens":  outputTokens,
		"timestamp":      timestamp,
	}

	return &Document{
		ID:        id,
		Content:   content,
		TenantID:  tenantID,
		SessionID: sessionID,
		Metadata:  metadata,
	}
}

// ComputeHash computes a SHA256 content hash, used for idempotent re-indexing.
func ComputeHash(content string) string {
	hash := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", hash)
}

// Validate checks the mandatory-field rule from §4.11 step 1: non-empty id,
// non-empty tenant_id, and non-empty content (at least one role was present).
func (d *Document) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("document id is empty")
	}
	if d.TenantID == "" {
		return fmt.Errorf("document %s: tenant_id is empty", d.ID)
	}
	if strings.TrimSpace(d.Content) == "" {
		return fmt.Errorf("document %s: content is empty (user/assistant/reasoning all blank)", d.ID)
	}
	return nil
}

// Payload builds the vector-store payload for this document: content,
// tenant_id, optional session_id, plus metadata (§3.1).
func (d *Document) Payload() map[string]any {
	payload := make(map[string]any, len(d.Metadata)+3)
	payload["content"] = d.Content
	payload["tenant_id"] = d.TenantID
	if d.SessionID != "" {
		payload["session_id"] = d.SessionID
	}
	for k, v := range d.Metadata {
		payload[k] = v
	}
	return payload
}
