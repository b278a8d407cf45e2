package backfill

import (
	"reflect"
	"testing"
)

func TestTurnToDocumentBuildsContentFromAllRoles(t *testing.T) {
	raw := RawTurn{
		TurnID:           "turn-1",
		SessionID:        "session-1",
		TenantID:         "tenant-a",
		UserContent:      "how do I reset a password",
		AssistantPreview: "use the reset endpoint",
		ReasoningPreview: "the user is locked out",
		SequenceIndex:    3,
		FilesTouched:     []interface{}{"src/auth.go"},
		ToolCallsCount:   2,
		InputTokens:      120,
		OutputTokens:     40,
		Timestamp:        1700000000,
	}

	doc, err := TurnToDocument(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ID != "turn-1" || doc.TenantID != "tenant-a" || doc.SessionID != "session-1" {
		t.Fatalf("unexpected document: %+v", doc)
	}
	want := "User: how do I reset a password\n\nAssistant: use the reset endpoint\n\nReasoning: the user is locked out"
	if doc.Content != want {
		t.Fatalf("unexpected content: %q", doc.Content)
	}
	if doc.Metadata["tool_calls_count"] != 2 {
		t.Fatalf("unexpected tool_calls_count: %v", doc.Metadata["tool_calls_count"])
	}
	if doc.Metadata["backfilled"] != true {
		t.Fatalf("expected backfilled=true, got %v", doc.Metadata["backfilled"])
	}
}

func TestTurnToDocumentRejectsMissingID(t *testing.T) {
	_, err := TurnToDocument(RawTurn{UserContent: "hi"})
	if err == nil {
		t.Fatal("expected error for missing turn_id")
	}
}

func TestTurnToDocumentRejectsEmptyContent(t *testing.T) {
	_, err := TurnToDocument(RawTurn{TurnID: "turn-1"})
	if err == nil {
		t.Fatal("expected error for turn with no content in any role")
	}
}

func TestTurnToDocumentOnlyUserContent(t *testing.T) {
	doc, err := TurnToDocument(RawTurn{TurnID: "turn-1", UserContent: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Content != "User: hello" {
		t.Fatalf("unexpected content: %q", doc.Content)
	}
}

func TestTurnToDocumentOnlyAssistantContent(t *testing.T) {
	doc, err := TurnToDocument(RawTurn{TurnID: "turn-1", AssistantPreview: "hi there"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Content != "Assistant: hi there" {
		t.Fatalf("unexpected content: %q", doc.Content)
	}
}

func TestTurnToDocumentDefaultsTenantWhenMissing(t *testing.T) {
	doc, err := TurnToDocument(RawTurn{TurnID: "turn-1", UserContent: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.TenantID != "default" {
		t.Fatalf("expected default tenant, got %q", doc.TenantID)
	}
}

func TestParseFilesTouchedNil(t *testing.T) {
	got := parseFilesTouched(nil)
	if !reflect.DeepEqual(got, []string{}) {
		t.Fatalf("expected empty slice, got %v", got)
	}
}

func TestParseFilesTouchedNativeList(t *testing.T) {
	got := parseFilesTouched([]interface{}{"src/main.ts", "src/utils.ts"})
	want := []string{"src/main.ts", "src/utils.ts"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestParseFilesTouchedJSONArrayString(t *testing.T) {
	got := parseFilesTouched(`["src/main.ts", "src/utils.ts"]`)
	want := []string{"src/main.ts", "src/utils.ts"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestParseFilesTouchedPythonListLiteralString(t *testing.T) {
	got := parseFilesTouched("['src/main.ts', 'src/utils.ts']")
	want := []string{"src/main.ts", "src/utils.ts"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestParseFilesTouchedInvalidStringDegradesToEmpty(t *testing.T) {
	got := parseFilesTouched("not a valid list")
	if !reflect.DeepEqual(got, []string{}) {
		t.Fatalf("expected empty slice, got %v", got)
	}
}

func TestParseGraphRowsParsesHeaderAndCells(t *testing.T) {
	raw := []interface{}{
		[]interface{}{"t.turn_id", "t.user_content"},
		[]interface{}{
			[]interface{}{"turn-1", "hello"},
			[]interface{}{"turn-2", "world"},
		},
		[]interface{}{"stats"},
	}

	turns, err := parseGraphRows(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].TurnID != "turn-1" || turns[0].UserContent != "hello" {
		t.Fatalf("unexpected first turn: %+v", turns[0])
	}
	if turns[1].TurnID != "turn-2" || turns[1].UserContent != "world" {
		t.Fatalf("unexpected second turn: %+v", turns[1])
	}
}

func TestParseGraphRowsEmptyResultReturnsNil(t *testing.T) {
	turns, err := parseGraphRows([]interface{}{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("expected no turns, got %d", len(turns))
	}
}

func TestDefaultConfigSetsBatchSizeAndGraph(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.BatchSize != 32 || cfg.GraphName != "memory" {
		t.Fatalf("unexpected default config: %+v", cfg)
	}
}

func TestNewBackfillerAppliesDefaultsOnZeroValues(t *testing.T) {
	b := NewBackfiller(nil, nil, Config{}, nil)
	if b.cfg.BatchSize != 32 || b.cfg.GraphName != "memory" {
		t.Fatalf("unexpected normalized config: %+v", b.cfg)
	}
}
