package llm

import "testing"

func TestParseScoresClean(t *testing.T) {
	got := parseScores("[10, 20, 95]", 3)
	want := []int{10, 20, 95}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestParseScoresEmbeddedInProse(t *testing.T) {
	raw := "Here are the scores you requested:\n[5, 100, 50]\nLet me know if you need anything else."
	got := parseScores(raw, 3)
	want := []int{5, 100, 50}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestParseScoresClampsOutOfRange(t *testing.T) {
	got := parseScores("[-10, 150, 50]", 3)
	want := []int{0, 100, 50}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestParseScoresFallsBackOnLengthMismatch(t *testing.T) {
	got := parseScores("[10, 20]", 3)
	for _, v := range got {
		if v != 50 {
			t.Errorf("expected uniform 50 fallback, got %v", got)
		}
	}
}

func TestParseScoresFallsBackOnGarbage(t *testing.T) {
	got := parseScores("I refuse to answer in JSON.", 2)
	if len(got) != 2 || got[0] != 50 || got[1] != 50 {
		t.Errorf("expected uniform 50 fallback of length 2, got %v", got)
	}
}

func TestParseQueriesClean(t *testing.T) {
	queries, ok := parseQueries(`{"queries": ["a rewrite", "another rewrite"]}`)
	if !ok {
		t.Fatal("expected ok")
	}
	if len(queries) != 2 || queries[0] != "a rewrite" {
		t.Errorf("got %v", queries)
	}
}

func TestParseQueriesWithFencesAndProse(t *testing.T) {
	raw := "Sure, here you go:\n```json\n{\"queries\": [\"x\", \"y\", \"z\"]}\n```"
	queries, ok := parseQueries(raw)
	if !ok || len(queries) != 3 {
		t.Fatalf("got %v, ok=%v", queries, ok)
	}
}

func TestParseQueriesGarbageFails(t *testing.T) {
	_, ok := parseQueries("no json here at all")
	if ok {
		t.Error("expected parse failure")
	}
}
