package fusion

import (
	"testing"

	"github.com/turnsearch/turnsearch/internal/search/result"
)

func TestFuseListsCombinesAcrossLists(t *testing.T) {
	a := []result.Item{{ID: "1"}, {ID: "2"}, {ID: "3"}}
	b := []result.Item{{ID: "2"}, {ID: "1"}, {ID: "4"}}

	fused := FuseLists([][]result.Item{a, b}, 60)

	if len(fused) != 4 {
		t.Fatalf("expected 4 unique ids, got %d", len(fused))
	}
	// "1" and "2" appear in both lists near the top, so they should outrank
	// "3" and "4" which each appear once.
	top := map[string]bool{fused[0].ID: true, fused[1].ID: true}
	if !top["1"] || !top["2"] {
		t.Fatalf("expected ids 1 and 2 fused to the top, got %+v", fused)
	}
}

func TestFuseListsSingleListPreservesOrder(t *testing.T) {
	a := []result.Item{{ID: "x"}, {ID: "y"}, {ID: "z"}}
	fused := FuseLists([][]result.Item{a}, 60)
	if fused[0].ID != "x" || fused[1].ID != "y" || fused[2].ID != "z" {
		t.Fatalf("expected original order preserved with single list, got %+v", fused)
	}
}

func TestFuseListsEmptyInput(t *testing.T) {
	fused := FuseLists(nil, 60)
	if len(fused) != 0 {
		t.Fatalf("expected empty result, got %+v", fused)
	}
}

func TestFuseListsDefaultsKWhenZero(t *testing.T) {
	a := []result.Item{{ID: "1"}}
	fused := FuseLists([][]result.Item{a}, 0)
	if len(fused) != 1 || fused[0].Score <= 0 {
		t.Fatalf("expected nonzero fused score with default k, got %+v", fused)
	}
}
