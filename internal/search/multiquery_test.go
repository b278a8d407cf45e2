package search

import (
	"testing"

	"github.com/turnsearch/turnsearch/internal/llm"
)

func TestExpandQueriesWithNilExpanderReturnsOriginalOnly(t *testing.T) {
	m := NewMultiQueryRetriever(nil, nil, DefaultMultiQueryConfig(), nil)
	variants := m.expandQueries(nil, "reset password flow")
	if len(variants) != 1 || variants[0] != "reset password flow" {
		t.Fatalf("expected original-only fallback, got %v", variants)
	}
}

func TestUsageStartsAtZero(t *testing.T) {
	m := NewMultiQueryRetriever(nil, nil, DefaultMultiQueryConfig(), nil)
	usage := m.Usage()
	if usage.TotalTokens != 0 || usage.TotalCostCents != 0 {
		t.Fatalf("expected zero-valued usage, got %+v", usage)
	}
}

func TestRecordUsageAccumulatesAcrossCalls(t *testing.T) {
	m := NewMultiQueryRetriever(nil, nil, DefaultMultiQueryConfig(), nil)
	m.recordUsage(llm.Usage{TotalTokens: 1000, CostCents: 0.15})
	m.recordUsage(llm.Usage{TotalTokens: 500, CostCents: 0.075})

	usage := m.Usage()
	if usage.TotalTokens != 1500 {
		t.Fatalf("expected accumulated total_tokens=1500, got %d", usage.TotalTokens)
	}
	// float64 0.15 + 0.075 is 0.22499999999999998, not the literal 0.225.
	wantCost := 0.15
	wantCost += 0.075
	if usage.TotalCostCents != wantCost {
		t.Fatalf("expected accumulated total_cost_cents=%v, got %v", wantCost, usage.TotalCostCents)
	}
}

func TestResetUsageZeroesCounters(t *testing.T) {
	m := NewMultiQueryRetriever(nil, nil, DefaultMultiQueryConfig(), nil)
	m.recordUsage(llm.Usage{TotalTokens: 1000, CostCents: 0.5})

	m.ResetUsage()
	usage := m.Usage()
	if usage.TotalTokens != 0 || usage.TotalCostCents != 0 {
		t.Fatalf("expected zeroed usage after reset, got %+v", usage)
	}
}

func TestNormalizeVariantTrimsAndLowercases(t *testing.T) {
	if normalizeVariant("  Hello World  ") != "hello world" {
		t.Fatalf("unexpected normalization: %q", normalizeVariant("  Hello World  "))
	}
}
