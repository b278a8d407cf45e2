package qdrant

import (
	"testing"
)

func TestDefaultClientConfig(t *testing.T) {
	cfg := DefaultClientConfig()

	if cfg.Host != DefaultHost {
		t.Errorf("expected host %s, got %s", DefaultHost, cfg.Host)
	}

	if cfg.Port != DefaultPort {
		t.Errorf("expected port %d, got %d", DefaultPort, cfg.Port)
	}

	if cfg.Timeout != DefaultTimeout {
		t.Errorf("expected timeout %v, got %v", DefaultTimeout, cfg.Timeout)
	}
}

func TestTurnCollectionConfig(t *testing.T) {
	cfg := TurnCollectionConfig("turns", 512, 32, true)

	if cfg.Name != "turns" {
		t.Errorf("expected name 'turns', got %s", cfg.Name)
	}
	if cfg.DenseVectors[VectorTurnDense] != 512 {
		t.Errorf("expected turn_dense size 512, got %d", cfg.DenseVectors[VectorTurnDense])
	}
	if len(cfg.SparseVectors) != 1 || cfg.SparseVectors[0] != VectorTurnSparse {
		t.Errorf("expected sparse vector turn_sparse, got %v", cfg.SparseVectors)
	}
	if cfg.MultiVectors[VectorTurnColbert] != 32 {
		t.Errorf("expected turn_colbert row size 32, got %d", cfg.MultiVectors[VectorTurnColbert])
	}

	cfgNoMV := TurnCollectionConfig("turns", 512, 32, false)
	if len(cfgNoMV.MultiVectors) != 0 {
		t.Error("expected no multi-vectors when disabled")
	}
}

func TestMemoryCollectionConfig(t *testing.T) {
	cfg := MemoryCollectionConfig("memory", 512, true)

	if cfg.DenseVectors[VectorTextDense] != 512 {
		t.Error("expected text_dense configured")
	}
	if cfg.DenseVectors[VectorCodeDense] != 512 {
		t.Error("expected code_dense configured when code embedder enabled")
	}

	cfgNoCode := MemoryCollectionConfig("memory", 512, false)
	if _, ok := cfgNoCode.DenseVectors[VectorCodeDense]; ok {
		t.Error("expected no code_dense when code embedder disabled")
	}
}

func TestSessionCollectionConfig(t *testing.T) {
	cfg := SessionCollectionConfig("sessions", 512)

	if len(cfg.DenseVectors) != 1 || cfg.DenseVectors[VectorTextDense] != 512 {
		t.Errorf("expected only text_dense configured, got %v", cfg.DenseVectors)
	}
	if len(cfg.SparseVectors) != 0 {
		t.Error("session collection must not carry a sparse field")
	}
}

func TestCollectionName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"turns", "turnsearch_turns"},
		{"memory", "turnsearch_memory"},
		{"sessions", "turnsearch_sessions"},
	}

	for _, tt := range tests {
		result := collectionName(tt.input)
		if result != tt.expected {
			t.Errorf("collectionName(%s) = %s, expected %s", tt.input, result, tt.expected)
		}
	}
}

func TestPoint(t *testing.T) {
	point := Point{
		ID:           "turn-abc123",
		DenseVectors: map[string][]float32{VectorTurnDense: make([]float32, 512)},
		SparseVectors: map[string]SparseVector{
			VectorTurnSparse: {Indices: []uint32{1, 2, 3}, Values: []float32{0.1, 0.2, 0.3}},
		},
		Payload: map[string]any{
			"tenant_id": "tenant-a",
			"type":      "turn",
		},
	}

	if point.ID != "turn-abc123" {
		t.Errorf("expected ID 'turn-abc123', got %s", point.ID)
	}

	if len(point.DenseVectors[VectorTurnDense]) != 512 {
		t.Errorf("expected dense vector of size 512, got %d", len(point.DenseVectors[VectorTurnDense]))
	}

	sv := point.SparseVectors[VectorTurnSparse]
	if len(sv.Indices) != len(sv.Values) {
		t.Error("sparse indices and values should have same length")
	}
}

func TestCollectionInfo(t *testing.T) {
	info := CollectionInfo{
		Name:          "turns",
		PointsCount:   1000,
		Status:        "green",
		SegmentsCount: 4,
	}

	if info.Name != "turns" {
		t.Errorf("expected name 'turns', got %s", info.Name)
	}

	if info.PointsCount != 1000 {
		t.Errorf("expected points count 1000, got %d", info.PointsCount)
	}

	if info.Status != "green" {
		t.Errorf("expected status 'green', got %s", info.Status)
	}
}

func TestRequireTenant(t *testing.T) {
	if err := requireTenant(nil); err == nil {
		t.Error("expected error for nil filter")
	}
	if err := requireTenant(&SearchFilter{}); err == nil {
		t.Error("expected error for empty tenant_id")
	}
	if err := requireTenant(&SearchFilter{TenantID: "tenant-a"}); err != nil {
		t.Errorf("expected no error for valid tenant_id, got %v", err)
	}
}

func TestBuildSearchFilter(t *testing.T) {
	// Nil filter should return nil
	result := buildSearchFilter(nil)
	if result != nil {
		t.Error("expected nil for nil filter")
	}

	// Tenant-only filter carries exactly one condition
	tenantOnly := &SearchFilter{TenantID: "tenant-a"}
	result = buildSearchFilter(tenantOnly)
	if result == nil || len(result.Must) != 1 {
		t.Errorf("expected 1 condition for tenant-only filter, got %v", result)
	}

	// Combined filter
	start := int64(1000)
	end := int64(2000)
	combined := &SearchFilter{
		TenantID:         "tenant-a",
		SessionID:        "session-1",
		Type:             "turn",
		TimeRangeStartMS: &start,
		TimeRangeEndMS:   &end,
	}
	result = buildSearchFilter(combined)
	if result == nil {
		t.Fatal("expected non-nil for combined filter")
	}
	if len(result.Must) != 4 {
		t.Errorf("expected 4 conditions (tenant, session, type, time range), got %d", len(result.Must))
	}
}
