package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("QDRANT_PORT", "9090")
	os.Setenv("LOG_LEVEL", "debug")
	defer func() {
		os.Unsetenv("QDRANT_PORT")
		os.Unsetenv("LOG_LEVEL")
	}()

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Qdrant.Port != 9090 {
		t.Errorf("Qdrant.Port = %d, want 9090", cfg.Qdrant.Port)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %s, want debug", cfg.Log.Level)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
log:
  log_level: warn
  log_format: json
qdrant:
  host: "custom-host"
  port: 7333
embed:
  device: cuda
  dimensions: 768
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %s, want warn", cfg.Log.Level)
	}

	if cfg.Qdrant.Host != "custom-host" {
		t.Errorf("Qdrant.Host = %s, want custom-host", cfg.Qdrant.Host)
	}

	if cfg.Qdrant.Port != 7333 {
		t.Errorf("Qdrant.Port = %d, want 7333", cfg.Qdrant.Port)
	}

	if cfg.Embed.Device != "cuda" {
		t.Errorf("Embed.Device = %s, want cuda", cfg.Embed.Device)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid defaults",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "invalid embedder device",
			modify: func(c *Config) {
				c.Embed.Device = "invalid"
			},
			wantErr: true,
		},
		{
			name: "invalid dimensions",
			modify: func(c *Config) {
				c.Embed.Dimensions = 0
			},
			wantErr: true,
		},
		{
			name: "invalid default strategy",
			modify: func(c *Config) {
				c.Search.DefaultStrategy = "invalid"
			},
			wantErr: true,
		},
		{
			name: "invalid reranker timeout",
			modify: func(c *Config) {
				c.Reranker.TimeoutMS = 0
			},
			wantErr: true,
		},
		{
			name: "invalid reranker backend",
			modify: func(c *Config) {
				c.Reranker.Backend = "invalid"
			},
			wantErr: true,
		},
		{
			name: "invalid batch size",
			modify: func(c *Config) {
				c.Batch.Size = 0
			},
			wantErr: true,
		},
		{
			name: "max queue size below batch size",
			modify: func(c *Config) {
				c.Batch.Size = 100
				c.Batch.MaxQueueSize = 50
			},
			wantErr: true,
		},
		{
			name: "invalid log level",
			modify: func(c *Config) {
				c.Log.Level = "invalid"
			},
			wantErr: true,
		},
		{
			name: "invalid log format",
			modify: func(c *Config) {
				c.Log.Format = "invalid"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			setDefaults(cfg)
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsDevelopment(t *testing.T) {
	cfg := &Config{}

	cfg.Log.Level = "debug"
	if !cfg.IsDevelopment() {
		t.Error("IsDevelopment() = false, want true for debug level")
	}

	cfg.Log.Level = "info"
	if cfg.IsDevelopment() {
		t.Error("IsDevelopment() = true, want false for info level")
	}
}

func TestTenantRequired(t *testing.T) {
	if !TenantRequired() {
		t.Error("TenantRequired() = false, want true (not configurable off)")
	}
}
