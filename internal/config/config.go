// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all retrieval-core configuration.
type Config struct {
	Qdrant   QdrantConfig   `yaml:"qdrant"`
	Embed    EmbedConfig    `yaml:"embed"`
	Search   SearchConfig   `yaml:"search"`
	Reranker RerankerConfig `yaml:"reranker"`
	LLM      LLMConfig      `yaml:"llm"`
	Bus      BusConfig      `yaml:"bus"`
	Batch    BatchConfig    `yaml:"batch"`
	Log      LogConfig      `yaml:"log"`
	Backfill BackfillConfig `yaml:"backfill"`
}

// TenantRequired reports whether every search must carry a tenant_id.
// This is always true and is not a configuration key: tenant isolation is an
// invariant of the data model (§3.3), not a deployment choice.
func TenantRequired() bool {
	return true
}

// QdrantConfig holds vector-store connection settings.
type QdrantConfig struct {
	Host   string `envconfig:"QDRANT_HOST" yaml:"host"`
	Port   int    `envconfig:"QDRANT_PORT" yaml:"port"`
	APIKey string `envconfig:"QDRANT_API_KEY" yaml:"api_key"`
	UseTLS bool   `envconfig:"QDRANT_USE_TLS" yaml:"use_tls"`
}

// EmbedConfig holds embedder-factory settings.
type EmbedConfig struct {
	Device        string `envconfig:"EMBEDDER_DEVICE" yaml:"device"`              // cpu|cuda|mps
	Preload       bool   `envconfig:"EMBEDDER_PRELOAD" yaml:"preload"`            // eager-load at startup
	Dimensions    int    `envconfig:"EMBEDDER_DIMENSIONS" yaml:"dimensions"`      // dense vector width
	SparseEnabled bool   `envconfig:"EMBEDDER_SPARSE_ENABLED" yaml:"sparse_enabled"`
	MultiVector   bool   `envconfig:"EMBEDDER_MULTI_VECTOR_ENABLED" yaml:"multi_vector_enabled"`
	SparseTopK    int    `envconfig:"EMBEDDER_SPARSE_TOP_K" yaml:"sparse_top_k"`
	ColbertRows   int    `envconfig:"EMBEDDER_COLBERT_ROWS" yaml:"colbert_rows"` // per-document row count for the multi-vector stand-in
	CacheSize     int    `envconfig:"EMBEDDER_CACHE_SIZE" yaml:"cache_size"`
	RedisURL      string `envconfig:"EMBEDDER_REDIS_URL" yaml:"redis_url"` // optional second-tier embedding cache
}

// SearchConfig holds retrieval defaults.
type SearchConfig struct {
	DefaultStrategy   string  `envconfig:"DEFAULT_STRATEGY" yaml:"default_strategy"` // dense|sparse|hybrid
	MinScoreDense     float32 `envconfig:"MIN_SCORE_DENSE" yaml:"min_score_dense"`
	MinScoreSparse    float32 `envconfig:"MIN_SCORE_SPARSE" yaml:"min_score_sparse"`
	MinScoreHybrid    float32 `envconfig:"MIN_SCORE_HYBRID" yaml:"min_score_hybrid"`
	TurnCollection    string  `envconfig:"TURN_COLLECTION" yaml:"turn_collection"`
	MemoryCollection  string  `envconfig:"MEMORY_COLLECTION" yaml:"memory_collection"`
	SessionCollection string  `envconfig:"SESSION_COLLECTION" yaml:"session_collection"`
}

// RerankerConfig holds reranker-router settings.
type RerankerConfig struct {
	TimeoutMS int    `envconfig:"RERANKER_TIMEOUT_MS" yaml:"reranker_timeout_ms"`
	Backend   string `envconfig:"RERANKER_BACKEND" yaml:"reranker_backend"` // local|remote-api

	RateLimitRequestsPerHour int `envconfig:"RATE_LIMIT_REQUESTS_PER_HOUR" yaml:"rate_limit_requests_per_hour"`
	RateLimitBudgetCents     int `envconfig:"RATE_LIMIT_BUDGET_CENTS" yaml:"rate_limit_budget_cents"`
}

// LLMConfig holds the LLM client settings backing the llm reranker tier and multi-query expansion.
type LLMConfig struct {
	APIKey  string `envconfig:"LLM_API_KEY" yaml:"llm_api_key"`
	BaseURL string `envconfig:"LLM_BASE_URL" yaml:"llm_base_url"`
	Model   string `envconfig:"LLM_MODEL" yaml:"llm_model"`
}

// BusConfig holds event-stream transport settings.
type BusConfig struct {
	ConsumerEnabled  bool   `envconfig:"NATS_CONSUMER_ENABLED" yaml:"nats_consumer_enabled"` // name kept from the source system; realized over Kafka
	KafkaBrokers     string `envconfig:"KAFKA_BROKERS" yaml:"kafka_brokers"`
	KafkaGroup       string `envconfig:"KAFKA_CONSUMER_GROUP" yaml:"kafka_consumer_group"`
	KafkaClientID    string `envconfig:"KAFKA_CLIENT_ID" yaml:"kafka_client_id"`
	HeartbeatMS      int    `envconfig:"HEARTBEAT_INTERVAL_MS" yaml:"heartbeat_interval_ms"`
	ServiceID        string `envconfig:"SERVICE_ID" yaml:"service_id"`
	IngestRatePerSec int    `envconfig:"INGEST_RATE_PER_SEC" yaml:"ingest_rate_per_sec"`
}

// BatchConfig holds the turn indexer's batch-queue settings.
type BatchConfig struct {
	Size          int `envconfig:"BATCH_SIZE" yaml:"batch_size"`
	FlushInterval int `envconfig:"BATCH_FLUSH_INTERVAL_MS" yaml:"flush_interval_ms"`
	MaxQueueSize  int `envconfig:"BATCH_MAX_QUEUE_SIZE" yaml:"max_queue_size"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" yaml:"log_level"`
	Format string `envconfig:"LOG_FORMAT" yaml:"log_format"`
}

// BackfillConfig holds settings for the turn-graph bulk reindexer, which
// reads already-stored turns from a FalkorDB-compatible graph store (the
// conversation store of record) rather than the live event stream.
type BackfillConfig struct {
	RedisURL  string `envconfig:"BACKFILL_REDIS_URL" yaml:"redis_url"`
	GraphName string `envconfig:"BACKFILL_GRAPH_NAME" yaml:"graph_name"`
	BatchSize int    `envconfig:"BACKFILL_BATCH_SIZE" yaml:"batch_size"`
	DryRun    bool   `envconfig:"BACKFILL_DRY_RUN" yaml:"dry_run"`
}

// Load loads configuration from defaults, an optional YAML file, then environment variables.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	setDefaults(cfg)

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func setDefaults(cfg *Config) {
	cfg.Qdrant = QdrantConfig{
		Host: "localhost",
		Port: 6334,
	}

	cfg.Embed = EmbedConfig{
		Device:        "cpu",
		Preload:       false,
		Dimensions:    512,
		SparseEnabled: true,
		MultiVector:   false,
		SparseTopK:    256,
		ColbertRows:   32,
		CacheSize:     10000,
	}

	cfg.Search = SearchConfig{
		DefaultStrategy:   "hybrid",
		MinScoreDense:     0.5,
		MinScoreSparse:    0.3,
		MinScoreHybrid:    0,
		TurnCollection:    "turns",
		MemoryCollection:  "memory",
		SessionCollection: "sessions",
	}

	cfg.Reranker = RerankerConfig{
		TimeoutMS:                500,
		Backend:                  "local",
		RateLimitRequestsPerHour: 1000,
		RateLimitBudgetCents:     1000,
	}

	cfg.LLM = LLMConfig{
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
	}

	cfg.Bus = BusConfig{
		ConsumerEnabled:  true,
		KafkaBrokers:     "localhost:9092",
		KafkaGroup:       "turnsearch-indexer",
		KafkaClientID:    "turnsearch",
		HeartbeatMS:      30000,
		ServiceID:        "turnsearch-consumer",
		IngestRatePerSec: 200,
	}

	cfg.Batch = BatchConfig{
		Size:          32,
		FlushInterval: 2000,
		MaxQueueSize:  10000,
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "json",
	}

	cfg.Backfill = BackfillConfig{
		RedisURL:  "redis://localhost:6379",
		GraphName: "memory",
		BatchSize: 32,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	validDevices := map[string]bool{"cpu": true, "cuda": true, "mps": true}
	if !validDevices[c.Embed.Device] {
		errs = append(errs, fmt.Sprintf("invalid embedder device: %s (must be cpu, cuda, or mps)", c.Embed.Device))
	}

	if c.Embed.Dimensions < 1 {
		errs = append(errs, "embed.dimensions must be positive")
	}

	validStrategies := map[string]bool{"dense": true, "sparse": true, "hybrid": true}
	if !validStrategies[c.Search.DefaultStrategy] {
		errs = append(errs, fmt.Sprintf("invalid default_strategy: %s (must be dense, sparse, or hybrid)", c.Search.DefaultStrategy))
	}

	if c.Reranker.TimeoutMS < 1 {
		errs = append(errs, "reranker_timeout_ms must be positive")
	}

	validBackends := map[string]bool{"local": true, "remote-api": true}
	if !validBackends[c.Reranker.Backend] {
		errs = append(errs, fmt.Sprintf("invalid reranker_backend: %s (must be local or remote-api)", c.Reranker.Backend))
	}

	if c.Batch.Size < 1 {
		errs = append(errs, "batch_size must be positive")
	}

	if c.Batch.MaxQueueSize < c.Batch.Size {
		errs = append(errs, "max_queue_size must be at least batch_size")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Log.Level == "debug"
}
