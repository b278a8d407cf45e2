// Command turnsearch is the CLI entrypoint for the hybrid conversational
// memory search core: run the stream consumer, manage vector-store
// collections, or issue a one-off query from the terminal.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/turnsearch/turnsearch/internal/backfill"
	"github.com/turnsearch/turnsearch/internal/bus"
	"github.com/turnsearch/turnsearch/internal/config"
	"github.com/turnsearch/turnsearch/internal/consumer"
	"github.com/turnsearch/turnsearch/internal/embed"
	"github.com/turnsearch/turnsearch/internal/index"
	"github.com/turnsearch/turnsearch/internal/llm"
	"github.com/turnsearch/turnsearch/internal/pkg/logger"
	"github.com/turnsearch/turnsearch/internal/qdrant"
	"github.com/turnsearch/turnsearch/internal/search"
	"github.com/turnsearch/turnsearch/internal/search/reranker"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:          "turnsearch",
		Short:        "Hybrid semantic/lexical search core for conversational memory",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	rootCmd.AddCommand(
		queryCmd(),
		consumeCmd(),
		collectionsCmd(),
		backfillCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	return cfg, log, nil
}

func connectStore(ctx context.Context, cfg config.QdrantConfig) (*qdrant.Client, error) {
	clientCfg := qdrant.DefaultClientConfig()
	clientCfg.Host = cfg.Host
	clientCfg.Port = cfg.Port
	clientCfg.APIKey = cfg.APIKey
	clientCfg.UseTLS = cfg.UseTLS
	return qdrant.NewClient(clientCfg)
}

// =============================================================================
// query
// =============================================================================

func queryCmd() *cobra.Command {
	var (
		tenantID string
		limit    int
		strategy string
		rerank   bool
		tier     string
	)

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Issue a one-off search query against the memory collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			store, err := connectStore(ctx, cfg.Qdrant)
			if err != nil {
				return fmt.Errorf("connecting to vector store: %w", err)
			}
			defer store.Close()

			embedFactory := embed.NewFactory(cfg.Embed, log)
			defer embedFactory.Close()

			llmClient := llm.NewClient(cfg.LLM, log)
			limiterCfg := reranker.RateLimiterConfig{
				RequestsPerHour: cfg.Reranker.RateLimitRequestsPerHour,
				BudgetCents:     float64(cfg.Reranker.RateLimitBudgetCents),
			}
			router := reranker.NewRouter(embedFactory, llmClient, limiterCfg, log)

			retriever := search.NewRetriever(store, embedFactory, router, cfg.Search, cfg.Reranker, log)

			q := search.Query{
				Text:     args[0],
				Limit:    limit,
				Strategy: strategy,
				Rerank:   rerank,
				Filters:  search.Filters{TenantID: tenantID},
			}
			if tier != "" {
				q.RerankTier = tier
			}

			items, err := retriever.Search(ctx, q)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			out, err := json.MarshalIndent(items, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant id (required)")
	cmd.Flags().IntVarP(&limit, "limit", "k", 10, "number of results")
	cmd.Flags().StringVar(&strategy, "strategy", "", "dense|sparse|hybrid (default: configured default)")
	cmd.Flags().BoolVar(&rerank, "rerank", false, "apply the reranker router")
	cmd.Flags().StringVar(&tier, "tier", "", "reranker tier override (fast|accurate|code|colbert|llm)")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

// =============================================================================
// consume
// =============================================================================

func consumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Run the turn-finalized event consumer until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := connectStore(ctx, cfg.Qdrant)
			if err != nil {
				return fmt.Errorf("connecting to vector store: %w", err)
			}
			defer store.Close()

			embedFactory := embed.NewFactory(cfg.Embed, log)
			defer embedFactory.Close()

			indexer := index.NewIndexer(store, embedFactory, cfg.Embed, cfg.Search.TurnCollection, log)

			queue := index.NewQueue(index.QueueConfig{
				BatchSize:       cfg.Batch.Size,
				FlushIntervalMS: cfg.Batch.FlushInterval,
				MaxQueueSize:    cfg.Batch.MaxQueueSize,
			}, func(docs []*index.Document) {
				n := indexer.IndexDocuments(ctx, docs)
				log.Info("turn batch indexed", "requested", len(docs), "indexed", n)
			}, log)
			queue.Start()

			kafkaBrokers := bus.ParseKafkaBrokers(cfg.Bus.KafkaBrokers)
			kafkaBus, err := bus.NewKafkaBus(bus.KafkaConfig{
				Brokers:       kafkaBrokers,
				ConsumerGroup: cfg.Bus.KafkaGroup,
				ClientID:      cfg.Bus.KafkaClientID,
			})
			if err != nil {
				return fmt.Errorf("connecting to kafka: %w", err)
			}

			c := consumer.NewConsumer(kafkaBus, queue, cfg.Bus, log)
			if err := c.Start(ctx); err != nil {
				return fmt.Errorf("starting consumer: %w", err)
			}

			log.Info("turn consumer started", "group", cfg.Bus.KafkaGroup, "topic", bus.TopicTurnFinalized)
			<-ctx.Done()

			log.Info("turn consumer shutting down")
			c.Stop(context.Background())
			return kafkaBus.Close()
		},
	}
}

// =============================================================================
// backfill
// =============================================================================

func backfillCmd() *cobra.Command {
	var (
		limit  int
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Bulk-reindex turns already stored in the FalkorDB turn graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			defer cancel()

			store, err := connectStore(ctx, cfg.Qdrant)
			if err != nil {
				return fmt.Errorf("connecting to vector store: %w", err)
			}
			defer store.Close()

			embedFactory := embed.NewFactory(cfg.Embed, log)
			defer embedFactory.Close()

			indexer := index.NewIndexer(store, embedFactory, cfg.Embed, cfg.Search.TurnCollection, log)

			opt, err := redis.ParseURL(cfg.Backfill.RedisURL)
			if err != nil {
				return fmt.Errorf("parsing backfill redis url: %w", err)
			}
			redisClient := redis.NewClient(opt)
			defer redisClient.Close()

			bfCfg := backfill.Config{
				GraphName: cfg.Backfill.GraphName,
				BatchSize: cfg.Backfill.BatchSize,
				DryRun:    cfg.Backfill.DryRun || dryRun,
			}
			bf := backfill.NewBackfiller(redisClient, indexer, bfCfg, log)

			if err := bf.Connect(ctx); err != nil {
				return fmt.Errorf("connecting to turn graph: %w", err)
			}
			defer bf.Disconnect()

			total, indexed, err := bf.Backfill(ctx, limit)
			if err != nil {
				return fmt.Errorf("backfill failed: %w", err)
			}

			log.Info("backfill complete", "total", total, "indexed", indexed, "dry_run", bfCfg.DryRun)
			fmt.Printf("backfill complete: %d turns read, %d indexed (dry_run=%v)\n", total, indexed, bfCfg.DryRun)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of turns to backfill (0 = no limit)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and count turns without indexing them")
	return cmd
}

// =============================================================================
// collections
// =============================================================================

func collectionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collections",
		Short: "Manage vector-store collections",
	}
	cmd.AddCommand(collectionsCreateCmd(), collectionsDeleteCmd())
	return cmd
}

func collectionsCreateCmd() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create (or recreate) a turn/memory/session collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			store, err := connectStore(ctx, cfg.Qdrant)
			if err != nil {
				return err
			}
			defer store.Close()

			name := args[0]
			denseSize := uint64(cfg.Embed.Dimensions)

			var collCfg qdrant.CollectionConfig
			switch kind {
			case "turn":
				collCfg = qdrant.TurnCollectionConfig(name, denseSize, uint64(cfg.Embed.ColbertRows), cfg.Embed.MultiVector)
			case "memory":
				collCfg = qdrant.MemoryCollectionConfig(name, denseSize, true)
			case "session":
				collCfg = qdrant.SessionCollectionConfig(name, denseSize)
			default:
				return fmt.Errorf("unknown collection kind %q (want turn, memory, or session)", kind)
			}

			exists, err := store.CollectionExists(ctx, name)
			if err != nil {
				return err
			}
			if exists {
				if err := store.DeleteCollection(ctx, name); err != nil {
					return err
				}
			}

			if err := store.CreateCollection(ctx, collCfg); err != nil {
				return err
			}

			fmt.Printf("created %s collection %q\n", kind, name)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "turn", "collection kind: turn|memory|session")
	return cmd
}

func collectionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			store, err := connectStore(ctx, cfg.Qdrant)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.DeleteCollection(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("deleted collection %q\n", args[0])
			return nil
		},
	}
}
