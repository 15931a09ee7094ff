package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"poolLedger/internal/chain"
	"poolLedger/internal/config"
	"poolLedger/internal/dex"
	"poolLedger/internal/indexer"
	"poolLedger/internal/storage"
)

func main() {
	root := &cobra.Command{
		Use:          "indexer",
		Short:        "Concentrated-liquidity DEX ledger",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch factory and pool logs",
		RunE:  runIndexer,
	}

	runCmd.Flags().StringSlice("rpc", nil, "RPC URLs, tried in order (comma-separated)")
	runCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	runCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	runCmd.Flags().StringSlice("address", nil, "contract addresses (comma-separated), empty means any")
	runCmd.Flags().StringSlice("topic0", nil, "topic0 hashes or event names (comma-separated), empty means every decodable event")
	runCmd.Flags().String("topic0-map", "", "extra topic0->event mappings (comma-separated key=value)")
	runCmd.Flags().Bool("enrich-tx", true, "record transaction sender and gas price")
	runCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	runCmd.Flags().String("out", "./data/logs.jsonl", "output JSONL path")
	runCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	runCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	runCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode raw logs into typed events",
		RunE:  runDecode,
	}

	decodeCmd.Flags().String("in", "", "input raw logs JSONL")
	decodeCmd.Flags().String("out", "./data/typed_events.jsonl", "output typed events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	decodeCmd.Flags().String("topic0-map", "", "extra topic0->event mappings (comma-separated key=value)")
	decodeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(decodeCmd)

	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Apply typed events to the entity ledger",
		RunE:  runLedger,
	}

	ledgerCmd.Flags().String("in", "./data/typed_events.jsonl", "input typed events JSONL")
	ledgerCmd.Flags().String("store", "memory", "entity store (memory, postgres)")
	ledgerCmd.Flags().String("pg-dsn", "", "Postgres DSN for the postgres store")
	ledgerCmd.Flags().String("snapshot", "./data/ledger.jsonl", "memory store snapshot path, loaded before and written after the run")
	ledgerCmd.Flags().String("clickhouse-dsn", "", "optional ClickHouse DSN for the event archive")
	ledgerCmd.Flags().String("redis-addr", "", "optional Redis address for the token metadata cache")
	ledgerCmd.Flags().Duration("redis-ttl", 30*24*time.Hour, "token metadata cache TTL")
	ledgerCmd.Flags().String("chains", "", "chains YAML merged over the built-in table")
	ledgerCmd.Flags().StringSlice("rpc", nil, "extra metadata RPC endpoints as chainID=url (comma-separated)")
	ledgerCmd.Flags().Int("flush-every", 1000, "events per store flush")
	ledgerCmd.Flags().String("cursor-id", "ledger", "cursor entity id")
	ledgerCmd.Flags().Int("workers", 8, "worker pool size for loads and metadata calls")
	ledgerCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
	ledgerCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(ledgerCmd)

	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare ledger pools with on-chain balances and state",
		RunE:  runReconcile,
	}

	reconcileCmd.Flags().StringSlice("rpc", nil, "RPC URLs, tried in order (comma-separated)")
	reconcileCmd.Flags().Uint64("chain-id", 1, "chain to reconcile")
	reconcileCmd.Flags().Uint64("block", 0, "block to read chain state at, 0 means latest")
	reconcileCmd.Flags().StringSlice("pool", nil, "pool addresses (comma-separated), empty means every ledger pool")
	reconcileCmd.Flags().String("store", "memory", "entity store (memory, postgres)")
	reconcileCmd.Flags().String("pg-dsn", "", "Postgres DSN for the postgres store")
	reconcileCmd.Flags().String("snapshot", "./data/ledger.jsonl", "memory store snapshot path")
	reconcileCmd.Flags().String("out", "./data/reconcile.jsonl", "output results JSONL")
	reconcileCmd.Flags().String("tolerance", "0.0001", "relative balance difference accepted as a match")
	reconcileCmd.Flags().Int("workers", 4, "concurrent pool checks")
	reconcileCmd.Flags().Int("max-retries", 3, "maximum retry attempts for latest-state reads")
	reconcileCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	reconcileCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(reconcileCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIndexer(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if len(cfg.RPCURLs) == 0 {
		return fmt.Errorf("rpc url is required")
	}

	addresses, err := indexer.ParseAddresses(cfg.Addresses)
	if err != nil {
		return err
	}

	decoder, err := dex.NewEventDecoder(dex.DecoderConfig{Topic0Map: cfg.Topic0Map})
	if err != nil {
		return err
	}
	topics := cfg.Topic0
	if len(topics) == 0 {
		topics = decoder.Topics()
	}
	topic0, err := indexer.ParseTopic0(topics, decoder)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.Dial(ctx, cfg.RPCURLs)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	storageSink := storage.NewJsonlStorage(cfg.Out)

	runner := indexer.NewRunner(indexer.RunConfig{
		FromBlock:          cfg.FromBlock,
		ToBlock:            cfg.ToBlock,
		Addresses:          addresses,
		Topic0:             topic0,
		BatchSize:          cfg.BatchSize,
		CheckpointPath:     cfg.Checkpoint,
		CheckpointEnabled:  cfg.CheckpointEnabled,
		MaxRetries:         cfg.MaxRetries,
		RetryBackoff:       cfg.RetryBackoff,
		EnrichTransactions: cfg.EnrichTransactions,
	}, chainClient, storageSink, logger)

	logger.Info("indexer start",
		zap.String("rpc", chainClient.URL()),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Int("addresses", len(addresses)),
		zap.Int("topic0", len(topic0)),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("out", cfg.Out),
		zap.Bool("enrich_tx", cfg.EnrichTransactions),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint", cfg.Checkpoint),
	)

	return runner.Run(ctx)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
