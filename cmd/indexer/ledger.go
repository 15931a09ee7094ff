package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolLedger/internal/chain"
	"poolLedger/internal/chains"
	"poolLedger/internal/config"
	"poolLedger/internal/dex"
	"poolLedger/internal/ledger"
	"poolLedger/internal/metadata"
	"poolLedger/internal/metrics"
	"poolLedger/internal/storage"
	"poolLedger/internal/storage/clickhouse"
	"poolLedger/internal/storage/postgres"
)

func runLedger(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadLedger(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}

	registry, err := chains.Load(cfg.ChainsFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, snapshot, closeBackend, err := openBackend(ctx, cfg.Store, cfg.PGDSN, cfg.Snapshot)
	if err != nil {
		return err
	}
	defer closeBackend()

	var archivers []storage.Archiver
	if cfg.ClickHouseDSN != "" {
		conn, err := clickhouse.Open(ctx, cfg.ClickHouseDSN)
		if err != nil {
			return fmt.Errorf("connect clickhouse: %w", err)
		}
		defer conn.Close()
		archive := clickhouse.NewArchive(conn)
		if err := archive.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("clickhouse schema: %w", err)
		}
		archivers = append(archivers, archive)
	}
	store := storage.NewBuffered(backend, logger, archivers...)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.New(promRegistry)
	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, promRegistry, logger); err != nil {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	callers := make(map[uint64][]dex.Caller)
	for _, id := range registry.ChainIDs() {
		chainCfg, _ := registry.Get(id)
		urls := append(append([]string(nil), cfg.RPC[id]...), chainCfg.RPCURLs...)
		clients := chain.DialAll(ctx, urls, func(url string, err error) {
			logger.Warn("dial metadata rpc", zap.Uint64("chain_id", id), zap.String("rpc", url), zap.Error(err))
		})
		for _, client := range clients {
			defer client.Close()
			callers[id] = append(callers[id], client)
		}
	}

	var cache metadata.Cache
	if cfg.RedisAddr != "" {
		redisCache, err := metadata.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisTTL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisCache.Close()
		cache = redisCache
	}

	resolver, err := metadata.NewResolver(metadata.Config{
		Chains:   registry,
		Callers:  callers,
		Cache:    cache,
		Workers:  cfg.Workers,
		Logger:   logger,
		Observer: recorder,
	})
	if err != nil {
		return err
	}
	defer resolver.Close()

	engine, err := ledger.NewEngine(ledger.Config{
		Store:    store,
		Chains:   registry,
		Resolver: resolver,
		Workers:  cfg.Workers,
		Logger:   logger,
		Recorder: recorder,
	})
	if err != nil {
		return err
	}
	defer engine.Close()

	runner := ledger.NewRunner(ledger.RunnerConfig{
		InputPath:  cfg.In,
		FlushEvery: cfg.FlushEvery,
		CursorID:   cfg.CursorID,
		OnFlush:    recorder.ObserveFlush,
	}, engine, store, logger)

	logger.Info("ledger start",
		zap.String("in", cfg.In),
		zap.String("store", cfg.Store),
		zap.Bool("archive", len(archivers) > 0),
		zap.Bool("metadata_cache", cache != nil),
		zap.Int("flush_every", cfg.FlushEvery),
		zap.Int("workers", cfg.Workers),
	)

	_, runErr := runner.Run(ctx)

	// The backend only holds flushed batches, so the snapshot stays
	// consistent with its cursor even when the run stopped early.
	if snapshot != nil {
		if err := snapshot.Dump(cfg.Snapshot); err != nil {
			return errors.Join(runErr, fmt.Errorf("write snapshot: %w", err))
		}
		logger.Info("snapshot written", zap.String("path", cfg.Snapshot), zap.Int("entities", snapshot.Len()))
	}
	return runErr
}

// openBackend opens the entity store. The memory store is returned a second
// time so the caller can write its snapshot.
func openBackend(ctx context.Context, kind, dsn, snapshotPath string) (storage.Backend, *storage.MemoryStore, func(), error) {
	switch kind {
	case "", "memory":
		mem := storage.NewMemoryStore()
		if snapshotPath != "" {
			if err := mem.Restore(snapshotPath); err != nil {
				return nil, nil, nil, fmt.Errorf("load snapshot: %w", err)
			}
		}
		return mem, mem, func() {}, nil
	case "postgres":
		if dsn == "" {
			return nil, nil, nil, fmt.Errorf("pg dsn is required")
		}
		pg, err := postgres.NewStore(ctx, dsn)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, nil, nil, fmt.Errorf("postgres schema: %w", err)
		}
		return pg, nil, pg.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown store %q", kind)
	}
}
