package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"poolLedger/internal/chain"
	"poolLedger/internal/config"
	"poolLedger/internal/reconcile"
	"poolLedger/internal/retry"
	"poolLedger/internal/storage"
)

func runReconcile(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReconcile(cfgFile, cmd.Flags())
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
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}
	tolerance, err := decimal.NewFromString(cfg.Tolerance)
	if err != nil {
		return fmt.Errorf("invalid tolerance: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.Dial(ctx, cfg.RPCURLs)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	chainID, err := chainClient.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() || chainID.Uint64() != cfg.ChainID {
		return fmt.Errorf("rpc serves chain %s, want %d", chainID, cfg.ChainID)
	}

	backend, _, closeBackend, err := openBackend(ctx, cfg.Store, cfg.PGDSN, cfg.Snapshot)
	if err != nil {
		return err
	}
	defer closeBackend()

	reconciler, err := reconcile.New(reconcile.Config{
		Store:       backend,
		Caller:      chainClient,
		ChainID:     cfg.ChainID,
		BlockNumber: cfg.Block,
		Tolerance:   tolerance,
		Workers:     cfg.Workers,
		Retry:       retry.Policy{MaxRetries: cfg.MaxRetries, BaseDelay: cfg.RetryBackoff},
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer reconciler.Close()

	pools := cfg.Pools
	if len(pools) == 0 {
		lister, ok := backend.(storage.Lister)
		if !ok {
			return fmt.Errorf("store cannot list pools, pass --pool")
		}
		if pools, err = reconciler.Pools(ctx, lister); err != nil {
			return err
		}
	}

	logger.Info("reconcile start",
		zap.String("rpc", chainClient.URL()),
		zap.Uint64("chain_id", cfg.ChainID),
		zap.Uint64("block", cfg.Block),
		zap.Int("pools", len(pools)),
		zap.String("tolerance", tolerance.String()),
	)

	results, err := reconciler.Run(ctx, pools)
	if err != nil {
		return err
	}
	if err := storage.WriteJSONL(cfg.Out, results); err != nil {
		return fmt.Errorf("write results: %w", err)
	}

	mismatched := 0
	for _, res := range results {
		if !res.OK() {
			mismatched++
		}
	}
	if mismatched > 0 {
		return fmt.Errorf("%d of %d pools mismatched, see %s", mismatched, len(results), cfg.Out)
	}
	return nil
}
