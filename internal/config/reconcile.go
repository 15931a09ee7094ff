package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// ReconcileConfig holds configuration for the reconcile command.
type ReconcileConfig struct {
	RPCURLs      []string
	ChainID      uint64
	Block        uint64
	Pools        []string
	Store        string
	PGDSN        string
	Snapshot     string
	Out          string
	Tolerance    string
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
}

// LoadReconcile merges config file, environment variables, and flags into ReconcileConfig.
func LoadReconcile(cfgFile string, flags *pflag.FlagSet) (ReconcileConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"chain-id":      uint64(1),
		"store":         "memory",
		"snapshot":      "./data/ledger.jsonl",
		"out":           "./data/reconcile.jsonl",
		"tolerance":     "0.0001",
		"workers":       4,
		"max-retries":   3,
		"retry-backoff": 500 * time.Millisecond,
		"log-level":     "info",
	})
	if err != nil {
		return ReconcileConfig{}, err
	}

	cfg := ReconcileConfig{
		RPCURLs:      getStringSlice(v, "rpc"),
		ChainID:      v.GetUint64("chain-id"),
		Block:        v.GetUint64("block"),
		Pools:        getStringSlice(v, "pool"),
		Store:        strings.ToLower(v.GetString("store")),
		PGDSN:        v.GetString("pg-dsn"),
		Snapshot:     v.GetString("snapshot"),
		Out:          v.GetString("out"),
		Tolerance:    v.GetString("tolerance"),
		Workers:      v.GetInt("workers"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		LogLevel:     v.GetString("log-level"),
	}

	return cfg, nil
}
