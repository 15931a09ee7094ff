package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// LedgerConfig holds configuration for the ledger command.
type LedgerConfig struct {
	In            string
	Store         string
	PGDSN         string
	Snapshot      string
	ClickHouseDSN string
	RedisAddr     string
	RedisTTL      time.Duration
	ChainsFile    string
	RPC           map[uint64][]string
	FlushEvery    int
	CursorID      string
	Workers       int
	MetricsAddr   string
	LogLevel      string
}

// LoadLedger merges config file, environment variables, and flags into LedgerConfig.
func LoadLedger(cfgFile string, flags *pflag.FlagSet) (LedgerConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"in":          "./data/typed_events.jsonl",
		"store":       "memory",
		"snapshot":    "./data/ledger.jsonl",
		"redis-ttl":   30 * 24 * time.Hour,
		"flush-every": 1000,
		"cursor-id":   "ledger",
		"workers":     8,
		"log-level":   "info",
	})
	if err != nil {
		return LedgerConfig{}, err
	}

	rpc, err := ParseRPCEndpoints(getStringSlice(v, "rpc"))
	if err != nil {
		return LedgerConfig{}, err
	}

	cfg := LedgerConfig{
		In:            v.GetString("in"),
		Store:         strings.ToLower(v.GetString("store")),
		PGDSN:         v.GetString("pg-dsn"),
		Snapshot:      v.GetString("snapshot"),
		ClickHouseDSN: v.GetString("clickhouse-dsn"),
		RedisAddr:     v.GetString("redis-addr"),
		RedisTTL:      v.GetDuration("redis-ttl"),
		ChainsFile:    v.GetString("chains"),
		RPC:           rpc,
		FlushEvery:    v.GetInt("flush-every"),
		CursorID:      v.GetString("cursor-id"),
		Workers:       v.GetInt("workers"),
		MetricsAddr:   v.GetString("metrics-addr"),
		LogLevel:      v.GetString("log-level"),
	}

	return cfg, nil
}

// ParseRPCEndpoints reads "chainID=url" entries. Repeated chain ids keep
// their endpoints in order.
func ParseRPCEndpoints(entries []string) (map[uint64][]string, error) {
	out := make(map[uint64][]string)
	for _, entry := range entries {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[1]) == "" {
			return nil, fmt.Errorf("invalid rpc entry %q, want chainID=url", entry)
		}
		id, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid rpc chain id %q: %w", parts[0], err)
		}
		out[id] = append(out[id], strings.TrimSpace(parts[1]))
	}
	return out, nil
}
