package metadata

import (
	"context"
	"fmt"
	"strings"

	"github.com/alitto/pond/v2"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"poolLedger/internal/chains"
	"poolLedger/internal/dex"
	"poolLedger/internal/model"
)

// Lookup sources reported to the Observer.
const (
	SourceNative      = "native"
	SourceOverride    = "override"
	SourceMemory      = "memory"
	SourceCache       = "cache"
	SourceRPC         = "rpc"
	SourcePlaceholder = "placeholder"
)

// Observer receives one call per resolved lookup.
type Observer interface {
	ObserveMetadata(source string)
}

// Config wires a Resolver.
type Config struct {
	Chains *chains.Registry
	// Callers lists RPC endpoints per chain, tried in order.
	Callers  map[uint64][]dex.Caller
	Cache    Cache
	Workers  int
	Logger   *zap.Logger
	Observer Observer
}

// Resolver returns ERC20 metadata for tokens referenced by new pools.
type Resolver struct {
	chains   *chains.Registry
	callers  map[uint64][]dex.Caller
	cache    Cache
	local    *xsync.Map[string, model.TokenMeta]
	group    singleflight.Group
	pool     pond.Pool
	logger   *zap.Logger
	observer Observer
}

// NewResolver validates cfg and starts the call pool.
func NewResolver(cfg Config) (*Resolver, error) {
	if cfg.Chains == nil {
		return nil, fmt.Errorf("chain registry is required")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 8
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		chains:   cfg.Chains,
		callers:  cfg.Callers,
		cache:    cfg.Cache,
		local:    xsync.NewMap[string, model.TokenMeta](),
		pool:     pond.NewPool(workers),
		logger:   logger,
		observer: cfg.Observer,
	}, nil
}

// Close stops the call pool after running calls finish.
func (r *Resolver) Close() {
	r.pool.StopAndWait()
}

// Resolve returns metadata for address on chainID. It only fails when ctx is
// done; unreadable fields fall back to placeholders.
func (r *Resolver) Resolve(ctx context.Context, chainID uint64, address string) (model.TokenMeta, error) {
	address = strings.ToLower(address)
	chain, ok := r.chains.Get(chainID)

	if ok && address == model.ZeroAddress {
		r.observe(SourceNative)
		return model.TokenMeta{
			Address:  address,
			Decimals: chain.NativeToken.Decimals,
			Symbol:   chain.NativeToken.Symbol,
			Name:     chain.NativeToken.Name,
		}, nil
	}
	if ok {
		if def, found := chain.TokenOverride(address); found {
			r.observe(SourceOverride)
			return model.TokenMeta{Address: address, Decimals: def.Decimals, Symbol: def.Symbol, Name: def.Name}, nil
		}
	}

	key := cacheKey(chainID, address)
	if meta, found := r.local.Load(key); found {
		r.observe(SourceMemory)
		return meta, nil
	}

	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		return r.lookup(ctx, chainID, address, key)
	})
	if err != nil {
		return model.TokenMeta{}, err
	}
	return v.(model.TokenMeta), nil
}

func (r *Resolver) lookup(ctx context.Context, chainID uint64, address, key string) (model.TokenMeta, error) {
	if r.cache != nil {
		meta, found, err := r.cache.Get(ctx, chainID, address)
		if err != nil {
			r.logger.Warn("metadata cache read failed", zap.String("key", key), zap.Error(err))
		} else if found {
			r.local.Store(key, meta)
			r.observe(SourceCache)
			return meta, nil
		}
	}

	partial := r.fetch(ctx, chainID, address)
	if err := ctx.Err(); err != nil {
		return model.TokenMeta{}, err
	}

	meta, complete := partial.finish(address)
	r.local.Store(key, meta)
	if !complete {
		r.logger.Warn("token metadata incomplete, using placeholders",
			zap.Uint64("chain_id", chainID),
			zap.String("token", address),
			zap.String("symbol", meta.Symbol),
			zap.Uint8("decimals", meta.Decimals),
		)
		r.observe(SourcePlaceholder)
		return meta, nil
	}

	r.observe(SourceRPC)
	if r.cache != nil {
		if err := r.cache.Set(ctx, chainID, meta); err != nil {
			r.logger.Warn("metadata cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return meta, nil
}

func (r *Resolver) observe(source string) {
	if r.observer != nil {
		r.observer.ObserveMetadata(source)
	}
}

func cacheKey(chainID uint64, address string) string {
	return fmt.Sprintf("%d:%s", chainID, address)
}
