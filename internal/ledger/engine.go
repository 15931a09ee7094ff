package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"poolLedger/internal/chains"
	"poolLedger/internal/model"
	"poolLedger/internal/pricing"
	"poolLedger/internal/rollup"
	"poolLedger/internal/storage"
)

var (
	// ErrUnknownEvent is returned by Apply for event names it has no handler for.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrInvalidPayload marks events whose decoded fields cannot be parsed.
	ErrInvalidPayload = errors.New("invalid event payload")
)

// IsEventError reports whether err concerns the event itself rather than
// the store or resolver, so the caller can count it and move on.
func IsEventError(err error) bool {
	return errors.Is(err, ErrUnknownEvent) || errors.Is(err, ErrInvalidPayload)
}

// Skip reasons reported to the Recorder.
const (
	ReasonUnknownChain   = "unknown_chain"
	ReasonPoolSkipped    = "pool_skipped"
	ReasonMissingPool    = "missing_pool"
	ReasonMissingBundle  = "missing_bundle"
	ReasonMissingFactory = "missing_factory"
	ReasonMissingToken   = "missing_token"
)

// badPricingPool is excluded from swap accounting on every chain.
const badPricingPool = "0x9663f2ca0454accad3e094448ea6f77443880454"

// MetadataResolver supplies token metadata for newly seen tokens.
type MetadataResolver interface {
	Resolve(ctx context.Context, chainID uint64, address string) (model.TokenMeta, error)
}

// Recorder observes per-event outcomes.
type Recorder interface {
	EventApplied(event string)
	EventSkipped(event, reason string)
	EventFailed(event string)
}

// Config wires an Engine.
type Config struct {
	Store    storage.Store
	Chains   *chains.Registry
	Resolver MetadataResolver
	Workers  int
	Logger   *zap.Logger
	Recorder Recorder
}

// Engine applies decoded events to the entity store, one at a time.
type Engine struct {
	store    storage.Store
	chains   *chains.Registry
	resolver MetadataResolver
	oracle   *pricing.Oracle
	rollups  *rollup.Updater
	pool     pond.Pool
	logger   *zap.Logger
	recorder Recorder
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if cfg.Chains == nil {
		return nil, fmt.Errorf("chain registry is nil")
	}
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("metadata resolver is nil")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 8
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		store:    cfg.Store,
		chains:   cfg.Chains,
		resolver: cfg.Resolver,
		oracle:   pricing.NewOracle(cfg.Store),
		rollups:  rollup.NewUpdater(cfg.Store),
		pool:     pond.NewPool(workers),
		logger:   logger,
		recorder: cfg.Recorder,
	}, nil
}

// Close waits for in-flight loads and releases the worker pool.
func (e *Engine) Close() {
	e.pool.StopAndWait()
}

// Apply mutates the ledger for one event. It returns false without error
// when the event was skipped because prerequisite state is missing.
func (e *Engine) Apply(ctx context.Context, event model.TypedEventRecord) (bool, error) {
	chain, ok := e.chains.Get(event.ChainID)
	if !ok {
		e.skipped(event, ReasonUnknownChain)
		return false, nil
	}

	var (
		reason string
		err    error
	)
	switch event.EventName {
	case model.EventPoolCreated:
		reason, err = e.handlePoolCreated(ctx, chain, event)
	case model.EventInitialize:
		reason, err = e.handleInitialize(ctx, chain, event)
	case model.EventMint:
		reason, err = e.handleMint(ctx, chain, event)
	case model.EventBurn:
		reason, err = e.handleBurn(ctx, chain, event)
	case model.EventSwap:
		reason, err = e.handleSwap(ctx, chain, event)
	case model.EventCollect:
		reason, err = e.handleCollect(ctx, chain, event)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownEvent, event.EventName)
	}

	if err != nil {
		if e.recorder != nil {
			e.recorder.EventFailed(event.EventName)
		}
		return false, fmt.Errorf("apply %s %s-%d: %w", event.EventName, event.TxHash, event.LogIndex, err)
	}
	if reason != "" {
		e.skipped(event, reason)
		return false, nil
	}
	if e.recorder != nil {
		e.recorder.EventApplied(event.EventName)
	}
	return true, nil
}

func (e *Engine) skipped(event model.TypedEventRecord, reason string) {
	e.logger.Debug("event skipped",
		zap.String("event", event.EventName),
		zap.Uint64("chain_id", event.ChainID),
		zap.Uint64("block", event.BlockNumber),
		zap.Uint64("log_index", event.LogIndex),
		zap.String("address", event.Address),
		zap.String("reason", reason),
	)
	if e.recorder != nil {
		e.recorder.EventSkipped(event.EventName, reason)
	}
}

// loadAll runs independent loads on the worker pool and returns the first error.
func (e *Engine) loadAll(ctx context.Context, loads ...func() error) error {
	group := e.pool.NewGroupContext(ctx)
	for _, load := range loads {
		group.SubmitErr(load)
	}
	return group.Wait()
}
