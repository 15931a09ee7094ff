// Package reconcile compares ledger pools against live chain state.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/alitto/pond/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"poolLedger/internal/dex"
	"poolLedger/internal/mathutil"
	"poolLedger/internal/model"
	"poolLedger/internal/retry"
	"poolLedger/internal/storage"
)

const (
	MethodBlock  = "block"
	MethodLatest = "latest"
	MethodNone   = "none"
)

// DefaultTolerance is the relative TVL difference accepted as a match.
var DefaultTolerance = decimal.RequireFromString("0.0001")

type Config struct {
	Store   storage.Store
	Caller  dex.Caller
	ChainID uint64
	// BlockNumber pins the chain reads; zero reads latest state.
	BlockNumber uint64
	Tolerance   decimal.Decimal
	Workers     int
	// Retry applies to latest-state reads. Historical reads fail over to
	// latest instead of retrying.
	Retry  retry.Policy
	Logger *zap.Logger
}

// Result is the comparison for one pool.
type Result struct {
	Pool            string          `json:"pool"`
	Method          string          `json:"method"`
	LedgerToken0    decimal.Decimal `json:"ledger_token0"`
	ChainToken0     decimal.Decimal `json:"chain_token0"`
	LedgerToken1    decimal.Decimal `json:"ledger_token1"`
	ChainToken1     decimal.Decimal `json:"chain_token1"`
	LedgerLiquidity *big.Int        `json:"ledger_liquidity"`
	ChainLiquidity  *big.Int        `json:"chain_liquidity,omitempty"`
	LedgerTick      *int32          `json:"ledger_tick"`
	ChainTick       *int32          `json:"chain_tick,omitempty"`
	TVLMatch        bool            `json:"tvl_match"`
	StateMatch      bool            `json:"state_match"`
	Error           string          `json:"error,omitempty"`
}

// OK reports whether the pool matched on both balances and pool state.
func (r Result) OK() bool {
	return r.Error == "" && r.TVLMatch && r.StateMatch
}

type Reconciler struct {
	cfg    Config
	pool   pond.Pool
	logger *zap.Logger
}

func New(cfg Config) (*Reconciler, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if cfg.Caller == nil {
		return nil, fmt.Errorf("chain caller is nil")
	}
	if cfg.Tolerance.IsZero() {
		cfg.Tolerance = DefaultTolerance
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{cfg: cfg, pool: pond.NewPool(cfg.Workers), logger: logger}, nil
}

func (r *Reconciler) Close() {
	r.pool.StopAndWait()
}

// Pools lists the addresses of every pool the ledger holds for the chain.
func (r *Reconciler) Pools(ctx context.Context, lister storage.Lister) ([]string, error) {
	ids, err := lister.ListIDs(ctx, model.KindPool, fmt.Sprintf("%d-", r.cfg.ChainID))
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.AddressFromID(id))
	}
	return out, nil
}

// Run checks each pool concurrently. Chain read failures are reported on
// the pool's result; store failures abort the run.
func (r *Reconciler) Run(ctx context.Context, pools []string) ([]Result, error) {
	results := make([]Result, len(pools))
	group := r.pool.NewGroupContext(ctx)
	for i, addr := range pools {
		group.SubmitErr(func() error {
			res, err := r.checkPool(ctx, addr)
			if err != nil {
				return fmt.Errorf("pool %s: %w", addr, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		if errors.Is(err, pond.ErrGroupStopped) {
			return nil, ctx.Err()
		}
		return nil, err
	}

	mismatched := 0
	for _, res := range results {
		if !res.OK() {
			mismatched++
			r.logger.Warn("pool mismatch",
				zap.String("pool", res.Pool),
				zap.String("method", res.Method),
				zap.Bool("tvl_match", res.TVLMatch),
				zap.Bool("state_match", res.StateMatch),
				zap.String("error", res.Error),
			)
		}
	}
	r.logger.Info("reconcile complete", zap.Int("pools", len(results)), zap.Int("mismatched", mismatched))
	return results, nil
}

func (r *Reconciler) checkPool(ctx context.Context, addr string) (Result, error) {
	addr = strings.ToLower(addr)
	res := Result{Pool: addr, Method: MethodNone}

	pool, ok, err := storage.Load[model.Pool](ctx, r.cfg.Store, model.KindPool, model.PoolID(r.cfg.ChainID, addr))
	if err != nil {
		return res, err
	}
	if !ok {
		res.Error = "pool not in ledger"
		return res, nil
	}
	token0, ok0, err := storage.Load[model.Token](ctx, r.cfg.Store, model.KindToken, pool.Token0)
	if err != nil {
		return res, err
	}
	token1, ok1, err := storage.Load[model.Token](ctx, r.cfg.Store, model.KindToken, pool.Token1)
	if err != nil {
		return res, err
	}
	if !ok0 || !ok1 {
		res.Error = "pool tokens not in ledger"
		return res, nil
	}

	res.LedgerToken0 = pool.TotalValueLockedToken0
	res.LedgerToken1 = pool.TotalValueLockedToken1
	res.LedgerLiquidity = pool.Liquidity
	res.LedgerTick = pool.Tick

	bal0, bal1, method, err := r.fetchTVL(ctx, token0.Address(), token1.Address(), addr)
	res.Method = method
	if err != nil {
		res.Error = err.Error()
		return res, nil
	}
	res.ChainToken0 = mathutil.ToDecimal(bal0, token0.Decimals)
	res.ChainToken1 = mathutil.ToDecimal(bal1, token1.Decimals)
	res.TVLMatch = r.within(res.LedgerToken0, res.ChainToken0) && r.within(res.LedgerToken1, res.ChainToken1)

	state, err := r.fetchState(ctx, addr, method)
	if err != nil {
		res.Error = err.Error()
		return res, nil
	}
	tick := state.Tick
	res.ChainLiquidity = state.Liquidity
	res.ChainTick = &tick
	res.StateMatch = pool.Liquidity != nil && pool.Liquidity.Cmp(state.Liquidity) == 0 &&
		pool.Tick != nil && *pool.Tick == state.Tick
	return res, nil
}

// fetchTVL reads both pool balances at the configured block, falling back
// to latest state when the node cannot serve historical reads.
func (r *Reconciler) fetchTVL(ctx context.Context, token0, token1, poolAddr string) (*big.Int, *big.Int, string, error) {
	if !common.IsHexAddress(token0) || !common.IsHexAddress(token1) || !common.IsHexAddress(poolAddr) {
		return nil, nil, MethodNone, fmt.Errorf("invalid address")
	}
	pool := common.HexToAddress(poolAddr)

	if r.cfg.BlockNumber > 0 {
		bal0, err0 := dex.BalanceOf(ctx, r.cfg.Caller, common.HexToAddress(token0), pool, r.cfg.BlockNumber)
		bal1, err1 := dex.BalanceOf(ctx, r.cfg.Caller, common.HexToAddress(token1), pool, r.cfg.BlockNumber)
		if err0 == nil && err1 == nil {
			return bal0, bal1, MethodBlock, nil
		}
		r.logger.Debug("balanceOf at block failed, trying latest",
			zap.String("pool", poolAddr),
			zap.Uint64("block", r.cfg.BlockNumber),
			zap.Error(errors.Join(err0, err1)),
		)
	}

	var bal0, bal1 *big.Int
	err := retry.Do(ctx, r.cfg.Retry, func(ctx context.Context) error {
		var err0, err1 error
		bal0, err0 = dex.BalanceOf(ctx, r.cfg.Caller, common.HexToAddress(token0), pool, 0)
		bal1, err1 = dex.BalanceOf(ctx, r.cfg.Caller, common.HexToAddress(token1), pool, 0)
		return errors.Join(err0, err1)
	})
	if err != nil {
		return nil, nil, MethodNone, fmt.Errorf("balanceOf failed: %w", err)
	}
	return bal0, bal1, MethodLatest, nil
}

// fetchState reads pool state from the same block the balances came from.
func (r *Reconciler) fetchState(ctx context.Context, poolAddr, method string) (dex.PoolState, error) {
	if method == MethodBlock {
		return dex.FetchPoolState(ctx, r.cfg.Caller, common.HexToAddress(poolAddr), r.cfg.BlockNumber)
	}
	var state dex.PoolState
	err := retry.Do(ctx, r.cfg.Retry, func(ctx context.Context) error {
		var err error
		state, err = dex.FetchPoolState(ctx, r.cfg.Caller, common.HexToAddress(poolAddr), 0)
		return err
	})
	return state, err
}

func (r *Reconciler) within(ledger, chain decimal.Decimal) bool {
	diff := mathutil.Abs(ledger.Sub(chain))
	if diff.IsZero() {
		return true
	}
	scale := mathutil.Abs(chain)
	if scale.IsZero() {
		return false
	}
	return mathutil.SafeDiv(diff, scale).LessThanOrEqual(r.cfg.Tolerance)
}
