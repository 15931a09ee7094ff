package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"poolLedger/internal/chains"
	"poolLedger/internal/mathutil"
	"poolLedger/internal/model"
	"poolLedger/internal/storage"
)

// poolState is the prerequisite set shared by the pool event handlers.
type poolState struct {
	pool    *model.Pool
	bundle  *model.Bundle
	factory *model.Factory
	token0  *model.Token
	token1  *model.Token
	lower   *model.Tick
	upper   *model.Tick
}

// loadPoolState reads the pool, then its bundle, factory and tokens in
// parallel. With withTicks it also reads the two boundary ticks, which may
// be absent. A non-empty reason means a prerequisite is missing.
func (e *Engine) loadPoolState(ctx context.Context, chain *chains.Config, poolAddr string, withTicks bool, tickLower, tickUpper int32) (*poolState, string, error) {
	poolID := model.PoolID(chain.ChainID, poolAddr)
	pool, ok, err := storage.Load[model.Pool](ctx, e.store, model.KindPool, poolID)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, ReasonMissingPool, nil
	}

	st := &poolState{pool: pool}
	var bundleOK, factoryOK, token0OK, token1OK bool
	loads := []func() error{
		func() (err error) {
			st.bundle, bundleOK, err = storage.Load[model.Bundle](ctx, e.store, model.KindBundle, model.BundleID(chain.ChainID))
			return err
		},
		func() (err error) {
			st.factory, factoryOK, err = storage.Load[model.Factory](ctx, e.store, model.KindFactory, model.FactoryID(chain.ChainID, chain.FactoryAddress))
			return err
		},
		func() (err error) {
			st.token0, token0OK, err = storage.Load[model.Token](ctx, e.store, model.KindToken, pool.Token0)
			return err
		},
		func() (err error) {
			st.token1, token1OK, err = storage.Load[model.Token](ctx, e.store, model.KindToken, pool.Token1)
			return err
		},
	}
	if withTicks {
		loads = append(loads,
			func() (err error) {
				st.lower, _, err = storage.Load[model.Tick](ctx, e.store, model.KindTick, model.TickID(poolID, tickLower))
				return err
			},
			func() (err error) {
				st.upper, _, err = storage.Load[model.Tick](ctx, e.store, model.KindTick, model.TickID(poolID, tickUpper))
				return err
			},
		)
	}
	if err := e.loadAll(ctx, loads...); err != nil {
		return nil, "", err
	}

	switch {
	case !bundleOK:
		return nil, ReasonMissingBundle, nil
	case !factoryOK:
		return nil, ReasonMissingFactory, nil
	case !token0OK || !token1OK:
		return nil, ReasonMissingToken, nil
	}
	return st, "", nil
}

// resetFactoryTVL removes the pool's native TVL from the factory total
// before the pool's TVL is recomputed.
func (st *poolState) resetFactoryTVL() {
	st.factory.TotalValueLockedETH = st.factory.TotalValueLockedETH.Sub(st.pool.TotalValueLockedETH)
}

// recomputePoolTVL values the pool's token balances at the tokens' derived prices.
func (st *poolState) recomputePoolTVL() {
	price := st.bundle.EthPriceUSD
	st.pool.TotalValueLockedETH = st.pool.TotalValueLockedToken0.Mul(st.token0.DerivedETH).
		Add(st.pool.TotalValueLockedToken1.Mul(st.token1.DerivedETH))
	st.pool.TotalValueLockedUSD = st.pool.TotalValueLockedETH.Mul(price)
}

// readdFactoryTVL adds the recomputed pool TVL back into the factory.
func (st *poolState) readdFactoryTVL() {
	st.factory.TotalValueLockedETH = st.factory.TotalValueLockedETH.Add(st.pool.TotalValueLockedETH)
	st.factory.TotalValueLockedUSD = st.factory.TotalValueLockedETH.Mul(st.bundle.EthPriceUSD)
}

func (st *poolState) incrementTxCounts() {
	st.factory.TxCount++
	st.token0.TxCount++
	st.token1.TxCount++
	st.pool.TxCount++
}

func tokenTVLUSD(token *model.Token, ethPriceUSD decimal.Decimal) decimal.Decimal {
	return token.TotalValueLocked.Mul(token.DerivedETH.Mul(ethPriceUSD))
}

// rollups holds the seven snapshots touched by a pool event.
type rollups struct {
	uniswapDay *model.UniswapDayData
	poolDay    *model.PoolDayData
	poolHour   *model.PoolHourData
	token0Day  *model.TokenDayData
	token1Day  *model.TokenDayData
	token0Hour *model.TokenHourData
	token1Hour *model.TokenHourData
}

func (e *Engine) updateRollups(ctx context.Context, ts uint64, chainID uint64, st *poolState) (*rollups, error) {
	var (
		out rollups
		err error
	)
	price := st.bundle.EthPriceUSD
	if out.uniswapDay, err = e.rollups.UniswapDay(ctx, ts, chainID, st.factory); err != nil {
		return nil, err
	}
	if out.poolDay, err = e.rollups.PoolDay(ctx, ts, st.pool); err != nil {
		return nil, err
	}
	if out.poolHour, err = e.rollups.PoolHour(ctx, ts, st.pool); err != nil {
		return nil, err
	}
	if out.token0Day, err = e.rollups.TokenDay(ctx, ts, st.token0, price); err != nil {
		return nil, err
	}
	if out.token1Day, err = e.rollups.TokenDay(ctx, ts, st.token1, price); err != nil {
		return nil, err
	}
	if out.token0Hour, err = e.rollups.TokenHour(ctx, ts, st.token0, price); err != nil {
		return nil, err
	}
	if out.token1Hour, err = e.rollups.TokenHour(ctx, ts, st.token1, price); err != nil {
		return nil, err
	}
	return &out, nil
}

// loadTransaction reads or creates the transaction entity and writes it.
func (e *Engine) loadTransaction(ctx context.Context, event model.TypedEventRecord) (*model.Transaction, error) {
	id := model.TransactionID(event.TxHash)
	tx, _, err := storage.LoadOrCreate(ctx, e.store, model.KindTransaction, id, func() *model.Transaction {
		return &model.Transaction{
			ID:          id,
			BlockNumber: event.BlockNumber,
			Timestamp:   event.Timestamp,
			GasUsed:     new(big.Int),
			GasPrice:    new(big.Int),
		}
	})
	if err != nil {
		return nil, err
	}
	tx.BlockNumber = event.BlockNumber
	tx.Timestamp = event.Timestamp
	if gas, ok := new(big.Int).SetString(event.GasPrice, 10); ok {
		tx.GasPrice = gas
	}
	if err := storage.Save(ctx, e.store, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

func decodePayload[T any](event model.TypedEventRecord) (T, error) {
	var out T
	if len(event.Decoded) == 0 {
		return out, fmt.Errorf("%w: empty", ErrInvalidPayload)
	}
	if err := json.Unmarshal(event.Decoded, &out); err != nil {
		return out, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, event.EventName, err)
	}
	return out, nil
}

func parseInt(field, value string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %s %q", ErrInvalidPayload, field, value)
	}
	return v, nil
}

func parseAmounts(amount0, amount1 string, token0, token1 *model.Token) (decimal.Decimal, decimal.Decimal, error) {
	raw0, err := parseInt("amount0", amount0)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	raw1, err := parseInt("amount1", amount1)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return mathutil.ToDecimal(raw0, token0.Decimals), mathutil.ToDecimal(raw1, token1.Decimals), nil
}

func sameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}
