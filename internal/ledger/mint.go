package ledger

import (
	"context"
	"math/big"

	"poolLedger/internal/chains"
	"poolLedger/internal/model"
	"poolLedger/internal/pricing"
	"poolLedger/internal/storage"
)

func (e *Engine) handleMint(ctx context.Context, chain *chains.Config, event model.TypedEventRecord) (string, error) {
	data, err := decodePayload[model.MintEventData](event)
	if err != nil {
		return "", err
	}
	amount, err := parseInt("amount", data.Amount)
	if err != nil {
		return "", err
	}

	st, reason, err := e.loadPoolState(ctx, chain, event.Address, true, data.TickLower, data.TickUpper)
	if err != nil || reason != "" {
		return reason, err
	}
	pool, bundle, token0, token1 := st.pool, st.bundle, st.token0, st.token1

	amount0, amount1, err := parseAmounts(data.Amount0, data.Amount1, token0, token1)
	if err != nil {
		return "", err
	}
	amountUSD := pricing.AmountUSD(amount0, amount1, token0.DerivedETH, token1.DerivedETH, bundle.EthPriceUSD)

	st.resetFactoryTVL()
	st.incrementTxCounts()

	token0.TotalValueLocked = token0.TotalValueLocked.Add(amount0)
	token0.TotalValueLockedUSD = tokenTVLUSD(token0, bundle.EthPriceUSD)
	token1.TotalValueLocked = token1.TotalValueLocked.Add(amount1)
	token1.TotalValueLockedUSD = tokenTVLUSD(token1, bundle.EthPriceUSD)

	if pool.TickInRange(data.TickLower, data.TickUpper) {
		pool.Liquidity = new(big.Int).Add(pool.Liquidity, amount)
	}

	pool.TotalValueLockedToken0 = pool.TotalValueLockedToken0.Add(amount0)
	pool.TotalValueLockedToken1 = pool.TotalValueLockedToken1.Add(amount1)
	st.recomputePoolTVL()
	st.readdFactoryTVL()

	tx, err := e.loadTransaction(ctx, event)
	if err != nil {
		return "", err
	}

	mint := &model.Mint{
		ID:          model.EventID(event.TxHash, event.LogIndex),
		Transaction: tx.ID,
		Timestamp:   tx.Timestamp,
		Pool:        pool.ID,
		Token0:      pool.Token0,
		Token1:      pool.Token1,
		Owner:       data.Owner,
		Sender:      data.Sender,
		Origin:      event.TxFrom,
		Amount:      amount,
		Amount0:     amount0,
		Amount1:     amount1,
		AmountUSD:   amountUSD,
		TickLower:   data.TickLower,
		TickUpper:   data.TickUpper,
		LogIndex:    event.LogIndex,
	}

	lower := st.lower
	if lower == nil {
		lower = newTick(pool, data.TickLower, event)
	}
	upper := st.upper
	if upper == nil {
		upper = newTick(pool, data.TickUpper, event)
	}
	for _, t := range []*model.Tick{lower, upper} {
		t.LiquidityGross = new(big.Int).Add(t.LiquidityGross, amount)
		t.LiquidityNet = new(big.Int).Add(t.LiquidityNet, amount)
	}
	if err := storage.Save(ctx, e.store, lower, upper); err != nil {
		return "", err
	}

	if _, err := e.updateRollups(ctx, event.Timestamp, chain.ChainID, st); err != nil {
		return "", err
	}
	return "", storage.Save(ctx, e.store, token0, token1, pool, st.factory, mint)
}

// newTick creates a boundary tick with its static prices.
func newTick(pool *model.Pool, idx int32, event model.TypedEventRecord) *model.Tick {
	price0 := pricing.TickToPrice0(idx)
	return &model.Tick{
		ID:                   model.TickID(pool.ID, idx),
		PoolAddress:          pool.Address(),
		Pool:                 pool.ID,
		TickIdx:              idx,
		LiquidityGross:       new(big.Int),
		LiquidityNet:         new(big.Int),
		Price0:               price0,
		Price1:               pricing.TickToPrice1(idx),
		CreatedAtTimestamp:   event.Timestamp,
		CreatedAtBlockNumber: event.BlockNumber,
	}
}
