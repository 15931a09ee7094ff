package ledger

import (
	"context"
	"math/big"

	"poolLedger/internal/chains"
	"poolLedger/internal/model"
	"poolLedger/internal/pricing"
	"poolLedger/internal/storage"
)

// handleBurn adjusts liquidity only. Token balances leave the pool on the
// following Collect.
func (e *Engine) handleBurn(ctx context.Context, chain *chains.Config, event model.TypedEventRecord) (string, error) {
	data, err := decodePayload[model.BurnEventData](event)
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

	st.incrementTxCounts()

	if pool.TickInRange(data.TickLower, data.TickUpper) {
		pool.Liquidity = new(big.Int).Sub(pool.Liquidity, amount)
	}

	tx, err := e.loadTransaction(ctx, event)
	if err != nil {
		return "", err
	}

	burn := &model.Burn{
		ID:          model.EventID(event.TxHash, event.LogIndex),
		Transaction: tx.ID,
		Timestamp:   tx.Timestamp,
		Pool:        pool.ID,
		Token0:      pool.Token0,
		Token1:      pool.Token1,
		Owner:       data.Owner,
		Origin:      event.TxFrom,
		Amount:      amount,
		Amount0:     amount0,
		Amount1:     amount1,
		AmountUSD:   amountUSD,
		TickLower:   data.TickLower,
		TickUpper:   data.TickUpper,
		LogIndex:    event.LogIndex,
	}

	if st.lower != nil && st.upper != nil {
		for _, t := range []*model.Tick{st.lower, st.upper} {
			t.LiquidityGross = new(big.Int).Sub(t.LiquidityGross, amount)
			t.LiquidityNet = new(big.Int).Sub(t.LiquidityNet, amount)
		}
		if err := storage.Save(ctx, e.store, st.lower, st.upper); err != nil {
			return "", err
		}
	}

	if _, err := e.updateRollups(ctx, event.Timestamp, chain.ChainID, st); err != nil {
		return "", err
	}
	return "", storage.Save(ctx, e.store, token0, token1, pool, st.factory, burn)
}
