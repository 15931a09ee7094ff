package ledger

import (
	"context"
	"strings"

	"poolLedger/internal/chains"
	"poolLedger/internal/model"
	"poolLedger/internal/pricing"
	"poolLedger/internal/storage"
)

func (e *Engine) handleCollect(ctx context.Context, chain *chains.Config, event model.TypedEventRecord) (string, error) {
	data, err := decodePayload[model.CollectEventData](event)
	if err != nil {
		return "", err
	}

	st, reason, err := e.loadPoolState(ctx, chain, event.Address, false, 0, 0)
	if err != nil || reason != "" {
		return reason, err
	}
	pool, bundle, token0, token1 := st.pool, st.bundle, st.token0, st.token1

	tx, err := e.loadTransaction(ctx, event)
	if err != nil {
		return "", err
	}

	amount0, amount1, err := parseAmounts(data.Amount0, data.Amount1, token0, token1)
	if err != nil {
		return "", err
	}
	trackedUSD := pricing.TrackedAmountUSD(bundle.EthPriceUSD, amount0, token0, amount1, token1, chain)

	st.resetFactoryTVL()
	st.incrementTxCounts()

	token0.TotalValueLocked = token0.TotalValueLocked.Sub(amount0)
	token0.TotalValueLockedUSD = tokenTVLUSD(token0, bundle.EthPriceUSD)
	token1.TotalValueLocked = token1.TotalValueLocked.Sub(amount1)
	token1.TotalValueLockedUSD = tokenTVLUSD(token1, bundle.EthPriceUSD)

	pool.TotalValueLockedToken0 = pool.TotalValueLockedToken0.Sub(amount0)
	pool.TotalValueLockedToken1 = pool.TotalValueLockedToken1.Sub(amount1)
	st.recomputePoolTVL()

	pool.CollectedFeesToken0 = pool.CollectedFeesToken0.Add(amount0)
	pool.CollectedFeesToken1 = pool.CollectedFeesToken1.Add(amount1)
	pool.CollectedFeesUSD = pool.CollectedFeesUSD.Add(trackedUSD)

	st.readdFactoryTVL()

	collect := &model.Collect{
		ID:          model.EventID(event.TxHash, event.LogIndex),
		Transaction: tx.ID,
		Timestamp:   event.Timestamp,
		Pool:        pool.ID,
		Owner:       strings.ToLower(data.Owner),
		Amount0:     amount0,
		Amount1:     amount1,
		AmountUSD:   trackedUSD,
		TickLower:   data.TickLower,
		TickUpper:   data.TickUpper,
		LogIndex:    event.LogIndex,
	}

	if _, err := e.updateRollups(ctx, event.Timestamp, chain.ChainID, st); err != nil {
		return "", err
	}
	return "", storage.Save(ctx, e.store, token0, token1, pool, st.factory, collect)
}
