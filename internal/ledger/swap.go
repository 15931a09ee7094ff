package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"poolLedger/internal/chains"
	"poolLedger/internal/mathutil"
	"poolLedger/internal/model"
	"poolLedger/internal/pricing"
	"poolLedger/internal/storage"
)

var (
	two          = decimal.NewFromInt(2)
	feeTierScale = decimal.NewFromInt(1_000_000)
)

func (e *Engine) handleSwap(ctx context.Context, chain *chains.Config, event model.TypedEventRecord) (string, error) {
	data, err := decodePayload[model.SwapEventData](event)
	if err != nil {
		return "", err
	}
	sqrtPrice, err := parseInt("sqrt_price_x96", data.SqrtPriceX96)
	if err != nil {
		return "", err
	}
	liquidity, err := parseInt("liquidity", data.Liquidity)
	if err != nil {
		return "", err
	}

	st, reason, err := e.loadPoolState(ctx, chain, event.Address, false, 0, 0)
	if err != nil || reason != "" {
		return reason, err
	}
	if st.pool.Address() == badPricingPool {
		return ReasonPoolSkipped, nil
	}
	pool, bundle, factory, token0, token1 := st.pool, st.bundle, st.factory, st.token0, st.token1

	amount0, amount1, err := parseAmounts(data.Amount0, data.Amount1, token0, token1)
	if err != nil {
		return "", err
	}
	amount0Abs := mathutil.Abs(amount0)
	amount1Abs := mathutil.Abs(amount1)

	amount0USD := amount0Abs.Mul(token0.DerivedETH).Mul(bundle.EthPriceUSD)
	amount1USD := amount1Abs.Mul(token1.DerivedETH).Mul(bundle.EthPriceUSD)

	// Both legs describe one transfer of value, so totals are halved.
	trackedUSD := mathutil.SafeDiv(pricing.TrackedAmountUSD(bundle.EthPriceUSD, amount0Abs, token0, amount1Abs, token1, chain), two)
	trackedETH := mathutil.SafeDiv(trackedUSD, bundle.EthPriceUSD)
	untrackedUSD := mathutil.SafeDiv(amount0USD.Add(amount1USD), two)

	feeScale := mathutil.SafeDiv(decimal.NewFromInt(int64(pool.FeeTier)), feeTierScale)
	feesETH := trackedETH.Mul(feeScale)
	feesUSD := trackedUSD.Mul(feeScale)

	factory.TxCount++
	factory.TotalVolumeETH = factory.TotalVolumeETH.Add(trackedETH)
	factory.TotalVolumeUSD = factory.TotalVolumeUSD.Add(trackedUSD)
	factory.UntrackedVolumeUSD = factory.UntrackedVolumeUSD.Add(untrackedUSD)
	factory.TotalFeesETH = factory.TotalFeesETH.Add(feesETH)
	factory.TotalFeesUSD = factory.TotalFeesUSD.Add(feesUSD)
	st.resetFactoryTVL()

	pool.VolumeToken0 = pool.VolumeToken0.Add(amount0Abs)
	pool.VolumeToken1 = pool.VolumeToken1.Add(amount1Abs)
	pool.VolumeUSD = pool.VolumeUSD.Add(trackedUSD)
	pool.UntrackedVolumeUSD = pool.UntrackedVolumeUSD.Add(untrackedUSD)
	pool.FeesUSD = pool.FeesUSD.Add(feesUSD)
	pool.TxCount++

	tick := data.Tick
	pool.Liquidity = liquidity
	pool.Tick = &tick
	pool.SqrtPrice = sqrtPrice
	pool.TotalValueLockedToken0 = pool.TotalValueLockedToken0.Add(amount0)
	pool.TotalValueLockedToken1 = pool.TotalValueLockedToken1.Add(amount1)

	addTokenSwap(token0, amount0, amount0Abs, trackedUSD, untrackedUSD, feesUSD)
	addTokenSwap(token1, amount1, amount1Abs, trackedUSD, untrackedUSD, feesUSD)

	native := chain.NativeToken.Decimals
	pool.Token0Price, pool.Token1Price = pricing.SqrtPriceToTokenPrices(
		pool.SqrtPrice,
		pricing.TokenDecimals(token0, native),
		pricing.TokenDecimals(token1, native),
	)
	if err := storage.Save(ctx, e.store, pool); err != nil {
		return "", err
	}

	if bundle.EthPriceUSD, err = e.oracle.NativePriceInUSD(ctx, chain); err != nil {
		return "", err
	}
	if err := storage.Save(ctx, e.store, bundle); err != nil {
		return "", err
	}
	if token0.DerivedETH, err = e.oracle.NativePerToken(ctx, chain, token0); err != nil {
		return "", err
	}
	if token1.DerivedETH, err = e.oracle.NativePerToken(ctx, chain, token1); err != nil {
		return "", err
	}

	st.recomputePoolTVL()
	st.readdFactoryTVL()
	token0.TotalValueLockedUSD = tokenTVLUSD(token0, bundle.EthPriceUSD)
	token1.TotalValueLockedUSD = tokenTVLUSD(token1, bundle.EthPriceUSD)

	tx, err := e.loadTransaction(ctx, event)
	if err != nil {
		return "", err
	}

	swap := &model.Swap{
		ID:           model.EventID(event.TxHash, event.LogIndex),
		Transaction:  tx.ID,
		Timestamp:    tx.Timestamp,
		Pool:         pool.ID,
		Token0:       pool.Token0,
		Token1:       pool.Token1,
		Sender:       data.Sender,
		Recipient:    data.Recipient,
		Origin:       event.TxFrom,
		Amount0:      amount0,
		Amount1:      amount1,
		AmountUSD:    trackedUSD,
		SqrtPriceX96: sqrtPrice,
		Tick:         data.Tick,
		LogIndex:     event.LogIndex,
	}

	r, err := e.updateRollups(ctx, event.Timestamp, chain.ChainID, st)
	if err != nil {
		return "", err
	}

	r.uniswapDay.VolumeETH = r.uniswapDay.VolumeETH.Add(trackedETH)
	r.uniswapDay.VolumeUSD = r.uniswapDay.VolumeUSD.Add(trackedUSD)
	r.uniswapDay.VolumeUSDUntracked = r.uniswapDay.VolumeUSDUntracked.Add(untrackedUSD)
	r.uniswapDay.FeesUSD = r.uniswapDay.FeesUSD.Add(feesUSD)

	addPoolSwap(&r.poolDay.PoolSnapshot, amount0Abs, amount1Abs, trackedUSD, feesUSD)
	addPoolSwap(&r.poolHour.PoolSnapshot, amount0Abs, amount1Abs, trackedUSD, feesUSD)

	addTokenBucketSwap(&r.token0Day.TokenSnapshot, amount0Abs, trackedUSD, untrackedUSD, feesUSD)
	addTokenBucketSwap(&r.token0Hour.TokenSnapshot, amount0Abs, trackedUSD, untrackedUSD, feesUSD)
	addTokenBucketSwap(&r.token1Day.TokenSnapshot, amount1Abs, trackedUSD, untrackedUSD, feesUSD)
	addTokenBucketSwap(&r.token1Hour.TokenSnapshot, amount1Abs, trackedUSD, untrackedUSD, feesUSD)

	return "", storage.Save(ctx, e.store,
		swap,
		r.token0Day, r.token1Day,
		r.uniswapDay,
		r.poolDay, r.poolHour,
		r.token0Hour, r.token1Hour,
		factory, pool, token0, token1,
	)
}

func addTokenSwap(token *model.Token, amount, amountAbs, trackedUSD, untrackedUSD, feesUSD decimal.Decimal) {
	token.Volume = token.Volume.Add(amountAbs)
	token.TotalValueLocked = token.TotalValueLocked.Add(amount)
	token.VolumeUSD = token.VolumeUSD.Add(trackedUSD)
	token.UntrackedVolumeUSD = token.UntrackedVolumeUSD.Add(untrackedUSD)
	token.FeesUSD = token.FeesUSD.Add(feesUSD)
	token.TxCount++
}

func addPoolSwap(snap *model.PoolSnapshot, amount0Abs, amount1Abs, trackedUSD, feesUSD decimal.Decimal) {
	snap.VolumeUSD = snap.VolumeUSD.Add(trackedUSD)
	snap.VolumeToken0 = snap.VolumeToken0.Add(amount0Abs)
	snap.VolumeToken1 = snap.VolumeToken1.Add(amount1Abs)
	snap.FeesUSD = snap.FeesUSD.Add(feesUSD)
}

func addTokenBucketSwap(snap *model.TokenSnapshot, amountAbs, trackedUSD, untrackedUSD, feesUSD decimal.Decimal) {
	snap.Volume = snap.Volume.Add(amountAbs)
	snap.VolumeUSD = snap.VolumeUSD.Add(trackedUSD)
	snap.UntrackedVolumeUSD = snap.UntrackedVolumeUSD.Add(untrackedUSD)
	snap.FeesUSD = snap.FeesUSD.Add(feesUSD)
}
