package ledger

import (
	"context"

	"poolLedger/internal/chains"
	"poolLedger/internal/model"
	"poolLedger/internal/storage"
)

func (e *Engine) handleInitialize(ctx context.Context, chain *chains.Config, event model.TypedEventRecord) (string, error) {
	data, err := decodePayload[model.InitializeEventData](event)
	if err != nil {
		return "", err
	}
	sqrtPrice, err := parseInt("sqrt_price_x96", data.SqrtPriceX96)
	if err != nil {
		return "", err
	}

	pool, ok, err := storage.Load[model.Pool](ctx, e.store, model.KindPool, model.PoolID(chain.ChainID, event.Address))
	if err != nil {
		return "", err
	}
	if !ok {
		return ReasonMissingPool, nil
	}

	tick := data.Tick
	pool.SqrtPrice = sqrtPrice
	pool.Tick = &tick
	if err := storage.Save(ctx, e.store, pool); err != nil {
		return "", err
	}

	bundle, ok, err := storage.Load[model.Bundle](ctx, e.store, model.KindBundle, model.BundleID(chain.ChainID))
	if err != nil {
		return "", err
	}
	if !ok {
		return ReasonMissingBundle, nil
	}
	if bundle.EthPriceUSD, err = e.oracle.NativePriceInUSD(ctx, chain); err != nil {
		return "", err
	}
	if err := storage.Save(ctx, e.store, bundle); err != nil {
		return "", err
	}

	if _, err := e.rollups.PoolDay(ctx, event.Timestamp, pool); err != nil {
		return "", err
	}
	if _, err := e.rollups.PoolHour(ctx, event.Timestamp, pool); err != nil {
		return "", err
	}

	var (
		token0, token1     *model.Token
		token0OK, token1OK bool
	)
	err = e.loadAll(ctx,
		func() (err error) {
			token0, token0OK, err = storage.Load[model.Token](ctx, e.store, model.KindToken, pool.Token0)
			return err
		},
		func() (err error) {
			token1, token1OK, err = storage.Load[model.Token](ctx, e.store, model.KindToken, pool.Token1)
			return err
		},
	)
	if err != nil {
		return "", err
	}
	if !token0OK || !token1OK {
		return "", nil
	}

	err = e.loadAll(ctx,
		func() (err error) {
			token0.DerivedETH, err = e.oracle.NativePerToken(ctx, chain, token0)
			return err
		},
		func() (err error) {
			token1.DerivedETH, err = e.oracle.NativePerToken(ctx, chain, token1)
			return err
		},
	)
	if err != nil {
		return "", err
	}
	return "", storage.Save(ctx, e.store, token0, token1)
}
