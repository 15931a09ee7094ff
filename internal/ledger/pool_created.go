package ledger

import (
	"context"
	"math/big"

	"poolLedger/internal/chains"
	"poolLedger/internal/model"
	"poolLedger/internal/storage"
)

// ReasonForeignFactory marks PoolCreated logs not emitted by the chain's factory.
const ReasonForeignFactory = "foreign_factory"

func (e *Engine) handlePoolCreated(ctx context.Context, chain *chains.Config, event model.TypedEventRecord) (string, error) {
	data, err := decodePayload[model.PoolCreatedEventData](event)
	if err != nil {
		return "", err
	}
	if event.Address != "" && !sameAddress(event.Address, chain.FactoryAddress) {
		return ReasonForeignFactory, nil
	}
	if chain.SkipPool(data.Pool) {
		return ReasonPoolSkipped, nil
	}

	factoryID := model.FactoryID(chain.ChainID, chain.FactoryAddress)
	token0ID := model.TokenID(chain.ChainID, data.Token0)
	token1ID := model.TokenID(chain.ChainID, data.Token1)

	var (
		factory                       *model.Factory
		token0, token1                *model.Token
		factoryOK, token0OK, token1OK bool
	)
	err = e.loadAll(ctx,
		func() (err error) {
			factory, factoryOK, err = storage.Load[model.Factory](ctx, e.store, model.KindFactory, factoryID)
			return err
		},
		func() (err error) {
			token0, token0OK, err = storage.Load[model.Token](ctx, e.store, model.KindToken, token0ID)
			return err
		},
		func() (err error) {
			token1, token1OK, err = storage.Load[model.Token](ctx, e.store, model.KindToken, token1ID)
			return err
		},
	)
	if err != nil {
		return "", err
	}

	if !factoryOK {
		factory = &model.Factory{ID: factoryID, Owner: model.ZeroAddress}
		bundle := &model.Bundle{ID: model.BundleID(chain.ChainID)}
		if err := storage.Save(ctx, e.store, bundle); err != nil {
			return "", err
		}
	}
	factory.PoolCount++

	var resolves []func() error
	if !token0OK {
		resolves = append(resolves, func() error {
			meta, err := e.resolver.Resolve(ctx, chain.ChainID, data.Token0)
			if err != nil {
				return err
			}
			token0 = newToken(token0ID, meta)
			return nil
		})
	}
	if !token1OK {
		resolves = append(resolves, func() error {
			meta, err := e.resolver.Resolve(ctx, chain.ChainID, data.Token1)
			if err != nil {
				return err
			}
			token1 = newToken(token1ID, meta)
			return nil
		})
	}
	if len(resolves) > 0 {
		if err := e.loadAll(ctx, resolves...); err != nil {
			return "", err
		}
	}

	tick := data.TickSpacing
	pool := &model.Pool{
		ID:                   model.PoolID(chain.ChainID, data.Pool),
		CreatedAtTimestamp:   event.Timestamp,
		CreatedAtBlockNumber: event.BlockNumber,
		Token0:               token0.ID,
		Token1:               token1.ID,
		FeeTier:              data.Fee,
		TickSpacing:          data.TickSpacing,
		Liquidity:            new(big.Int),
		SqrtPrice:            new(big.Int),
		Tick:                 &tick,
	}

	if chain.IsWhitelisted(token0.Address()) {
		token1.AddWhitelistPool(pool.ID)
	}
	if chain.IsWhitelisted(token1.Address()) {
		token0.AddWhitelistPool(pool.ID)
	}

	if err := storage.Save(ctx, e.store, pool, token0, token1, factory); err != nil {
		return "", err
	}
	return "", nil
}

func newToken(id string, meta model.TokenMeta) *model.Token {
	return &model.Token{
		ID:             id,
		Symbol:         meta.Symbol,
		Name:           meta.Name,
		Decimals:       meta.Decimals,
		WhitelistPools: []string{},
	}
}
