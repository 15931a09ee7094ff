package pricing

import (
	"context"

	"github.com/shopspring/decimal"

	"poolLedger/internal/chains"
	"poolLedger/internal/mathutil"
	"poolLedger/internal/model"
	"poolLedger/internal/storage"
)

// Oracle derives native and USD prices from stored pools and tokens.
type Oracle struct {
	store storage.Store
}

func NewOracle(store storage.Store) *Oracle {
	return &Oracle{store: store}
}

// NativePriceInUSD reads the chain's stablecoin/native reference pool.
// It returns zero until that pool exists.
func (o *Oracle) NativePriceInUSD(ctx context.Context, chain *chains.Config) (decimal.Decimal, error) {
	if chain.ReferencePool == "" {
		return decimal.Zero, nil
	}
	pool, ok, err := storage.Load[model.Pool](ctx, o.store, model.KindPool, model.PoolID(chain.ChainID, chain.ReferencePool))
	if err != nil || !ok {
		return decimal.Zero, err
	}
	if chain.StablecoinIsToken0 {
		return pool.Token0Price, nil
	}
	return pool.Token1Price, nil
}

// NativePerToken searches the token's whitelist pools for the deepest
// single-hop route to an already priced token.
func (o *Oracle) NativePerToken(ctx context.Context, chain *chains.Config, token *model.Token) (decimal.Decimal, error) {
	addr := token.Address()
	if chain.IsNativeOrWrapped(addr) {
		return mathutil.One, nil
	}

	bundle, ok, err := storage.Load[model.Bundle](ctx, o.store, model.KindBundle, model.BundleID(chain.ChainID))
	if err != nil || !ok {
		return decimal.Zero, err
	}

	if chain.IsStablecoin(addr) {
		return mathutil.SafeDiv(mathutil.One, bundle.EthPriceUSD), nil
	}

	largestLiquidityETH := decimal.Zero
	priceSoFar := decimal.Zero
	minimum := chain.MinimumNative()

	for _, poolID := range token.WhitelistPools {
		pool, ok, err := storage.Load[model.Pool](ctx, o.store, model.KindPool, poolID)
		if err != nil {
			return decimal.Zero, err
		}
		if !ok || pool.Liquidity == nil || pool.Liquidity.Sign() <= 0 {
			continue
		}

		var (
			otherID    string
			otherTVL   decimal.Decimal
			otherPrice decimal.Decimal
		)
		switch token.ID {
		case pool.Token0:
			otherID, otherTVL, otherPrice = pool.Token1, pool.TotalValueLockedToken1, pool.Token1Price
		case pool.Token1:
			otherID, otherTVL, otherPrice = pool.Token0, pool.TotalValueLockedToken0, pool.Token0Price
		default:
			continue
		}

		other, ok, err := storage.Load[model.Token](ctx, o.store, model.KindToken, otherID)
		if err != nil {
			return decimal.Zero, err
		}
		if !ok {
			continue
		}

		ethLocked := otherTVL.Mul(other.DerivedETH)
		if ethLocked.GreaterThan(largestLiquidityETH) && ethLocked.GreaterThan(minimum) {
			largestLiquidityETH = ethLocked
			priceSoFar = otherPrice.Mul(other.DerivedETH)
		}
	}
	return priceSoFar, nil
}
