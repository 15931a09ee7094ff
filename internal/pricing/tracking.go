package pricing

import (
	"github.com/shopspring/decimal"

	"poolLedger/internal/model"
)

// Whitelist reports whether a token address is a trusted pricing anchor.
type Whitelist interface {
	IsWhitelisted(addr string) bool
}

var two = decimal.NewFromInt(2)

// TrackedAmountUSD returns the part of a two-sided amount counted in tracked
// statistics: both legs when both tokens are whitelisted, twice the
// whitelisted leg when only one is, zero otherwise.
func TrackedAmountUSD(ethPriceUSD, amount0 decimal.Decimal, token0 *model.Token, amount1 decimal.Decimal, token1 *model.Token, wl Whitelist) decimal.Decimal {
	price0USD := token0.DerivedETH.Mul(ethPriceUSD)
	price1USD := token1.DerivedETH.Mul(ethPriceUSD)

	w0 := wl.IsWhitelisted(token0.Address())
	w1 := wl.IsWhitelisted(token1.Address())

	switch {
	case w0 && w1:
		return amount0.Mul(price0USD).Add(amount1.Mul(price1USD))
	case w0:
		return amount0.Mul(price0USD).Mul(two)
	case w1:
		return amount1.Mul(price1USD).Mul(two)
	default:
		return decimal.Zero
	}
}

// AmountUSD values both legs at the tokens' current derived prices.
func AmountUSD(amount0, amount1, derived0, derived1, ethPriceUSD decimal.Decimal) decimal.Decimal {
	return amount0.Mul(derived0.Mul(ethPriceUSD)).Add(amount1.Mul(derived1.Mul(ethPriceUSD)))
}
