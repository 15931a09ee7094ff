package pricing

import (
	"math/big"

	"github.com/shopspring/decimal"

	"poolLedger/internal/mathutil"
	"poolLedger/internal/model"
)

var (
	tickBase = decimal.RequireFromString("1.0001")
	q192     = decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 192), 0)
)

// TickToPrice0 returns 1.0001^tick.
func TickToPrice0(tick int32) decimal.Decimal {
	return mathutil.Power(tickBase, int64(tick))
}

// TickToPrice1 returns 1 / 1.0001^tick, computed as 1.0001^-tick.
func TickToPrice1(tick int32) decimal.Decimal {
	return mathutil.Power(tickBase, -int64(tick))
}

// SqrtPriceToTokenPrices converts a Q64.96 square-root price into
// (token0Price, token1Price). token0Price is token0 per token1.
func SqrtPriceToTokenPrices(sqrtPriceX96 *big.Int, decimals0, decimals1 uint8) (decimal.Decimal, decimal.Decimal) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() == 0 {
		return decimal.Zero, decimal.Zero
	}
	sq := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	num := decimal.NewFromBigInt(sq, 0).Mul(mathutil.ExponentToDecimal(decimals0))
	den := q192.Mul(mathutil.ExponentToDecimal(decimals1))

	price1 := mathutil.SafeDiv(num, den)
	price0 := mathutil.Reciprocal(price1)
	return price0, price1
}

// TokenDecimals returns the decimals used for pricing, substituting the
// chain's native decimals for the zero-address pseudo token.
func TokenDecimals(token *model.Token, nativeDecimals uint8) uint8 {
	if token.Address() == model.ZeroAddress {
		return nativeDecimals
	}
	return token.Decimals
}
