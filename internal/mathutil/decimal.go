package mathutil

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// DivisionPrecision is the number of fractional digits kept by SafeDiv and
// Power, and the number of significant digits kept by Reciprocal.
const DivisionPrecision int32 = 40

var (
	Zero = decimal.Zero
	One  = decimal.NewFromInt(1)
)

// ToDecimal converts a raw integer token amount into token units.
// A zero decimals value returns the raw amount unchanged.
func ToDecimal(raw *big.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	if decimals == 0 {
		return decimal.NewFromBigInt(raw, 0)
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}

// ExponentToDecimal returns 10^n.
func ExponentToDecimal(n uint8) decimal.Decimal {
	return decimal.New(1, int32(n))
}

// SafeDiv returns a / b, or zero when b is zero.
func SafeDiv(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.DivRound(b, DivisionPrecision)
}

// Reciprocal returns 1 / d, or zero when d is zero. The precision grows
// with the integer digits of d so tiny results keep their significant digits.
func Reciprocal(d decimal.Decimal) decimal.Decimal {
	if d.IsZero() {
		return decimal.Zero
	}
	precision := DivisionPrecision
	if intDigits := int32(d.NumDigits()) + d.Exponent(); intDigits > 0 {
		precision += intDigits
	}
	return One.DivRound(d, precision)
}

// Power raises base to an integer exponent by squaring.
func Power(base decimal.Decimal, exponent int64) decimal.Decimal {
	if exponent < 0 {
		return Reciprocal(Power(base, -exponent))
	}
	if exponent == 0 {
		return One
	}
	if exponent == 1 {
		return base
	}

	half := Power(base, exponent/2)
	result := half.Mul(half).Round(DivisionPrecision)
	if exponent%2 == 1 {
		result = result.Mul(base).Round(DivisionPrecision)
	}
	return result
}

// Abs returns the absolute value.
func Abs(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return d.Neg()
	}
	return d
}

// BigIntOrZero returns a copy of v, or zero when v is nil.
func BigIntOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
