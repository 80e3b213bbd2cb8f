package grade

import (
	"github.com/shopspring/decimal"
)

// significant digits kept by the score division
const precision = 10

// extra digits carried by the division before the significant-digit rounding
const guard = 4

var hundred = decimal.NewFromInt(100)

//
// Percent computes finalScore / maxScore * 100 with the division
// rounded half-up to 10 significant digits. ok is false when the
// maximum score is absent or zero, in which case the percent is 0.
//
func Percent(finalScore float64, maxScore *float64) (percent float64, ok bool) {
	if maxScore == nil || *maxScore == 0 {
		return 0, false
	}
	final := decimal.NewFromFloat(finalScore)
	total := decimal.NewFromFloat(*maxScore)

	quotient := roundSignificant(final.DivRound(total, divisionScale(final, total)), precision)
	percent, _ = quotient.Mul(hundred).Float64()
	return percent, true
}

//
// divisionScale is the number of decimal places the division needs so
// the quotient still carries precision significant digits plus a guard,
// however small or large the operands are.
//
func divisionScale(final, total decimal.Decimal) int32 {
	scale := int32(precision + guard)
	if final.IsZero() {
		return scale
	}
	// the quotient's leading digit sits at or above 10^(mf-mt-1)
	if s := precision + guard + magnitude(total) - magnitude(final); s > scale {
		scale = s
	}
	return scale
}

func roundSignificant(d decimal.Decimal, digits int32) decimal.Decimal {
	if d.IsZero() {
		return d
	}
	return d.Round(digits - 1 - magnitude(d))
}

// magnitude of the leading digit of a non-zero d, so 10^magnitude <= |d| < 10^(magnitude+1)
func magnitude(d decimal.Decimal) int32 {
	// for d = c * 10^e with n digits in c, the leading digit sits at 10^(n-1+e)
	n := int32(len(d.Coefficient().Text(10)))
	if d.Sign() < 0 {
		n--
	}
	return n - 1 + d.Exponent()
}
