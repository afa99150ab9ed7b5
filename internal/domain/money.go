package domain

import "github.com/shopspring/decimal"

// MoneyPlaces is the number of fractional digits every stored amount carries.
const MoneyPlaces = 2

// MaxAmount is the largest magnitude a NUMERIC(14,2) column holds.
var MaxAmount = decimal.New(99999999999999, -MoneyPlaces)

// Exponent window checked before any rescaling. Rounding a value outside it
// would build a power of ten as large as the exponent itself.
const (
	minExponent = -18
	maxExponent = 12
)

// Quantize rounds d to MoneyPlaces, half away from zero.
func Quantize(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// WithinLimit reports whether d fits the storage range once quantized.
func WithinLimit(d decimal.Decimal) bool {
	if exp := d.Exponent(); exp < minExponent || exp > maxExponent {
		return false
	}
	return Quantize(d).Abs().LessThanOrEqual(MaxAmount)
}

// ValidAmount reports whether d is a storable, strictly positive amount.
func ValidAmount(d decimal.Decimal) bool {
	return WithinLimit(d) && Quantize(d).IsPositive()
}

func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(MoneyPlaces)
}
