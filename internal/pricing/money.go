package pricing

import "github.com/shopspring/decimal"

// ToMinor converts a major-unit amount such as 9.99 into minor units (999).
func ToMinor(major float64) int64 {
	return decimal.NewFromFloat(major).Shift(2).Round(0).IntPart()
}

// ToMajor converts minor units back into a major-unit amount.
func ToMajor(minor int64) float64 {
	return decimal.New(minor, -2).InexactFloat64()
}
