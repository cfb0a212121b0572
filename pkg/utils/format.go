// Package utils provides shared utility functions.
package utils

import (
	"github.com/shopspring/decimal"
)

// RoundPrice rounds a price to cents, half away from zero.
func RoundPrice(price float64) float64 {
	return decimal.NewFromFloat(price).Round(2).InexactFloat64()
}

// FormatPrice formats a price with exactly two decimals and no symbol.
func FormatPrice(price float64) string {
	return decimal.NewFromFloat(price).StringFixed(2)
}

// FormatDollars formats a price as "$123.45".
func FormatDollars(price float64) string {
	return "$" + FormatPrice(price)
}

// FormatSignedPercent formats the magnitude of value with a leading sign and
// no percent symbol. Zero is treated as a gain.
func FormatSignedPercent(value float64) string {
	sign := "+"
	if value < 0 {
		sign = "-"
		value = -value
	}
	return sign + FormatPrice(value)
}
